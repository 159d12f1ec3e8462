package scoring

// DeriveProgress maps a rating to bid-eligibility flags. Small bids stay
// open to any contractor who is not suspended; medium and large bids
// require the fixed thresholds. Must be recomputed and persisted with
// every rating write.
func DeriveProgress(rating float64) Progress {
	suspended := rating < MinimumRating

	p := Progress{
		CanBidSmall:  !suspended,
		CanBidMedium: rating >= MinimumRating,
		CanBidLarge:  rating >= LargeBidRating,
		IsSuspended:  suspended,
	}
	if suspended {
		p.SuspendedReason = SuspendedReason
	}
	return p
}
