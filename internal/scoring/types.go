package scoring

// ComplaintFlag is the tri-state outcome that gates whether a complaint
// affects a contractor's live rating.
type ComplaintFlag string

const (
	FlagVerified      ComplaintFlag = "VERIFIED"
	FlagPendingReview ComplaintFlag = "PENDING_REVIEW"
	FlagRejected      ComplaintFlag = "REJECTED"
)

// IssueCategory distinguishes issues the contractor is responsible for
// from ones eligible for government forgiveness.
type IssueCategory string

const (
	IssueNaturalDisaster IssueCategory = "NATURAL_DISASTER"
	IssueContractorFault IssueCategory = "CONTRACTOR_FAULT"
)

// Severity grades an issue report.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// LocationVerification is the result of checking a photo's GPS position
// against the project site.
type LocationVerification struct {
	IsValid     bool    `json:"is_valid"`
	Distance    float64 `json:"distance"`
	WithinRange bool    `json:"within_range"`
}

// Classification labels a complaint with a category and a confidence in [0,1].
type Classification struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// FlagDetermination is the review decision for a complaint submission.
type FlagDetermination struct {
	Flag    ComplaintFlag `json:"flag"`
	Reasons []string      `json:"reasons"`
}

// RatingChange is the outcome of applying a citizen rating to a
// contractor's current overall rating.
type RatingChange struct {
	NewOverallRating float64 `json:"new_overall_rating"`
	PointsGained     float64 `json:"points_gained"`
	PointsLost       float64 `json:"points_lost"`
}

// Progress holds the bid-eligibility flags derived from a rating.
type Progress struct {
	CanBidSmall     bool   `json:"can_bid_small"`
	CanBidMedium    bool   `json:"can_bid_medium"`
	CanBidLarge     bool   `json:"can_bid_large"`
	IsSuspended     bool   `json:"is_suspended"`
	SuspendedReason string `json:"suspended_reason,omitempty"`
}
