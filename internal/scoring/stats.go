package scoring

// ComplaintRecord is the slice of a stored complaint the statistics
// aggregation needs.
type ComplaintRecord struct {
	Status         ComplaintFlag
	SentimentScore float64
	ComplaintType  string
}

// ComplaintStats summarizes a contractor's complaint history.
type ComplaintStats struct {
	Total            int     `json:"total"`
	Verified         int     `json:"verified"`
	Pending          int     `json:"pending"`
	Rejected         int     `json:"rejected"`
	AverageSentiment float64 `json:"average_sentiment"`
	MostCommonType   string  `json:"most_common_type"`
	VerificationRate float64 `json:"verification_rate"`
}

// ComputeComplaintStats aggregates complaint records into per-contractor
// statistics for the audit view.
func ComputeComplaintStats(complaints []ComplaintRecord) ComplaintStats {
	stats := ComplaintStats{
		Total:          len(complaints),
		MostCommonType: "NONE",
	}

	sentimentSum := 0.0
	typeCounts := make(map[string]int)

	for _, c := range complaints {
		switch c.Status {
		case FlagVerified:
			stats.Verified++
		case FlagPendingReview:
			stats.Pending++
		case FlagRejected:
			stats.Rejected++
		}
		sentimentSum += c.SentimentScore
		typeCounts[c.ComplaintType]++
	}

	if stats.Total > 0 {
		stats.AverageSentiment = sentimentSum / float64(stats.Total)
		stats.VerificationRate = float64(stats.Verified) / float64(stats.Total)
	}

	best := 0
	for _, c := range complaints {
		if typeCounts[c.ComplaintType] > best {
			best = typeCounts[c.ComplaintType]
			stats.MostCommonType = c.ComplaintType
		}
	}

	return stats
}
