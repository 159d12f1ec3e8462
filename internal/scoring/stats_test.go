package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeComplaintStats(t *testing.T) {
	complaints := []ComplaintRecord{
		{Status: FlagVerified, SentimentScore: -0.4, ComplaintType: TypeDelay},
		{Status: FlagVerified, SentimentScore: -0.2, ComplaintType: TypeDelay},
		{Status: FlagPendingReview, SentimentScore: -0.3, ComplaintType: TypeQualityIssue},
		{Status: FlagRejected, SentimentScore: -0.5, ComplaintType: TypeSafetyConcern},
	}

	stats := ComputeComplaintStats(complaints)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Verified)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Rejected)
	assert.InDelta(t, -0.35, stats.AverageSentiment, 1e-9)
	assert.Equal(t, TypeDelay, stats.MostCommonType)
	assert.InDelta(t, 0.5, stats.VerificationRate, 1e-9)
}

func TestComputeComplaintStatsEmpty(t *testing.T) {
	stats := ComputeComplaintStats(nil)

	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.AverageSentiment)
	assert.Equal(t, "NONE", stats.MostCommonType)
	assert.Zero(t, stats.VerificationRate)
}
