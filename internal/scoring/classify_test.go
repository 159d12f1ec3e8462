package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyComplaint(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		expectedType string
	}{
		{
			name:         "safety language wins safety concern",
			text:         "there is a safety hazard on the site",
			expectedType: TypeSafetyConcern,
		},
		{
			name:         "schedule language wins delay",
			text:         "the project is behind schedule and the deadline passed",
			expectedType: TypeDelay,
		},
		{
			name:         "billing language wins cost overrun",
			text:         "they overcharge and the price is far above budget",
			expectedType: TypeCostOverrun,
		},
		{
			name:         "no keywords falls back to other",
			text:         "something happened yesterday",
			expectedType: TypeOther,
		},
		{
			name:         "empty text falls back to other",
			text:         "",
			expectedType: TypeOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifyComplaint(tt.text)

			assert.Equal(t, tt.expectedType, result.Type)
			assert.GreaterOrEqual(t, result.Confidence, 0.0)
			assert.LessOrEqual(t, result.Confidence, 1.0)
		})
	}
}

func TestClassifyComplaintTieBreak(t *testing.T) {
	// "cheap" scores for QUALITY_ISSUE and "broken" for MATERIAL_DEFECT
	// with identical weights; the earlier-declared category must win.
	result := ClassifyComplaint("cheap and broken")

	assert.Equal(t, TypeQualityIssue, result.Type)
	assert.InDelta(t, 0.5, result.Confidence, 1e-9)
}

func TestClassifyComplaintWeights(t *testing.T) {
	// "quality" matches as a substring (1) plus one whole-word occurrence
	// (0.5); no other category scores, so confidence is 1.
	result := ClassifyComplaint("the quality is low")

	assert.Equal(t, TypeQualityIssue, result.Type)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
}

func TestClassifyComplaintZeroWeightConfidence(t *testing.T) {
	result := ClassifyComplaint("nothing matches here")

	assert.Equal(t, TypeOther, result.Type)
	assert.Zero(t, result.Confidence)
}
