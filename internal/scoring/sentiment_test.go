package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeSentiment(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{
			name: "two negative keywords over seven words",
			text: "This is a terrible and unsafe situation",
			// terrible(-0.1) + unsafe(-0.1) = -0.2, / sqrt(7), - 0.2 bias
			expected: -0.2/math.Sqrt(7) - 0.2,
		},
		{
			name:     "empty text yields the bias value",
			text:     "",
			expected: -0.2,
		},
		{
			name: "intensifier boosts the following keyword",
			text: "very terrible work",
			// terrible at 1.5x: -0.15 / sqrt(3) - 0.2
			expected: -0.15/math.Sqrt(3) - 0.2,
		},
		{
			name: "negated positive cancels the keyword credit",
			text: "not good",
			// good(+0.1) plus negation(-0.1) net zero, bias remains
			expected: -0.2,
		},
		{
			name: "negated negative is only partially softened",
			text: "not bad",
			// bad(-0.1) plus partial negation(+0.05) = -0.05 / sqrt(2) - 0.2
			expected: -0.05/math.Sqrt(2) - 0.2,
		},
		{
			name: "very negative phrase",
			text: "complete disaster",
			expected: -0.3/math.Sqrt(2) - 0.2,
		},
		{
			name: "positive words lift the score above the bias",
			text: "excellent professional work",
			expected: 0.2/math.Sqrt(3) - 0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AnalyzeSentiment(tt.text)
			assert.InDelta(t, tt.expected, result, 1e-9)
		})
	}
}

func TestAnalyzeSentimentClamped(t *testing.T) {
	// Stack enough phrase hits that the raw score would escape [-1, 1].
	text := "complete disaster total failure absolute worst never again stay away do not hire"

	result := AnalyzeSentiment(text)
	assert.GreaterOrEqual(t, result, -1.0)
	assert.LessOrEqual(t, result, 1.0)
}

func TestAnalyzeSentimentRange(t *testing.T) {
	inputs := []string{
		"",
		"ok",
		"the worst terrible horrible awful unsafe dangerous fraud scam",
		"excellent great good professional quality satisfied happy pleased",
		"very extremely absolutely totally completely",
	}

	for _, text := range inputs {
		score := AnalyzeSentiment(text)
		if score < -1 || score > 1 {
			t.Errorf("AnalyzeSentiment(%q) = %v, outside [-1, 1]", text, score)
		}
	}
}
