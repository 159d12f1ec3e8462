package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetermineFlag(t *testing.T) {
	distance := 1523.7

	tests := []struct {
		name             string
		hasGPS           bool
		locationVerified bool
		distance         *float64
		expectedFlag     ComplaintFlag
		expectedReasons  []string
	}{
		{
			name:            "no gps requires manual review",
			hasGPS:          false,
			expectedFlag:    FlagPendingReview,
			expectedReasons: []string{"No GPS data in image"},
		},
		{
			name:             "gps outside radius is rejected",
			hasGPS:           true,
			locationVerified: false,
			distance:         &distance,
			expectedFlag:     FlagRejected,
			expectedReasons:  []string{"Location is 1524m from project site (max: 1000m)"},
		},
		{
			name:             "verified location passes",
			hasGPS:           true,
			locationVerified: true,
			distance:         &distance,
			expectedFlag:     FlagVerified,
			expectedReasons:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetermineFlag(tt.hasGPS, tt.locationVerified, tt.distance)

			assert.Equal(t, tt.expectedFlag, result.Flag)
			assert.Equal(t, tt.expectedReasons, result.Reasons)
		})
	}
}

func TestDetermineFlagIgnoresDistanceWhenNoGPS(t *testing.T) {
	// The distance argument is irrelevant without GPS data.
	result := DetermineFlag(false, true, nil)
	assert.Equal(t, FlagPendingReview, result.Flag)
}
