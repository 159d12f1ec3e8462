package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name     string
		lat1     float64
		lon1     float64
		lat2     float64
		lon2     float64
		expected float64
		delta    float64
	}{
		{
			name: "identical points",
			lat1: 27.7172, lon1: 85.3240,
			lat2: 27.7172, lon2: 85.3240,
			expected: 0, delta: 0.001,
		},
		{
			name: "short hop near the default anchor",
			lat1: 27.72, lon1: 85.33,
			lat2: 27.7172, lon2: 85.3240,
			expected: 667.6, delta: 1.0,
		},
		{
			name: "kathmandu to pokhara",
			lat1: 27.7172, lon1: 85.3240,
			lat2: 28.2096, lon2: 83.9856,
			expected: 142400, delta: 800,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.expected, result, tt.delta)
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	pairs := [][4]float64{
		{27.7172, 85.3240, 27.72, 85.33},
		{-33.8688, 151.2093, 51.5074, -0.1278},
		{0, 0, 0, 180},
	}

	for _, p := range pairs {
		forward := Haversine(p[0], p[1], p[2], p[3])
		backward := Haversine(p[2], p[3], p[0], p[1])
		assert.InDelta(t, forward, backward, 1e-9)
	}
}

func TestVerifyLocation(t *testing.T) {
	tests := []struct {
		name     string
		photoLat float64
		photoLon float64
		valid    bool
	}{
		{"at project site", 27.7172, 85.3240, true},
		{"within one kilometer", 27.72, 85.33, true},
		{"far outside radius", 27.80, 85.50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := VerifyLocation(tt.photoLat, tt.photoLon, DefaultProjectLatitude, DefaultProjectLongitude, MaxDistanceMeters)

			assert.Equal(t, tt.valid, result.IsValid)
			assert.Equal(t, result.WithinRange, result.IsValid)
			assert.Equal(t, result.Distance <= MaxDistanceMeters, result.IsValid)
		})
	}
}

func TestValidGPS(t *testing.T) {
	assert.True(t, ValidGPS(27.7172, 85.3240))
	assert.True(t, ValidGPS(-90, 180))
	assert.False(t, ValidGPS(90.1, 0))
	assert.False(t, ValidGPS(0, -180.5))
}
