package scoring

import "math"

const earthRadiusMeters = 6371000

// Fallback project anchor (Kathmandu) used when a contract has no
// recorded location.
const (
	DefaultProjectLatitude  = 27.7172
	DefaultProjectLongitude = 85.3240
)

// MaxDistanceMeters is the radius around the project site within which a
// photo location counts as verified.
const MaxDistanceMeters = 1000

// Haversine returns the great-circle distance in meters between two
// latitude/longitude pairs given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaPhi := (lat2 - lat1) * math.Pi / 180
	deltaLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// VerifyLocation checks whether a photo position falls within maxDistance
// meters of the project site. Callers validate coordinate ranges first.
func VerifyLocation(photoLat, photoLon, projectLat, projectLon, maxDistance float64) LocationVerification {
	distance := Haversine(photoLat, photoLon, projectLat, projectLon)
	withinRange := distance <= maxDistance

	return LocationVerification{
		IsValid:     withinRange,
		Distance:    distance,
		WithinRange: withinRange,
	}
}

// ValidGPS reports whether a coordinate pair is inside the valid
// latitude/longitude domain.
func ValidGPS(latitude, longitude float64) bool {
	return latitude >= -90 && latitude <= 90 && longitude >= -180 && longitude <= 180
}
