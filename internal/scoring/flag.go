package scoring

import "fmt"

// DetermineFlag resolves a complaint's review status from GPS presence and
// location verification. Missing GPS is inconclusive rather than fatal:
// the complaint waits for manual review.
func DetermineFlag(hasGPS, locationVerified bool, distance *float64) FlagDetermination {
	if !hasGPS {
		return FlagDetermination{
			Flag:    FlagPendingReview,
			Reasons: []string{"No GPS data in image"},
		}
	}

	if !locationVerified {
		d := 0.0
		if distance != nil {
			d = *distance
		}
		return FlagDetermination{
			Flag: FlagRejected,
			Reasons: []string{
				fmt.Sprintf("Location is %.0fm from project site (max: %dm)", d, MaxDistanceMeters),
			},
		}
	}

	return FlagDetermination{Flag: FlagVerified, Reasons: []string{}}
}
