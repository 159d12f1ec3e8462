package scoring

import (
	"math"
	"time"
)

// Sentiment thresholds for the decay update, checked in order.
const (
	sentimentVeryNegative = -0.6
	sentimentNegative     = -0.3
	sentimentNeutralLow   = -0.1
	sentimentPositive     = 0.3
)

// Rating impacts per sentiment band.
const (
	impactVeryNegative = -0.5
	impactNegative     = -0.3
	impactNeutral      = -0.1
	impactPositive     = 0.05
	ratingDecayFactor  = 0.9
)

// MinimumRating is the suspension threshold: contractors below it lose
// medium-bid eligibility and are suspended.
const MinimumRating = 3.8

// LargeBidRating is the threshold for bidding on large contracts.
const LargeBidRating = 4.0

// SuspendedReason is the fixed message recorded when a rating write
// crosses into suspension.
const SuspendedReason = "Rating below minimum threshold of 3.8"

// CalculateNewRating folds one sentiment score into the current rating
// using an exponential moving average: the old rating decays toward the
// impact selected by the sentiment band. Result is clamped to [0,5].
func CalculateNewRating(currentRating, sentiment float64) float64 {
	var impact float64

	switch {
	case sentiment <= sentimentVeryNegative:
		impact = impactVeryNegative
	case sentiment <= sentimentNegative:
		impact = impactNegative
	case sentiment <= sentimentNeutralLow:
		impact = impactNeutral
	case sentiment >= sentimentPositive:
		impact = impactPositive
	default:
		// Mildly-worded complaints still cost half the neutral penalty.
		impact = impactNeutral * 0.5
	}

	return clamp(currentRating*ratingDecayFactor+impact, 0, 5)
}

// CalculateRatingChange applies a citizen-submitted rating against the
// current overall rating. Gains count at half value, losses in full:
// reputation is hard to gain and easy to lose.
func CalculateRatingChange(currentRating, submittedRating float64) RatingChange {
	diff := submittedRating - currentRating

	var pointsGained, pointsLost float64
	if diff > 0 {
		pointsGained = diff * 0.5
	} else if diff < 0 {
		pointsLost = math.Abs(diff)
	}

	newOverall := clamp(currentRating+pointsGained-pointsLost, 0, 5)

	return RatingChange{
		NewOverallRating: newOverall,
		PointsGained:     roundPoints(pointsGained),
		PointsLost:       roundPoints(pointsLost),
	}
}

func roundPoints(x float64) float64 {
	return math.Round(x*100) / 100
}

// CalculateIssuePenalty maps an issue report to a rating penalty. Natural
// disasters never penalize here: they go through the forgiveness flow.
func CalculateIssuePenalty(category IssueCategory, severity Severity) float64 {
	if category == IssueNaturalDisaster {
		return 0
	}

	switch severity {
	case SeverityLow:
		return 0.5
	case SeverityMedium:
		return 1.0
	case SeverityHigh:
		return 1.5
	case SeverityCritical:
		return 2.0
	default:
		return 1.0
	}
}

// ApplyPenalty subtracts a penalty from a rating, never dropping below 0.
func ApplyPenalty(rating, penalty float64) float64 {
	return math.Max(0, rating-penalty)
}

// DurabilityAdjustedPenalty doubles the penalty when the work failed
// before half of its expected lifespan elapsed.
func DurabilityAdjustedPenalty(penalty float64, completedAt time.Time, expectedLifespanYears float64, now time.Time) float64 {
	if completedAt.IsZero() || expectedLifespanYears <= 0 {
		return penalty
	}

	daysSinceCompletion := math.Floor(now.Sub(completedAt).Hours() / 24)
	expectedDays := expectedLifespanYears * 365

	if daysSinceCompletion < expectedDays*0.5 {
		return penalty * 2
	}
	return penalty
}

// QualificationRating derives a contractor's initial rating from submitted
// credentials: a certificate is worth 2.0, experience 0.5 per year up to
// 2.0, skills 0.2 each up to 1.0, capped at 5.0 overall.
func QualificationRating(hasCertificate bool, experienceYears float64, skillCount int) float64 {
	rating := 0.0

	if hasCertificate {
		rating += 2.0
	}
	if experienceYears > 0 {
		rating += math.Min(experienceYears*0.5, 2.0)
	}
	if skillCount > 0 {
		rating += math.Min(float64(skillCount)*0.2, 1.0)
	}

	return math.Min(rating, 5.0)
}
