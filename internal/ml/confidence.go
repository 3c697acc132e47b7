package ml

import "math"

// ConfidenceTier is a qualitative bucket for how far a probability sits
// from the decision boundary.
type ConfidenceTier string

const (
	ConfidenceLow    ConfidenceTier = "Low"
	ConfidenceMedium ConfidenceTier = "Medium"
	ConfidenceHigh   ConfidenceTier = "High"
)

// Confidence buckets |p - 0.5|: above 0.25 is High, above 0.1 is Medium,
// anything else Low. Exact boundaries fall to the lower tier.
func Confidence(probability float64) ConfidenceTier {
	distance := math.Abs(probability - DecisionThreshold)
	switch {
	case distance > 0.25:
		return ConfidenceHigh
	case distance > 0.1:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
