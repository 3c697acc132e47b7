package ml

import (
	"math"
	"sort"
)

// Default ranking parameters.
const (
	DefaultTopK                  = 5
	DefaultSignificanceThreshold = 1e-6
)

// Direction is the sign of a contribution.
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
)

// Contribution is the signed effect of one encoded feature on the log-odds:
// encoded value times coefficient. For global rankings Value is the
// coefficient itself.
type Contribution struct {
	Index   int
	Feature FeatureName
	Value   float64
}

// Direction reports positive for strictly positive values.
func (c Contribution) Direction() Direction {
	if c.Value > 0 {
		return DirectionPositive
	}
	return DirectionNegative
}

// RankOptions controls RankContributions.
type RankOptions struct {
	// TopK caps the result length. Zero or negative keeps everything.
	TopK int
	// FilterInsignificant drops selected entries with |value| < Threshold.
	FilterInsignificant bool
	Threshold           float64
}

// DefaultRankOptions returns top-5 with the 1e-6 significance filter.
func DefaultRankOptions() RankOptions {
	return RankOptions{
		TopK:                DefaultTopK,
		FilterInsignificant: true,
		Threshold:           DefaultSignificanceThreshold,
	}
}

// ComputeContributions multiplies each encoded value by its coefficient.
// All three slices must have the same length.
func ComputeContributions(names []FeatureName, vector, coefficients []float64) ([]Contribution, error) {
	if len(vector) != len(coefficients) {
		return nil, shapeError("contributions", len(coefficients), len(vector))
	}
	if len(names) != len(vector) {
		return nil, shapeError("contributions", len(names), len(vector))
	}

	out := make([]Contribution, len(vector))
	for i := range vector {
		out[i] = Contribution{Index: i, Feature: names[i], Value: vector[i] * coefficients[i]}
	}
	return out, nil
}

// RankContributions orders by |value| descending, keeping the original
// feature order among ties, then truncates to TopK and applies the
// significance filter. The input slice is not modified.
func RankContributions(contribs []Contribution, opts RankOptions) []Contribution {
	ranked := make([]Contribution, len(contribs))
	copy(ranked, contribs)

	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Value) > math.Abs(ranked[j].Value)
	})

	if opts.TopK > 0 && len(ranked) > opts.TopK {
		ranked = ranked[:opts.TopK]
	}

	if !opts.FilterInsignificant {
		return ranked
	}

	kept := ranked[:0]
	for _, c := range ranked {
		if math.Abs(c.Value) < opts.Threshold {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// RankCoefficients ranks features by |coefficient| alone, independent of any
// record. Ties keep the original feature order.
func RankCoefficients(names []FeatureName, coefficients []float64, topK int) ([]Contribution, error) {
	if len(names) != len(coefficients) {
		return nil, shapeError("global ranking", len(names), len(coefficients))
	}
	contribs := make([]Contribution, len(names))
	for i := range names {
		contribs[i] = Contribution{Index: i, Feature: names[i], Value: coefficients[i]}
	}
	return RankContributions(contribs, RankOptions{TopK: topK}), nil
}
