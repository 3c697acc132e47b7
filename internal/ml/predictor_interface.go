// Package ml provides the smoking-status prediction engine: a fitted
// preprocessing stage and linear classifier behind explicit adapter
// interfaces, per-feature contribution analysis, narrative explanations,
// confidence tiers, and the facade that ties them into a single request.
//
// The fitted artifact is loaded once per process and shared read-only by
// all concurrent requests.
package ml

import "smoking-predictor/internal/survey"

// Transformer is a fitted preprocessing stage. Implementations must apply
// exactly the scaling and encoding learned at training time.
type Transformer interface {
	// Transform encodes a record. The result has one element per entry of
	// FeatureNames, in the same order.
	Transform(record survey.RawRecord) ([]float64, error)

	// FeatureNames returns the fixed, ordered output dimensions.
	FeatureNames() []FeatureName

	// ReferenceStatistic returns the fitted centre (mean) of a numeric field.
	ReferenceStatistic(field string) (float64, bool)
}

// Scorer is a fitted linear binary classifier.
type Scorer interface {
	// Coefficients returns the weights aligned with Transformer.FeatureNames.
	Coefficients() []float64

	// Score returns the probability of the positive class.
	Score(vector []float64) (float64, error)

	// Predict returns 1 when the positive-class probability exceeds 0.5.
	Predict(vector []float64) (int, error)
}
