package ml

import (
	"fmt"
	"math"
	"slices"
)

// DecisionThreshold is the probability above which the positive label is
// predicted.
const DecisionThreshold = 0.5

// ClassifierSpec is the serialized form of a fitted logistic regression.
type ClassifierSpec struct {
	Coefficients []float64 `json:"coefficients" yaml:"coefficients"`
	Intercept    float64   `json:"intercept" yaml:"intercept"`
}

// LogisticScorer implements Scorer for a binary logistic regression.
type LogisticScorer struct {
	coefficients []float64
	intercept    float64
}

// NewLogisticScorer validates and copies spec.
func NewLogisticScorer(spec ClassifierSpec) (*LogisticScorer, error) {
	if len(spec.Coefficients) == 0 {
		return nil, fmt.Errorf("classifier has no coefficients")
	}
	for i, c := range spec.Coefficients {
		if !finite(c) {
			return nil, fmt.Errorf("coefficient %d is not finite: %v", i, c)
		}
	}
	if !finite(spec.Intercept) {
		return nil, fmt.Errorf("intercept is not finite: %v", spec.Intercept)
	}
	return &LogisticScorer{
		coefficients: slices.Clone(spec.Coefficients),
		intercept:    spec.Intercept,
	}, nil
}

// Coefficients returns a copy of the fitted weights.
func (s *LogisticScorer) Coefficients() []float64 {
	return slices.Clone(s.coefficients)
}

// Intercept returns the fitted bias term.
func (s *LogisticScorer) Intercept() float64 {
	return s.intercept
}

// Score returns sigmoid(intercept + w·x).
func (s *LogisticScorer) Score(vector []float64) (float64, error) {
	if len(vector) != len(s.coefficients) {
		return 0, shapeError("score", len(s.coefficients), len(vector))
	}
	z := s.intercept
	for i, x := range vector {
		z += s.coefficients[i] * x
	}
	return sigmoid(z), nil
}

// Predict thresholds Score at DecisionThreshold.
func (s *LogisticScorer) Predict(vector []float64) (int, error) {
	p, err := s.Score(vector)
	if err != nil {
		return 0, err
	}
	if p > DecisionThreshold {
		return 1, nil
	}
	return 0, nil
}

// sigmoid converts a log-odds score to a probability without overflowing
// for large negative inputs.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}
