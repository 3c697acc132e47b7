// Package metrics provides Prometheus metrics collection for the smoking
// prediction service. It defines the prediction, validation and model
// lifecycle metrics exposed via the Prometheus metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the prediction service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal      prometheus.Counter     // Successful explained predictions
	PredictionFailures    prometheus.Counter     // Predictions that failed after validation
	ValidationErrors      prometheus.Counter     // Requests rejected for missing or invalid fields
	PredictionLatency     prometheus.Histogram   // End-to-end prediction latency in seconds
	PredictionProbability prometheus.Histogram   // Distribution of predicted smoking probabilities
	ConfidenceTiers       *prometheus.CounterVec // Predictions per confidence tier
	AuditWriteFailures    prometheus.Counter     // Predictions that could not be written to the audit log

	// Model metrics
	ModelLoadFailures prometheus.Counter // Failed artifact loads
	ModelAge          prometheus.Gauge   // Age of the loaded model in seconds since training

	// Drift metrics
	DriftScore *prometheus.GaugeVec // Population stability index per monitored signal
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of explained predictions served",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of predictions that failed after validation",
		}),
		ValidationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_errors_total",
			Help: "Total number of requests rejected for missing or invalid fields",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		PredictionProbability: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_probability",
			Help:    "Distribution of predicted smoking probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ConfidenceTiers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "confidence_tier_total",
			Help: "Total number of predictions per confidence tier",
		}, []string{"tier"}),
		AuditWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Total number of predictions that could not be written to the audit log",
		}),
		ModelLoadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "model_load_failures_total",
			Help: "Total number of failed model artifact loads",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the loaded model in seconds since training",
		}),
		DriftScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "drift_psi",
			Help: "Population stability index of the current window against the baseline",
		}, []string{"signal"}),
	}
}

// ErrorRate returns failed predictions over all attempted predictions, or 0
// before any prediction has been made.
func (m *Metrics) ErrorRate(gatherer prometheus.Gatherer) float64 {
	var total, failures float64

	metricFamilies, err := gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "predictions_total":
			for _, m := range mf.Metric {
				total += m.GetCounter().GetValue()
			}
		case "prediction_failures_total":
			for _, m := range mf.Metric {
				failures += m.GetCounter().GetValue()
			}
		}
	}

	if total+failures == 0 {
		return 0
	}
	return failures / (total + failures)
}
