package metrics

// MetricsWrapper adapts Metrics to the method set the predictor records
// through. A nil wrapper or nil Metrics records nothing.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) enabled() bool {
	return w != nil && w.m != nil
}

func (w *MetricsWrapper) PredictionsInc() {
	if w.enabled() {
		w.m.PredictionsTotal.Inc()
	}
}

func (w *MetricsWrapper) PredictionFailuresInc() {
	if w.enabled() {
		w.m.PredictionFailures.Inc()
	}
}

func (w *MetricsWrapper) ValidationErrorsInc() {
	if w.enabled() {
		w.m.ValidationErrors.Inc()
	}
}

func (w *MetricsWrapper) ModelLoadFailuresInc() {
	if w.enabled() {
		w.m.ModelLoadFailures.Inc()
	}
}

func (w *MetricsWrapper) LatencyObserve(v float64) {
	if w.enabled() {
		w.m.PredictionLatency.Observe(v)
	}
}

func (w *MetricsWrapper) ProbabilityObserve(v float64) {
	if w.enabled() {
		w.m.PredictionProbability.Observe(v)
	}
}

func (w *MetricsWrapper) ConfidenceTierInc(tier string) {
	if w.enabled() {
		w.m.ConfidenceTiers.WithLabelValues(tier).Inc()
	}
}

func (w *MetricsWrapper) ModelAgeSet(v float64) {
	if w.enabled() {
		w.m.ModelAge.Set(v)
	}
}

func (w *MetricsWrapper) AuditWriteFailuresInc() {
	if w.enabled() {
		w.m.AuditWriteFailures.Inc()
	}
}

func (w *MetricsWrapper) DriftScoreSet(signal string, psi float64) {
	if w.enabled() {
		w.m.DriftScore.WithLabelValues(signal).Set(psi)
	}
}
