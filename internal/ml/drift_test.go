package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedDrift(d *DriftDetector, n int, age func(i int) float64, probability float64) {
	for i := 0; i < n; i++ {
		d.Observe(age(i), probability)
	}
}

func cyclingAge(base float64) func(int) float64 {
	return func(i int) float64 { return base + float64(i%50) }
}

func TestNewDriftDetector_DisabledByZeroWindow(t *testing.T) {
	d := NewDriftDetector(DriftConfig{})
	assert.Nil(t, d)

	// A nil detector is inert.
	d.Observe(30, 0.5)
	assert.False(t, d.BaselineReady())
	assert.Nil(t, d.Status())
	assert.Nil(t, d.Detect(time.Now()))
	d.Reset()
	assert.NoError(t, d.SaveBaseline())
}

func TestDriftDetector_BaselineThenStable(t *testing.T) {
	d := NewDriftDetector(DriftConfig{WindowSize: 100, AlertThreshold: 0.1, AlertCooldown: time.Hour})
	require.NotNil(t, d)

	feedDrift(d, 99, cyclingAge(20), 0.2)
	assert.False(t, d.BaselineReady())

	d.Observe(69, 0.2)
	assert.True(t, d.BaselineReady())

	feedDrift(d, 100, cyclingAge(20), 0.2)

	status := d.Status()
	require.Len(t, status, 2)
	for signal, score := range status {
		assert.InDelta(t, 0, score.PSI, 1e-9, signal)
		assert.InDelta(t, 0, score.KSStatistic, 1e-9, signal)
		assert.Equal(t, 100, score.BaselineSamples)
		assert.Equal(t, 100, score.CurrentSamples)
	}
	assert.Empty(t, d.Detect(time.Now()))
}

func TestDriftDetector_TooFewSamplesScoresZero(t *testing.T) {
	d := NewDriftDetector(DriftConfig{WindowSize: 40})
	feedDrift(d, 40, cyclingAge(20), 0.2)
	feedDrift(d, 10, cyclingAge(90), 0.9)

	score := d.Status()[SignalAge]
	assert.Equal(t, 10, score.CurrentSamples)
	assert.Zero(t, score.PSI)
}

func TestDriftDetector_ShiftRaisesAlertsWithCooldown(t *testing.T) {
	d := NewDriftDetector(DriftConfig{WindowSize: 100, AlertThreshold: 0.1, AlertCooldown: time.Hour})
	feedDrift(d, 100, cyclingAge(20), 0.2)
	feedDrift(d, 100, cyclingAge(70), 0.9)

	status := d.Status()
	assert.InDelta(t, 1, status[SignalAge].KSStatistic, 1e-9)
	assert.InDelta(t, 50, status[SignalAge].MeanShift, 1e-9)
	assert.InDelta(t, 0.7, status[SignalProbability].MeanShift, 1e-9)

	now := time.Now()
	alerts := d.Detect(now)
	require.Len(t, alerts, 2)
	for _, a := range alerts {
		assert.Equal(t, "high", a.Severity)
		assert.Greater(t, a.PSI, 0.25)
		assert.Equal(t, 0.1, a.Threshold)
	}

	assert.Empty(t, d.Detect(now.Add(time.Minute)), "cooldown suppresses repeat alerts")
	assert.Len(t, d.Detect(now.Add(2*time.Hour)), 2)
}

func TestDriftDetector_ResetKeepsBaseline(t *testing.T) {
	d := NewDriftDetector(DriftConfig{WindowSize: 50})
	feedDrift(d, 50, cyclingAge(20), 0.2)
	feedDrift(d, 50, cyclingAge(70), 0.9)

	d.Reset()
	assert.True(t, d.BaselineReady())
	score := d.Status()[SignalAge]
	assert.Equal(t, 50, score.BaselineSamples)
	assert.Equal(t, 0, score.CurrentSamples)
}

func TestDriftDetector_BaselinePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drift", "baseline.json")
	cfg := DriftConfig{WindowSize: 50, AlertThreshold: 0.1, BaselinePath: path}

	first := NewDriftDetector(cfg)
	feedDrift(first, 50, cyclingAge(20), 0.2)
	require.True(t, first.BaselineReady())
	assert.FileExists(t, path)

	second := NewDriftDetector(cfg)
	assert.True(t, second.BaselineReady())

	feedDrift(second, 50, cyclingAge(70), 0.9)
	assert.Greater(t, second.Status()[SignalAge].PSI, 0.25)
}

func TestPopulationStabilityIndex(t *testing.T) {
	same := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.InDelta(t, 0, populationStabilityIndex(same, same), 1e-12)
	assert.Zero(t, populationStabilityIndex([]float64{3, 3}, []float64{3}))
	assert.Zero(t, populationStabilityIndex(nil, same))

	shifted := []float64{6, 7, 8, 9, 10, 6, 7, 8, 9, 10}
	assert.Greater(t, populationStabilityIndex(same, shifted), 0.1)
}

func TestKolmogorovSmirnov(t *testing.T) {
	assert.InDelta(t, 0, kolmogorovSmirnov([]float64{1, 2, 3}, []float64{3, 2, 1}), 1e-12)
	assert.InDelta(t, 1, kolmogorovSmirnov([]float64{1, 2}, []float64{5, 6}), 1e-12)
	assert.InDelta(t, 0.5, kolmogorovSmirnov([]float64{1, 2, 3, 4}, []float64{3, 4, 5, 6}), 1e-12)
}

func TestPredictor_FeedsDriftDetector(t *testing.T) {
	p := New(StaticHandle(testArtifact()))
	d := NewDriftDetector(DriftConfig{WindowSize: 2})
	p.SetDriftDetector(d)

	for i := 0; i < 2; i++ {
		_, err := p.Predict(context.Background(), sampleRecord())
		require.NoError(t, err)
	}
	assert.True(t, d.BaselineReady())
}

func TestServer_Drift(t *testing.T) {
	srv := newTestServer(t, StaticHandle(testArtifact()), nil)

	resp, err := http.Get(srv.URL + "/drift")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body DriftResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Enabled)
	assert.Empty(t, body.Signals)
}
