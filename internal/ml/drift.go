package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DriftSignal names a monitored quantity of the served population.
type DriftSignal string

const (
	SignalAge         DriftSignal = "age"
	SignalProbability DriftSignal = "smoking_probability"
)

var driftSignals = []DriftSignal{SignalAge, SignalProbability}

const (
	driftBins       = 10
	driftMinSamples = 30
	psiSmoothing    = 1e-4
)

// DriftConfig configures drift detection. A zero WindowSize disables it.
type DriftConfig struct {
	WindowSize     int
	AlertThreshold float64 // PSI at which an alert is raised
	AlertCooldown  time.Duration
	BaselinePath   string
}

// DefaultDriftConfig compares windows of 1000 predictions and alerts at PSI 0.1.
func DefaultDriftConfig() DriftConfig {
	return DriftConfig{
		WindowSize:     1000,
		AlertThreshold: 0.1,
		AlertCooldown:  time.Hour,
	}
}

// Distribution holds running statistics and a bounded sample window.
type Distribution struct {
	Mean        float64   `json:"mean"`
	StandardDev float64   `json:"standard_dev"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	SampleCount int64     `json:"sample_count"`
	Samples     []float64 `json:"samples"`
	LastUpdated time.Time `json:"last_updated"`
}

// DriftScore compares the current window of one signal against its baseline.
type DriftScore struct {
	PSI             float64 `json:"psi"`
	KSStatistic     float64 `json:"ks_statistic"`
	MeanShift       float64 `json:"mean_shift"`
	BaselineSamples int     `json:"baseline_samples"`
	CurrentSamples  int     `json:"current_samples"`
}

// DriftAlert is raised when a signal's PSI reaches the alert threshold.
type DriftAlert struct {
	Timestamp time.Time   `json:"timestamp"`
	Signal    DriftSignal `json:"signal"`
	PSI       float64     `json:"psi"`
	Threshold float64     `json:"threshold"`
	Severity  string      `json:"severity"`
}

// DriftDetector watches the ages submitted and the probabilities served.
// The first WindowSize observations (or a saved baseline) become the
// reference; later observations fill a rolling window compared against it.
// Safe for concurrent use; a nil detector ignores every call.
type DriftDetector struct {
	mu             sync.RWMutex
	config         DriftConfig
	baseline       map[DriftSignal]*Distribution
	current        map[DriftSignal]*Distribution
	baselineFrozen bool
	lastAlertTime  time.Time
}

// NewDriftDetector returns nil when config.WindowSize is not positive. A
// baseline saved at config.BaselinePath is loaded and frozen.
func NewDriftDetector(config DriftConfig) *DriftDetector {
	if config.WindowSize <= 0 {
		return nil
	}
	if config.AlertThreshold <= 0 {
		config.AlertThreshold = DefaultDriftConfig().AlertThreshold
	}

	dd := &DriftDetector{
		config:   config,
		baseline: newDistributions(config.WindowSize),
		current:  newDistributions(config.WindowSize),
	}

	if config.BaselinePath != "" {
		if err := dd.LoadBaseline(); err != nil {
			log.Warn().Err(err).Str("path", config.BaselinePath).Msg("Failed to load drift baseline")
		}
	}

	return dd
}

func newDistributions(window int) map[DriftSignal]*Distribution {
	out := make(map[DriftSignal]*Distribution, len(driftSignals))
	for _, s := range driftSignals {
		out[s] = newDistribution(window)
	}
	return out
}

func newDistribution(window int) *Distribution {
	return &Distribution{
		Samples: make([]float64, 0, window),
		Min:     math.Inf(1),
		Max:     math.Inf(-1),
	}
}

// Observe records one served prediction.
func (dd *DriftDetector) Observe(age, probability float64) {
	if dd == nil || !finite(age) || !finite(probability) {
		return
	}

	dd.mu.Lock()
	defer dd.mu.Unlock()

	target := dd.current
	if !dd.baselineFrozen {
		target = dd.baseline
	}
	now := time.Now()
	dd.update(target[SignalAge], age, now)
	dd.update(target[SignalProbability], probability, now)

	if !dd.baselineFrozen && len(dd.baseline[SignalAge].Samples) >= dd.config.WindowSize {
		dd.baselineFrozen = true
		log.Info().Int("samples", dd.config.WindowSize).Msg("Drift baseline captured")
		if err := dd.saveBaselineLocked(); err != nil {
			log.Warn().Err(err).Msg("Failed to save drift baseline")
		}
	}
}

func (dd *DriftDetector) update(dist *Distribution, value float64, now time.Time) {
	if dist.SampleCount == 0 {
		dist.Mean = value
		dist.StandardDev = 0
	} else {
		n := float64(dist.SampleCount)
		newMean := (dist.Mean*n + value) / (n + 1)
		newVariance := ((n-1)*dist.StandardDev*dist.StandardDev + (value-newMean)*(value-newMean)) / n
		dist.Mean = newMean
		dist.StandardDev = math.Sqrt(newVariance)
	}
	dist.SampleCount++

	dist.Min = math.Min(dist.Min, value)
	dist.Max = math.Max(dist.Max, value)

	if len(dist.Samples) >= dd.config.WindowSize {
		dist.Samples = dist.Samples[1:]
	}
	dist.Samples = append(dist.Samples, value)
	dist.LastUpdated = now
}

// BaselineReady reports whether the reference window is complete.
func (dd *DriftDetector) BaselineReady() bool {
	if dd == nil {
		return false
	}
	dd.mu.RLock()
	defer dd.mu.RUnlock()
	return dd.baselineFrozen
}

// Status scores every signal. Scores are zero until both windows hold enough
// samples.
func (dd *DriftDetector) Status() map[DriftSignal]DriftScore {
	if dd == nil {
		return nil
	}

	dd.mu.RLock()
	defer dd.mu.RUnlock()

	status := make(map[DriftSignal]DriftScore, len(driftSignals))
	for _, s := range driftSignals {
		status[s] = dd.score(s)
	}
	return status
}

func (dd *DriftDetector) score(s DriftSignal) DriftScore {
	baseline, current := dd.baseline[s], dd.current[s]
	score := DriftScore{
		BaselineSamples: len(baseline.Samples),
		CurrentSamples:  len(current.Samples),
	}
	if !dd.baselineFrozen || score.BaselineSamples < driftMinSamples || score.CurrentSamples < driftMinSamples {
		return score
	}

	score.PSI = populationStabilityIndex(baseline.Samples, current.Samples)
	score.KSStatistic = kolmogorovSmirnov(baseline.Samples, current.Samples)
	score.MeanShift = windowMean(current.Samples) - windowMean(baseline.Samples)
	return score
}

// Detect returns an alert per signal whose PSI reaches the threshold. After
// alerting it stays quiet for AlertCooldown.
func (dd *DriftDetector) Detect(now time.Time) []DriftAlert {
	if dd == nil {
		return nil
	}

	dd.mu.Lock()
	defer dd.mu.Unlock()

	if !dd.lastAlertTime.IsZero() && now.Sub(dd.lastAlertTime) < dd.config.AlertCooldown {
		return nil
	}

	var alerts []DriftAlert
	for _, s := range driftSignals {
		score := dd.score(s)
		if score.PSI < dd.config.AlertThreshold {
			continue
		}
		alerts = append(alerts, DriftAlert{
			Timestamp: now,
			Signal:    s,
			PSI:       score.PSI,
			Threshold: dd.config.AlertThreshold,
			Severity:  driftSeverity(score.PSI, dd.config.AlertThreshold),
		})
	}

	if len(alerts) > 0 {
		dd.lastAlertTime = now
	}
	return alerts
}

func driftSeverity(psi, threshold float64) string {
	switch {
	case psi >= 2.5*threshold:
		return "high"
	default:
		return "medium"
	}
}

// Reset clears the current window and keeps the baseline.
func (dd *DriftDetector) Reset() {
	if dd == nil {
		return
	}
	dd.mu.Lock()
	defer dd.mu.Unlock()
	dd.current = newDistributions(dd.config.WindowSize)
}

// SaveBaseline writes the baseline to BaselinePath.
func (dd *DriftDetector) SaveBaseline() error {
	if dd == nil {
		return nil
	}
	dd.mu.RLock()
	defer dd.mu.RUnlock()
	return dd.saveBaselineLocked()
}

func (dd *DriftDetector) saveBaselineLocked() error {
	if dd.config.BaselinePath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dd.config.BaselinePath), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(dd.baseline, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(dd.config.BaselinePath, data, 0o600)
}

// LoadBaseline reads a saved baseline and freezes it. A missing file is not
// an error.
func (dd *DriftDetector) LoadBaseline() error {
	if dd == nil || dd.config.BaselinePath == "" {
		return nil
	}

	data, err := os.ReadFile(dd.config.BaselinePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var loaded map[DriftSignal]*Distribution
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse drift baseline: %w", err)
	}
	for _, s := range driftSignals {
		if loaded[s] == nil || len(loaded[s].Samples) == 0 {
			return fmt.Errorf("drift baseline has no samples for %s", s)
		}
	}

	dd.mu.Lock()
	defer dd.mu.Unlock()
	dd.baseline = loaded
	dd.baselineFrozen = true
	return nil
}

// populationStabilityIndex bins both samples over their joint range. Empty
// bins are smoothed so disjoint samples give a large finite score.
func populationStabilityIndex(baseline, current []float64) float64 {
	if len(baseline) == 0 || len(current) == 0 {
		return 0
	}

	lo := math.Min(slices.Min(baseline), slices.Min(current))
	hi := math.Max(slices.Max(baseline), slices.Max(current))
	if hi == lo {
		return 0
	}

	baselineBins := binCounts(baseline, lo, hi)
	currentBins := binCounts(current, lo, hi)

	psi := 0.0
	for i := 0; i < driftBins; i++ {
		b := math.Max(float64(baselineBins[i])/float64(len(baseline)), psiSmoothing)
		c := math.Max(float64(currentBins[i])/float64(len(current)), psiSmoothing)
		psi += (c - b) * math.Log(c/b)
	}
	return psi
}

func binCounts(samples []float64, lo, hi float64) []int {
	width := (hi - lo) / driftBins
	bins := make([]int, driftBins)
	for _, v := range samples {
		bin := int((v - lo) / width)
		bin = max(0, min(bin, driftBins-1))
		bins[bin]++
	}
	return bins
}

// kolmogorovSmirnov is the two-sample KS statistic: the largest gap between
// the empirical CDFs.
func kolmogorovSmirnov(baseline, current []float64) float64 {
	if len(baseline) == 0 || len(current) == 0 {
		return 0
	}

	a := slices.Clone(baseline)
	b := slices.Clone(current)
	slices.Sort(a)
	slices.Sort(b)

	var i, j int
	maxDiff := 0.0
	for i < len(a) && j < len(b) {
		x := math.Min(a[i], b[j])
		for i < len(a) && a[i] <= x {
			i++
		}
		for j < len(b) && b[j] <= x {
			j++
		}
		diff := math.Abs(float64(i)/float64(len(a)) - float64(j)/float64(len(b)))
		maxDiff = math.Max(maxDiff, diff)
	}
	return maxDiff
}

func windowMean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}
