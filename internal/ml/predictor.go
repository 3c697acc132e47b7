package ml

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"smoking-predictor/internal/survey"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	PredictionsInc()
	PredictionFailuresInc()
	ValidationErrorsInc()
	ModelLoadFailuresInc()
	LatencyObserve(float64)
	ProbabilityObserve(float64)
	ConfidenceTierInc(tier string)
	ModelAgeSet(float64)
}

// NarratedContribution is one explained driver of a prediction.
type NarratedContribution struct {
	Narrative    string    `json:"narrative"`
	Contribution float64   `json:"contribution"`
	Direction    Direction `json:"direction"`
}

// PredictionResult is the explained outcome for one record.
type PredictionResult struct {
	Prediction         int                    `json:"prediction"`
	SmokingProbability float64                `json:"smoking_probability"`
	Confidence         ConfidenceTier         `json:"confidence"`
	FeatureImportance  []NarratedContribution `json:"feature_importance"`
}

// GlobalFeature is one entry of the record-independent ranking.
type GlobalFeature struct {
	Feature string `json:"feature"`
}

// ModelInfo summarises the loaded artifact.
type ModelInfo struct {
	Metadata     ModelMetadata `json:"metadata"`
	FeatureNames []string      `json:"feature_names"`
	Intercept    *float64      `json:"intercept,omitempty"`
	Path         string        `json:"path,omitempty"`
	LoadedAt     time.Time     `json:"loaded_at"`
}

// PredictorConfig controls ranking for local and global explanations.
type PredictorConfig struct {
	Rank       RankOptions
	GlobalTopK int
}

// DefaultPredictorConfig returns top-5 rankings with significance filtering.
func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{
		Rank:       DefaultRankOptions(),
		GlobalTopK: DefaultTopK,
	}
}

// Predictor is the request-facing facade. It holds no per-request state and
// is safe for concurrent use.
type Predictor struct {
	handle    *ArtifactHandle
	validator *survey.Validator
	config    PredictorConfig
	metrics   MetricsInterface
	usage     *FeatureUsage
	drift     *DriftDetector
}

// New creates a Predictor over handle with default configuration.
func New(handle *ArtifactHandle) *Predictor {
	return NewWithMetrics(handle, DefaultPredictorConfig(), nil)
}

// NewWithMetrics creates a Predictor. metrics may be nil.
func NewWithMetrics(handle *ArtifactHandle, config PredictorConfig, metrics MetricsInterface) *Predictor {
	return &Predictor{
		handle:    handle,
		validator: survey.NewValidator(),
		config:    config,
		metrics:   metrics,
	}
}

// SetUsageTracker attaches a tracker fed with every returned explanation.
func (p *Predictor) SetUsageTracker(u *FeatureUsage) {
	p.usage = u
}

// UsageTracker returns the attached tracker, or nil.
func (p *Predictor) UsageTracker() *FeatureUsage {
	return p.usage
}

// SetDriftDetector attaches a detector fed with every served prediction.
func (p *Predictor) SetDriftDetector(d *DriftDetector) {
	p.drift = d
}

// DriftDetector returns the attached detector, or nil.
func (p *Predictor) DriftDetector() *DriftDetector {
	return p.drift
}

// ParseRecord validates a loosely typed payload into a record.
func (p *Predictor) ParseRecord(payload map[string]any) (survey.RawRecord, error) {
	r, err := p.validator.Parse(payload)
	if err != nil {
		p.recordValidationError(err)
		return survey.RawRecord{}, err
	}
	return r, nil
}

// Predict validates record, scores it and explains the result. Input errors
// are returned as-is; a missing model yields ErrModelUnavailable; anything
// else is logged and reported as ErrInternal.
func (p *Predictor) Predict(ctx context.Context, record survey.RawRecord) (result *PredictionResult, err error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.LatencyObserve(time.Since(start).Seconds())
		}
	}()

	if err := p.validator.Validate(record); err != nil {
		p.recordValidationError(err)
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	artifact, err := p.handle.Get()
	if err != nil {
		p.recordFailure()
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Interface("record", record).
				Msg("prediction panicked")
			p.recordFailure()
			result, err = nil, ErrInternal
		}
	}()

	result, ranked, err := p.explain(artifact, record)
	if err != nil {
		log.Error().
			Err(err).
			Interface("record", record).
			Str("model_version", artifact.Metadata.Version).
			Msg("prediction failed")
		p.recordFailure()
		return nil, ErrInternal
	}

	p.usage.Observe(ranked)
	p.drift.Observe(float64(record.Age), result.SmokingProbability)
	if p.metrics != nil {
		p.metrics.PredictionsInc()
		p.metrics.ProbabilityObserve(result.SmokingProbability)
		p.metrics.ConfidenceTierInc(string(result.Confidence))
	}

	log.Debug().
		Int("prediction", result.Prediction).
		Float64("probability", result.SmokingProbability).
		Str("confidence", string(result.Confidence)).
		Msg("Prediction successful")

	return result, nil
}

func (p *Predictor) explain(a *ModelArtifact, record survey.RawRecord) (*PredictionResult, []Contribution, error) {
	names := a.Transformer.FeatureNames()

	vector, err := a.Transformer.Transform(record)
	if err != nil {
		return nil, nil, err
	}
	if len(vector) != len(names) {
		return nil, nil, shapeError("encode", len(names), len(vector))
	}

	probability, err := a.Scorer.Score(vector)
	if err != nil {
		return nil, nil, fmt.Errorf("score: %w", err)
	}
	if !finite(probability) || probability < 0 || probability > 1 {
		return nil, nil, fmt.Errorf("score: probability %v outside [0, 1]", probability)
	}

	label, err := a.Scorer.Predict(vector)
	if err != nil {
		return nil, nil, fmt.Errorf("predict: %w", err)
	}
	if label != 0 && label != 1 {
		return nil, nil, fmt.Errorf("predict: label %d is not binary", label)
	}

	contribs, err := ComputeContributions(names, vector, a.Scorer.Coefficients())
	if err != nil {
		return nil, nil, err
	}
	ranked := RankContributions(contribs, p.config.Rank)

	narrator := NewNarrator(a.Transformer)
	explained := make([]NarratedContribution, 0, len(ranked))
	for _, c := range ranked {
		explained = append(explained, NarratedContribution{
			Narrative:    narrator.Narrate(c.Feature, record),
			Contribution: c.Value,
			Direction:    c.Direction(),
		})
	}

	return &PredictionResult{
		Prediction:         label,
		SmokingProbability: probability,
		Confidence:         Confidence(probability),
		FeatureImportance:  explained,
	}, ranked, nil
}

// GlobalImportance ranks features by |coefficient| and narrates the top
// GlobalTopK without reference to any record.
func (p *Predictor) GlobalImportance(ctx context.Context) ([]GlobalFeature, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	artifact, err := p.handle.Get()
	if err != nil {
		return nil, err
	}

	ranked, err := RankCoefficients(artifact.Transformer.FeatureNames(), artifact.Scorer.Coefficients(), p.config.GlobalTopK)
	if err != nil {
		log.Error().Err(err).Str("model_version", artifact.Metadata.Version).Msg("global ranking failed")
		return nil, ErrInternal
	}

	narrator := NewNarrator(artifact.Transformer)
	out := make([]GlobalFeature, len(ranked))
	for i, c := range ranked {
		out[i] = GlobalFeature{Feature: narrator.NarrateGlobal(c.Feature)}
	}
	return out, nil
}

// ModelInfo describes the loaded artifact.
func (p *Predictor) ModelInfo() (*ModelInfo, error) {
	artifact, err := p.handle.Get()
	if err != nil {
		return nil, err
	}

	names := artifact.Transformer.FeatureNames()
	info := &ModelInfo{
		Metadata:     artifact.Metadata,
		FeatureNames: make([]string, len(names)),
		Path:         artifact.Path,
		LoadedAt:     artifact.LoadedAt,
	}
	for i, n := range names {
		info.FeatureNames[i] = n.String()
	}
	if ls, ok := artifact.Scorer.(*LogisticScorer); ok {
		b := ls.Intercept()
		info.Intercept = &b
	}
	return info, nil
}

// Ready reports whether the model is loaded, loading it if necessary.
func (p *Predictor) Ready() error {
	_, err := p.handle.Get()
	return err
}

func (p *Predictor) recordValidationError(err error) {
	log.Debug().Err(err).Msg("rejected prediction request")
	if p.metrics != nil {
		p.metrics.ValidationErrorsInc()
	}
}

func (p *Predictor) recordFailure() {
	if p.metrics != nil {
		p.metrics.PredictionFailuresInc()
	}
}

// IsUnavailable reports whether err means the model could not be loaded.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrModelUnavailable)
}
