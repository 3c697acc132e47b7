package ml

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"smoking-predictor/internal/survey"
)

func stubPredictor(t *testing.T, probability float64, label int) (*Predictor, *stubScorer, *MockMetrics) {
	t.Helper()

	tr, err := NewColumnTransform(testTransformSpec())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	scorer := &stubScorer{
		coefficients: testArtifactSpec().Classifier.Coefficients,
		probability:  probability,
		label:        label,
	}
	artifact, err := NewModelArtifact(ModelMetadata{Version: "stub"}, tr, scorer)
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}

	metrics := &MockMetrics{}
	return NewWithMetrics(StaticHandle(artifact), DefaultPredictorConfig(), metrics), scorer, metrics
}

func TestPredictor_EndToEndWithStub(t *testing.T) {
	p, _, metrics := stubPredictor(t, 0.8, 1)

	result, err := p.Predict(context.Background(), sampleRecord())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Prediction != 1 {
		t.Errorf("Expected prediction 1, got %d", result.Prediction)
	}
	if result.SmokingProbability != 0.8 {
		t.Errorf("Expected probability 0.8, got %v", result.SmokingProbability)
	}
	if result.Confidence != ConfidenceHigh {
		t.Errorf("Expected High confidence, got %s", result.Confidence)
	}
	if len(result.FeatureImportance) != DefaultTopK {
		t.Errorf("Expected %d explanations, got %d", DefaultTopK, len(result.FeatureImportance))
	}

	if metrics.predictions != 1 || metrics.tiers["High"] != 1 {
		t.Errorf("Expected one High prediction recorded, got predictions=%d tiers=%v", metrics.predictions, metrics.tiers)
	}
}

func TestPredictor_Explanation(t *testing.T) {
	p := NewWithMetrics(StaticHandle(testArtifact()), DefaultPredictorConfig(), nil)

	result, err := p.Predict(context.Background(), sampleRecord())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	want := []NarratedContribution{
		{Narrative: "Highest Qualification being 'Degree'", Contribution: -0.9, Direction: DirectionNegative},
		{Narrative: "Marital Status being 'Single'", Contribution: 0.6, Direction: DirectionPositive},
		{Narrative: "Age being lower than average", Contribution: 0.4, Direction: DirectionPositive},
		{Narrative: "Gross Income being 'Above 36,400'", Contribution: -0.4, Direction: DirectionNegative},
		{Narrative: "Ethnicity being 'White'", Contribution: 0.3, Direction: DirectionPositive},
	}
	if len(result.FeatureImportance) != len(want) {
		t.Fatalf("Expected %d explanations, got %+v", len(want), result.FeatureImportance)
	}
	for i, w := range want {
		got := result.FeatureImportance[i]
		if got.Narrative != w.Narrative || got.Direction != w.Direction || !approx(got.Contribution, w.Contribution) {
			t.Errorf("explanation %d: got %+v, want %+v", i, got, w)
		}
	}

	// intercept -0.8 plus contributions 0.2 gives log-odds -0.6
	if !approx(result.SmokingProbability, sigmoid(-0.6)) {
		t.Errorf("Expected probability %v, got %v", sigmoid(-0.6), result.SmokingProbability)
	}
	if result.Prediction != 0 {
		t.Errorf("Expected prediction 0, got %d", result.Prediction)
	}
	if result.Confidence != ConfidenceMedium {
		t.Errorf("Expected Medium confidence, got %s", result.Confidence)
	}
}

func TestPredictor_MissingFieldSkipsModel(t *testing.T) {
	p, scorer, metrics := stubPredictor(t, 0.8, 1)

	r := sampleRecord()
	r.Region = ""
	r.Gender = ""

	_, err := p.Predict(context.Background(), r)

	var missing *survey.MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingFieldError, got %v", err)
	}
	if !reflect.DeepEqual(missing.Fields, []string{"gender", "region"}) {
		t.Errorf("Expected gender and region missing, got %v", missing.Fields)
	}
	if scorer.calls() != 0 {
		t.Errorf("Expected no scorer calls, got %d", scorer.calls())
	}
	if metrics.validationErrors != 1 {
		t.Errorf("Expected one validation error recorded, got %d", metrics.validationErrors)
	}
}

func TestPredictor_InvalidValue(t *testing.T) {
	p, scorer, _ := stubPredictor(t, 0.8, 1)

	r := sampleRecord()
	r.Nationality = "Martian"

	_, err := p.Predict(context.Background(), r)
	var invalid *survey.InvalidFieldError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidFieldError, got %v", err)
	}
	if scorer.calls() != 0 {
		t.Errorf("Expected no scorer calls, got %d", scorer.calls())
	}
}

func TestPredictor_Deterministic(t *testing.T) {
	p := New(StaticHandle(testArtifact()))

	first, err := p.Predict(context.Background(), sampleRecord())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := p.Predict(context.Background(), sampleRecord())
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Expected identical results, got %+v and %+v", first, again)
		}
	}
}

func TestPredictor_Concurrency(t *testing.T) {
	p := New(StaticHandle(testArtifact()))
	want, _ := p.Predict(context.Background(), sampleRecord())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := p.Predict(context.Background(), sampleRecord())
			if err != nil {
				t.Errorf("concurrent predict failed: %v", err)
				return
			}
			if !reflect.DeepEqual(want, got) {
				t.Errorf("concurrent result differs")
			}
		}()
	}
	wg.Wait()
}

func TestPredictor_ModelUnavailable(t *testing.T) {
	metrics := &MockMetrics{}
	h := NewArtifactHandle(FileLoader("missing/pipeline.json"), metrics)
	p := NewWithMetrics(h, DefaultPredictorConfig(), metrics)

	for i := 0; i < 2; i++ {
		if _, err := p.Predict(context.Background(), sampleRecord()); !IsUnavailable(err) {
			t.Errorf("Expected ErrModelUnavailable, got %v", err)
		}
	}
	if _, err := p.GlobalImportance(context.Background()); !IsUnavailable(err) {
		t.Errorf("Expected ErrModelUnavailable from global importance, got %v", err)
	}
	if metrics.loadFailures != 1 {
		t.Errorf("Expected a single load failure, got %d", metrics.loadFailures)
	}
}

type brokenTransformer struct{ *ColumnTransform }

func (brokenTransformer) Transform(survey.RawRecord) ([]float64, error) {
	return []float64{1, 2}, nil
}

type panickingScorer struct{ stubScorer }

func (*panickingScorer) Score([]float64) (float64, error) { panic("boom") }

func TestPredictor_InternalErrorsAreHidden(t *testing.T) {
	tr, _ := NewColumnTransform(testTransformSpec())
	coefs := testArtifactSpec().Classifier.Coefficients

	tests := []struct {
		name   string
		tr     Transformer
		scorer Scorer
	}{
		{"shape mismatch", brokenTransformer{tr}, &stubScorer{coefficients: coefs, probability: 0.5}},
		{"probability out of range", tr, &stubScorer{coefficients: coefs, probability: 1.5}},
		{"non binary label", tr, &stubScorer{coefficients: coefs, probability: 0.5, label: 2}},
		{"scorer panic", tr, &panickingScorer{stubScorer{coefficients: coefs}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, err := NewModelArtifact(ModelMetadata{}, tc.tr, tc.scorer)
			if err != nil {
				t.Fatalf("artifact: %v", err)
			}
			metrics := &MockMetrics{}
			p := NewWithMetrics(StaticHandle(a), DefaultPredictorConfig(), metrics)

			_, err = p.Predict(context.Background(), sampleRecord())
			if !errors.Is(err, ErrInternal) {
				t.Errorf("Expected ErrInternal, got %v", err)
			}
			if metrics.failures != 1 {
				t.Errorf("Expected one failure recorded, got %d", metrics.failures)
			}
		})
	}
}

func TestPredictor_CanceledContext(t *testing.T) {
	p, scorer, _ := stubPredictor(t, 0.8, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Predict(ctx, sampleRecord()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if scorer.calls() != 0 {
		t.Errorf("Expected no scorer calls, got %d", scorer.calls())
	}
}

func TestPredictor_ConfigurableRanking(t *testing.T) {
	cfg := PredictorConfig{Rank: RankOptions{TopK: 3}, GlobalTopK: 2}
	p := NewWithMetrics(StaticHandle(testArtifact()), cfg, nil)

	result, err := p.Predict(context.Background(), sampleRecord())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.FeatureImportance) != 3 {
		t.Errorf("Expected 3 explanations, got %d", len(result.FeatureImportance))
	}

	global, err := p.GlobalImportance(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(global) != 2 {
		t.Errorf("Expected 2 global features, got %d", len(global))
	}
}

func TestPredictor_GlobalImportance(t *testing.T) {
	p := New(StaticHandle(testArtifact()))

	global, err := p.GlobalImportance(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	want := []GlobalFeature{
		{Feature: "Marital Status being 'Single'"},
		{Feature: "Ethnicity being 'Asian'"},
		{Feature: "Age relative to average"},
		{Feature: "Highest Qualification level"},
		{Feature: "Ethnicity being 'White'"},
	}
	if !reflect.DeepEqual(global, want) {
		t.Errorf("global importance:\n got %+v\nwant %+v", global, want)
	}
}

func TestPredictor_ModelInfo(t *testing.T) {
	p := New(StaticHandle(testArtifact()))

	info, err := p.ModelInfo()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if info.Metadata.Version != "test-1" {
		t.Errorf("Expected version test-1, got %s", info.Metadata.Version)
	}
	if len(info.FeatureNames) != 13 || info.FeatureNames[0] != "num__age" {
		t.Errorf("unexpected feature names %v", info.FeatureNames)
	}
	if info.Intercept == nil || *info.Intercept != -0.8 {
		t.Errorf("Expected intercept -0.8, got %v", info.Intercept)
	}
}

func TestPredictor_FeedsUsageTracker(t *testing.T) {
	p := New(StaticHandle(testArtifact()))
	usage := NewFeatureUsage("")
	p.SetUsageTracker(usage)

	if _, err := p.Predict(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	snap := usage.Snapshot()
	if len(snap) != DefaultTopK {
		t.Errorf("Expected %d tracked features, got %d", DefaultTopK, len(snap))
	}
	if snap["ord__highest_qualification"].NegativeCount != 1 {
		t.Errorf("Expected qualification tracked as negative, got %+v", snap["ord__highest_qualification"])
	}
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func BenchmarkPredictor_Predict(b *testing.B) {
	p := New(StaticHandle(testArtifact()))
	r := sampleRecord()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Predict(ctx, r)
	}
}
