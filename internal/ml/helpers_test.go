package ml

import (
	"sync"
	"time"

	"smoking-predictor/internal/survey"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	failures         int
	validationErrors int
	loadFailures     int
	latencySum       float64
	modelAge         float64
	probabilities    []float64
	tiers            map[string]int
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) PredictionFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) ValidationErrorsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationErrors++
}

func (m *MockMetrics) ModelLoadFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadFailures++
}

func (m *MockMetrics) LatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) ProbabilityObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probabilities = append(m.probabilities, v)
}

func (m *MockMetrics) ConfidenceTierInc(tier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tiers == nil {
		m.tiers = make(map[string]int)
	}
	m.tiers[tier]++
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

// stubScorer returns a fixed probability and label and counts calls.
type stubScorer struct {
	mu           sync.Mutex
	coefficients []float64
	probability  float64
	label        int
	scoreCalls   int
	predictCalls int
}

func (s *stubScorer) Coefficients() []float64 {
	return append([]float64(nil), s.coefficients...)
}

func (s *stubScorer) Score([]float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoreCalls++
	return s.probability, nil
}

func (s *stubScorer) Predict([]float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictCalls++
	return s.label, nil
}

func (s *stubScorer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scoreCalls + s.predictCalls
}

// testTransformSpec covers every survey field with a small category set.
func testTransformSpec() TransformSpec {
	return TransformSpec{
		Numeric: []NumericColumn{{Field: survey.FieldAge, Mean: 40, Scale: 10}},
		Ordinal: []OrdinalColumn{
			{Field: survey.FieldHighestQualification, Categories: []string{"No Qualification", "GCSE/O Level", "A Levels", "Degree"}},
			{Field: survey.FieldGrossIncome, Categories: []string{"Under 2,600", "10,400 to 15,600", "Above 36,400"}},
		},
		Categorical: []CategoricalColumn{
			{Field: survey.FieldGender, Categories: []string{"Female", "Male"}},
			{Field: survey.FieldMaritalStatus, Categories: []string{"Married", "Single"}},
			{Field: survey.FieldNationality, Categories: []string{"British", "English"}},
			{Field: survey.FieldEthnicity, Categories: []string{"White", "Asian"}},
			{Field: survey.FieldRegion, Categories: []string{"The North", "South East"}},
		},
	}
}

// testArtifactSpec pairs testTransformSpec with one coefficient per feature.
// Feature order: age, qualification, income, Female, Male, Married, Single,
// British, English, White, Asian, The North, South East.
func testArtifactSpec() ArtifactSpec {
	return ArtifactSpec{
		Metadata: ModelMetadata{
			Version:       "test-1",
			TrainedAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			TrainingRows:  1691,
			Accuracy:      0.71,
			PositiveLabel: "Yes",
		},
		Transform: testTransformSpec(),
		Classifier: ClassifierSpec{
			Coefficients: []float64{-0.4, -0.3, -0.2, 0.1, 0.25, -0.15, 0.6, 0.05, 0, 0.3, -0.5, 0.2, -0.1},
			Intercept:    -0.8,
		},
	}
}

func testArtifact() *ModelArtifact {
	a, err := FromSpec(testArtifactSpec())
	if err != nil {
		panic(err)
	}
	return a
}

func sampleRecord() survey.RawRecord {
	return survey.RawRecord{
		Age:                  30,
		Gender:               "Male",
		MaritalStatus:        "Single",
		HighestQualification: "Degree",
		Nationality:          "British",
		Ethnicity:            "White",
		GrossIncome:          "Above 36,400",
		Region:               "South East",
	}
}
