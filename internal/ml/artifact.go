package ml

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ModelMetadata describes how and when the artifact was fitted.
type ModelMetadata struct {
	Version       string    `json:"version" yaml:"version"`
	TrainedAt     time.Time `json:"trained_at" yaml:"trained_at"`
	TrainingRows  int       `json:"training_rows" yaml:"training_rows"`
	Accuracy      float64   `json:"accuracy" yaml:"accuracy"`
	PositiveLabel string    `json:"positive_label" yaml:"positive_label"`
}

// ArtifactSpec is the on-disk form of a fitted pipeline.
type ArtifactSpec struct {
	Metadata   ModelMetadata  `json:"metadata" yaml:"metadata"`
	Transform  TransformSpec  `json:"transform" yaml:"transform"`
	Classifier ClassifierSpec `json:"classifier" yaml:"classifier"`
}

// ModelArtifact is the fitted transform and classifier pair. It is never
// mutated after construction.
type ModelArtifact struct {
	Metadata    ModelMetadata
	Transformer Transformer
	Scorer      Scorer
	Path        string
	LoadedAt    time.Time
}

// NewModelArtifact pairs a transformer with a scorer, checking that the
// coefficient vector lines up with the feature names.
func NewModelArtifact(metadata ModelMetadata, t Transformer, s Scorer) (*ModelArtifact, error) {
	if t == nil || s == nil {
		return nil, fmt.Errorf("artifact requires both a transformer and a scorer")
	}
	names, coefs := len(t.FeatureNames()), len(s.Coefficients())
	if names != coefs {
		return nil, fmt.Errorf("transform produces %d features but classifier has %d coefficients", names, coefs)
	}
	return &ModelArtifact{
		Metadata:    metadata,
		Transformer: t,
		Scorer:      s,
		LoadedAt:    time.Now(),
	}, nil
}

// FromSpec builds a ModelArtifact from its serialized form.
func FromSpec(spec ArtifactSpec) (*ModelArtifact, error) {
	t, err := NewColumnTransform(spec.Transform)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	s, err := NewLogisticScorer(spec.Classifier)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	return NewModelArtifact(spec.Metadata, t, s)
}

// LoadArtifact reads a JSON or YAML (by extension) artifact from path. All
// failures are returned as *ArtifactLoadError.
func LoadArtifact(path string) (*ModelArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactLoadError{Path: path, Err: err}
	}

	spec, err := DecodeArtifactSpec(data, formatFor(path))
	if err != nil {
		return nil, &ArtifactLoadError{Path: path, Err: err}
	}

	a, err := FromSpec(spec)
	if err != nil {
		return nil, &ArtifactLoadError{Path: path, Err: err}
	}
	a.Path = path

	log.Info().
		Str("model_path", path).
		Str("version", a.Metadata.Version).
		Int("features", len(a.Transformer.FeatureNames())).
		Msg("model artifact loaded")

	return a, nil
}

// Artifact encodings.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// DecodeArtifactSpec parses data in the given format. Unknown JSON fields
// are rejected so a mismatched artifact fails loudly.
func DecodeArtifactSpec(data []byte, format string) (ArtifactSpec, error) {
	var spec ArtifactSpec
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return ArtifactSpec{}, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return ArtifactSpec{}, fmt.Errorf("decode json: %w", err)
		}
	default:
		return ArtifactSpec{}, fmt.Errorf("unsupported artifact format %q", format)
	}
	return spec, nil
}

// SaveArtifactSpec writes spec as indented JSON.
func SaveArtifactSpec(path string, spec ArtifactSpec) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
