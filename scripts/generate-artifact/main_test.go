package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smoking-predictor/internal/ml"
)

func TestBuildSpec_CoversEverySurveyAnswer(t *testing.T) {
	spec, err := buildSpec("t", time.Unix(0, 0).UTC())
	require.NoError(t, err)

	// 1 numeric + 2 ordinal + 2+5+8+7+6 one-hot.
	assert.Len(t, spec.Classifier.Coefficients, 31)

	a, err := ml.FromSpec(spec)
	require.NoError(t, err)
	assert.Len(t, a.Transformer.FeatureNames(), 31)
}

func TestWrite_RoundTripsThroughLoader(t *testing.T) {
	spec, err := buildSpec("t", time.Unix(0, 0).UTC())
	require.NoError(t, err)

	for _, name := range []string{"pipeline.json", "pipeline.yaml"} {
		path := filepath.Join(t.TempDir(), "models", name)
		require.NoError(t, write(path, spec))

		a, err := ml.LoadArtifact(path)
		require.NoError(t, err, name)
		assert.Equal(t, "t", a.Metadata.Version)
	}
}
