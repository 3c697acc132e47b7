package ml

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureUsage_Observe(t *testing.T) {
	u := NewFeatureUsage("")

	age := NumericFeature("age")
	male := CategoricalFeature("gender", "Male")

	u.Observe([]Contribution{{Feature: age, Value: 0.4}, {Feature: male, Value: -0.2}})
	u.Observe([]Contribution{{Feature: age, Value: -0.6}})

	snap := u.Snapshot()
	require.Len(t, snap, 2)

	s := snap["num__age"]
	assert.Equal(t, int64(2), s.Appearances)
	assert.Equal(t, int64(1), s.PositiveCount)
	assert.Equal(t, int64(1), s.NegativeCount)
	assert.Equal(t, -0.6, s.MinContribution)
	assert.Equal(t, 0.4, s.MaxContribution)
	assert.InDelta(t, 0.1*-0.6+0.9*0.4, s.AverageContribution, 1e-12)

	assert.Equal(t, []string{"num__age", "cat__gender_Male"}, u.TopFeatures(5))
	assert.Equal(t, []string{"num__age"}, u.TopFeatures(1))
}

func TestFeatureUsage_NilSafe(t *testing.T) {
	var u *FeatureUsage
	assert.NotPanics(t, func() { u.Observe([]Contribution{{Value: 1}}) })
}

func TestFeatureUsage_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage", "feature_usage.json")

	u := NewFeatureUsage(path)
	u.Observe([]Contribution{{Feature: OrdinalFeature("gross_income"), Value: 0.3}})
	require.NoError(t, u.Save())

	restored := NewFeatureUsage(path)
	snap := restored.Snapshot()
	require.Contains(t, snap, "ord__gross_income")
	assert.Equal(t, int64(1), snap["ord__gross_income"].Appearances)

	restored.Reset()
	assert.Empty(t, restored.Snapshot())
}
