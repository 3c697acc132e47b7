package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smoking-predictor/internal/survey"
)

func TestColumnTransform_FeatureNames(t *testing.T) {
	tr, err := NewColumnTransform(testTransformSpec())
	require.NoError(t, err)

	names := tr.FeatureNames()
	require.Len(t, names, 13)

	assert.Equal(t, "num__age", names[0].String())
	assert.Equal(t, "ord__highest_qualification", names[1].String())
	assert.Equal(t, "ord__gross_income", names[2].String())
	assert.Equal(t, "cat__gender_Female", names[3].String())
	assert.Equal(t, "cat__region_South East", names[12].String())

	names[0] = CategoricalFeature("x", "y")
	assert.Equal(t, NumericFeature(survey.FieldAge), tr.FeatureNames()[0], "FeatureNames must return a copy")
}

func TestColumnTransform_Transform(t *testing.T) {
	tr, err := NewColumnTransform(testTransformSpec())
	require.NoError(t, err)

	vec, err := tr.Transform(sampleRecord())
	require.NoError(t, err)
	assert.Len(t, vec, len(tr.FeatureNames()))

	assert.Equal(t, []float64{-1, 3, 2, 0, 1, 0, 1, 1, 0, 1, 0, 0, 1}, vec)
}

func TestColumnTransform_UnknownCategoryEncodesZeros(t *testing.T) {
	tr, err := NewColumnTransform(testTransformSpec())
	require.NoError(t, err)

	r := sampleRecord()
	r.Ethnicity = "Chinese"
	r.Region = "Wales"

	vec, err := tr.Transform(r)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, vec[9:11], "ethnicity block")
	assert.Equal(t, []float64{0, 0}, vec[11:13], "region block")
}

func TestColumnTransform_UnknownOrdinalValue(t *testing.T) {
	tr, err := NewColumnTransform(testTransformSpec())
	require.NoError(t, err)

	r := sampleRecord()
	r.GrossIncome = "Refused"

	_, err = tr.Transform(r)
	var terr *TransformError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, survey.FieldGrossIncome, terr.Field)
}

func TestColumnTransform_ReferenceStatistic(t *testing.T) {
	tr, err := NewColumnTransform(testTransformSpec())
	require.NoError(t, err)

	mean, ok := tr.ReferenceStatistic(survey.FieldAge)
	assert.True(t, ok)
	assert.Equal(t, 40.0, mean)

	_, ok = tr.ReferenceStatistic(survey.FieldGender)
	assert.False(t, ok)
}

func TestNewColumnTransform_Rejects(t *testing.T) {
	tests := []struct {
		name string
		spec TransformSpec
	}{
		{"empty", TransformSpec{}},
		{"unknown field", TransformSpec{Categorical: []CategoricalColumn{{Field: "shoe_size", Categories: []string{"9"}}}}},
		{"duplicate field", TransformSpec{Categorical: []CategoricalColumn{
			{Field: survey.FieldGender, Categories: []string{"Male"}},
			{Field: survey.FieldGender, Categories: []string{"Female"}},
		}}},
		{"non numeric scaled", TransformSpec{Numeric: []NumericColumn{{Field: survey.FieldRegion, Mean: 1, Scale: 1}}}},
		{"zero scale", TransformSpec{Numeric: []NumericColumn{{Field: survey.FieldAge, Mean: 40, Scale: 0}}}},
		{"no categories", TransformSpec{Ordinal: []OrdinalColumn{{Field: survey.FieldGrossIncome}}}},
		{"repeated category", TransformSpec{Categorical: []CategoricalColumn{{Field: survey.FieldGender, Categories: []string{"Male", "Male"}}}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewColumnTransform(tc.spec)
			assert.Error(t, err)
		})
	}
}

func TestColumnTransform_LengthMatchesNamesForAllValidRecords(t *testing.T) {
	spec := TransformSpec{
		Numeric: []NumericColumn{{Field: survey.FieldAge, Mean: 50, Scale: 18}},
		Ordinal: []OrdinalColumn{
			{Field: survey.FieldHighestQualification, Categories: survey.Qualifications},
			{Field: survey.FieldGrossIncome, Categories: survey.Incomes},
		},
		Categorical: []CategoricalColumn{
			{Field: survey.FieldGender, Categories: survey.Genders},
			{Field: survey.FieldMaritalStatus, Categories: survey.MaritalStatuses},
			{Field: survey.FieldNationality, Categories: survey.Nationalities},
			{Field: survey.FieldEthnicity, Categories: survey.Ethnicities},
			{Field: survey.FieldRegion, Categories: survey.Regions},
		},
	}
	tr, err := NewColumnTransform(spec)
	require.NoError(t, err)
	width := len(tr.FeatureNames())

	for _, q := range survey.Qualifications {
		for _, inc := range survey.Incomes {
			for _, region := range survey.Regions {
				r := sampleRecord()
				r.HighestQualification = q
				r.GrossIncome = inc
				r.Region = region

				vec, err := tr.Transform(r)
				require.NoError(t, err)
				require.Len(t, vec, width)
			}
		}
	}
}
