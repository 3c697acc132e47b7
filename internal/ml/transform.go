package ml

import (
	"fmt"
	"math"
	"slices"

	"smoking-predictor/internal/survey"
)

// NumericColumn is a fitted standard scaler for one numeric field.
type NumericColumn struct {
	Field string  `json:"field" yaml:"field"`
	Mean  float64 `json:"mean" yaml:"mean"`
	Scale float64 `json:"scale" yaml:"scale"`
}

// OrdinalColumn encodes a field as the index of its value in Categories.
type OrdinalColumn struct {
	Field      string   `json:"field" yaml:"field"`
	Categories []string `json:"categories" yaml:"categories"`
}

// CategoricalColumn one-hot encodes a field over Categories. Values outside
// Categories encode as all zeros.
type CategoricalColumn struct {
	Field      string   `json:"field" yaml:"field"`
	Categories []string `json:"categories" yaml:"categories"`
}

// TransformSpec is the serialized form of a fitted column transform.
// Output order is numeric, then ordinal, then categorical.
type TransformSpec struct {
	Numeric     []NumericColumn     `json:"numeric" yaml:"numeric"`
	Ordinal     []OrdinalColumn     `json:"ordinal" yaml:"ordinal"`
	Categorical []CategoricalColumn `json:"categorical" yaml:"categorical"`
}

type encodedColumn struct {
	field string
	index map[string]int
	width int
}

// ColumnTransform implements Transformer for a fitted TransformSpec.
// It is immutable after construction.
type ColumnTransform struct {
	numeric     []NumericColumn
	ordinal     []encodedColumn
	categorical []encodedColumn
	names       []FeatureName
	means       map[string]float64
}

// NewColumnTransform validates spec and precomputes the feature names.
func NewColumnTransform(spec TransformSpec) (*ColumnTransform, error) {
	if len(spec.Numeric)+len(spec.Ordinal)+len(spec.Categorical) == 0 {
		return nil, fmt.Errorf("transform has no columns")
	}

	seen := make(map[string]bool)
	claim := func(field string) error {
		if !survey.IsField(field) {
			return fmt.Errorf("unknown field %q", field)
		}
		if seen[field] {
			return fmt.Errorf("field %q encoded more than once", field)
		}
		seen[field] = true
		return nil
	}

	t := &ColumnTransform{means: make(map[string]float64)}

	for _, col := range spec.Numeric {
		if err := claim(col.Field); err != nil {
			return nil, err
		}
		if !survey.IsNumericField(col.Field) {
			return nil, fmt.Errorf("field %q is not numeric", col.Field)
		}
		if !finite(col.Mean) || !finite(col.Scale) || col.Scale == 0 {
			return nil, fmt.Errorf("numeric column %q has invalid mean %v or scale %v", col.Field, col.Mean, col.Scale)
		}
		t.numeric = append(t.numeric, col)
		t.means[col.Field] = col.Mean
		t.names = append(t.names, NumericFeature(col.Field))
	}

	for _, col := range spec.Ordinal {
		if err := claim(col.Field); err != nil {
			return nil, err
		}
		enc, err := newEncodedColumn(col.Field, col.Categories)
		if err != nil {
			return nil, err
		}
		enc.width = 1
		t.ordinal = append(t.ordinal, enc)
		t.names = append(t.names, OrdinalFeature(col.Field))
	}

	for _, col := range spec.Categorical {
		if err := claim(col.Field); err != nil {
			return nil, err
		}
		enc, err := newEncodedColumn(col.Field, col.Categories)
		if err != nil {
			return nil, err
		}
		t.categorical = append(t.categorical, enc)
		for _, value := range col.Categories {
			t.names = append(t.names, CategoricalFeature(col.Field, value))
		}
	}

	return t, nil
}

func newEncodedColumn(field string, categories []string) (encodedColumn, error) {
	if len(categories) == 0 {
		return encodedColumn{}, fmt.Errorf("column %q has no categories", field)
	}
	index := make(map[string]int, len(categories))
	for i, c := range categories {
		if _, dup := index[c]; dup {
			return encodedColumn{}, fmt.Errorf("column %q lists category %q twice", field, c)
		}
		index[c] = i
	}
	return encodedColumn{field: field, index: index, width: len(categories)}, nil
}

// Transform encodes record into a fresh vector.
func (t *ColumnTransform) Transform(record survey.RawRecord) ([]float64, error) {
	out := make([]float64, len(t.names))
	i := 0

	for _, col := range t.numeric {
		v, ok := record.NumericValue(col.Field)
		if !ok {
			return nil, &TransformError{Op: "scale", Field: col.Field, Detail: "record has no numeric value"}
		}
		out[i] = (v - col.Mean) / col.Scale
		i++
	}

	for _, col := range t.ordinal {
		raw, _ := record.Value(col.field)
		rank, ok := col.index[raw]
		if !ok {
			return nil, &TransformError{Op: "ordinal encode", Field: col.field, Detail: fmt.Sprintf("value %q was not seen during fitting", raw)}
		}
		out[i] = float64(rank)
		i++
	}

	for _, col := range t.categorical {
		raw, _ := record.Value(col.field)
		if idx, ok := col.index[raw]; ok {
			out[i+idx] = 1
		}
		i += col.width
	}

	return out, nil
}

// FeatureNames returns a copy of the output dimension names.
func (t *ColumnTransform) FeatureNames() []FeatureName {
	return slices.Clone(t.names)
}

// ReferenceStatistic returns the fitted mean of a numeric field.
func (t *ColumnTransform) ReferenceStatistic(field string) (float64, bool) {
	m, ok := t.means[field]
	return m, ok
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
