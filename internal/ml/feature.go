package ml

import "fmt"

// Block identifies which preprocessing sub-block produced a dimension.
type Block int

const (
	BlockNumeric Block = iota
	BlockOrdinal
	BlockCategorical
)

func (b Block) String() string {
	switch b {
	case BlockNumeric:
		return "num"
	case BlockOrdinal:
		return "ord"
	case BlockCategorical:
		return "cat"
	}
	return fmt.Sprintf("block(%d)", int(b))
}

// FeatureName describes one encoded dimension. Value is set only for
// categorical dimensions, where it holds the one-hot category.
type FeatureName struct {
	Block Block
	Field string
	Value string
}

// NumericFeature names a standardized numeric dimension.
func NumericFeature(field string) FeatureName {
	return FeatureName{Block: BlockNumeric, Field: field}
}

// OrdinalFeature names a rank-encoded dimension.
func OrdinalFeature(field string) FeatureName {
	return FeatureName{Block: BlockOrdinal, Field: field}
}

// CategoricalFeature names the one-hot dimension for field == value.
func CategoricalFeature(field, value string) FeatureName {
	return FeatureName{Block: BlockCategorical, Field: field, Value: value}
}

// String renders the pipeline-style token, e.g. "num__age" or
// "cat__gender_Male".
func (f FeatureName) String() string {
	if f.Block == BlockCategorical {
		return fmt.Sprintf("%s__%s_%s", f.Block, f.Field, f.Value)
	}
	return fmt.Sprintf("%s__%s", f.Block, f.Field)
}

// MarshalText lets feature names be used as JSON keys and values.
func (f FeatureName) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}
