package ml

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"smoking-predictor/internal/survey"
)

// ReferenceSource supplies fitted reference statistics for numeric fields.
// Transformer satisfies it.
type ReferenceSource interface {
	ReferenceStatistic(field string) (float64, bool)
}

// Narrator turns feature names into short human-readable phrases.
type Narrator struct {
	refs ReferenceSource
}

// NewNarrator returns a Narrator comparing numeric fields to refs.
func NewNarrator(refs ReferenceSource) *Narrator {
	return &Narrator{refs: refs}
}

// Narrate describes a feature in the context of one record. A numeric value
// equal to the reference mean reads as "lower than average".
func (n *Narrator) Narrate(feature FeatureName, record survey.RawRecord) string {
	switch feature.Block {
	case BlockNumeric:
		raw, okRaw := record.NumericValue(feature.Field)
		mean, okMean := n.refs.ReferenceStatistic(feature.Field)
		if !okRaw || !okMean {
			return n.NarrateGlobal(feature)
		}
		comparison := "lower"
		if raw > mean {
			comparison = "higher"
		}
		return fmt.Sprintf("%s being %s than average", fieldLabel(feature.Field), comparison)

	case BlockOrdinal:
		raw, _ := record.Value(feature.Field)
		return fmt.Sprintf("%s being '%s'", fieldLabel(feature.Field), valueLabel(raw))

	default:
		return categoricalPhrase(feature)
	}
}

// NarrateGlobal describes a feature without a record. Numeric fields have no
// value to compare against their own mean, so they get a neutral phrase.
func (n *Narrator) NarrateGlobal(feature FeatureName) string {
	switch feature.Block {
	case BlockNumeric:
		return fmt.Sprintf("%s relative to average", fieldLabel(feature.Field))
	case BlockOrdinal:
		return fmt.Sprintf("%s level", fieldLabel(feature.Field))
	default:
		return categoricalPhrase(feature)
	}
}

func categoricalPhrase(feature FeatureName) string {
	return fmt.Sprintf("%s being '%s'", fieldLabel(feature.Field), valueLabel(feature.Value))
}

// fieldLabel turns "marital_status" into "Marital Status".
func fieldLabel(field string) string {
	// cases.Caser is stateful; build one per call.
	return cases.Title(language.English).String(strings.ReplaceAll(field, "_", " "))
}

func valueLabel(value string) string {
	return strings.ReplaceAll(value, "_", " ")
}
