// Command generate-artifact writes an illustrative model artifact covering
// every survey answer. The coefficients are hand-picked, not fitted; the
// artifact exists so the service and CLI can run without a training job.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"smoking-predictor/internal/ml"
	"smoking-predictor/internal/survey"
)

// sampleWeights holds one coefficient per one-hot category.
var sampleWeights = map[string]map[string]float64{
	survey.FieldGender: {"Male": 0.08, "Female": -0.08},
	survey.FieldMaritalStatus: {
		"Single": 0.45, "Married": -0.40, "Divorced": 0.35, "Separated": 0.50, "Widowed": -0.10,
	},
	survey.FieldNationality: {
		"British": 0.05, "English": 0.02, "Irish": 0.10, "Scottish": 0.15,
		"Welsh": 0.07, "Other": -0.20, "Refused": 0, "Unknown": 0,
	},
	survey.FieldEthnicity: {
		"White": 0.20, "Mixed": 0.25, "Black": -0.30, "Chinese": -0.45,
		"Asian": -0.40, "Refused": 0, "Unknown": 0,
	},
	survey.FieldRegion: {
		"The North": 0.12, "Midlands & East Anglia": 0.03, "South East": -0.10,
		"South West": -0.02, "Wales": 0.04, "Scotland": 0.15,
	},
}

const (
	ageMean             = 52.2
	ageScale            = 18.5
	ageWeight           = -0.35
	qualificationWeight = -0.12
	incomeWeight        = -0.04
	intercept           = -0.9
)

func main() {
	var (
		outPath = flag.String("out", "models/pipeline.json", "Output path (.json, .yaml or .yml)")
		version = flag.String("version", "sample-1", "Artifact version")
	)
	flag.Parse()

	spec, err := buildSpec(*version, time.Now().UTC())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build artifact")
	}

	// Run the loader's validation before writing.
	if _, err := ml.FromSpec(spec); err != nil {
		log.Fatal().Err(err).Msg("Generated artifact is invalid")
	}

	if err := write(*outPath, spec); err != nil {
		log.Fatal().Err(err).Str("path", *outPath).Msg("Failed to write artifact")
	}

	fmt.Printf("Wrote %s (%d coefficients)\n", *outPath, len(spec.Classifier.Coefficients))
}

func buildSpec(version string, trainedAt time.Time) (ml.ArtifactSpec, error) {
	spec := ml.ArtifactSpec{
		Metadata: ml.ModelMetadata{
			Version:       version,
			TrainedAt:     trainedAt,
			PositiveLabel: "Yes",
		},
		Transform: ml.TransformSpec{
			Numeric: []ml.NumericColumn{{Field: survey.FieldAge, Mean: ageMean, Scale: ageScale}},
			Ordinal: []ml.OrdinalColumn{
				{Field: survey.FieldHighestQualification, Categories: survey.Qualifications},
				{Field: survey.FieldGrossIncome, Categories: survey.Incomes},
			},
		},
	}
	coefs := []float64{ageWeight, qualificationWeight, incomeWeight}

	for _, field := range []string{
		survey.FieldGender, survey.FieldMaritalStatus, survey.FieldNationality,
		survey.FieldEthnicity, survey.FieldRegion,
	} {
		values, _ := survey.ValidValues(field)
		weights := sampleWeights[field]
		for _, v := range values {
			w, ok := weights[v]
			if !ok {
				return ml.ArtifactSpec{}, fmt.Errorf("no sample weight for %s=%q", field, v)
			}
			coefs = append(coefs, w)
		}
		spec.Transform.Categorical = append(spec.Transform.Categorical, ml.CategoricalColumn{Field: field, Categories: values})
	}

	spec.Classifier = ml.ClassifierSpec{Coefficients: coefs, Intercept: intercept}
	return spec, nil
}

func write(path string, spec ml.ArtifactSpec) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		data, err := yaml.Marshal(spec)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o600)
	default:
		return ml.SaveArtifactSpec(path, spec)
	}
}
