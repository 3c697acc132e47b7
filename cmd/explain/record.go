package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"smoking-predictor/internal/survey"
)

// fieldFlags holds one optional flag per survey question.
type fieldFlags struct {
	values map[string]*string
}

func registerFieldFlags(fs *flag.FlagSet) *fieldFlags {
	ff := &fieldFlags{values: make(map[string]*string, len(survey.RequiredFields))}
	for _, field := range survey.RequiredFields {
		name := strings.ReplaceAll(field, "_", "-")
		ff.values[field] = fs.String(name, "", "Survey answer for "+field)
	}
	return ff
}

// apply copies every non-empty flag into payload, overriding file values.
func (ff *fieldFlags) apply(payload map[string]any) {
	if ff == nil {
		return
	}
	for field, v := range ff.values {
		if v != nil && *v != "" {
			payload[field] = *v
		}
	}
}

// loadPayload reads a record from path (JSON, or YAML by extension) and
// overlays the per-field flags. Either source may be empty.
func loadPayload(path string, fields *fieldFlags) (map[string]any, error) {
	payload := make(map[string]any)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &payload); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		default:
			if err := json.Unmarshal(data, &payload); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	fields.apply(payload)
	return payload, nil
}
