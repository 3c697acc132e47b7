// Package survey defines the demographic survey record accepted by the
// prediction service, the fixed sets of valid answers for each question,
// and validation of incoming records.
//
// Validation failures are reported as *MissingFieldError or *InvalidFieldError
// so callers can distinguish malformed input from internal faults.
package survey

import (
	"strconv"
)

// Field names as they appear on the wire and in the fitted pipeline.
const (
	FieldAge                  = "age"
	FieldGender               = "gender"
	FieldMaritalStatus        = "marital_status"
	FieldHighestQualification = "highest_qualification"
	FieldNationality          = "nationality"
	FieldEthnicity            = "ethnicity"
	FieldGrossIncome          = "gross_income"
	FieldRegion               = "region"
)

// Age bounds, inclusive.
const (
	MinAge = 1
	MaxAge = 120
)

// RequiredFields lists every field a record must carry, in wire order.
var RequiredFields = []string{
	FieldAge,
	FieldGender,
	FieldMaritalStatus,
	FieldHighestQualification,
	FieldNationality,
	FieldEthnicity,
	FieldGrossIncome,
	FieldRegion,
}

// RawRecord is a single respondent's answers.
type RawRecord struct {
	Age                  int    `json:"age" yaml:"age" validate:"min=1,max=120"`
	Gender               string `json:"gender" yaml:"gender" validate:"required,survey_enum=gender"`
	MaritalStatus        string `json:"marital_status" yaml:"marital_status" validate:"required,survey_enum=marital_status"`
	HighestQualification string `json:"highest_qualification" yaml:"highest_qualification" validate:"required,survey_enum=highest_qualification"`
	Nationality          string `json:"nationality" yaml:"nationality" validate:"required,survey_enum=nationality"`
	Ethnicity            string `json:"ethnicity" yaml:"ethnicity" validate:"required,survey_enum=ethnicity"`
	GrossIncome          string `json:"gross_income" yaml:"gross_income" validate:"required,survey_enum=gross_income"`
	Region               string `json:"region" yaml:"region" validate:"required,survey_enum=region"`
}

// Value returns the raw answer for a field as a string. Age is formatted in
// base 10. The second result is false for unknown field names.
func (r RawRecord) Value(field string) (string, bool) {
	switch field {
	case FieldAge:
		return strconv.Itoa(r.Age), true
	case FieldGender:
		return r.Gender, true
	case FieldMaritalStatus:
		return r.MaritalStatus, true
	case FieldHighestQualification:
		return r.HighestQualification, true
	case FieldNationality:
		return r.Nationality, true
	case FieldEthnicity:
		return r.Ethnicity, true
	case FieldGrossIncome:
		return r.GrossIncome, true
	case FieldRegion:
		return r.Region, true
	}
	return "", false
}

// NumericValue returns the answer for a numeric field. Only age is numeric.
func (r RawRecord) NumericValue(field string) (float64, bool) {
	if field == FieldAge {
		return float64(r.Age), true
	}
	return 0, false
}

// IsField reports whether field is one of the survey questions.
func IsField(field string) bool {
	_, ok := RawRecord{}.Value(field)
	return ok
}

// IsNumericField reports whether field holds a number rather than a choice.
func IsNumericField(field string) bool {
	_, ok := RawRecord{}.NumericValue(field)
	return ok
}
