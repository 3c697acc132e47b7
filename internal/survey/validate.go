package survey

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MissingFieldError reports required fields that were absent or empty.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// InvalidFieldError reports a field whose value is outside its accepted set.
type InvalidFieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %s", e.Value, e.Field, e.Reason)
}

// IsInputError reports whether err is caused by malformed caller input.
func IsInputError(err error) bool {
	var missing *MissingFieldError
	var invalid *InvalidFieldError
	return errors.As(err, &missing) || errors.As(err, &invalid)
}

// Validator checks records against the survey rules. It is safe for
// concurrent use.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator with the survey_enum rule registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("survey_enum", validateEnum); err != nil {
		panic(fmt.Sprintf("survey: register survey_enum: %v", err))
	}
	return &Validator{validate: v}
}

func validateEnum(fl validator.FieldLevel) bool {
	return IsValid(fl.Param(), fl.Field().String())
}

// Validate checks a decoded record. Missing fields take precedence over
// invalid ones so the caller learns about every absent field at once. Of
// several invalid fields only the first, in wire order, is reported. Age is
// numeric and never missing here: 0 is out of range, as in Parse.
func (v *Validator) Validate(r RawRecord) error {
	err := v.validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var missing []string
	var invalid *InvalidFieldError
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		if invalid == nil {
			invalid = &InvalidFieldError{
				Field:  fe.Field(),
				Value:  fmt.Sprint(fe.Value()),
				Reason: describe(fe),
			}
		}
	}

	if len(missing) > 0 {
		return &MissingFieldError{Fields: missing}
	}
	if invalid != nil {
		return invalid
	}
	return err
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max":
		return fmt.Sprintf("must be between %d and %d", MinAge, MaxAge)
	case "survey_enum":
		return "not one of the accepted values"
	}
	return "failed " + fe.Tag()
}

// Parse converts a loosely typed payload (as decoded from JSON) into a
// validated RawRecord. Every required key must be present and non-empty.
func (v *Validator) Parse(payload map[string]any) (RawRecord, error) {
	var missing []string
	for _, field := range RequiredFields {
		if isBlank(payload[field]) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return RawRecord{}, &MissingFieldError{Fields: missing}
	}

	age, err := parseAge(payload[FieldAge])
	if err != nil {
		return RawRecord{}, err
	}

	str := func(field string) (string, error) {
		s, ok := payload[field].(string)
		if !ok {
			return "", &InvalidFieldError{Field: field, Value: fmt.Sprint(payload[field]), Reason: "must be a string"}
		}
		return strings.TrimSpace(s), nil
	}

	var r RawRecord
	r.Age = age
	targets := []struct {
		field string
		dst   *string
	}{
		{FieldGender, &r.Gender},
		{FieldMaritalStatus, &r.MaritalStatus},
		{FieldHighestQualification, &r.HighestQualification},
		{FieldNationality, &r.Nationality},
		{FieldEthnicity, &r.Ethnicity},
		{FieldGrossIncome, &r.GrossIncome},
		{FieldRegion, &r.Region},
	}
	for _, t := range targets {
		if *t.dst, err = str(t.field); err != nil {
			return RawRecord{}, err
		}
	}

	if err := v.Validate(r); err != nil {
		return RawRecord{}, err
	}
	return r, nil
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

func parseAge(v any) (int, error) {
	invalid := func(reason string) error {
		return &InvalidFieldError{Field: FieldAge, Value: fmt.Sprint(v), Reason: reason}
	}

	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, invalid("must be an integer")
		}
		f = parsed
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, invalid("must be an integer")
		}
		f = float64(parsed)
	default:
		return 0, invalid("must be an integer")
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, invalid("must be an integer")
	}
	if f < MinAge || f > MaxAge {
		return 0, invalid(fmt.Sprintf("must be between %d and %d", MinAge, MaxAge))
	}
	return int(f), nil
}
