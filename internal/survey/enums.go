package survey

import "slices"

// Valid answers per question. Order matters for the ordinal questions
// (qualification and income): it is the rank order used by the pipeline.
var (
	Genders = []string{"Male", "Female"}

	MaritalStatuses = []string{"Single", "Married", "Divorced", "Separated", "Widowed"}

	Qualifications = []string{
		"No Qualification",
		"GCSE/CSE",
		"GCSE/O Level",
		"A Levels",
		"ONC/BTEC",
		"Other/Sub Degree",
		"Higher/Sub Degree",
		"Degree",
		"Unknown",
	}

	Nationalities = []string{"British", "English", "Irish", "Scottish", "Welsh", "Other", "Refused", "Unknown"}

	Ethnicities = []string{"White", "Mixed", "Black", "Chinese", "Asian", "Refused", "Unknown"}

	Incomes = []string{
		"Under 2,600",
		"2,600 to 5,200",
		"5,200 to 10,400",
		"10,400 to 15,600",
		"15,600 to 20,800",
		"20,800 to 28,600",
		"28,600 to 36,400",
		"Above 36,400",
		"Refused",
		"Unknown",
	}

	Regions = []string{"The North", "Midlands & East Anglia", "South East", "South West", "Wales", "Scotland"}
)

var enumerations = map[string][]string{
	FieldGender:               Genders,
	FieldMaritalStatus:        MaritalStatuses,
	FieldHighestQualification: Qualifications,
	FieldNationality:          Nationalities,
	FieldEthnicity:            Ethnicities,
	FieldGrossIncome:          Incomes,
	FieldRegion:               Regions,
}

// ValidValues returns a copy of the accepted answers for an enumerated field.
func ValidValues(field string) ([]string, bool) {
	values, ok := enumerations[field]
	if !ok {
		return nil, false
	}
	return slices.Clone(values), true
}

// IsValid reports whether value is an accepted answer for field.
func IsValid(field, value string) bool {
	return slices.Contains(enumerations[field], value)
}
