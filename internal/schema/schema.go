// Package schema turns loosely-typed language-model output into validated,
// typed records. Downstream components consume only the validated variant;
// callers receive a ValidationFailure naming every violated field so the
// parser can build a corrective retry prompt.
package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/talentsift/talentsift/internal/model"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether s is a syntactically plausible email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// FieldViolation describes one violated constraint on a named field.
type FieldViolation struct {
	Field  string
	Reason string
}

// ValidationFailure is returned when model output does not satisfy the
// target schema. It lists every violation, not just the first.
type ValidationFailure struct {
	Kind       model.Kind
	Violations []FieldViolation
}

func (f *ValidationFailure) Error() string {
	fields := f.Fields()
	return fmt.Sprintf("invalid %s payload: %s", f.Kind, strings.Join(fields, ", "))
}

// Fields returns the names of all violated fields in reported order.
func (f *ValidationFailure) Fields() []string {
	fields := make([]string, 0, len(f.Violations))
	for _, v := range f.Violations {
		fields = append(fields, v.Field)
	}
	return fields
}

// DecodeCandidate validates and decodes a loose candidate payload. Missing
// optional arrays become empty slices, scalar values are coerced from
// numbers or booleans, and unknown keys are ignored.
func DecodeCandidate(data map[string]any) (*model.Candidate, error) {
	if data == nil {
		return nil, &ValidationFailure{
			Kind:       model.KindCandidate,
			Violations: []FieldViolation{{Field: "payload", Reason: "no payload"}},
		}
	}

	var violations []FieldViolation

	name := coerceString(data["name"])
	if name == "" {
		violations = append(violations, FieldViolation{Field: "name", Reason: "required"})
	}

	email := coerceString(data["email"])
	switch {
	case email == "":
		violations = append(violations, FieldViolation{Field: "email", Reason: "required"})
	case !ValidEmail(email):
		violations = append(violations, FieldViolation{Field: "email", Reason: "not a valid address"})
	}

	cleaned := map[string]any{
		"name":           name,
		"email":          email,
		"phone":          coerceString(data["phone"]),
		"location":       coerceString(data["location"]),
		"linkedin":       coerceString(data["linkedin"]),
		"summary":        coerceString(data["summary"]),
		"skills":         coerceStringSlice(data["skills"]),
		"experience":     coerceRecordSlice(data["experience"]),
		"education":      coerceRecordSlice(data["education"]),
		"certifications": coerceStringSlice(data["certifications"]),
		"languages":      coerceStringSlice(data["languages"]),
	}

	if len(violations) > 0 {
		return nil, &ValidationFailure{Kind: model.KindCandidate, Violations: violations}
	}

	var candidate model.Candidate
	if err := decode(cleaned, &candidate); err != nil {
		return nil, &ValidationFailure{
			Kind:       model.KindCandidate,
			Violations: []FieldViolation{{Field: "payload", Reason: err.Error()}},
		}
	}

	return &candidate, nil
}

// DecodeJobDescription validates and decodes a loose job description payload.
func DecodeJobDescription(data map[string]any) (*model.JobDescription, error) {
	if data == nil {
		return nil, &ValidationFailure{
			Kind:       model.KindJobDescription,
			Violations: []FieldViolation{{Field: "payload", Reason: "no payload"}},
		}
	}

	var violations []FieldViolation

	title := coerceString(data["title"])
	company := coerceString(data["company"])
	location := coerceString(data["location"])

	for _, field := range []struct {
		name  string
		value string
	}{
		{"title", title},
		{"company", company},
		{"location", location},
	} {
		if field.value == "" {
			violations = append(violations, FieldViolation{Field: field.name, Reason: "required"})
		}
	}

	requirements, _ := data["requirements"].(map[string]any)

	cleaned := map[string]any{
		"title":        title,
		"company":      company,
		"location":     location,
		"posting_date": coerceString(data["posting_date"]),
		"description":  coerceString(data["description"]),
		"requirements": map[string]any{
			"required_skills":      coerceStringSlice(requirements["required_skills"]),
			"preferred_skills":     coerceStringSlice(requirements["preferred_skills"]),
			"min_experience_years": coerceYears(requirements["min_experience_years"]),
			"education_level":      coerceString(requirements["education_level"]),
		},
	}

	if len(violations) > 0 {
		return nil, &ValidationFailure{Kind: model.KindJobDescription, Violations: violations}
	}

	var job model.JobDescription
	if err := decode(cleaned, &job); err != nil {
		return nil, &ValidationFailure{
			Kind:       model.KindJobDescription,
			Violations: []FieldViolation{{Field: "payload", Reason: err.Error()}},
		}
	}

	return &job, nil
}

func decode(data map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(data)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// coerceStringSlice accepts an array, a single scalar (treated as a
// singleton) or nothing (empty slice).
func coerceStringSlice(v any) []string {
	switch val := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := coerceString(v); s != "" {
			return []string{s}
		}
		return []string{}
	}
}

// coerceRecordSlice flattens an array of objects so that every value is a
// string; list-valued fields are joined with commas.
func coerceRecordSlice(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return []map[string]any{}
	}

	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		flat := make(map[string]any, len(record))
		for key, value := range record {
			flat[key] = coerceString(value)
		}
		out = append(out, flat)
	}
	return out
}

var yearsPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// coerceYears extracts a numeric year count from values like 5, "5",
// "5+ years" or "at least 3 yrs".
func coerceYears(v any) float64 {
	switch val := v.(type) {
	case float64:
		if val < 0 {
			return 0
		}
		return val
	case int:
		if val < 0 {
			return 0
		}
		return float64(val)
	case string:
		match := yearsPattern.FindString(val)
		if match == "" {
			return 0
		}
		years, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return 0
		}
		return years
	default:
		return 0
	}
}
