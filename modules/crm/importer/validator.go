package importer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
)

// ValidationOutcome is the result of validating one row. Cleaned is set only
// when the row has zero errors.
type ValidationOutcome struct {
	RowNumber int                    `json:"rowNumber"`
	Valid     bool                   `json:"isValid"`
	Errors    []importjob.FieldError `json:"errors,omitempty"`
	Cleaned   Record                 `json:"-"`
}

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	urlPattern   = regexp.MustCompile(`^(https?://)?[\w.-]+\.[a-zA-Z]{2,}(/\S*)?$`)

	numberNoise = regexp.MustCompile(`[^\d.\-]`)
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"01/02/2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// ValidateRow checks one column-mapped row against the profile's field
// schema. All errors are collected in one pass rather than failing fast.
func ValidateRow(p Profile, rowNumber int, fields map[string]string) ValidationOutcome {
	outcome := ValidationOutcome{RowNumber: rowNumber}
	cleaned := make(Record, len(fields))

	for _, spec := range p.Fields() {
		raw, present := fields[spec.Name]
		trimmed := strings.TrimSpace(raw)

		if trimmed == "" {
			if spec.Required {
				outcome.Errors = append(outcome.Errors, importjob.FieldError{
					Field:    spec.Name,
					Message:  "required value is missing",
					Category: importjob.CategoryValidation,
				})
			} else if present {
				cleaned[spec.Name] = NilValue()
			}
			continue
		}

		value, fieldErr := coerceField(spec, trimmed)
		if fieldErr != nil {
			outcome.Errors = append(outcome.Errors, *fieldErr)
			continue
		}
		cleaned[spec.Name] = value
	}

	if len(outcome.Errors) == 0 {
		outcome.Valid = true
		outcome.Cleaned = cleaned
	}
	return outcome
}

// coerceField normalizes one non-empty trimmed value to its typed form, or
// reports why it cannot.
func coerceField(spec FieldSpec, trimmed string) (Value, *importjob.FieldError) {
	fail := func(format string, args ...any) (Value, *importjob.FieldError) {
		return Value{}, &importjob.FieldError{
			Field:    spec.Name,
			Message:  fmt.Sprintf(format, args...),
			Category: importjob.CategoryValidation,
		}
	}

	switch spec.Type {
	case FieldNumber:
		d, ok := parseNumber(trimmed)
		if !ok {
			return fail("%q is not a number", trimmed)
		}
		return NumberValue(d), nil

	case FieldDate:
		t, ok := parseDate(trimmed)
		if !ok {
			return fail("%q is not a recognizable date", trimmed)
		}
		return DateValue(t), nil

	case FieldEnum:
		canonical, ok := canonicalizeEnum(spec, trimmed)
		if !ok {
			return fail("%q is not one of: %s", trimmed, strings.Join(spec.Enum, ", "))
		}
		return StringValue(canonical), nil

	case FieldEmail:
		lowered := strings.ToLower(trimmed)
		if !emailPattern.MatchString(lowered) {
			return fail("%q is not a valid email address", trimmed)
		}
		return StringValue(lowered), nil

	case FieldURL:
		if !urlPattern.MatchString(trimmed) {
			return fail("%q is not a valid URL", trimmed)
		}
		return StringValue(trimmed), nil

	case FieldList:
		items := SplitMultiValue(trimmed)
		if len(items) == 0 {
			return NilValue(), nil
		}
		return ListValue(items), nil
	}

	// Plain string: length policy, then pattern.
	s := trimmed
	if spec.MaxLen > 0 && len([]rune(s)) > spec.MaxLen {
		switch spec.OnOverflow {
		case OverflowReject:
			return fail("value exceeds maximum length of %d", spec.MaxLen)
		default:
			s = string([]rune(s)[:spec.MaxLen])
		}
	}
	if spec.Pattern != nil && !spec.Pattern.MatchString(s) {
		return fail("%q has an invalid format", trimmed)
	}
	return StringValue(s), nil
}

// parseNumber strips embedded non-digit noise (currency symbols, spaces,
// thousands separators) before parsing.
func parseNumber(s string) (decimal.Decimal, bool) {
	stripped := numberNoise.ReplaceAllString(strings.ReplaceAll(s, ",", ""), "")
	if stripped == "" || stripped == "-" || stripped == "." {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(stripped)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// parseDate accepts any of the known layouts and normalizes to UTC.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// canonicalizeEnum maps a token onto the canonical enum value, accepting the
// canonical form or any configured synonym, case-insensitively.
func canonicalizeEnum(spec FieldSpec, s string) (string, bool) {
	lowered := strings.ToLower(s)
	for _, canonical := range spec.Enum {
		if strings.ToLower(canonical) == lowered {
			return canonical, true
		}
	}
	if canonical, ok := spec.EnumSynonyms[lowered]; ok {
		return canonical, true
	}
	return "", false
}
