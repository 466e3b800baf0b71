package importer

import "strings"

// CleaningSuggestion is advisory: it shows how a raw value would be
// normalized, without affecting validity.
type CleaningSuggestion struct {
	RowNumber      int    `json:"rowNumber"`
	Field          string `json:"field"`
	OriginalValue  string `json:"originalValue"`
	SuggestedValue string `json:"suggestedValue"`
	Reason         string `json:"reason"`
}

// SuggestCleaning runs the side-effect-free cleaning pass over one raw row,
// reporting every field whose cleaned form differs from the original. It is
// independent of validation; invalid fields simply yield no suggestion.
func SuggestCleaning(p Profile, rowNumber int, fields map[string]string) []CleaningSuggestion {
	var out []CleaningSuggestion
	for _, spec := range p.Fields() {
		raw, ok := fields[spec.Name]
		if !ok || raw == "" {
			continue
		}

		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if trimmed != raw {
			out = append(out, CleaningSuggestion{
				RowNumber:      rowNumber,
				Field:          spec.Name,
				OriginalValue:  raw,
				SuggestedValue: trimmed,
				Reason:         "surrounding whitespace removed",
			})
		}

		value, fieldErr := coerceField(spec, trimmed)
		if fieldErr != nil {
			continue
		}
		cleaned := value.String()
		if cleaned != trimmed {
			out = append(out, CleaningSuggestion{
				RowNumber:      rowNumber,
				Field:          spec.Name,
				OriginalValue:  trimmed,
				SuggestedValue: cleaned,
				Reason:         reasonFor(spec.Type),
			})
		}
	}
	return out
}

func reasonFor(t FieldType) string {
	switch t {
	case FieldNumber:
		return "numeric noise stripped"
	case FieldDate:
		return "date normalized to RFC 3339"
	case FieldEnum:
		return "value mapped to canonical form"
	case FieldEmail:
		return "email lower-cased"
	case FieldList:
		return "list elements trimmed"
	}
	return "value normalized"
}
