package importer

import (
	"fmt"
	"strings"
)

// ColumnMapping links one source column to a target field. An empty
// TargetField means unmapped; SuggestedField keeps the computed suggestion
// visible even when an override cleared the target.
type ColumnMapping struct {
	SourceColumn   string `json:"sourceColumn"`
	TargetField    string `json:"targetField,omitempty"`
	SuggestedField string `json:"suggestedField,omitempty"`
}

// MappingError rejects a caller-supplied override naming a field the profile
// does not have. Raised at preview time, before any job exists.
type MappingError struct {
	SourceColumn string
	TargetField  string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping: column %q mapped to unknown field %q", e.SourceColumn, e.TargetField)
}

// MapColumns computes the column mapping for the given source columns. Pure
// and deterministic: trim, exact synonym match, case-insensitive match, else
// unmapped. Caller overrides always win over computed suggestions.
func MapColumns(columns []string, p Profile, overrides map[string]string) ([]ColumnMapping, error) {
	synonyms := p.Synonyms()

	out := make([]ColumnMapping, 0, len(columns))
	for _, col := range columns {
		trimmed := strings.TrimSpace(col)
		suggested := ""
		if target, ok := synonyms[trimmed]; ok {
			suggested = target
		} else if target, ok := synonyms[strings.ToLower(trimmed)]; ok {
			suggested = target
		}

		mapping := ColumnMapping{
			SourceColumn:   col,
			TargetField:    suggested,
			SuggestedField: suggested,
		}
		if override, ok := overrides[col]; ok {
			if override != "" {
				if _, known := fieldByName(p, override); !known {
					return nil, &MappingError{SourceColumn: col, TargetField: override}
				}
			}
			mapping.TargetField = override
		}
		out = append(out, mapping)
	}
	return out, nil
}

// MappingSet reduces mappings to sourceColumn -> targetField, dropping
// unmapped columns. This is the shape persisted on the job.
func MappingSet(mappings []ColumnMapping) map[string]string {
	out := make(map[string]string)
	for _, m := range mappings {
		if m.TargetField != "" {
			out[m.SourceColumn] = m.TargetField
		}
	}
	return out
}

// ApplyMappings projects a raw source row onto target field names, ignoring
// unmapped columns.
func ApplyMappings(row map[string]string, mappings map[string]string) map[string]string {
	out := make(map[string]string, len(mappings))
	for source, target := range mappings {
		if value, ok := row[source]; ok {
			out[target] = value
		}
	}
	return out
}
