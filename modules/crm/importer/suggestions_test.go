package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestCleaning(t *testing.T) {
	p := NewCustomerProfile(nil)

	suggestions := SuggestCleaning(p, 2, map[string]string{
		"name":  "  ACME Corp ",
		"type":  "Организация",
		"email": "Sales@ACME.example",
		"phone": "+1 555 0101",
	})

	byField := make(map[string]CleaningSuggestion)
	for _, s := range suggestions {
		byField[s.Field] = s
	}

	require.Contains(t, byField, "name")
	assert.Equal(t, "ACME Corp", byField["name"].SuggestedValue)
	assert.Equal(t, "surrounding whitespace removed", byField["name"].Reason)

	require.Contains(t, byField, "type")
	assert.Equal(t, "company", byField["type"].SuggestedValue)

	require.Contains(t, byField, "email")
	assert.Equal(t, "sales@acme.example", byField["email"].SuggestedValue)

	assert.NotContains(t, byField, "phone", "already-clean value yields no suggestion")
}

func TestSuggestCleaning_DateNormalization(t *testing.T) {
	p := NewInteractionProfile(nil, nil, nil)

	suggestions := SuggestCleaning(p, 5, map[string]string{"occurred_at": "15.03.2026"})
	require.Len(t, suggestions, 1)
	assert.Equal(t, "2026-03-15T00:00:00Z", suggestions[0].SuggestedValue)
	assert.Equal(t, 5, suggestions[0].RowNumber)
}

func TestSuggestCleaning_InvalidValueYieldsNothing(t *testing.T) {
	p := NewCustomerProfile(nil)

	suggestions := SuggestCleaning(p, 2, map[string]string{"email": "not-an-email"})
	assert.Empty(t, suggestions, "suggestions are independent of validity, not a second error channel")
}

func TestSuggestCleaning_DoesNotBlockValidation(t *testing.T) {
	p := NewCustomerProfile(nil)
	fields := map[string]string{"name": " ACME ", "type": "company"}

	require.NotEmpty(t, SuggestCleaning(p, 2, fields))
	assert.True(t, ValidateRow(p, 2, fields).Valid)
}
