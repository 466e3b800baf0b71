package importer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
)

func TestValidateRow_CollectsAllErrors(t *testing.T) {
	p := NewCustomerProfile(nil)

	outcome := ValidateRow(p, 2, map[string]string{
		"type":  "martian",
		"email": "not-an-email",
	})

	require.False(t, outcome.Valid)
	assert.Nil(t, outcome.Cleaned, "invalid row produces no cleaned record")

	fields := make([]string, 0, len(outcome.Errors))
	for _, e := range outcome.Errors {
		fields = append(fields, e.Field)
		assert.Equal(t, importjob.CategoryValidation, e.Category)
	}
	assert.ElementsMatch(t, []string{"name", "type", "email"}, fields)
}

func TestValidateRow_CleansValidRow(t *testing.T) {
	p := NewCustomerProfile(nil)

	outcome := ValidateRow(p, 2, map[string]string{
		"name":  "  ACME Corp  ",
		"type":  "Организация",
		"email": "Sales@ACME.example",
	})

	require.True(t, outcome.Valid)
	assert.Equal(t, "ACME Corp", outcome.Cleaned["name"].String())
	assert.Equal(t, "company", outcome.Cleaned["type"].String(), "localized synonym canonicalized")
	assert.Equal(t, "sales@acme.example", outcome.Cleaned["email"].String())
}

func TestValidateRow_NumberNoiseStripped(t *testing.T) {
	p := NewProductProfile(nil)

	outcome := ValidateRow(p, 2, map[string]string{
		"sku":      "AB-100",
		"name":     "Widget",
		"category": "goods",
		"price":    "$ 1,299.50",
	})

	require.True(t, outcome.Valid, "errors: %v", outcome.Errors)
	assert.Equal(t, "1299.5", outcome.Cleaned["price"].Number().String())
}

func TestValidateRow_DateLayouts(t *testing.T) {
	p := NewInteractionProfile(nil, nil, nil)

	for _, raw := range []string{
		"2026-03-15",
		"2026-03-15 10:30:00",
		"15.03.2026",
		"2026/03/15",
	} {
		outcome := ValidateRow(p, 2, map[string]string{
			"customer":    "ACME",
			"kind":        "call",
			"occurred_at": raw,
		})
		require.True(t, outcome.Valid, "layout %q: %v", raw, outcome.Errors)
		got := outcome.Cleaned["occurred_at"].Date()
		assert.Equal(t, time.March, got.Month(), "layout %q", raw)
		assert.Equal(t, 15, got.Day(), "layout %q", raw)
	}
}

func TestValidateRow_OverflowPolicies(t *testing.T) {
	p := NewCustomerProfile(nil)
	long := strings.Repeat("x", 300)

	truncated := ValidateRow(p, 2, map[string]string{
		"name": long,
		"type": "company",
	})
	require.True(t, truncated.Valid)
	assert.Len(t, truncated.Cleaned["name"].String(), 255, "free-text field truncates")

	rejected := ValidateRow(p, 2, map[string]string{
		"name":  "ACME",
		"type":  "company",
		"phone": strings.Repeat("9", 40),
	})
	require.False(t, rejected.Valid, "identifier-like field rejects overflow")
	assert.Equal(t, "phone", rejected.Errors[0].Field)
}

func TestValidateRow_PatternCheck(t *testing.T) {
	p := NewCustomerProfile(nil)

	outcome := ValidateRow(p, 2, map[string]string{
		"name": "ACME",
		"type": "company",
		"code": "has spaces!",
	})
	require.False(t, outcome.Valid)
	assert.Equal(t, "code", outcome.Errors[0].Field)
}

// Scenario from the validate phase: 3 data rows, the second one carries an
// invalid email; the reported row number is the 1-based file position, so
// the second data row under the header is row 3.
func TestValidate_ThreeRowCSVScenario(t *testing.T) {
	path := writeTempCSV(t, "customers.csv", []string{
		"name,type,email",
		"ACME,company,sales@acme.example",
		"Globex,company,broken-email",
		"Initech,company,info@initech.example",
	})

	columns, rows, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "type", "email"}, columns)
	require.Len(t, rows, 3)

	p := NewCustomerProfile(nil)
	mappings := map[string]string{"name": "name", "type": "type", "email": "email"}

	valid, invalid := 0, 0
	var badRows []int
	for _, row := range rows {
		outcome := ValidateRow(p, row.RowNumber, ApplyMappings(row.Data, mappings))
		if outcome.Valid {
			valid++
		} else {
			invalid++
			badRows = append(badRows, outcome.RowNumber)
		}
	}

	assert.Equal(t, 2, valid)
	assert.Equal(t, 1, invalid)
	assert.Equal(t, []int{3}, badRows)
}

func TestSplitMultiValue(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitMultiValue("a, b"))
	assert.Equal(t, []string{"Smith, John", "Doe, Jane"}, SplitMultiValue("Smith, John; Doe, Jane"),
		"semicolons take precedence over commas")
	assert.Nil(t, SplitMultiValue("  "))
}
