package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapColumns_SynonymMatching(t *testing.T) {
	p := NewCustomerProfile(nil)

	mappings, err := MapColumns([]string{"Name", "  email  ", "Телефон", "Favorite Color"}, p, nil)
	require.NoError(t, err)
	require.Len(t, mappings, 4)

	assert.Equal(t, "name", mappings[0].TargetField, "case-insensitive synonym")
	assert.Equal(t, "email", mappings[1].TargetField, "whitespace trimmed before lookup")
	assert.Equal(t, "phone", mappings[2].TargetField, "localized synonym")
	assert.Empty(t, mappings[3].TargetField, "unknown column stays unmapped")
	assert.Empty(t, mappings[3].SuggestedField)
}

func TestMapColumns_OverridesWin(t *testing.T) {
	p := NewCustomerProfile(nil)

	mappings, err := MapColumns([]string{"Name", "Contact"}, p, map[string]string{
		"Name":    "code",
		"Contact": "email",
	})
	require.NoError(t, err)

	assert.Equal(t, "code", mappings[0].TargetField)
	assert.Equal(t, "name", mappings[0].SuggestedField, "suggestion survives the override")
	assert.Equal(t, "email", mappings[1].TargetField)
}

func TestMapColumns_OverrideClearsMapping(t *testing.T) {
	p := NewCustomerProfile(nil)

	mappings, err := MapColumns([]string{"Name"}, p, map[string]string{"Name": ""})
	require.NoError(t, err)
	assert.Empty(t, mappings[0].TargetField)
	assert.Equal(t, "name", mappings[0].SuggestedField)
}

func TestMapColumns_UnknownOverrideTarget(t *testing.T) {
	p := NewCustomerProfile(nil)

	_, err := MapColumns([]string{"Name"}, p, map[string]string{"Name": "shoe_size"})
	var mappingErr *MappingError
	require.ErrorAs(t, err, &mappingErr)
	assert.Equal(t, "Name", mappingErr.SourceColumn)
	assert.Equal(t, "shoe_size", mappingErr.TargetField)
}

func TestMapColumns_Deterministic(t *testing.T) {
	p := NewProductProfile(nil)
	columns := []string{"SKU", "Title", "Цена", "Notes"}
	overrides := map[string]string{"Notes": "description"}

	first, err := MapColumns(columns, p, overrides)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MapColumns(columns, p, overrides)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestApplyMappings(t *testing.T) {
	row := map[string]string{"Name": "ACME", "Contact": "a@b.co", "Extra": "x"}
	fields := ApplyMappings(row, map[string]string{"Name": "name", "Contact": "email"})

	assert.Equal(t, map[string]string{"name": "ACME", "email": "a@b.co"}, fields)
}

func TestMappingSet_DropsUnmapped(t *testing.T) {
	set := MappingSet([]ColumnMapping{
		{SourceColumn: "Name", TargetField: "name"},
		{SourceColumn: "Mystery"},
	})
	assert.Equal(t, map[string]string{"Name": "name"}, set)
}
