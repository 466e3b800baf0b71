package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeTempCSV(t *testing.T, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func writeTempXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		require.NoError(t, f.SetSheetRow(sheet, cell, &cells))
	}
	path := filepath.Join(t.TempDir(), "input.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestParseFile_CSV(t *testing.T) {
	path := writeTempCSV(t, "in.csv", []string{
		"name,email",
		"ACME,sales@acme.example",
		",",
		"Globex,info@globex.example",
	})

	columns, rows, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email"}, columns)
	require.Len(t, rows, 2, "fully empty row dropped")

	assert.Equal(t, 2, rows[0].RowNumber)
	assert.Equal(t, "ACME", rows[0].Data["name"])
	assert.Equal(t, 4, rows[1].RowNumber, "dropped row keeps its place in the numbering")
	assert.Equal(t, "Globex", rows[1].Data["name"])
}

// Blank lines never reach the csv reader's output, so numbering must come
// from the reader's input position, not the record index.
func TestParseFile_CSVBlankLineKeepsNumbering(t *testing.T) {
	path := writeTempCSV(t, "in.csv", []string{
		"name,email",
		"Good Co,good@example.com",
		"",
		"Bad Co,bad@example.com",
	})

	_, rows, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].RowNumber)
	assert.Equal(t, 4, rows[1].RowNumber, "row after a blank line keeps its source position")
	assert.Equal(t, "Bad Co", rows[1].Data["name"])
}

func TestParseFile_XLSX(t *testing.T) {
	path := writeTempXLSX(t, [][]string{
		{"", ""},
		{"name", "price"},
		{"Widget", "10.50"},
		{"Gadget", "99"},
	})

	columns, rows, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "price"}, columns, "first non-empty row is the header")
	require.Len(t, rows, 2)
	assert.Equal(t, "Widget", rows[0].Data["name"])
	assert.Equal(t, 3, rows[0].RowNumber)
}

func TestParseFile_ShortRowPadsEmpty(t *testing.T) {
	path := writeTempCSV(t, "in.csv", []string{
		"name,email,phone",
		"ACME,sales@acme.example",
	})

	_, rows, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Data["phone"])
}

func TestParseFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, _, err := ParseFile(path)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseFile_NoHeader(t *testing.T) {
	path := writeTempCSV(t, "empty.csv", []string{",,", ",,"})

	_, _, err := ParseFile(path)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Error(), "no header row")
}

func TestParseFile_Missing(t *testing.T) {
	_, _, err := ParseFile(filepath.Join(t.TempDir(), "gone.csv"))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}
