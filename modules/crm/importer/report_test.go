package importer

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
)

func reportFixture() ([]string, []importjob.FailedRecord) {
	columns := []string{"name", "type", "email"}
	failed := []importjob.FailedRecord{
		{
			RowNumber: 3,
			Data:      map[string]string{"name": "Globex", "type": "company", "email": "broken"},
			Errors: []importjob.FieldError{
				{Field: "email", Message: `"broken" is not a valid email address`, Category: importjob.CategoryValidation},
			},
		},
		{
			RowNumber: 7,
			Data:      map[string]string{"name": "Initech", "type": "llc", "email": "x@y.zz"},
			Errors: []importjob.FieldError{
				{Field: "type", Message: "unknown value", Category: importjob.CategoryValidation},
				{Field: "name", Message: "duplicate of existing record Initech", Category: importjob.CategoryDuplicate},
			},
		},
	}
	return columns, failed
}

func TestBuildReportRows(t *testing.T) {
	columns, failed := reportFixture()

	header, rows := BuildReportRows(columns, failed)
	assert.Equal(t, []string{"name", "type", "email", "Row Number", "Errors"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Globex", "company", "broken", "3", `email: "broken" is not a valid email address`}, rows[0])
	assert.Equal(t, "type: unknown value; name: duplicate of existing record Initech", rows[1][4])
}

func TestRenderReport_Idempotent(t *testing.T) {
	columns, failed := reportFixture()

	var first, second bytes.Buffer
	require.NoError(t, RenderReport(&first, ReportFormatCSV, columns, failed))
	require.NoError(t, RenderReport(&second, ReportFormatCSV, columns, failed))
	assert.Equal(t, first.String(), second.String())
}

// Both formats must carry the same logical content; the representation is
// format-agnostic.
func TestRenderReport_FormatsAgree(t *testing.T) {
	columns, failed := reportFixture()

	var csvBuf bytes.Buffer
	require.NoError(t, RenderReport(&csvBuf, ReportFormatCSV, columns, failed))
	csvRows, err := csv.NewReader(bytes.NewReader(csvBuf.Bytes())).ReadAll()
	require.NoError(t, err)

	var xlsxBuf bytes.Buffer
	require.NoError(t, RenderReport(&xlsxBuf, ReportFormatXLSX, columns, failed))
	book, err := excelize.OpenReader(bytes.NewReader(xlsxBuf.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	xlsxRows, err := book.GetRows(book.GetSheetName(0))
	require.NoError(t, err)

	assert.Equal(t, csvRows, xlsxRows)
}

func TestRenderReport_UnknownFormat(t *testing.T) {
	columns, failed := reportFixture()
	assert.Error(t, RenderReport(&bytes.Buffer{}, "pdf", columns, failed))
}

func TestParseReport_RoundTrip(t *testing.T) {
	columns, failed := reportFixture()

	path := filepath.Join(t.TempDir(), "report.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, RenderReport(f, ReportFormatCSV, columns, failed))
	require.NoError(t, f.Close())

	gotColumns, gotFailed, err := ParseReport(path)
	require.NoError(t, err)
	assert.Equal(t, columns, gotColumns, "synthesized columns stripped back out")
	require.Len(t, gotFailed, 2)

	assert.Equal(t, 3, gotFailed[0].RowNumber)
	assert.Equal(t, failed[0].Data, gotFailed[0].Data)
	require.Len(t, gotFailed[1].Errors, 2)
	assert.Equal(t, "type", gotFailed[1].Errors[0].Field)
}
