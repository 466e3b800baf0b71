package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"

	"github.com/meridianhq/crm-backoffice/modules/crm/domain/importjob"
)

const (
	ReportFormatCSV  = "csv"
	ReportFormatXLSX = "xlsx"

	reportRowNumberColumn = "Row Number"
	reportErrorsColumn    = "Errors"
)

// BuildReportRows renders the failed-record list into a header plus data
// rows: the original columns in source order, then the row number and a
// summary of that row's errors. Rendering is pure, so regeneration from the
// same list is idempotent.
func BuildReportRows(columns []string, failed []importjob.FailedRecord) ([]string, [][]string) {
	header := make([]string, 0, len(columns)+2)
	header = append(header, columns...)
	header = append(header, reportRowNumberColumn, reportErrorsColumn)

	rows := make([][]string, 0, len(failed))
	for _, record := range failed {
		row := make([]string, 0, len(header))
		for _, col := range columns {
			row = append(row, record.Data[col])
		}
		row = append(row, strconv.Itoa(record.RowNumber), summarizeErrors(record.Errors))
		rows = append(rows, row)
	}
	return header, rows
}

func summarizeErrors(errs []importjob.FieldError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Field == "" {
			parts = append(parts, e.Message)
			continue
		}
		parts = append(parts, e.Field+": "+e.Message)
	}
	return strings.Join(parts, "; ")
}

// RenderReport writes the error artifact in the requested format.
func RenderReport(w io.Writer, format string, columns []string, failed []importjob.FailedRecord) error {
	switch format {
	case ReportFormatCSV:
		return renderReportCSV(w, columns, failed)
	case ReportFormatXLSX:
		return renderReportXLSX(w, columns, failed)
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

func renderReportCSV(w io.Writer, columns []string, failed []importjob.FailedRecord) error {
	header, rows := BuildReportRows(columns, failed)
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return gerrors.Wrap(err, "write report header")
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return gerrors.Wrap(err, "write report row")
		}
	}
	writer.Flush()
	return writer.Error()
}

func renderReportXLSX(w io.Writer, columns []string, failed []importjob.FailedRecord) error {
	header, rows := BuildReportRows(columns, failed)

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	all := append([][]string{header}, rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return gerrors.Wrap(err, "report cell name")
		}
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return gerrors.Wrap(err, "write report sheet row")
		}
	}
	return f.Write(w)
}

// ParseReport re-derives the failed-record list from a previously generated
// report artifact. Fallback path for jobs whose structured error payload is
// gone; the synthesized columns are stripped back out of the row data.
func ParseReport(path string) ([]string, []importjob.FailedRecord, error) {
	columns, rows, err := ParseFile(path)
	if err != nil {
		return nil, nil, err
	}

	dataColumns := make([]string, 0, len(columns))
	for _, col := range columns {
		if col == reportRowNumberColumn || col == reportErrorsColumn {
			continue
		}
		dataColumns = append(dataColumns, col)
	}

	failed := make([]importjob.FailedRecord, 0, len(rows))
	for _, row := range rows {
		rowNumber, err := strconv.Atoi(strings.TrimSpace(row.Data[reportRowNumberColumn]))
		if err != nil {
			rowNumber = row.RowNumber
		}
		data := make(map[string]string, len(dataColumns))
		for _, col := range dataColumns {
			data[col] = row.Data[col]
		}
		failed = append(failed, importjob.FailedRecord{
			RowNumber: rowNumber,
			Data:      data,
			Errors:    parseErrorSummary(row.Data[reportErrorsColumn]),
		})
	}
	return dataColumns, failed, nil
}

func parseErrorSummary(s string) []importjob.FieldError {
	var out []importjob.FieldError
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, message, found := strings.Cut(part, ": ")
		if !found {
			out = append(out, importjob.FieldError{Message: part, Category: importjob.CategoryValidation})
			continue
		}
		out = append(out, importjob.FieldError{Field: field, Message: message, Category: importjob.CategoryValidation})
	}
	return out
}
