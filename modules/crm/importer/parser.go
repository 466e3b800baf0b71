package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseError marks a file-level failure: unreadable, corrupt, or no
// recoverable header. Row-level problems are never parse errors.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse: %s: %v", e.Reason, e.Err)
	}
	return "parse: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParsedRow is one data row keyed by source column name. RowNumber is the
// 1-based position in the source file, header included, so the first data
// row of a clean file is row 2.
type ParsedRow struct {
	RowNumber int
	Data      map[string]string
}

// ParseFile reads a staged file into its ordered column list and data rows.
// The format is chosen by extension; the first non-empty row is the header
// in every format; fully empty rows are dropped but keep their place in the
// source numbering.
func ParseFile(path string) ([]string, []ParsedRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(path)
	case ".xlsx", ".xls":
		return parseSpreadsheet(path)
	default:
		return nil, nil, &ParseError{Reason: fmt.Sprintf("unsupported file extension %q", filepath.Ext(path))}
	}
}

// rawRow pairs a record's cells with its 1-based line in the source file.
// CSV readers silently drop fully blank lines, so the slice index alone
// cannot attribute a row to its source position.
type rawRow struct {
	line  int
	cells []string
}

func parseCSV(path string) ([]string, []ParsedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &ParseError{Reason: "open file", Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var raw []rawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, &ParseError{Reason: "read csv", Err: err}
		}
		line, _ := reader.FieldPos(0)
		raw = append(raw, rawRow{line: line, cells: record})
	}
	return assemble(raw)
}

func parseSpreadsheet(path string) ([]string, []ParsedRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, &ParseError{Reason: "open spreadsheet", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, &ParseError{Reason: "spreadsheet has no sheets"}
	}
	sheetRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, &ParseError{Reason: "read sheet", Err: err}
	}
	// excelize keeps blank rows as empty slices, so the index is the line.
	raw := make([]rawRow, 0, len(sheetRows))
	for i, cells := range sheetRows {
		raw = append(raw, rawRow{line: i + 1, cells: cells})
	}
	return assemble(raw)
}

func assemble(raw []rawRow) ([]string, []ParsedRow, error) {
	headerIdx := -1
	for i, row := range raw {
		if !emptyRow(row.cells) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, nil, &ParseError{Reason: "no header row found"}
	}

	columns := make([]string, 0, len(raw[headerIdx].cells))
	for _, cell := range raw[headerIdx].cells {
		columns = append(columns, strings.TrimSpace(cell))
	}

	rows := make([]ParsedRow, 0, len(raw)-headerIdx-1)
	for _, row := range raw[headerIdx+1:] {
		if emptyRow(row.cells) {
			continue
		}
		data := make(map[string]string, len(columns))
		for j, col := range columns {
			if col == "" {
				continue
			}
			if j < len(row.cells) {
				data[col] = row.cells[j]
			} else {
				data[col] = ""
			}
		}
		rows = append(rows, ParsedRow{RowNumber: row.line, Data: data})
	}
	return columns, rows, nil
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
