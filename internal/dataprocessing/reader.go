// Package dataprocessing reads uploaded tables and normalizes them into
// canonical loan records.
package dataprocessing

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"loanpulse/pkg/contracts/domain"
)

// ValidationError reports a structural problem with an uploaded table.
// Row-level issues never produce a ValidationError; they are dropped or
// flagged and counted in the normalization summary.
type ValidationError struct {
	Reason string
	Rows   []int // offending row indices, when applicable
}

func (e *ValidationError) Error() string {
	if len(e.Rows) > 0 {
		return fmt.Sprintf("%s (rows %v)", e.Reason, e.Rows)
	}
	return e.Reason
}

// Reader converts uploaded files into raw tables
type Reader struct {
	maxRows int
}

// NewReader creates a Reader that rejects tables above maxRows data rows
func NewReader(maxRows int) *Reader {
	return &Reader{maxRows: maxRows}
}

// ReadCSV parses CSV content into a RawTable. The first row is the
// header. Fails with *ValidationError on an empty or unreadable table.
func (r *Reader) ReadCSV(src io.Reader, source string) (*domain.RawTable, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("unreadable CSV: %v", err)}
	}
	return r.buildTable(rows, source)
}

// ReadExcel parses the first sheet of an XLSX workbook into a RawTable
func (r *Reader) ReadExcel(src io.Reader, source string) (*domain.RawTable, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("unreadable workbook: %v", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ValidationError{Reason: "workbook has no sheets"}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("failed to read sheet %q: %v", sheets[0], err)}
	}
	return r.buildTable(rows, source)
}

// buildTable assembles header + data rows into a RawTable, stripping
// the BOM and skipping fully empty rows
func (r *Reader) buildTable(rows [][]string, source string) (*domain.RawTable, error) {
	if len(rows) == 0 {
		return nil, &ValidationError{Reason: "empty table"}
	}

	headers := make([]string, 0, len(rows[0]))
	for i, h := range rows[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		headers = append(headers, strings.TrimSpace(h))
	}
	if len(headers) == 0 || allEmpty(headers) {
		return nil, &ValidationError{Reason: "missing header row"}
	}

	table := &domain.RawTable{Headers: headers, Source: source}
	for _, row := range rows[1:] {
		if allEmpty(row) {
			continue
		}
		if len(table.Rows) >= r.maxRows {
			return nil, &ValidationError{
				Reason: fmt.Sprintf("table exceeds the configured maximum of %d rows", r.maxRows),
			}
		}
		cells := make(map[string]domain.Cell, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			var raw string
			if i < len(row) {
				raw = strings.TrimSpace(row[i])
			}
			cells[header] = makeCell(raw)
		}
		table.Rows = append(table.Rows, cells)
	}

	if len(table.Rows) == 0 {
		return nil, &ValidationError{Reason: "table has no data rows"}
	}
	return table, nil
}

// makeCell resolves the raw text into a tagged cell value. Dates are
// deliberately left as strings here; the normalizer owns date parsing
// because the accepted format list is configurable.
func makeCell(raw string) domain.Cell {
	if raw == "" {
		return domain.Cell{Kind: domain.CellEmpty}
	}
	if v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64); err == nil && looksNumeric(raw) {
		return domain.Cell{Kind: domain.CellNumber, Number: v, String: raw}
	}
	return domain.Cell{Kind: domain.CellString, String: raw}
}

// looksNumeric guards against ParseFloat accepting exotic spellings
// ("1e5", "Inf") that are almost certainly identifiers in loan tables
func looksNumeric(raw string) bool {
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' || r == ',' || r == '-' || r == '+':
		default:
			return false
		}
	}
	return true
}

func allEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
