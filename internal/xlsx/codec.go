// Package xlsx reads and writes Schedule of Works workbooks.
//
// Parsing is best-effort by design: only the first sheet is read, columns are
// located by header text, unknown columns are ignored and malformed numeric
// cells coerce to zero. The pipeline downstream flags suspicious rows rather
// than rejecting the upload.
package xlsx

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"worksched/internal/core"
)

// ExportSheetName is the sheet written by WriteSchedule.
const ExportSheetName = "Schedule"

// Canonical upload column headers. Matching is case-insensitive on the
// trimmed header text.
const (
	colCode         = "CODE"
	colDescription  = "DESCRIPTION"
	colBaseRate     = "BASE RATE"
	colContractRate = "CONTRACT RATE UNIT"
	colUnit         = "UNIT"
	colQty          = "QTY"
	colTotal        = "TOTAL"
	colLocation     = "LOCATION"
	colComments     = "COMMENTS"
)

// ParseError reports an upload that is not a readable workbook. It aborts the
// upload before any job is created.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse schedule: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseSchedule reads the first sheet of an XLSX stream into ordered rows.
// Rows before any recognizable content (the header row itself) are not
// returned; a sheet with a header and no data yields an empty slice.
func ParseSchedule(r io.Reader) ([]core.SheetRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &ParseError{Err: fmt.Errorf("workbook has no sheets")}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := headerIndex(rows[0])
	out := make([]core.SheetRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cell := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		out = append(out, core.SheetRow{
			Code:         cell(colCode),
			Description:  cell(colDescription),
			BaseRate:     parseNumber(cell(colBaseRate)),
			ContractRate: parseNumber(cell(colContractRate)),
			Unit:         cell(colUnit),
			Qty:          parseNumber(cell(colQty)),
			Total:        parseNumber(cell(colTotal)),
			Location:     cell(colLocation),
			Comments:     cell(colComments),
		})
	}
	return out, nil
}

// headerIndex maps canonical column names to their positions in the header
// row. Later duplicates do not displace the first occurrence.
func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToUpper(strings.TrimSpace(h))
		if name == "" {
			continue
		}
		if _, seen := cols[name]; !seen {
			cols[name] = i
		}
	}
	return cols
}

// parseNumber coerces a cell to a float, treating anything unparseable as
// zero. Thousands separators are stripped first.
func parseNumber(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Cell is one key/value pair of an export record.
type Cell struct {
	Key   string
	Value any
}

// Record is an ordered export row. Using a slice rather than a map keeps the
// caller in control of column order.
type Record []Cell

// WriteSchedule serializes records into a single-sheet workbook named
// "Schedule". Columns appear in the order their keys are first introduced by
// the records; a record missing a key leaves that cell empty.
func WriteSchedule(records []Record, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ExportSheetName); err != nil {
		return fmt.Errorf("name export sheet: %w", err)
	}

	var headers []string
	seen := make(map[string]int)
	for _, rec := range records {
		for _, c := range rec {
			if _, ok := seen[c.Key]; !ok {
				seen[c.Key] = len(headers)
				headers = append(headers, c.Key)
			}
		}
	}

	headerRow := make([]any, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := setRow(f, 1, headerRow); err != nil {
		return err
	}

	for i, rec := range records {
		row := make([]any, len(headers))
		for _, c := range rec {
			row[seen[c.Key]] = c.Value
		}
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(ExportSheetName, cell, &values); err != nil {
		return fmt.Errorf("set row %d: %w", row, err)
	}
	return nil
}
