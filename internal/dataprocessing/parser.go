package dataprocessing

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"phtourism/pkg/contracts/domain"
)

// ErrHeaderNotFound means no table header containing the key column was found.
var ErrHeaderNotFound = errors.New("header row not found")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV decodes a counts table. The first record is the header; a UTF-8 BOM
// is ignored. Short rows are kept and simply lack the trailing columns.
func ReadCSV(r io.Reader) ([]domain.RawRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return []domain.RawRow{}, nil
	}
	return tableRows(records[0], records[1:]), nil
}

// ReadWorkbook decodes a counts table from an XLSX document. Sheets are scanned
// in order and the first row of any sheet that contains keyColumn is taken as
// the header.
func ReadWorkbook(r io.Reader, keyColumn string) ([]domain.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if table, err := ReadRecords(rows, keyColumn); err == nil {
			return table, nil
		}
	}
	return nil, fmt.Errorf("workbook has no column %q: %w", keyColumn, ErrHeaderNotFound)
}

// ReadRecords decodes a counts table from split records such as a spreadsheet
// range. The first record containing keyColumn is the header and blank records
// after it are dropped.
func ReadRecords(records [][]string, keyColumn string) ([]domain.RawRow, error) {
	for i, row := range records {
		if containsColumn(row, keyColumn) {
			return tableRows(row, dropBlankRows(records[i+1:])), nil
		}
	}
	return nil, fmt.Errorf("no column %q: %w", keyColumn, ErrHeaderNotFound)
}

// HeaderOf returns the union of column names used by the rows.
func HeaderOf(rows []domain.RawRow) map[string]struct{} {
	cols := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			cols[k] = struct{}{}
		}
	}
	return cols
}

func tableRows(header []string, records [][]string) []domain.RawRow {
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
	}

	rows := make([]domain.RawRow, 0, len(records))
	for _, rec := range records {
		row := make(domain.RawRow, len(names))
		for i, name := range names {
			if name == "" || i >= len(rec) {
				continue
			}
			row[name] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows
}

func containsColumn(row []string, column string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) == column {
			return true
		}
	}
	return false
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}
