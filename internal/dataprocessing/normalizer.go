package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"phtourism/internal/schema"
	"phtourism/pkg/contracts/domain"
)

// ErrMalformedRecord is matched by every row-level normalization failure.
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError describes why a raw row was skipped.
type MalformedRecordError struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (e *MalformedRecordError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("row %d: column %s: %s (value %q)", e.Row, e.Column, e.Reason, e.Value)
}

// Is lets callers match with errors.Is(err, ErrMalformedRecord).
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// NormalizeResult is the outcome of normalizing a table of raw rows.
type NormalizeResult struct {
	// Records holds three entries per accepted row: domestic, foreign, overseas.
	Records []domain.TravelRecord

	// Accepted and Skipped always add up to the number of input rows.
	Accepted int
	Skipped  int

	// Issues lists skipped rows up to the configured cap.
	Issues []*MalformedRecordError
}

// NormalizerConfig holds configuration options for the Normalizer.
type NormalizerConfig struct {
	Columns   schema.Counts // Column names of the counts table
	MaxIssues int           // Maximum number of skipped rows kept in the result
}

// Normalizer turns raw wide rows into long-form travel records.
type Normalizer struct {
	logger    *slog.Logger
	columns   schema.Counts
	maxIssues int
}

// NewNormalizer creates a normalizer. Zero config values fall back to the
// default schema mapping and an issue cap of 100.
func NewNormalizer(logger *slog.Logger, config NormalizerConfig) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Columns == (schema.Counts{}) {
		config.Columns = schema.Default().Counts
	}
	if config.MaxIssues <= 0 {
		config.MaxIssues = 100
	}

	return &Normalizer{
		logger:    logger.With(slog.String("component", "normalizer")),
		columns:   config.Columns,
		maxIssues: config.MaxIssues,
	}
}

type rowKey struct {
	year int
	id   string
}

// Normalize unfolds every valid row into three TravelRecords. Rows that fail
// parsing are skipped and reported; they never abort the load.
func (n *Normalizer) Normalize(ctx context.Context, rows []domain.RawRow) NormalizeResult {
	result := NormalizeResult{
		Records: make([]domain.TravelRecord, 0, len(rows)*3),
	}
	seen := make(map[rowKey]int, len(rows))

	for i, row := range rows {
		rowNum := i + 1
		records, err := n.normalizeRow(rowNum, row)
		if err == nil {
			key := rowKey{year: records[0].Year, id: records[0].DivisionID}
			if first, dup := seen[key]; dup {
				err = &MalformedRecordError{
					Row:    rowNum,
					Column: n.columns.DivisionID,
					Value:  key.id,
					Reason: fmt.Sprintf("duplicate of row %d for year %d", first, key.year),
				}
			} else {
				seen[key] = rowNum
			}
		}

		if err != nil {
			result.Skipped++
			if len(result.Issues) < n.maxIssues {
				result.Issues = append(result.Issues, err)
			}
			n.logger.WarnContext(ctx, "skipping malformed row",
				slog.Int("row", rowNum),
				slog.String("error", err.Error()))
			continue
		}

		result.Accepted++
		result.Records = append(result.Records, records...)
	}

	n.logger.InfoContext(ctx, "normalized tourism rows",
		slog.Int("rows", len(rows)),
		slog.Int("accepted", result.Accepted),
		slog.Int("skipped", result.Skipped),
		slog.Int("records", len(result.Records)))

	return result
}

func (n *Normalizer) normalizeRow(rowNum int, row domain.RawRow) ([]domain.TravelRecord, *MalformedRecordError) {
	cols := n.columns

	for _, col := range []string{cols.Region, cols.Province, cols.Municipality} {
		if _, ok := row[col]; !ok {
			return nil, &MalformedRecordError{Row: rowNum, Column: col, Reason: "missing column"}
		}
	}

	yearText, err := requiredCell(rowNum, row, cols.Year)
	if err != nil {
		return nil, err
	}
	year, convErr := strconv.Atoi(yearText)
	if convErr != nil {
		return nil, &MalformedRecordError{Row: rowNum, Column: cols.Year, Value: yearText, Reason: "year is not an integer"}
	}

	id, err := requiredCell(rowNum, row, cols.DivisionID)
	if err != nil {
		return nil, err
	}

	base := domain.TravelRecord{
		Year:         year,
		DivisionID:   id,
		Region:       strings.TrimSpace(row[cols.Region]),
		Province:     strings.TrimSpace(row[cols.Province]),
		Municipality: strings.TrimSpace(row[cols.Municipality]),
	}

	countCols := []struct {
		column   string
		traveler domain.TravelerType
	}{
		{cols.Domestic, domain.TravelerDomestic},
		{cols.Foreign, domain.TravelerForeign},
		{cols.Overseas, domain.TravelerOverseas},
	}

	records := make([]domain.TravelRecord, 0, len(countCols))
	for _, c := range countCols {
		count, err := parseCount(rowNum, row, c.column)
		if err != nil {
			return nil, err
		}
		rec := base
		rec.TravelerType = c.traveler
		rec.Count = count
		records = append(records, rec)
	}
	return records, nil
}

func requiredCell(rowNum int, row domain.RawRow, column string) (string, *MalformedRecordError) {
	raw, ok := row[column]
	if !ok {
		return "", &MalformedRecordError{Row: rowNum, Column: column, Reason: "missing column"}
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", &MalformedRecordError{Row: rowNum, Column: column, Reason: "empty value"}
	}
	return value, nil
}

// parseCount coerces a count cell. Thousands separators are accepted.
func parseCount(rowNum int, row domain.RawRow, column string) (float64, *MalformedRecordError) {
	text, err := requiredCell(rowNum, row, column)
	if err != nil {
		return 0, err
	}

	v, convErr := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	switch {
	case convErr != nil:
		return 0, &MalformedRecordError{Row: rowNum, Column: column, Value: text, Reason: "count is not numeric"}
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, &MalformedRecordError{Row: rowNum, Column: column, Value: text, Reason: "count is not finite"}
	case v < 0:
		return 0, &MalformedRecordError{Row: rowNum, Column: column, Value: text, Reason: "count is negative"}
	}
	return v, nil
}
