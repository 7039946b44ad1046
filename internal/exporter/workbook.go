package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/xuri/excelize/v2"

	"phtourism/internal/dataprocessing"
	"phtourism/internal/views"
)

const defaultSheet = "Sheet1"

// WorkbookWriter renders views into an XLSX workbook.
type WorkbookWriter struct {
	logger *slog.Logger
}

// NewWorkbookWriter creates a workbook writer
func NewWorkbookWriter(logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{logger: logger.With(slog.String("component", "workbook_writer"))}
}

// Write renders the Totals, Rankings, Trends, Unmatched and Issues sheets to out.
// The trend sheet carries a line sparkline per series over its year columns.
func (w *WorkbookWriter) Write(out io.Writer, v *views.Views, issues []*dataprocessing.MalformedRecordError) error {
	f, err := w.Build(v, issues)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Build assembles the workbook in memory.
func (w *WorkbookWriter) Build(v *views.Views, issues []*dataprocessing.MalformedRecordError) (*excelize.File, error) {
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	tables := []Table{TotalsTable(v), RankingTable(v), TrendTable(v), UnmatchedTable(v), IssuesTable(issues)}
	for _, t := range tables {
		if err := writeSheet(f, t, header); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := addTrendSparklines(f, v); err != nil {
		f.Close()
		return nil, err
	}

	if err := f.DeleteSheet(defaultSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(TableRankings); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	w.logger.Info("workbook built",
		slog.Int("rankings", len(v.RankedDestinations)),
		slog.Int("trends", len(v.TrendTable)),
		slog.Int("issues", len(issues)))
	return f, nil
}

func writeSheet(f *excelize.File, t Table, headerStyle int) error {
	if _, err := f.NewSheet(t.Name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", t.Name, err)
	}

	headers := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(t.Name, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write %s headers: %w", t.Name, err)
	}
	if len(t.Headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(t.Headers), 1)
		if err := f.SetCellStyle(t.Name, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to style %s headers: %w", t.Name, err)
		}
	}

	for i, record := range t.Records {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := cellValues(t.Headers, record)
		if err := f.SetSheetRow(t.Name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", t.Name, i+1, err)
		}
	}
	return nil
}

// textColumns are never converted to numbers. Identifiers keep leading zeros.
var textColumns = map[string]bool{
	"id": true, "label": true, "region": true, "province": true, "muni_city": true,
	"traveler": true, "column": true, "value": true, "reason": true,
}

// cellValues stores numeric text as numbers so spreadsheets can chart it.
func cellValues(headers, record []string) []any {
	row := make([]any, len(record))
	for i, s := range record {
		row[i] = s
		if s == "" || (i < len(headers) && textColumns[headers[i]]) {
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			row[i] = f
		}
	}
	return row
}

// addTrendSparklines places a sparkline after the change column of each
// series row, spanning the year columns.
func addTrendSparklines(f *excelize.File, v *views.Views) error {
	years := TrendYears(v.TrendTable)
	if len(v.TrendTable) == 0 || len(years) < 2 {
		return nil
	}

	const firstYearCol = 7
	lastYearCol := firstYearCol + len(years) - 1
	sparkCol := lastYearCol + 2

	header, _ := excelize.CoordinatesToCellName(sparkCol, 1)
	if err := f.SetCellValue(TableTrends, header, "trend"); err != nil {
		return fmt.Errorf("failed to write sparkline header: %w", err)
	}

	location := make([]string, 0, len(v.TrendTable))
	ranges := make([]string, 0, len(v.TrendTable))
	for i := range v.TrendTable {
		row := i + 2
		from, _ := excelize.CoordinatesToCellName(firstYearCol, row)
		to, _ := excelize.CoordinatesToCellName(lastYearCol, row)
		at, _ := excelize.CoordinatesToCellName(sparkCol, row)
		location = append(location, at)
		ranges = append(ranges, fmt.Sprintf("%s!%s:%s", TableTrends, from, to))
	}

	if err := f.AddSparkline(TableTrends, &excelize.SparklineOptions{
		Location: location,
		Range:    ranges,
		Type:     "line",
		Markers:  true,
	}); err != nil {
		return fmt.Errorf("failed to add sparklines: %w", err)
	}
	return nil
}
