package exporter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"phtourism/internal/shared/testutil"
	"phtourism/internal/views"
)

func TestWorkbookWriter_Write(t *testing.T) {
	ds, v := fixtureViews(t, views.Filters{})
	logger, handler := testutil.NewTestLogger(t)

	var buf bytes.Buffer
	require.NoError(t, NewWorkbookWriter(logger).Write(&buf, v, ds.Issues()))
	assert.True(t, handler.ContainsMessage("workbook built"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{TableTotals, TableRankings, TableTrends, TableUnmatched, TableIssues}, f.GetSheetList())

	total, err := f.GetCellValue(TableTotals, "B5")
	require.NoError(t, err)
	assert.Equal(t, "1167", total)

	id, err := f.GetCellValue(TableRankings, "B2")
	require.NoError(t, err)
	assert.Equal(t, "0201", id, "identifiers keep leading zeros")

	header, err := f.GetCellValue(TableTrends, "K1")
	require.NoError(t, err)
	assert.Equal(t, "trend", header)

	issues, err := f.GetRows(TableIssues)
	require.NoError(t, err)
	assert.Len(t, issues, 1+testutil.FixtureMalformedRows)
}

func TestWorkbookWriter_EmptySelection(t *testing.T) {
	_, v := fixtureViews(t, views.Filters{Years: []int{1999}})

	f, err := NewWorkbookWriter(nil).Build(v, nil)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(TableRankings)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}

func TestCellValues(t *testing.T) {
	row := cellValues([]string{"id", "total", "change_pct", "label"}, []string{"0101", "12.5", "-", "100"})
	assert.Equal(t, []any{"0101", 12.5, "-", "100"}, row)
}
