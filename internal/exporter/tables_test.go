package exporter

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phtourism/internal/shared/testutil"
	"phtourism/internal/views"
	"phtourism/pkg/contracts/domain"
)

func fixtureViews(t *testing.T, filters views.Filters) (*views.Dataset, *views.Views) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	ds, err := views.LoadDataset(context.Background(), testutil.CountsRows(t), []byte(testutil.Topology), views.Options{Logger: logger})
	require.NoError(t, err)
	v, err := views.Build(ds, filters)
	require.NoError(t, err)
	return ds, v
}

func TestTotalsTable(t *testing.T) {
	_, v := fixtureViews(t, views.Filters{})

	table := TotalsTable(v)
	assert.Equal(t, TableTotals, table.Name)
	assert.Equal(t, [][]string{
		{"domestic", "1020"},
		{"foreign", "134"},
		{"overseas", "13"},
		{"total", "1167"},
	}, table.Records)
}

func TestRankingTable(t *testing.T) {
	_, v := fixtureViews(t, views.Filters{})

	table := RankingTable(v)
	require.Len(t, table.Records, 4)
	assert.Equal(t, []string{"1", "0201", "Gamma, South", "Region II", "South", "Gamma", "total",
		"699", "600", "90", "9", "true"}, table.Records[0])
	assert.Equal(t, "9999", table.Records[3][1])
	assert.Equal(t, "false", table.Records[3][11])
	assert.Len(t, table.Headers, len(table.Records[0]))
}

func TestTrendTable(t *testing.T) {
	_, v := fixtureViews(t, views.Filters{})

	table := TrendTable(v)
	assert.Equal(t, []string{"id", "label", "region", "province", "muni_city", "traveler",
		"2019", "2021", "2023", "change_pct"}, table.Headers)

	byID := make(map[string][]string)
	for _, r := range table.Records {
		byID[r[0]] = r
	}
	assert.Equal(t, []string{"0101", "Alpha, North", "Region I", "North", "Alpha", "total",
		"111", "50", "172", "+54.95"}, byID["0101"])
	assert.Equal(t, "", byID["0102"][7], "missing years are blank")
	assert.Equal(t, "-", byID["9999"][9])
}

func TestUnmatchedTable(t *testing.T) {
	_, v := fixtureViews(t, views.Filters{})

	assert.Equal(t, [][]string{{"9999", "Ghost, South"}}, UnmatchedTable(v).Records)
}

func TestIssuesTable(t *testing.T) {
	ds, _ := fixtureViews(t, views.Filters{})

	table := IssuesTable(ds.Issues())
	require.Len(t, table.Records, testutil.FixtureMalformedRows)
	assert.Equal(t, "abc", table.Records[0][2])
}

func TestViewTable(t *testing.T) {
	_, v := fixtureViews(t, views.Filters{Traveler: domain.TravelerForeign})

	for _, name := range []string{"", "rankings", "totals", "trends", "unmatched"} {
		_, ok := ViewTable(v, name)
		assert.True(t, ok, name)
	}
	_, ok := ViewTable(v, "issues")
	assert.False(t, ok)
}

func TestCSVWriter_Write(t *testing.T) {
	_, v := fixtureViews(t, views.Filters{Years: []int{2023}, Traveler: domain.TravelerDomestic})

	var buf bytes.Buffer
	err := NewCSVWriter().Write(&buf, WriteOptions{Table: TotalsTable(v), BOMPrefix: true})
	require.NoError(t, err)

	out := buf.Bytes()
	assert.Equal(t, utf8BOM, out[:3])
	assert.True(t, strings.HasPrefix(string(out[3:]), "traveler,total\ndomestic,570\nforeign,89\n"), string(out))
}

func TestCSVWriter_WriteFile(t *testing.T) {
	_, v := fixtureViews(t, views.Filters{})
	path := t.TempDir() + "/nested/rankings.csv"

	require.NoError(t, NewCSVWriter().WriteFile(path, WriteOptions{Table: RankingTable(v)}))
	assert.FileExists(t, path)
}
