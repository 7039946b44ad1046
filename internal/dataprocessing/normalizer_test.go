package dataprocessing

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phtourism/internal/schema"
	"phtourism/internal/shared/testutil"
	"phtourism/pkg/contracts/domain"
)

func validRow() domain.RawRow {
	return domain.RawRow{
		"year":                    "2019",
		"correspondence_code_mod": "0101",
		"region":                  "Region I",
		"province":                "North",
		"muni_city":               "Alpha",
		"domestic_travelers":      "100",
		"foreign_travelers":       "10",
		"overseas_filipinos":      "1",
	}
}

func TestNormalizer_UnfoldsRowIntoThreeRecords(t *testing.T) {
	n := NewNormalizer(nil, NormalizerConfig{})

	result := n.Normalize(context.Background(), []domain.RawRow{validRow()})

	require.Len(t, result.Records, 3)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 0, result.Skipped)

	base := domain.TravelRecord{Year: 2019, DivisionID: "0101", Region: "Region I", Province: "North", Municipality: "Alpha"}
	want := []domain.TravelRecord{base, base, base}
	want[0].TravelerType, want[0].Count = domain.TravelerDomestic, 100
	want[1].TravelerType, want[1].Count = domain.TravelerForeign, 10
	want[2].TravelerType, want[2].Count = domain.TravelerOverseas, 1
	assert.Equal(t, want, result.Records)
}

func TestNormalizer_MalformedRows(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(domain.RawRow)
		wantColumn string
		wantReason string
	}{
		{
			name:       "non-numeric count",
			mutate:     func(r domain.RawRow) { r["domestic_travelers"] = "abc" },
			wantColumn: "domestic_travelers",
			wantReason: "count is not numeric",
		},
		{
			name:       "negative count",
			mutate:     func(r domain.RawRow) { r["foreign_travelers"] = "-3" },
			wantColumn: "foreign_travelers",
			wantReason: "count is negative",
		},
		{
			name:       "nan count",
			mutate:     func(r domain.RawRow) { r["overseas_filipinos"] = "NaN" },
			wantColumn: "overseas_filipinos",
			wantReason: "count is not finite",
		},
		{
			name:       "missing count column",
			mutate:     func(r domain.RawRow) { delete(r, "overseas_filipinos") },
			wantColumn: "overseas_filipinos",
			wantReason: "missing column",
		},
		{
			name:       "empty division id",
			mutate:     func(r domain.RawRow) { r["correspondence_code_mod"] = "  " },
			wantColumn: "correspondence_code_mod",
			wantReason: "empty value",
		},
		{
			name:       "fractional year",
			mutate:     func(r domain.RawRow) { r["year"] = "2019.5" },
			wantColumn: "year",
			wantReason: "year is not an integer",
		},
		{
			name:       "missing region column",
			mutate:     func(r domain.RawRow) { delete(r, "region") },
			wantColumn: "region",
			wantReason: "missing column",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			n := NewNormalizer(logger, NormalizerConfig{})

			bad := validRow()
			tt.mutate(bad)
			good := validRow()
			good["year"] = "2021"

			result := n.Normalize(context.Background(), []domain.RawRow{bad, good})

			assert.Equal(t, 1, result.Skipped)
			assert.Equal(t, 1, result.Accepted)
			assert.Len(t, result.Records, 3)
			require.Len(t, result.Issues, 1)

			issue := result.Issues[0]
			assert.Equal(t, 1, issue.Row)
			assert.Equal(t, tt.wantColumn, issue.Column)
			assert.Equal(t, tt.wantReason, issue.Reason)
			assert.True(t, errors.Is(issue, ErrMalformedRecord))

			testutil.AssertLogContains(t, logs, slog.LevelWarn, "skipping malformed row")
		})
	}
}

func TestNormalizer_Coercion(t *testing.T) {
	n := NewNormalizer(nil, NormalizerConfig{})

	row := validRow()
	row["year"] = " 2023 "
	row["domestic_travelers"] = "1,234,567"
	row["municipality"] = "ignored"
	row["muni_city"] = "  Alpha  "

	result := n.Normalize(context.Background(), []domain.RawRow{row})
	require.Len(t, result.Records, 3)
	assert.Equal(t, 2023, result.Records[0].Year)
	assert.Equal(t, 1234567.0, result.Records[0].Count)
	assert.Equal(t, "Alpha", result.Records[0].Municipality)
}

func TestNormalizer_DuplicateKeyIsMalformed(t *testing.T) {
	n := NewNormalizer(nil, NormalizerConfig{})

	result := n.Normalize(context.Background(), []domain.RawRow{validRow(), validRow()})

	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0].Reason, "duplicate of row 1")
}

func TestNormalizer_CustomColumnsAndIssueCap(t *testing.T) {
	cols := schema.Default().Counts
	cols.DivisionID = "psgc"
	n := NewNormalizer(nil, NormalizerConfig{Columns: cols, MaxIssues: 2})

	rows := make([]domain.RawRow, 0, 5)
	for i := 0; i < 5; i++ {
		rows = append(rows, validRow())
	}

	result := n.Normalize(context.Background(), rows)
	assert.Equal(t, 5, result.Skipped, "every row lacks the renamed id column")
	assert.Len(t, result.Issues, 2)
	assert.Empty(t, result.Records)
}

func TestNormalizer_Fixture(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	n := NewNormalizer(logger, NormalizerConfig{})

	result := n.Normalize(context.Background(), testutil.CountsRows(t))

	assert.Equal(t, testutil.FixtureValidRows, result.Accepted)
	assert.Equal(t, testutil.FixtureMalformedRows, result.Skipped)
	assert.Len(t, result.Records, testutil.FixtureValidRows*3)
	assert.Equal(t, testutil.FixtureGrandTotal, Sum(result.Records, func(r domain.TravelRecord) float64 { return r.Count }))
	assert.True(t, logs.ContainsAttr("skipped", int64(1)))
	assert.True(t, logs.ContainsAttr("component", "normalizer"))
}
