package dataprocessing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"phtourism/internal/shared/testutil"
	"phtourism/pkg/contracts/domain"
)

func TestReadCSV(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("\xEF\xBB\xBF" + testutil.CountsCSV))
	require.NoError(t, err)

	require.Len(t, rows, 9)
	assert.Equal(t, "2019", rows[0]["year"], "BOM must not leak into the first header")
	assert.Equal(t, "0101", rows[0]["correspondence_code_mod"])
	assert.Equal(t, "abc", rows[8]["domestic_travelers"])
}

func TestReadCSV_ShortRowLacksColumns(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("year,correspondence_code_mod,region\n2019,0101\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, ok := rows[0]["region"]
	assert.False(t, ok)
}

func TestReadCSV_Empty(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	// A cover sheet without the table, then the data sheet with a title row above the header.
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Tourism statistics"))
	_, err := f.NewSheet("Data")
	require.NoError(t, err)

	require.NoError(t, f.SetSheetRow("Data", "A1", &[]interface{}{"Municipal arrivals"}))
	header := []interface{}{"year", "correspondence_code_mod", "region", "province", "muni_city", "domestic_travelers", "foreign_travelers", "overseas_filipinos"}
	require.NoError(t, f.SetSheetRow("Data", "A2", &header))
	require.NoError(t, f.SetSheetRow("Data", "A3", &[]interface{}{2019, "0101", "Region I", "North", "Alpha", 100, 10, 1}))
	require.NoError(t, f.SetSheetRow("Data", "A5", &[]interface{}{2023, "0101", "Region I", "North", "Alpha", 150, 20, 2}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, err := ReadWorkbook(&buf, "correspondence_code_mod")
	require.NoError(t, err)
	require.Len(t, rows, 2, "blank rows are dropped")
	assert.Equal(t, "2019", rows[0]["year"])
	assert.Equal(t, "150", rows[1]["domestic_travelers"])

	result := NewNormalizer(nil, NormalizerConfig{}).Normalize(context.Background(), rows)
	assert.Equal(t, 2, result.Accepted)
}

func TestReadWorkbook_NoHeader(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "nothing here"))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	_, err := ReadWorkbook(&buf, "correspondence_code_mod")
	assert.ErrorIs(t, err, ErrHeaderNotFound)
}

func TestHeaderOf(t *testing.T) {
	cols := HeaderOf([]domain.RawRow{{"a": "1"}, {"b": "2"}})
	assert.Len(t, cols, 2)
	assert.Contains(t, cols, "a")
}

func TestReadRecords(t *testing.T) {
	records := [][]string{
		{"Tourism counts"},
		{"year", "correspondence_code_mod", "domestic_travelers"},
		{"2019", "0101", "100"},
		{"", ""},
		{"2023", "0101"},
	}

	rows, err := ReadRecords(records, "correspondence_code_mod")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.RawRow{"year": "2019", "correspondence_code_mod": "0101", "domestic_travelers": "100"}, rows[0])
	assert.NotContains(t, rows[1], "domestic_travelers")

	_, err = ReadRecords(records, "missing")
	assert.ErrorIs(t, err, ErrHeaderNotFound)
}
