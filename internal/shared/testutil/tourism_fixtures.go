package testutil

import (
	"encoding/csv"
	"strings"
	"testing"

	"phtourism/pkg/contracts/domain"
)

// CountsCSV is a small tourism counts table. Division 9999 has no geometry in
// Topology and the last row carries a non-numeric count.
const CountsCSV = `year,correspondence_code_mod,region,province,muni_city,domestic_travelers,foreign_travelers,overseas_filipinos
2019,0101,Region I,North,Alpha,100,10,1
2021,0101,Region I,North,Alpha,50,0,0
2023,0101,Region I,North,Alpha,150,20,2
2019,0102,Region I,North,Beta,0,5,0
2023,0102,Region I,North,Beta,80,5,1
2019,0201,Region II,South,Gamma,300,30,3
2023,0201,Region II,South,Gamma,300,60,6
2023,9999,Region II,South,Ghost,40,4,0
2023,0301,Region II,South,Broken,abc,1,1
`

// Fixture expectations derived from CountsCSV.
const (
	FixtureValidRows     = 8
	FixtureMalformedRows = 1
	FixtureUnmatchedID   = "9999"

	FixtureDomesticTotal = 1020.0
	FixtureForeignTotal  = 134.0
	FixtureOverseasTotal = 13.0
	FixtureGrandTotal    = 1167.0
)

// Topology is a TopoJSON document with two provinces and three municipalities
// laid out as unit squares along the x axis:
//
//	0101 [0,1]  0102 [1,2]  | 0201 [2,3]
//	   province 01          | province 02
//
// Only the arc at x=2 separates different provinces.
const Topology = `{
  "type": "Topology",
  "arcs": [
    [[1,0],[1,1]],
    [[2,0],[2,1]],
    [[1,0],[0,0],[0,1],[1,1]],
    [[1,1],[2,1]],
    [[2,0],[1,0]],
    [[2,1],[3,1],[3,0],[2,0]]
  ],
  "objects": {
    "land": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Polygon", "arcs": [[2,3,5,4]]}
      ]
    },
    "provinces": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Polygon", "arcs": [[2,3,-2,4]], "properties": {"CC_1": "01", "NAME_1": "North"}},
        {"type": "Polygon", "arcs": [[1,5]], "properties": {"CC_1": "02", "NAME_1": "South"}}
      ]
    },
    "municipalities": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Polygon", "arcs": [[-1,2]], "properties": {"CC_2_MOD": "0101", "CC_1": "01", "NAME_2": "Alpha"}},
        {"type": "Polygon", "arcs": [[3,-2,4,0]], "properties": {"CC_2_MOD": "0102", "CC_1": "01", "NAME_2": "Beta"}},
        {"type": "Polygon", "arcs": [[1,5]], "properties": {"CC_2_MOD": "0201", "CC_1": "02", "NAME_2": "Gamma"}}
      ]
    }
  }
}`

// CountsRows parses CountsCSV into raw rows.
func CountsRows(t testing.TB) []domain.RawRow {
	t.Helper()
	return ParseRows(t, CountsCSV)
}

// ParseRows turns a CSV document into raw rows keyed by the header.
func ParseRows(t testing.TB, document string) []domain.RawRow {
	t.Helper()

	records, err := csv.NewReader(strings.NewReader(document)).ReadAll()
	if err != nil {
		t.Fatalf("parse fixture csv: %v", err)
	}
	if len(records) == 0 {
		return nil
	}

	header := records[0]
	rows := make([]domain.RawRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(domain.RawRow, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}
