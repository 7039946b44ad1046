package exporter

import (
	"slices"
	"strconv"

	"phtourism/internal/dataprocessing"
	"phtourism/internal/views"
	"phtourism/pkg/contracts/domain"
)

// Table names double as sheet names and as the csv view selector.
const (
	TableTotals    = "Totals"
	TableRankings  = "Rankings"
	TableTrends    = "Trends"
	TableUnmatched = "Unmatched"
	TableIssues    = "Issues"
)

// TotalsTable lists the filtered totals per traveler type, grand total last.
func TotalsTable(v *views.Views) Table {
	t := Table{Name: TableTotals, Headers: []string{"traveler", "total"}}
	for _, tt := range domain.AllTravelerTypes() {
		t.Records = append(t.Records, []string{tt.String(), formatCount(v.TotalsByTraveler[tt])})
	}
	return t
}

// RankingTable lists every ranked destination with its traveler breakdown.
func RankingTable(v *views.Views) Table {
	t := Table{
		Name: TableRankings,
		Headers: []string{"rank", "id", "label", "region", "province", "muni_city", "traveler",
			"total", "domestic", "foreign", "overseas", "matched"},
		Records: make([][]string, 0, len(v.RankedDestinations)),
	}
	for _, r := range v.RankedDestinations {
		t.Records = append(t.Records, []string{
			strconv.Itoa(r.Rank),
			r.DivisionID,
			r.Label,
			r.Region,
			r.Province,
			r.Municipality,
			r.TravelerType.String(),
			formatCount(r.Total),
			formatCount(r.Breakdown.Domestic),
			formatCount(r.Breakdown.Foreign),
			formatCount(r.Breakdown.Overseas),
			formatBool(r.Matched),
		})
	}
	return t
}

// TrendYears returns the sorted union of the years observed in the series.
func TrendYears(series []domain.TrendSeries) []int {
	var years []int
	for _, s := range series {
		for _, p := range s.Points {
			years = append(years, p.Year)
		}
	}
	slices.Sort(years)
	return slices.Compact(years)
}

// TrendTable lists one row per series with a column per observed year and the
// percentage change between the first and last reference years. Years a
// division did not report are left blank.
func TrendTable(v *views.Views) Table {
	years := TrendYears(v.TrendTable)

	headers := []string{"id", "label", "region", "province", "muni_city", "traveler"}
	for _, y := range years {
		headers = append(headers, strconv.Itoa(y))
	}
	headers = append(headers, "change_pct")

	t := Table{Name: TableTrends, Headers: headers, Records: make([][]string, 0, len(v.TrendTable))}
	for _, s := range v.TrendTable {
		record := []string{s.DivisionID, s.Label, s.Region, s.Province, s.Municipality, s.TravelerType.String()}
		byYear := make(map[int]float64, len(s.Points))
		for _, p := range s.Points {
			byYear[p.Year] = p.Count
		}
		for _, y := range years {
			if c, ok := byYear[y]; ok {
				record = append(record, formatCount(c))
			} else {
				record = append(record, "")
			}
		}
		record = append(record, s.PercChange.String())
		t.Records = append(t.Records, record)
	}
	return t
}

// UnmatchedTable lists ranked divisions that have no geometry.
func UnmatchedTable(v *views.Views) Table {
	labels := make(map[string]string, len(v.Unmatched))
	for _, r := range v.RankedDestinations {
		labels[r.DivisionID] = r.Label
	}
	t := Table{Name: TableUnmatched, Headers: []string{"id", "label"}, Records: make([][]string, 0, len(v.Unmatched))}
	for _, id := range v.Unmatched {
		t.Records = append(t.Records, []string{id, labels[id]})
	}
	return t
}

// IssuesTable lists the malformed rows skipped during normalization.
func IssuesTable(issues []*dataprocessing.MalformedRecordError) Table {
	t := Table{Name: TableIssues, Headers: []string{"row", "column", "value", "reason"}, Records: make([][]string, 0, len(issues))}
	for _, issue := range issues {
		t.Records = append(t.Records, []string{strconv.Itoa(issue.Row), issue.Column, issue.Value, issue.Reason})
	}
	return t
}

// ViewTable selects a table of v by its lowercase name: totals, rankings or trends.
func ViewTable(v *views.Views, name string) (Table, bool) {
	switch name {
	case "totals":
		return TotalsTable(v), true
	case "rankings", "":
		return RankingTable(v), true
	case "trends":
		return TrendTable(v), true
	case "unmatched":
		return UnmatchedTable(v), true
	}
	return Table{}, false
}
