package dataprocessing

import (
	"cmp"
	"slices"

	"phtourism/pkg/contracts/domain"
)

// ToWide groups long records by (year, division) into one WideRecord per group.
// A traveler type with no record reads as zero. Display names come from the
// first record seen for the group. Output is ordered by year, then division id.
func ToWide(records []domain.TravelRecord) []domain.WideRecord {
	index := make(map[rowKey]int, len(records)/3+1)
	wide := make([]domain.WideRecord, 0, len(records)/3+1)

	for _, rec := range records {
		key := rowKey{year: rec.Year, id: rec.DivisionID}
		pos, ok := index[key]
		if !ok {
			pos = len(wide)
			index[key] = pos
			wide = append(wide, domain.WideRecord{
				Year:         rec.Year,
				DivisionID:   rec.DivisionID,
				Region:       rec.Region,
				Province:     rec.Province,
				Municipality: rec.Municipality,
			})
		}
		wide[pos].Set(rec.TravelerType, rec.Count)
	}

	slices.SortStableFunc(wide, compareWide)
	return wide
}

// ToLong unfolds wide records back into long form, one record per observed
// traveler type, in domestic, foreign, overseas order.
func ToLong(wide []domain.WideRecord) []domain.TravelRecord {
	records := make([]domain.TravelRecord, 0, len(wide)*3)
	for _, w := range wide {
		for _, t := range domain.ConcreteTravelerTypes() {
			if !w.Observed(t) {
				continue
			}
			records = append(records, domain.TravelRecord{
				Year:         w.Year,
				DivisionID:   w.DivisionID,
				Region:       w.Region,
				Province:     w.Province,
				Municipality: w.Municipality,
				TravelerType: t,
				Count:        w.Count(t),
			})
		}
	}
	return records
}

func compareWide(a, b domain.WideRecord) int {
	if c := cmp.Compare(a.Year, b.Year); c != 0 {
		return c
	}
	return cmp.Compare(a.DivisionID, b.DivisionID)
}
