package views

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"phtourism/internal/dataprocessing"
	"phtourism/internal/geo"
	"phtourism/pkg/contracts/domain"
)

// ErrNoDataset is returned when Build is called without a dataset.
var ErrNoDataset = errors.New("no dataset")

// GeoJoinedCount is a matched division with its geometry and filtered counts.
type GeoJoinedCount struct {
	DivisionID string        `json:"id"`
	Label      string        `json:"label"`
	Feature    *geo.Feature  `json:"feature"`
	Counts     domain.Counts `json:"counts"`

	// Value is the count of the selected traveler type
	Value float64 `json:"value"`
}

// Views is the complete output for one set of filters. Every Build returns a
// fresh value; nested series and features are shared read-only with the dataset.
type Views struct {
	Filters          Filters                         `json:"filters"`
	ReferenceYears   []int                           `json:"reference_years"`
	TotalsByTraveler map[domain.TravelerType]float64 `json:"totals_by_traveler"`

	// RankedDestinations lists every division of the filtered subset, matched or not.
	RankedDestinations []domain.RankedDestination `json:"ranked_destinations"`

	// TrendTable follows the ranking order. It is region-filtered only so that
	// each series spans every year.
	TrendTable []domain.TrendSeries `json:"trend_table"`

	// GeoJoinedCounts holds matched divisions only.
	GeoJoinedCounts map[string]GeoJoinedCount `json:"geo_joined_counts"`

	// Unmatched lists ranked divisions that have no geometry.
	Unmatched []string `json:"unmatched"`
}

// BuildViews loads raw counts and geography and builds the views in one call.
func BuildViews(ctx context.Context, rawCounts []domain.RawRow, rawGeo []byte, filters Filters, opts Options) (*Views, error) {
	ds, err := LoadDataset(ctx, rawCounts, rawGeo, opts)
	if err != nil {
		return nil, err
	}
	return Build(ds, filters)
}

// Build derives every view from the dataset. It is pure: the same dataset and
// filters always produce an equal result, and concurrent calls are safe.
func Build(ds *Dataset, filters Filters) (*Views, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	f := filters.Normalized()
	if err := f.Validate(); err != nil {
		return nil, err
	}

	subset := make([]domain.WideRecord, 0, len(ds.wide))
	for _, w := range ds.wide {
		if f.matchYear(w.Year) && f.matchRegion(w.Region) {
			subset = append(subset, w)
		}
	}

	v := &Views{
		Filters:          f,
		ReferenceYears:   slices.Clone(ds.referenceYears),
		TotalsByTraveler: totals(subset),
		GeoJoinedCounts:  make(map[string]GeoJoinedCount),
		Unmatched:        []string{},
	}

	v.RankedDestinations = ds.rank(subset, f.Traveler)

	position := make(map[string]int, len(v.RankedDestinations))
	for i, r := range v.RankedDestinations {
		position[r.DivisionID] = i
		if !r.Matched {
			v.Unmatched = append(v.Unmatched, r.DivisionID)
			continue
		}
		feature, err := ds.index.FeatureFor(r.DivisionID)
		if err != nil {
			return nil, fmt.Errorf("join division %s: %w", r.DivisionID, err)
		}
		v.GeoJoinedCounts[r.DivisionID] = GeoJoinedCount{
			DivisionID: r.DivisionID,
			Label:      r.Label,
			Feature:    feature,
			Counts:     r.Breakdown,
			Value:      r.Total,
		}
	}
	slices.Sort(v.Unmatched)

	v.TrendTable = ds.trendTable(f, position)
	return v, nil
}

func totals(subset []domain.WideRecord) map[domain.TravelerType]float64 {
	out := make(map[domain.TravelerType]float64, 4)
	grand := decimal.Decimal{}
	for _, t := range domain.ConcreteTravelerTypes() {
		sum := decimal.Decimal{}
		for _, w := range subset {
			sum = sum.Add(decimal.NewFromFloat(w.Count(t)))
		}
		out[t] = sum.InexactFloat64()
		grand = grand.Add(sum)
	}
	out[domain.TravelerTotal] = grand.InexactFloat64()
	return out
}

func (ds *Dataset) rank(subset []domain.WideRecord, traveler domain.TravelerType) []domain.RankedDestination {
	values := dataprocessing.GroupSum(subset,
		func(w domain.WideRecord) string { return w.DivisionID },
		func(w domain.WideRecord) float64 { return w.Count(traveler) })

	breakdown := make(map[string]domain.Counts, len(values))
	for _, w := range subset {
		breakdown[w.DivisionID] = breakdown[w.DivisionID].Add(w.Counts())
	}
	latest := latestRows(subset)

	ranked := dataprocessing.Rank(values)
	out := make([]domain.RankedDestination, 0, len(ranked))
	for i, r := range ranked {
		meta := latest[r.Key]
		out = append(out, domain.RankedDestination{
			Rank:         i + 1,
			DivisionID:   r.Key,
			Label:        meta.Label(),
			Region:       meta.Region,
			Province:     meta.Province,
			Municipality: meta.Municipality,
			TravelerType: traveler,
			Total:        r.Value,
			Breakdown:    breakdown[r.Key],
			Matched:      ds.index.Has(r.Key),
		})
	}
	return out
}

// trendTable orders series by ranking position. A division is listed when
// any of its rows, in any year, matches the region filter. Labels come from
// its latest matching row. Divisions absent from the ranking follow in id order.
func (ds *Dataset) trendTable(f Filters, position map[string]int) []domain.TrendSeries {
	inRegion := make([]domain.WideRecord, 0, len(ds.wide))
	for _, w := range ds.wide {
		if f.matchRegion(w.Region) {
			inRegion = append(inRegion, w)
		}
	}
	latest := latestRows(inRegion)

	table := make([]domain.TrendSeries, 0)
	for _, s := range ds.series {
		meta, ok := latest[s.DivisionID]
		if s.TravelerType != f.Traveler || !ok {
			continue
		}
		s.Label = meta.Label()
		s.Region = meta.Region
		s.Province = meta.Province
		s.Municipality = meta.Municipality
		table = append(table, s)
	}

	slices.SortStableFunc(table, func(a, b domain.TrendSeries) int {
		pa, aRanked := position[a.DivisionID]
		pb, bRanked := position[b.DivisionID]
		switch {
		case aRanked && bRanked:
			return pa - pb
		case aRanked:
			return -1
		case bRanked:
			return 1
		}
		if a.DivisionID < b.DivisionID {
			return -1
		}
		if a.DivisionID > b.DivisionID {
			return 1
		}
		return 0
	})
	return table
}

// latestRows keeps the row of the most recent year per division.
func latestRows(rows []domain.WideRecord) map[string]domain.WideRecord {
	out := make(map[string]domain.WideRecord)
	for _, w := range rows {
		if prev, ok := out[w.DivisionID]; !ok || w.Year > prev.Year {
			out[w.DivisionID] = w
		}
	}
	return out
}

// Top returns the first n ranked destinations, never padding a short ranking.
func (v *Views) Top(n int) []domain.RankedDestination {
	if n <= 0 {
		return []domain.RankedDestination{}
	}
	if n > len(v.RankedDestinations) {
		n = len(v.RankedDestinations)
	}
	return v.RankedDestinations[:n:n]
}
