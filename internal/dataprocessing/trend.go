package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"phtourism/pkg/contracts/domain"
)

// DefaultReferenceYears are the comparison years of the published dataset.
func DefaultReferenceYears() []int {
	return []int{2019, 2021, 2023}
}

// TrendConfig holds configuration options for the TrendCalculator.
type TrendConfig struct {
	// ReferenceYears are shown as table columns. The first is the baseline and
	// the last is the endpoint of the percentage change.
	ReferenceYears []int
}

// Validate requires at least two strictly ascending reference years.
func (c TrendConfig) Validate() error {
	if len(c.ReferenceYears) < 2 {
		return fmt.Errorf("trend needs at least two reference years, got %d", len(c.ReferenceYears))
	}
	for i := 1; i < len(c.ReferenceYears); i++ {
		if c.ReferenceYears[i] <= c.ReferenceYears[i-1] {
			return fmt.Errorf("reference years must be strictly ascending: %v", c.ReferenceYears)
		}
	}
	return nil
}

// TrendCalculator derives per-division time series and percentage changes.
type TrendCalculator struct {
	logger         *slog.Logger
	referenceYears []int
}

// NewTrendCalculator creates a calculator. Empty reference years fall back to
// DefaultReferenceYears.
func NewTrendCalculator(logger *slog.Logger, config TrendConfig) (*TrendCalculator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(config.ReferenceYears) == 0 {
		config.ReferenceYears = DefaultReferenceYears()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &TrendCalculator{
		logger:         logger.With(slog.String("component", "trend_calculator")),
		referenceYears: slices.Clone(config.ReferenceYears),
	}, nil
}

// ReferenceYears returns a copy of the configured reference years.
func (c *TrendCalculator) ReferenceYears() []int {
	return slices.Clone(c.referenceYears)
}

// Series builds one series per (division, traveler type) covering every year
// present for the division. Series are ordered by division id, then traveler
// type in domestic, foreign, overseas, total order.
func (c *TrendCalculator) Series(ctx context.Context, wide []domain.WideRecord) []domain.TrendSeries {
	byDivision := make(map[string][]domain.WideRecord)
	for _, w := range wide {
		byDivision[w.DivisionID] = append(byDivision[w.DivisionID], w)
	}

	ids := make([]string, 0, len(byDivision))
	for id := range byDivision {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	travelers := domain.AllTravelerTypes()
	series := make([]domain.TrendSeries, 0, len(ids)*len(travelers))
	undefined := 0

	for _, id := range ids {
		rows := byDivision[id]
		slices.SortStableFunc(rows, compareWide)
		rows = slices.CompactFunc(rows, func(a, b domain.WideRecord) bool { return a.Year == b.Year })
		latest := rows[len(rows)-1]

		for _, t := range travelers {
			s := domain.TrendSeries{
				DivisionID:   id,
				Label:        latest.Label(),
				Region:       latest.Region,
				Province:     latest.Province,
				Municipality: latest.Municipality,
				TravelerType: t,
				Points:       make([]domain.TrendPoint, 0, len(rows)),
			}
			for _, w := range rows {
				s.Points = append(s.Points, domain.TrendPoint{Year: w.Year, Count: w.Count(t)})
			}
			s.References = c.references(s.Points)
			s.PercChange = c.change(s.References)
			if !s.PercChange.IsDefined() {
				undefined++
			}
			series = append(series, s)
		}
	}

	c.logger.DebugContext(ctx, "computed trend series",
		slog.Int("divisions", len(ids)),
		slog.Int("series", len(series)),
		slog.Int("undefined_changes", undefined))

	return series
}

func (c *TrendCalculator) references(points []domain.TrendPoint) []domain.ReferenceCount {
	refs := make([]domain.ReferenceCount, len(c.referenceYears))
	for i, year := range c.referenceYears {
		refs[i].Year = year
		idx, found := slices.BinarySearchFunc(points, year, func(p domain.TrendPoint, y int) int {
			return p.Year - y
		})
		if found {
			v := points[idx].Count
			refs[i].Count = &v
		}
	}
	return refs
}

// change compares the last reference year against the first. A missing or zero
// baseline yields UndefinedChange.
func (c *TrendCalculator) change(refs []domain.ReferenceCount) domain.PercentChange {
	base, end := refs[0], refs[len(refs)-1]
	if base.Count == nil || end.Count == nil {
		return domain.UndefinedChange
	}
	return domain.ChangeBetween(*base.Count, *end.Count)
}
