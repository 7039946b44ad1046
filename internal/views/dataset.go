package views

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"phtourism/internal/dataprocessing"
	"phtourism/internal/geo"
	"phtourism/internal/schema"
	"phtourism/pkg/contracts/domain"
)

// Options configures dataset loading.
type Options struct {
	Mapping   schema.Mapping
	Trend     dataprocessing.TrendConfig
	MaxIssues int
	Logger    *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Mapping == (schema.Mapping{}) {
		o.Mapping = schema.Default()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type seriesKey struct {
	id       string
	traveler domain.TravelerType
}

// Dataset is the normalized, indexed and pre-computed form of one load. It is
// never modified after LoadDataset returns and is shared by every Build.
type Dataset struct {
	records []domain.TravelRecord
	wide    []domain.WideRecord
	series  []domain.TrendSeries
	index   *geo.Index

	seriesByKey map[seriesKey]int
	divisions   map[string]domain.WideRecord

	rows           int
	skipped        int
	issues         []*dataprocessing.MalformedRecordError
	years          []int
	regions        []string
	referenceYears []int
	unmatched      []string
}

// LoadDataset normalizes the counts, indexes the geography and pre-computes
// the trend series. Malformed rows are skipped; a geography that does not match
// the schema mapping aborts the load.
func LoadDataset(ctx context.Context, rows []domain.RawRow, topology []byte, opts Options) (*Dataset, error) {
	opts = opts.withDefaults()
	if err := opts.Mapping.Validate(); err != nil {
		return nil, err
	}

	index, err := geo.Load(opts.Logger, topology, opts.Mapping.Geography)
	if err != nil {
		return nil, fmt.Errorf("build geo index: %w", err)
	}
	return NewDataset(ctx, rows, index, opts)
}

// NewDataset builds a dataset against an existing geo index.
func NewDataset(ctx context.Context, rows []domain.RawRow, index *geo.Index, opts Options) (*Dataset, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.With(slog.String("component", "dataset"))

	calc, err := dataprocessing.NewTrendCalculator(opts.Logger, opts.Trend)
	if err != nil {
		return nil, fmt.Errorf("trend configuration: %w", err)
	}

	normalizer := dataprocessing.NewNormalizer(opts.Logger, dataprocessing.NormalizerConfig{
		Columns:   opts.Mapping.Counts,
		MaxIssues: opts.MaxIssues,
	})
	result := normalizer.Normalize(ctx, rows)

	ds := &Dataset{
		records:        result.Records,
		wide:           dataprocessing.ToWide(result.Records),
		index:          index,
		rows:           len(rows),
		skipped:        result.Skipped,
		issues:         result.Issues,
		referenceYears: calc.ReferenceYears(),
		divisions:      make(map[string]domain.WideRecord),
	}

	years := make(map[int]struct{})
	regions := make(map[string]struct{})
	for _, w := range ds.wide {
		years[w.Year] = struct{}{}
		if w.Region != "" {
			regions[w.Region] = struct{}{}
		}
		if prev, ok := ds.divisions[w.DivisionID]; !ok || w.Year > prev.Year {
			ds.divisions[w.DivisionID] = w
		}
	}
	for y := range years {
		ds.years = append(ds.years, y)
	}
	slices.Sort(ds.years)
	for r := range regions {
		ds.regions = append(ds.regions, r)
	}
	slices.Sort(ds.regions)

	for id := range ds.divisions {
		if !index.Has(id) {
			ds.unmatched = append(ds.unmatched, id)
		}
	}
	slices.Sort(ds.unmatched)

	ds.series = calc.Series(ctx, ds.wide)
	ds.seriesByKey = make(map[seriesKey]int, len(ds.series))
	for i := range ds.series {
		s := &ds.series[i]
		s.Matched = index.Has(s.DivisionID)
		ds.seriesByKey[seriesKey{id: s.DivisionID, traveler: s.TravelerType}] = i
	}

	logger.InfoContext(ctx, "dataset loaded",
		slog.Int("rows", ds.rows),
		slog.Int("skipped", ds.skipped),
		slog.Int("divisions", len(ds.divisions)),
		slog.Int("unmatched", len(ds.unmatched)),
		slog.Any("years", ds.years))

	if len(ds.unmatched) > 0 {
		logger.WarnContext(ctx, "divisions without geometry",
			slog.Int("count", len(ds.unmatched)),
			slog.Any("ids", head(ds.unmatched, 20)))
	}

	return ds, nil
}

func head(ids []string, n int) []string {
	if len(ids) > n {
		return ids[:n]
	}
	return ids
}

// Index returns the geo index the dataset was joined against.
func (ds *Dataset) Index() *geo.Index {
	return ds.index
}

// Records returns the normalized long-form records.
func (ds *Dataset) Records() []domain.TravelRecord {
	return slices.Clone(ds.records)
}

// Wide returns the pivoted records ordered by year, then division.
func (ds *Dataset) Wide() []domain.WideRecord {
	return slices.Clone(ds.wide)
}

// Series returns the trend series of one division and traveler type.
func (ds *Dataset) Series(id string, traveler domain.TravelerType) (domain.TrendSeries, bool) {
	i, ok := ds.seriesByKey[seriesKey{id: id, traveler: traveler}]
	if !ok {
		return domain.TrendSeries{}, false
	}
	return ds.series[i], true
}

// Issues returns the reported malformed rows.
func (ds *Dataset) Issues() []*dataprocessing.MalformedRecordError {
	return slices.Clone(ds.issues)
}

// Info summarizes a dataset.
type Info struct {
	Rows           int      `json:"rows"`
	Accepted       int      `json:"accepted"`
	Skipped        int      `json:"skipped"`
	Records        int      `json:"records"`
	Divisions      int      `json:"divisions"`
	Matched        int      `json:"matched"`
	Unmatched      []string `json:"unmatched"`
	GeoFeatures    int      `json:"geo_features"`
	Years          []int    `json:"years"`
	Regions        []string `json:"regions"`
	ReferenceYears []int    `json:"reference_years"`
}

// Info returns the load summary.
func (ds *Dataset) Info() Info {
	return Info{
		Rows:           ds.rows,
		Accepted:       ds.rows - ds.skipped,
		Skipped:        ds.skipped,
		Records:        len(ds.records),
		Divisions:      len(ds.divisions),
		Matched:        len(ds.divisions) - len(ds.unmatched),
		Unmatched:      slices.Clone(ds.unmatched),
		GeoFeatures:    ds.index.Len(),
		Years:          slices.Clone(ds.years),
		Regions:        slices.Clone(ds.regions),
		ReferenceYears: slices.Clone(ds.referenceYears),
	}
}
