package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// RawRow is one untyped row of the tourism counts table keyed by column name.
type RawRow map[string]string

// TravelRecord is the long-form unit of the tourism dataset: one count of one
// traveler category for one municipality in one year.
//
// (Year, DivisionID, TravelerType) is unique within a dataset. Records are never
// mutated after normalization.
type TravelRecord struct {
	// Year of observation, e.g. 2019
	Year int `json:"year" csv:"year"`

	// DivisionID is the municipality/city correspondence code. It is the join key
	// against the municipality geometries.
	DivisionID string `json:"id" csv:"correspondence_code_mod"`

	// Region, Province and Municipality are denormalized display names
	Region       string `json:"region" csv:"region"`
	Province     string `json:"province" csv:"province"`
	Municipality string `json:"muni_city" csv:"muni_city"`

	// TravelerType is always one of the concrete categories
	TravelerType TravelerType `json:"traveler" csv:"traveler"`

	// Count is non-negative and finite
	Count float64 `json:"count" csv:"count"`
}

// Label returns the "municipality, province" display label of the record's division.
func (r TravelRecord) Label() string {
	return DivisionLabel(r.Municipality, r.Province)
}

// DivisionLabel builds the display label used in rankings and trend tables.
func DivisionLabel(municipality, province string) string {
	switch {
	case province == "":
		return municipality
	case municipality == "":
		return province
	}
	return municipality + ", " + province
}

// WideRecord holds all traveler counts of one division in one year.
// The total is derived on read and never stored.
type WideRecord struct {
	Year         int     `json:"year"`
	DivisionID   string  `json:"id"`
	Region       string  `json:"region"`
	Province     string  `json:"province"`
	Municipality string  `json:"muni_city"`
	Domestic     float64 `json:"domestic"`
	Foreign      float64 `json:"foreign"`
	Overseas     float64 `json:"overseas"`

	// observed tracks which categories came from long records. Zero means the
	// record was built directly and every category counts as observed.
	observed uint8
}

func travelerBit(t TravelerType) uint8 {
	return 1 << uint8(t)
}

// Set stores the count of a concrete category and marks it observed.
// Setting TravelerTotal is a no-op because the total is derived.
func (w *WideRecord) Set(t TravelerType, count float64) {
	switch t {
	case TravelerDomestic:
		w.Domestic = count
	case TravelerForeign:
		w.Foreign = count
	case TravelerOverseas:
		w.Overseas = count
	default:
		return
	}
	w.observed |= travelerBit(t)
}

// Observed reports whether the category was present when the record was built.
func (w WideRecord) Observed(t TravelerType) bool {
	if w.observed == 0 {
		return t.IsConcrete()
	}
	return w.observed&travelerBit(t) != 0
}

// Total is the sum of the three concrete categories.
func (w WideRecord) Total() float64 {
	return w.Domestic + w.Foreign + w.Overseas
}

// Count returns the count of a category, deriving the total when asked for it.
func (w WideRecord) Count(t TravelerType) float64 {
	switch t {
	case TravelerDomestic:
		return w.Domestic
	case TravelerForeign:
		return w.Foreign
	case TravelerOverseas:
		return w.Overseas
	}
	return w.Total()
}

// Counts returns the per-category breakdown of the record.
func (w WideRecord) Counts() Counts {
	return Counts{Domestic: w.Domestic, Foreign: w.Foreign, Overseas: w.Overseas, Total: w.Total()}
}

// Label returns the "municipality, province" display label.
func (w WideRecord) Label() string {
	return DivisionLabel(w.Municipality, w.Province)
}

// Counts is a per-category breakdown. Total always equals the sum of the others.
type Counts struct {
	Domestic float64 `json:"domestic"`
	Foreign  float64 `json:"foreign"`
	Overseas float64 `json:"overseas"`
	Total    float64 `json:"total"`
}

// Get returns the count of one category.
func (c Counts) Get(t TravelerType) float64 {
	switch t {
	case TravelerDomestic:
		return c.Domestic
	case TravelerForeign:
		return c.Foreign
	case TravelerOverseas:
		return c.Overseas
	}
	return c.Total
}

// Add accumulates another breakdown and keeps Total consistent.
func (c Counts) Add(o Counts) Counts {
	c.Domestic += o.Domestic
	c.Foreign += o.Foreign
	c.Overseas += o.Overseas
	c.Total = c.Domestic + c.Foreign + c.Overseas
	return c
}

// RankedDestination is one row of the top-destinations view.
type RankedDestination struct {
	// Rank is 1-based
	Rank int `json:"rank"`

	DivisionID   string       `json:"id"`
	Label        string       `json:"label"`
	Region       string       `json:"region"`
	Province     string       `json:"province"`
	Municipality string       `json:"muni_city"`
	TravelerType TravelerType `json:"traveler"`

	// Total is the ranked value for the selected traveler type
	Total float64 `json:"total"`

	// Breakdown supports stacked bars by traveler category
	Breakdown Counts `json:"breakdown"`

	// Matched is false when the division has no geometry
	Matched bool `json:"matched"`
}

// TrendPoint is one year of a trend series.
type TrendPoint struct {
	Year  int     `json:"year"`
	Count float64 `json:"count"`
}

// ReferenceCount is the count at a configured reference year. Count is nil when
// the division has no data for that year.
type ReferenceCount struct {
	Year  int      `json:"year"`
	Count *float64 `json:"count"`
}

// TrendSeries is the full per-year series of one division and traveler type.
type TrendSeries struct {
	DivisionID   string       `json:"id"`
	Label        string       `json:"label"`
	Region       string       `json:"region"`
	Province     string       `json:"province"`
	Municipality string       `json:"muni_city"`
	TravelerType TravelerType `json:"traveler"`

	// Points is sorted by year ascending with no duplicate years. Zero counts are kept.
	Points []TrendPoint `json:"points"`

	// References holds one entry per configured reference year, in order
	References []ReferenceCount `json:"references"`

	// PercChange compares the last reference year against the first
	PercChange PercentChange `json:"perc_change"`

	Matched bool `json:"matched"`
}

// Sparkline returns the points suitable for drawing: zero and non-finite counts
// are dropped. The series itself is left untouched.
func (s TrendSeries) Sparkline() []TrendPoint {
	out := make([]TrendPoint, 0, len(s.Points))
	for _, p := range s.Points {
		if p.Count == 0 || math.IsNaN(p.Count) || math.IsInf(p.Count, 0) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Reference returns the count recorded for a reference year.
func (s TrendSeries) Reference(year int) (float64, bool) {
	for _, r := range s.References {
		if r.Year == year && r.Count != nil {
			return *r.Count, true
		}
	}
	return 0, false
}

// PercentChange is a relative change in percent with an explicit undefined state.
// A change against a zero or missing baseline is undefined rather than infinite.
type PercentChange struct {
	value   float64
	defined bool
}

// UndefinedChange is the change against a zero or absent baseline.
var UndefinedChange = PercentChange{}

// DefinedChange wraps a finite percentage. Non-finite input yields UndefinedChange.
func DefinedChange(v float64) PercentChange {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return UndefinedChange
	}
	return PercentChange{value: v, defined: true}
}

// ChangeBetween computes (end - base) / base * 100.
func ChangeBetween(base, end float64) PercentChange {
	if base <= 0 || math.IsNaN(base) || math.IsNaN(end) {
		return UndefinedChange
	}
	return DefinedChange((end - base) / base * 100)
}

// Value returns the percentage and whether it is defined.
func (p PercentChange) Value() (float64, bool) {
	return p.value, p.defined
}

func (p PercentChange) IsDefined() bool {
	return p.defined
}

// String renders "-" when undefined, otherwise the value rounded to two decimals
// with a leading "+" for increases.
func (p PercentChange) String() string {
	if !p.defined {
		return "-"
	}
	rounded := math.Round(p.value*100) / 100
	s := strconv.FormatFloat(rounded, 'f', -1, 64)
	if rounded > 0 {
		return "+" + s
	}
	return s
}

func (p PercentChange) MarshalJSON() ([]byte, error) {
	if !p.defined {
		return []byte(`"-"`), nil
	}
	return []byte(strconv.FormatFloat(p.value, 'f', -1, 64)), nil
}

func (p *PercentChange) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "-" {
			return fmt.Errorf("invalid percent change %q", s)
		}
		*p = UndefinedChange
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid percent change: %w", err)
	}
	*p = DefinedChange(v)
	return nil
}
