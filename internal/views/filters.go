package views

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"phtourism/pkg/contracts/domain"
)

// AllRegions is the region filter value that selects every region.
const AllRegions = "All regions"

// Filters selects the slice of the dataset a view is built from. Values are
// captured when Build is called.
type Filters struct {
	// Years restricts totals, rankings and geo counts. Empty means every year.
	Years []int `json:"years"`

	// Region restricts every view. "" and AllRegions mean every region.
	Region string `json:"region"`

	// Traveler selects the ranked and mapped count. The zero value is the total.
	Traveler domain.TravelerType `json:"traveler"`
}

// Normalized returns a copy with sorted, de-duplicated years and the canonical
// empty region for "all regions".
func (f Filters) Normalized() Filters {
	out := Filters{Region: strings.TrimSpace(f.Region), Traveler: f.Traveler}
	if strings.EqualFold(out.Region, AllRegions) {
		out.Region = ""
	}
	if len(f.Years) > 0 {
		out.Years = slices.Clone(f.Years)
		slices.Sort(out.Years)
		out.Years = slices.Compact(out.Years)
	}
	return out
}

// Validate rejects traveler types outside the closed set.
func (f Filters) Validate() error {
	if !f.Traveler.Valid() {
		return fmt.Errorf("invalid traveler type %d", uint8(f.Traveler))
	}
	return nil
}

// Key is a canonical string for the filters, stable across equivalent values.
func (f Filters) Key() string {
	n := f.Normalized()
	years := make([]string, len(n.Years))
	for i, y := range n.Years {
		years[i] = strconv.Itoa(y)
	}
	region := n.Region
	if region == "" {
		region = "*"
	}
	return "years=" + strings.Join(years, ",") + "|region=" + region + "|traveler=" + n.Traveler.String()
}

func (f Filters) matchYear(year int) bool {
	if len(f.Years) == 0 {
		return true
	}
	_, found := slices.BinarySearch(f.Years, year)
	return found
}

func (f Filters) matchRegion(region string) bool {
	return f.Region == "" || f.Region == region
}
