package dataprocessing

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// GroupSum folds records into per-key sums. Sums are accumulated as decimals so
// the result does not depend on iteration order or grouping.
func GroupSum[T any, K comparable](records []T, keyFn func(T) K, valueFn func(T) float64) map[K]float64 {
	acc := make(map[K]decimal.Decimal)
	for _, rec := range records {
		k := keyFn(rec)
		acc[k] = acc[k].Add(decimal.NewFromFloat(valueFn(rec)))
	}

	out := make(map[K]float64, len(acc))
	for k, v := range acc {
		out[k] = v.InexactFloat64()
	}
	return out
}

// Sum adds values with the same decimal accumulation as GroupSum.
func Sum[T any](records []T, valueFn func(T) float64) float64 {
	total := decimal.Decimal{}
	for _, rec := range records {
		total = total.Add(decimal.NewFromFloat(valueFn(rec)))
	}
	return total.InexactFloat64()
}

// Ranked is one entry of a ranking.
type Ranked[K cmp.Ordered] struct {
	Key   K       `json:"key"`
	Value float64 `json:"value"`
}

// Rank orders aggregated values descending, breaking ties by key ascending.
func Rank[K cmp.Ordered](aggregated map[K]float64) []Ranked[K] {
	ranked := make([]Ranked[K], 0, len(aggregated))
	for k, v := range aggregated {
		ranked = append(ranked, Ranked[K]{Key: k, Value: v})
	}
	slices.SortStableFunc(ranked, func(a, b Ranked[K]) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return ranked
}

// TopN returns at most n ranked entries. It never pads a short input and
// returns an empty slice for n <= 0.
func TopN[K cmp.Ordered](aggregated map[K]float64, n int) []Ranked[K] {
	if n <= 0 {
		return []Ranked[K]{}
	}
	ranked := Rank(aggregated)
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
