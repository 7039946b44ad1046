// Package dataprocessing turns raw tourism count tables into the normalized,
// pivoted and aggregated structures the views are built from.
//
// # Components
//
//  1. Readers: ReadCSV and ReadWorkbook decode a counts table into raw rows
//  2. Normalizer: unfolds each raw row into one TravelRecord per traveler type
//  3. Pivot: ToWide and ToLong convert between long and wide form
//  4. Aggregation: GroupSum, Rank and TopN
//  5. TrendCalculator: per-division series and percentage change
//
// # Data Flow
//
//	CSV/XLSX → RawRow → Normalizer → TravelRecord → ToWide → WideRecord → TrendCalculator → TrendSeries
//
// # Error Handling
//
// Row-level problems never abort a load. Normalize skips the row, counts it and
// reports a *MalformedRecordError that matches ErrMalformedRecord:
//
//	result := normalizer.Normalize(ctx, rows)
//	for _, issue := range result.Issues {
//	    log.Printf("row %d skipped: %s", issue.Row, issue.Reason)
//	}
//
// A percentage change against a zero or missing baseline is not an error; it
// is domain.UndefinedChange.
//
// # Testing
//
// Fixtures live in internal/shared/testutil. Use table-driven tests when
// adding new functionality.
package dataprocessing
