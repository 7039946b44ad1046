// Package exporter writes views as CSV tables and XLSX workbooks.
//
// CSVWriter: core CSV writing with headers and a UTF-8 BOM for
// Excel compatibility.
//
// Tables: RankingTable, TrendTable, TotalsTable, UnmatchedTable and IssuesTable
// flatten a views.Views into headers and records.
//
// WorkbookWriter: one sheet per table, with native sparklines on the trend sheet.
//
// Example usage:
//
//	v, _ := views.Build(ds, views.Filters{Traveler: domain.TravelerDomestic})
//
//	w := exporter.NewCSVWriter()
//	err := w.Write(out, exporter.WriteOptions{Table: exporter.RankingTable(v), BOMPrefix: true})
//
//	err = exporter.NewWorkbookWriter(logger).Write(out, v, ds.Issues())
package exporter
