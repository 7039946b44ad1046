// Package sources fetches the tourism counts table and the TopoJSON geography
// from files, HTTP endpoints or Google Sheets.
//
// Fetchers return raw bytes. Counts sources decode those bytes, or a
// spreadsheet range, into raw rows. The Loader fetches both inputs
// concurrently and fingerprints them so that caches can key payloads by
// dataset version.
package sources
