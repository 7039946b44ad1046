// Package shared holds code used across layers that belongs to no single one.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//	- A buffered slog handler for asserting on log output
//	- Tourism fixtures: a counts table and a small TopoJSON topology that
//	  together exercise matched, unmatched and malformed rows
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    rows := testutil.CountsRows(t)
//	    ...
//	    assert.True(t, logs.ContainsMessage("normalized tourism rows"))
//	}
package shared
