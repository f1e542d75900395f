// Package exporter writes datasets back out as CSV.
//
// The export is always the full dataset as it was loaded. Dashboard filters
// never reach this package. Output is UTF-8 regardless of the encoding the
// dataset was read with, and an optional BOM helps Excel detect it.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(logger)
//	n, err := w.WriteDataset(ctx, rw, ds, exporter.WriteOptions{})
package exporter
