// Package dataset loads tabular sales data and describes what it contains.
//
// Delimited text (.csv, .txt) is read as UTF-8 when it carries a BOM or is
// valid UTF-8, and as ISO-8859-1 otherwise. Workbooks (.xlsx, .xls) are read
// from their first sheet. Any failure comes back as a
// *LoadError and nothing downstream runs. A bundled sample is used when no
// file was uploaded.
//
// The schema helpers compare a dataset's columns with the sales schema and
// with the per-feature capability table, so every dashboard section can be
// switched on or off from one check.
package dataset
