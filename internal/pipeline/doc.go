// Package pipeline turns a loaded dataset into dashboard sections.
//
// A recomputation is an ordered chain of pure steps over immutable views:
//
//	dataset -> date range -> Region -> State -> City -> aggregators
//
// Every section is gated by the capability table in package dataset and
// reports a typed FeatureResult. DateParseError, TableRenderError and
// MeasureError are local to the section that raised them.
//
// Sums use exact decimals so that per-key totals add up to the column total.
package pipeline
