package pipeline

import (
	"salesdash/internal/dataset"
)

// DimensionOrder is the fixed filter chain. Each stage offers the values left
// by the stage before it.
var DimensionOrder = []string{dataset.ColRegion, dataset.ColState, dataset.ColCity}

// Selection maps a dimension to the values kept. Missing or empty means no filter.
type Selection map[string][]string

// StageResult describes one filter stage
type StageResult struct {
	Column     string   `json:"column"`
	Candidates []string `json:"candidates"`
	Selected   []string `json:"selected,omitempty"`
	Skipped    bool     `json:"skipped"`
	RowsIn     int      `json:"rows_in"`
	RowsOut    int      `json:"rows_out"`
}

// IsSelected reports whether value is part of the stage's selection. Used by
// the page to pre-check options.
func (s StageResult) IsSelected(value string) bool {
	for _, v := range s.Selected {
		if v == value {
			return true
		}
	}
	return false
}

// ApplyDimensions runs Region, State and City in order.
func ApplyDimensions(v dataset.View, sel Selection) (dataset.View, []StageResult) {
	results := make([]StageResult, 0, len(DimensionOrder))
	for _, column := range DimensionOrder {
		var res StageResult
		v, res = filterStage(v, column, sel[column])
		results = append(results, res)
	}
	return v, results
}

func filterStage(v dataset.View, column string, selected []string) (dataset.View, StageResult) {
	res := StageResult{Column: column, RowsIn: v.Len()}
	ds := v.Dataset()
	if !ds.Has(column) {
		res.Skipped = true
		res.RowsOut = v.Len()
		return v, res
	}

	res.Candidates = v.Distinct(column)
	if len(selected) == 0 {
		res.RowsOut = v.Len()
		return v, res
	}

	keep := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		keep[s] = struct{}{}
	}
	res.Selected = selected
	out := v.Filter(func(r int) bool {
		_, ok := keep[ds.Cell(r, column)]
		return ok
	})
	res.RowsOut = out.Len()
	return out, res
}
