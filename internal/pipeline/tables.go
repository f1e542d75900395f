package pipeline

import (
	"fmt"
	"strings"

	"salesdash/internal/dataset"
)

const samplePlaceholder = "Table cannot be created (columns missing)."

// SampleColumns is the fixed projection of the sample table
var SampleColumns = []string{
	dataset.ColRegion, dataset.ColState, dataset.ColCity, dataset.ColCategory,
	dataset.ColSales, dataset.ColProfit, dataset.ColQuantity,
}

// Table is a rectangular slice of the dataset. Total counts the rows before
// any display limit.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total"`
}

// Truncated reports whether Rows holds fewer rows than Total
func (t *Table) Truncated() bool {
	return len(t.Rows) < t.Total
}

// SampleTable projects the first n rows onto SampleColumns.
func SampleTable(v dataset.View, n int) (*Table, error) {
	ds := v.Dataset()
	missing := dataset.MissingColumns(ds.Columns, SampleColumns)
	if len(missing) > 0 {
		return nil, &TableRenderError{
			Table:       "sample table",
			Placeholder: samplePlaceholder,
			Err:         fmt.Errorf("%w: %s", ErrColumnsMissing, strings.Join(missing, ", ")),
		}
	}
	if v.Len() == 0 || n <= 0 {
		return nil, &TableRenderError{Table: "sample table", Placeholder: samplePlaceholder, Err: ErrNoRows}
	}

	head := v.Head(n)
	t := &Table{Columns: SampleColumns, Total: head.Len()}
	head.Each(func(r int) {
		row := make([]string, len(SampleColumns))
		for i, c := range SampleColumns {
			row[i] = ds.Cell(r, c)
		}
		t.Rows = append(t.Rows, row)
	})
	return t, nil
}

// RawTable returns every column of the view, at most limit rows (0 = all).
func RawTable(v dataset.View, limit int) *Table {
	ds := v.Dataset()
	shown := v
	if limit > 0 {
		shown = v.Head(limit)
	}
	t := &Table{Columns: ds.Columns, Rows: make([][]string, 0, shown.Len()), Total: v.Len()}
	shown.Each(func(r int) {
		t.Rows = append(t.Rows, ds.Row(r))
	})
	return t
}
