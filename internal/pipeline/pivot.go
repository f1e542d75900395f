package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"salesdash/internal/dataset"
)

const pivotPlaceholder = "Pivot table failed."

// PivotCell is one Sub-Category x month sum. Value is nil when no row fell in
// the cell; Shade is the value's position between the table min and max.
type PivotCell struct {
	Value *decimal.Decimal `json:"value"`
	Shade float64          `json:"shade"`
}

// Pivot cross-tabulates Sales by Sub-Category (rows) and month name (columns).
type Pivot struct {
	RowLabel string        `json:"row_label"`
	Rows     []string      `json:"rows"`
	Columns  []string      `json:"columns"`
	Cells    [][]PivotCell `json:"cells"`
}

// BuildPivot sums Sales per Sub-Category and calendar month. Rows are sorted
// by name, months by calendar order and only months present are shown.
func BuildPivot(v dataset.View, idx *DateIndex) (*Pivot, error) {
	ds := v.Dataset()
	if idx == nil {
		return nil, pivotError(&DateParseError{Column: dataset.ColOrderDate, Err: ErrNoDates})
	}
	if !ds.Has(dataset.ColSales) {
		return nil, pivotError(fmt.Errorf("%w: %s", ErrColumnsMissing, dataset.ColSales))
	}

	groups, err := groupSum(v, func(r int) ([]string, bool) {
		sub := ds.Cell(r, dataset.ColSubCategory)
		d, ok := idx.At(r)
		if sub == "" || !ok {
			return nil, false
		}
		return []string{sub, d.Month().String()}, true
	}, dataset.ColSales)
	if err != nil {
		return nil, pivotError(err)
	}
	if len(groups) == 0 {
		return nil, pivotError(ErrNoRows)
	}

	rowPos := make(map[string]int)
	monthSeen := make(map[time.Month]bool)
	var rows []string
	for _, g := range groups {
		if _, ok := rowPos[g.Keys[0]]; !ok {
			rowPos[g.Keys[0]] = 0
			rows = append(rows, g.Keys[0])
		}
		monthSeen[monthFromName(g.Keys[1])] = true
	}
	sort.Strings(rows)
	for i, r := range rows {
		rowPos[r] = i
	}

	var columns []string
	colPos := make(map[string]int)
	for m := time.January; m <= time.December; m++ {
		if monthSeen[m] {
			colPos[m.String()] = len(columns)
			columns = append(columns, m.String())
		}
	}

	cells := make([][]PivotCell, len(rows))
	for i := range cells {
		cells[i] = make([]PivotCell, len(columns))
	}
	lo, hi := groups[0].Sales, groups[0].Sales
	for _, g := range groups {
		value := g.Sales
		cells[rowPos[g.Keys[0]]][colPos[g.Keys[1]]].Value = &value
		lo = decimal.Min(lo, value)
		hi = decimal.Max(hi, value)
	}
	spread := hi.Sub(lo)
	for i := range cells {
		for j := range cells[i] {
			c := &cells[i][j]
			if c.Value != nil && !spread.IsZero() {
				c.Shade = c.Value.Sub(lo).Div(spread).InexactFloat64()
			}
		}
	}

	return &Pivot{RowLabel: dataset.ColSubCategory, Rows: rows, Columns: columns, Cells: cells}, nil
}

func monthFromName(name string) time.Month {
	for m := time.January; m <= time.December; m++ {
		if m.String() == name {
			return m
		}
	}
	return 0
}

func pivotError(err error) error {
	var tre *TableRenderError
	if errors.As(err, &tre) {
		return err
	}
	return &TableRenderError{Table: "pivot table", Placeholder: pivotPlaceholder, Err: err}
}
