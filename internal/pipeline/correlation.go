package pipeline

import (
	"github.com/shopspring/decimal"

	"salesdash/internal/dataset"
)

// Point is one row of the Sales vs Profit view. Quantity sizes the marker.
type Point struct {
	Sales    decimal.Decimal `json:"sales"`
	Profit   decimal.Decimal `json:"profit"`
	Quantity decimal.Decimal `json:"quantity"`
	Category string          `json:"category,omitempty"`
}

// BlankCategory labels points whose Category cell is empty
const BlankCategory = "(blank)"

// Scatter holds the correlation points. Colored is false when the dataset
// has no Category column and all points share one series.
type Scatter struct {
	Points     []Point  `json:"points"`
	Categories []string `json:"categories,omitempty"`
	Colored    bool     `json:"colored"`
}

// Correlation extracts (Sales, Profit, Quantity) per row. Rows missing any of
// the three are left out.
func Correlation(v dataset.View) (*Scatter, error) {
	ds := v.Dataset()
	out := &Scatter{Colored: ds.Has(dataset.ColCategory), Points: make([]Point, 0, v.Len())}
	seen := make(map[string]bool)

	var err error
	v.Each(func(r int) {
		if err != nil {
			return
		}
		var p Point
		var ok [3]bool
		for i, m := range []struct {
			col string
			dst *decimal.Decimal
		}{
			{dataset.ColSales, &p.Sales},
			{dataset.ColProfit, &p.Profit},
			{dataset.ColQuantity, &p.Quantity},
		} {
			*m.dst, ok[i], err = parseMeasure(ds, r, m.col)
			if err != nil {
				return
			}
		}
		if !ok[0] || !ok[1] || !ok[2] {
			return
		}
		if out.Colored {
			p.Category = ds.Cell(r, dataset.ColCategory)
			if p.Category == "" {
				p.Category = BlankCategory
			}
			if !seen[p.Category] {
				seen[p.Category] = true
				out.Categories = append(out.Categories, p.Category)
			}
		}
		out.Points = append(out.Points, p)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
