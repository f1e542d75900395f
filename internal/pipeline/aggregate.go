package pipeline

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"salesdash/internal/dataset"
)

// Total is one (key, sum of Sales) pair
type Total struct {
	Key   string          `json:"key"`
	Sales decimal.Decimal `json:"sales"`
}

// Group is a multi-key total
type Group struct {
	Keys  []string        `json:"keys"`
	Sales decimal.Decimal `json:"sales"`
}

// keyFunc extracts the grouping key of a row; false drops the row.
type keyFunc func(row int) ([]string, bool)

// groupSum sums a measure per key, keeping keys in first-seen order. Rows
// with an empty key part or an empty measure are ignored.
func groupSum(v dataset.View, key keyFunc, measure string) ([]Group, error) {
	ds := v.Dataset()
	var (
		groups []Group
		pos    = make(map[string]int)
		err    error
	)
	v.Each(func(r int) {
		if err != nil {
			return
		}
		keys, ok := key(r)
		if !ok {
			return
		}
		amount, present, perr := parseMeasure(ds, r, measure)
		if perr != nil {
			err = perr
			return
		}
		if !present {
			return
		}
		id := strings.Join(keys, "\x1f")
		i, seen := pos[id]
		if !seen {
			i = len(groups)
			pos[id] = i
			groups = append(groups, Group{Keys: keys, Sales: decimal.Zero})
		}
		groups[i].Sales = groups[i].Sales.Add(amount)
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func columnKey(ds *dataset.Dataset, columns ...string) keyFunc {
	return func(r int) ([]string, bool) {
		keys := make([]string, len(columns))
		for i, c := range columns {
			keys[i] = ds.Cell(r, c)
			if keys[i] == "" {
				return nil, false
			}
		}
		return keys, true
	}
}

// GroupSum groups the view by one or more columns and sums measure.
func GroupSum(v dataset.View, columns []string, measure string) ([]Group, error) {
	return groupSum(v, columnKey(v.Dataset(), columns...), measure)
}

// SalesBy totals Sales per distinct value of column, in first-seen order.
func SalesBy(v dataset.View, column string) ([]Total, error) {
	groups, err := GroupSum(v, []string{column}, dataset.ColSales)
	if err != nil {
		return nil, err
	}
	return flatten(groups), nil
}

// MonthlySales totals Sales per YYYY-MM bucket, sorted chronologically.
func MonthlySales(v dataset.View, idx *DateIndex) ([]Total, error) {
	groups, err := groupSum(v, func(r int) ([]string, bool) {
		d, ok := idx.At(r)
		if !ok {
			return nil, false
		}
		return []string{MonthKey(d)}, true
	}, dataset.ColSales)
	if err != nil {
		return nil, err
	}
	totals := flatten(groups)
	sort.Slice(totals, func(i, j int) bool { return totals[i].Key < totals[j].Key })
	return totals, nil
}

// Sum adds up a measure over the view
func Sum(v dataset.View, measure string) (decimal.Decimal, error) {
	ds := v.Dataset()
	total := decimal.Zero
	var err error
	v.Each(func(r int) {
		if err != nil {
			return
		}
		amount, present, perr := parseMeasure(ds, r, measure)
		if perr != nil {
			err = perr
			return
		}
		if present {
			total = total.Add(amount)
		}
	})
	return total, err
}

func flatten(groups []Group) []Total {
	out := make([]Total, len(groups))
	for i, g := range groups {
		out[i] = Total{Key: g.Keys[0], Sales: g.Sales}
	}
	return out
}

func parseMeasure(ds *dataset.Dataset, row int, column string) (decimal.Decimal, bool, error) {
	raw := strings.TrimSpace(ds.Cell(row, column))
	if raw == "" {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, &MeasureError{Column: column, Row: row + 1, Value: raw}
	}
	return d, true, nil
}
