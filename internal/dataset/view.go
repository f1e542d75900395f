package dataset

// View is an immutable subset of a dataset's rows, in dataset order. Filters
// return new views and never touch the dataset or the receiving view.
type View struct {
	ds   *Dataset
	rows []int
}

// All returns a view over every row of the dataset.
func All(d *Dataset) View {
	rows := make([]int, d.Len())
	for i := range rows {
		rows[i] = i
	}
	return View{ds: d, rows: rows}
}

// Dataset returns the dataset the view reads from
func (v View) Dataset() *Dataset {
	return v.ds
}

// Len returns the number of rows in the view
func (v View) Len() int {
	return len(v.rows)
}

// Each calls fn for every row index in view order.
func (v View) Each(fn func(row int)) {
	for _, r := range v.rows {
		fn(r)
	}
}

// Filter returns the rows for which keep is true.
func (v View) Filter(keep func(row int) bool) View {
	out := make([]int, 0, len(v.rows))
	for _, r := range v.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return View{ds: v.ds, rows: out}
}

// Head returns at most the first n rows.
func (v View) Head(n int) View {
	if n < 0 {
		n = 0
	}
	if n > len(v.rows) {
		n = len(v.rows)
	}
	return View{ds: v.ds, rows: v.rows[:n:n]}
}

// Empty returns a view with no rows over the same dataset.
func (v View) Empty() View {
	return View{ds: v.ds}
}

// Distinct returns the non-empty values of a column in first-seen order.
func (v View) Distinct(column string) []string {
	ci, ok := v.ds.ColumnIndex(column)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range v.rows {
		val := v.ds.rows[r][ci]
		if val == "" {
			continue
		}
		if _, dup := seen[val]; dup {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
