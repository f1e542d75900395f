package dataset

import (
	"fmt"
	"strconv"
	"time"
)

// Column names of the sales schema the dashboard understands
const (
	ColOrderDate   = "Order Date"
	ColRegion      = "Region"
	ColState       = "State"
	ColCity        = "City"
	ColCategory    = "Category"
	ColSubCategory = "Sub-Category"
	ColSegment     = "Segment"
	ColSales       = "Sales"
	ColProfit      = "Profit"
	ColQuantity    = "Quantity"
)

// Format identifies how a dataset was parsed
type Format string

const (
	FormatDelimited   Format = "delimited"
	FormatSpreadsheet Format = "spreadsheet"
)

// Dataset is an immutable, column-ordered table of text cells.
// Numbers and dates are interpreted on demand by the pipeline.
type Dataset struct {
	Source      string    `json:"source"`
	Format      Format    `json:"format"`
	Columns     []string  `json:"columns"`
	LoadedAt    time.Time `json:"loaded_at"`
	Fingerprint string    `json:"fingerprint"`

	rows  [][]string
	index map[string]int
}

// New builds a dataset from a header and its records. Blank and duplicate
// header names are renamed, short records are padded with empty cells.
func New(source string, format Format, header []string, records [][]string) (*Dataset, error) {
	if len(header) == 0 {
		return nil, ErrNoHeader
	}

	columns := normalizeHeader(header)
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		index[name] = i
	}

	rows := make([][]string, 0, len(records))
	for i, record := range records {
		if len(record) > len(columns) {
			if !blankTail(record[len(columns):]) {
				return nil, fmt.Errorf("%w: record %d has %d fields, header has %d",
					ErrRaggedRow, i+1, len(record), len(columns))
			}
			record = record[:len(columns)]
		}
		row := make([]string, len(columns))
		copy(row, record)
		rows = append(rows, row)
	}

	ds := &Dataset{
		Source:   source,
		Format:   format,
		Columns:  columns,
		LoadedAt: time.Now(),
		rows:     rows,
		index:    index,
	}
	ds.Fingerprint = fingerprint(ds)
	return ds, nil
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	return len(d.rows)
}

// Has reports whether the column exists
func (d *Dataset) Has(column string) bool {
	_, ok := d.index[column]
	return ok
}

// HasAll reports whether every column exists
func (d *Dataset) HasAll(columns ...string) bool {
	for _, c := range columns {
		if !d.Has(c) {
			return false
		}
	}
	return true
}

// ColumnIndex returns the position of a column
func (d *Dataset) ColumnIndex(column string) (int, bool) {
	i, ok := d.index[column]
	return i, ok
}

// Cell returns the text of a cell, or "" when the column does not exist.
func (d *Dataset) Cell(row int, column string) string {
	i, ok := d.index[column]
	if !ok {
		return ""
	}
	return d.rows[row][i]
}

// Row returns a copy of a row in column order
func (d *Dataset) Row(row int) []string {
	out := make([]string, len(d.rows[row]))
	copy(out, d.rows[row])
	return out
}

func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n)
			for {
				if _, taken := seen[name]; !taken {
					break
				}
				name += "_"
			}
		}
		seen[name] = 1
		columns[i] = name
	}
	return columns
}

func blankTail(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
