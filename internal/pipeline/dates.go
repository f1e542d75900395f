package pipeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"salesdash/internal/dataset"
)

// DateLayout is the wire format of range bounds
const DateLayout = "2006-01-02"

// Month-first layouts, tried in order. Single-digit verbs also accept
// zero-padded values.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"1/2/2006",
	"1-2-2006",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2T15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	time.RFC3339,
}

// DateIndex holds the parsed Order Date of every dataset row.
type DateIndex struct {
	Column string
	Min    time.Time
	Max    time.Time
	dates  []time.Time
}

// At returns the calendar date of a dataset row; false when the cell is empty.
func (x *DateIndex) At(row int) (time.Time, bool) {
	d := x.dates[row]
	return d, !d.IsZero()
}

// ParseDates converts the whole Order Date column. A single unreadable cell
// fails the column, as does a column without any dates.
func ParseDates(ds *dataset.Dataset) (*DateIndex, error) {
	col := dataset.ColOrderDate
	if !ds.Has(col) {
		return nil, &DateParseError{Column: col, Err: ErrColumnsMissing}
	}

	serial := ds.Format == dataset.FormatSpreadsheet
	idx := &DateIndex{Column: col, dates: make([]time.Time, ds.Len())}
	for r := 0; r < ds.Len(); r++ {
		raw := strings.TrimSpace(ds.Cell(r, col))
		if raw == "" {
			continue
		}
		d, ok := parseDate(raw, serial)
		if !ok {
			return nil, &DateParseError{Column: col, Row: r + 1, Value: raw}
		}
		idx.dates[r] = d
		if idx.Min.IsZero() || d.Before(idx.Min) {
			idx.Min = d
		}
		if d.After(idx.Max) {
			idx.Max = d
		}
	}
	if idx.Min.IsZero() {
		return nil, &DateParseError{Column: col, Err: ErrNoDates}
	}
	return idx, nil
}

func parseDate(raw string, serial bool) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return calendarDate(t), true
		}
	}
	if serial {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			if t, err := excelize.ExcelDateToTime(f, false); err == nil {
				return calendarDate(t), true
			}
		}
	}
	return time.Time{}, false
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseBound reads a YYYY-MM-DD range bound.
func ParseBound(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return calendarDate(t), nil
}

// FilterDateRange keeps rows with start <= date <= end. An inverted range
// yields no rows; rows without a date never match.
func FilterDateRange(v dataset.View, idx *DateIndex, start, end time.Time) dataset.View {
	start, end = calendarDate(start), calendarDate(end)
	if start.After(end) {
		return v.Empty()
	}
	return v.Filter(func(r int) bool {
		d, ok := idx.At(r)
		return ok && !d.Before(start) && !d.After(end)
	})
}

// MonthKey buckets a date as YYYY-MM
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
