package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrNoRows         = errors.New("no rows to tabulate")
	ErrColumnsMissing = errors.New("columns missing")
	ErrNoDates        = errors.New("column holds no dates")
)

// DateParseError means the date column could not be read as dates. The date
// filter is disabled and the working set passes through unfiltered.
type DateParseError struct {
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *DateParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s conversion failed: %v", e.Column, e.Err)
	}
	return fmt.Sprintf("%s conversion failed: row %d has unrecognised date %q", e.Column, e.Row, e.Value)
}

func (e *DateParseError) Unwrap() error {
	return e.Err
}

// TableRenderError means a tabular section could not be built. The section is
// replaced by a placeholder message.
type TableRenderError struct {
	Table       string
	Placeholder string
	Err         error
}

func (e *TableRenderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Table, e.Err)
}

func (e *TableRenderError) Unwrap() error {
	return e.Err
}

// MeasureError reports a measure cell that is not a number.
type MeasureError struct {
	Column string
	Row    int
	Value  string
}

func (e *MeasureError) Error() string {
	return fmt.Sprintf("%s: row %d is not numeric: %q", e.Column, e.Row, e.Value)
}
