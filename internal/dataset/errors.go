package dataset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file is empty")
	ErrNoHeader          = errors.New("no header row")
	ErrRaggedRow         = errors.New("record has more fields than the header")
	ErrTooLarge          = errors.New("file exceeds upload limit")
	ErrNoSheets          = errors.New("workbook has no sheets")
)

// LoadError reports a dataset that could not be read or parsed. It is fatal
// for the session: nothing downstream runs on a partial dataset.
type LoadError struct {
	Source string
	Format Format
	Err    error
}

func (e *LoadError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("load %s (%s): %v", e.Source, e.Format, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SchemaWarning lists required columns that are absent. It never stops
// processing; features that need the columns are disabled instead.
type SchemaWarning struct {
	Missing []string
}

func (w *SchemaWarning) Error() string {
	return fmt.Sprintf("missing columns: %s; some sections may be disabled", strings.Join(w.Missing, ", "))
}
