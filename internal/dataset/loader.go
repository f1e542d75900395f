package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// DefaultMaxBytes bounds uploads when the loader is built without a limit.
const DefaultMaxBytes = 50 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader turns uploaded files into datasets
type Loader struct {
	logger   *slog.Logger
	maxBytes int64
}

// NewLoader creates a loader. maxBytes <= 0 selects DefaultMaxBytes.
func NewLoader(logger *slog.Logger, maxBytes int64) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Loader{
		logger:   logger.With(slog.String("component", "dataset.loader")),
		maxBytes: maxBytes,
	}
}

// FormatFor maps a file name to its format by extension.
func FormatFor(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatDelimited, nil
	case ".xlsx", ".xls":
		return FormatSpreadsheet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Load reads one uploaded file. Every failure is returned as *LoadError.
func (l *Loader) Load(ctx context.Context, name string, r io.Reader) (*Dataset, error) {
	format, err := FormatFor(name)
	if err != nil {
		return nil, l.fail(ctx, name, "", err)
	}

	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, l.fail(ctx, name, format, fmt.Errorf("failed to read upload: %w", err))
	}
	if int64(len(data)) > l.maxBytes {
		return nil, l.fail(ctx, name, format, fmt.Errorf("%w (%d bytes)", ErrTooLarge, l.maxBytes))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, l.fail(ctx, name, format, ErrEmptyFile)
	}

	var ds *Dataset
	switch format {
	case FormatDelimited:
		ds, err = parseDelimited(name, data)
	case FormatSpreadsheet:
		ds, err = parseSpreadsheet(name, data)
	}
	if err != nil {
		return nil, l.fail(ctx, name, format, err)
	}

	l.logger.InfoContext(ctx, "Dataset loaded",
		slog.String("source", name),
		slog.String("format", string(format)),
		slog.Int("columns", len(ds.Columns)),
		slog.Int("rows", ds.Len()),
		slog.String("fingerprint", ds.Fingerprint))
	return ds, nil
}

func (l *Loader) fail(ctx context.Context, name string, format Format, err error) error {
	l.logger.WarnContext(ctx, "Dataset load failed",
		slog.String("source", name),
		slog.String("format", string(format)),
		slog.String("error", err.Error()))
	return &LoadError{Source: name, Format: format, Err: err}
}

// parseDelimited decodes the text and splits it into records.
func parseDelimited(name string, data []byte) (*Dataset, error) {
	reader := csv.NewReader(decodeText(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse delimited text: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoHeader
	}
	return New(name, FormatDelimited, records[0], records[1:])
}

// decodeText returns the text as UTF-8. Input with a BOM or that is already
// valid UTF-8 is read as is; anything else falls back to ISO-8859-1.
func decodeText(data []byte) io.Reader {
	if trimmed := bytes.TrimPrefix(data, utf8BOM); len(trimmed) != len(data) || utf8.Valid(data) {
		return bytes.NewReader(trimmed)
	}
	return charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(data))
}

// sniffDelimiter picks comma unless the header line clearly uses tabs or
// semicolons instead.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.IndexByte(line, ',') >= 0 {
		return ','
	}
	if bytes.IndexByte(line, '\t') >= 0 {
		return '\t'
	}
	if bytes.IndexByte(line, ';') >= 0 {
		return ';'
	}
	return ','
}

// parseSpreadsheet reads the first sheet of a workbook. Raw cell values are
// kept so that dates arrive as serial numbers and amounts without display
// formatting.
func parseSpreadsheet(name string, data []byte) (*Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 || blankTail(rows[0]) {
		return nil, ErrNoHeader
	}

	records := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankTail(row) {
			continue
		}
		records = append(records, row)
	}
	return New(name, FormatSpreadsheet, rows[0], records)
}

// IsLoadError reports whether err is, or wraps, a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
