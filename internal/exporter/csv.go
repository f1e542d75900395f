package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"salesdash/internal/dataset"
)

// FileName is the download name of the exported dataset
const FileName = "cleaned_data.csv"

// ContentType of the export
const ContentType = "text/csv; charset=utf-8"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter exports datasets as UTF-8 CSV
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger.With(slog.String("component", "exporter.csv"))}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteDataset writes the header and every row of ds, regardless of any
// filter a caller may have applied elsewhere. It returns the bytes written.
func (w *CSVWriter) WriteDataset(ctx context.Context, out io.Writer, ds *dataset.Dataset, options WriteOptions) (int64, error) {
	counter := &countingWriter{w: out}
	stream, err := NewStreamWriter(counter, ds.Columns, options.BOMPrefix)
	if err != nil {
		return counter.n, err
	}

	for r := 0; r < ds.Len(); r++ {
		if err := ctx.Err(); err != nil {
			return counter.n, err
		}
		if err := stream.WriteRecord(ds.Row(r)); err != nil {
			return counter.n, fmt.Errorf("failed to write record %d: %w", r+1, err)
		}
	}
	if err := stream.Close(); err != nil {
		return counter.n, fmt.Errorf("failed to flush csv: %w", err)
	}

	w.logger.InfoContext(ctx, "Dataset exported",
		slog.String("source", ds.Source),
		slog.Int("rows", ds.Len()),
		slog.Int64("bytes", counter.n))
	return counter.n, nil
}

// WriteFile exports ds to path, creating parent directories.
func (w *CSVWriter) WriteFile(ctx context.Context, path string, ds *dataset.Dataset, options WriteOptions) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := w.WriteDataset(ctx, file, ds, options); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	writer *csv.Writer
}

// NewStreamWriter writes the optional BOM and the header line.
func NewStreamWriter(out io.Writer, headers []string, bom bool) (*StreamWriter, error) {
	if bom {
		if _, err := out.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}
	return &StreamWriter{writer: writer}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes the stream writer
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	return s.writer.Error()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
