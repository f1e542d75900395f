package dataset

import (
	"bytes"
	"context"
	_ "embed"
)

// SampleName is the file name reported for the bundled dataset.
const SampleName = "Sample - Superstore.csv"

//go:embed sample/superstore.csv
var sampleCSV []byte

// LoadFallback parses the dataset bundled into the binary. It is used when a
// session has not uploaded anything.
func (l *Loader) LoadFallback(ctx context.Context) (*Dataset, error) {
	l.logger.InfoContext(ctx, "Using default sample dataset")
	return l.Load(ctx, SampleName, bytes.NewReader(sampleCSV))
}
