package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"salesdash/internal/dataset"
)

func latin1Dataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	raw, err := charmap.ISO8859_1.NewEncoder().String(
		"Region,City,Sales,Note\nEast,Montréal,100,\"quoted, with comma\"\nWest,São Paulo,50,\n")
	require.NoError(t, err)

	ds, err := dataset.NewLoader(nil, 0).Load(context.Background(), "latin.csv", strings.NewReader(raw))
	require.NoError(t, err)
	return ds
}

func TestNewCSVWriter(t *testing.T) {
	writer := NewCSVWriter(nil)
	assert.NotNil(t, writer)
	assert.NotNil(t, writer.logger)
}

func TestCSVWriter_WriteDataset(t *testing.T) {
	ds := latin1Dataset(t)

	tests := []struct {
		name    string
		options WriteOptions
		wantBOM bool
	}{
		{"plain utf-8", WriteOptions{}, false},
		{"with bom", WriteOptions{BOMPrefix: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			n, err := NewCSVWriter(nil).WriteDataset(context.Background(), &buf, ds, tt.options)
			require.NoError(t, err)
			assert.Equal(t, int64(buf.Len()), n)

			content := buf.Bytes()
			assert.Equal(t, tt.wantBOM, bytes.HasPrefix(content, utf8BOM))
			content = bytes.TrimPrefix(content, utf8BOM)

			records, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.Equal(t, []string{"Region", "City", "Sales", "Note"}, records[0])
			assert.Equal(t, "Montréal", records[1][1])
			assert.Equal(t, "quoted, with comma", records[1][3])
			assert.Contains(t, string(content), "São Paulo")
		})
	}
}

// Re-loading an export gives back the same columns and row count.
func TestCSVWriter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	loader := dataset.NewLoader(nil, 0)
	original, err := loader.LoadFallback(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = NewCSVWriter(nil).WriteDataset(ctx, &buf, original, WriteOptions{})
	require.NoError(t, err)

	reloaded, err := loader.Load(ctx, FileName, &buf)
	require.NoError(t, err)
	assert.Equal(t, original.Columns, reloaded.Columns)
	assert.Equal(t, original.Len(), reloaded.Len())
	assert.Equal(t, original.Fingerprint, reloaded.Fingerprint)

	t.Run("non-ascii text", func(t *testing.T) {
		ds, err := dataset.New("orders.csv", dataset.FormatDelimited,
			[]string{"Région", "Sales"}, [][]string{{"Île-de-France", "10"}})
		require.NoError(t, err)

		for _, bom := range []bool{false, true} {
			var buf bytes.Buffer
			_, err = NewCSVWriter(nil).WriteDataset(ctx, &buf, ds, WriteOptions{BOMPrefix: bom})
			require.NoError(t, err)

			reloaded, err := loader.Load(ctx, FileName, &buf)
			require.NoError(t, err)
			assert.Equal(t, []string{"Région", "Sales"}, reloaded.Columns, "bom=%v", bom)
			assert.Equal(t, "Île-de-France", reloaded.Cell(0, "Région"), "bom=%v", bom)
		}
	})
}

func TestCSVWriter_WriteFile(t *testing.T) {
	ds := latin1Dataset(t)
	path := filepath.Join(t.TempDir(), "nested", FileName)

	require.NoError(t, NewCSVWriter(nil).WriteFile(context.Background(), path, ds, WriteOptions{}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "Region,City,Sales,Note\n"))
}

func TestCSVWriter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	_, err := NewCSVWriter(nil).WriteDataset(ctx, &buf, latin1Dataset(t), WriteOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamWriter(t *testing.T) {
	var buf bytes.Buffer
	stream, err := NewStreamWriter(&buf, []string{"Name", "Value"}, false)
	require.NoError(t, err)

	require.NoError(t, stream.WriteRecord([]string{"a", "1"}))
	require.NoError(t, stream.WriteRecord([]string{"b", "2"}))
	require.NoError(t, stream.Close())

	assert.Equal(t, "Name,Value\na,1\nb,2\n", buf.String())
}
