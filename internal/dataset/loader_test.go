package dataset

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func latin1(t *testing.T, s string) []byte {
	t.Helper()
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return b
}

func workbook(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"orders.csv", FormatDelimited, false},
		{"orders.TXT", FormatDelimited, false},
		{"orders.xlsx", FormatSpreadsheet, false},
		{"legacy.XLS", FormatSpreadsheet, false},
		{"orders.json", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFor(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoader_LoadDelimited(t *testing.T) {
	loader := NewLoader(nil, 0)
	ctx := context.Background()

	t.Run("decodes latin-1", func(t *testing.T) {
		data := latin1(t, "City,Sales\nSão Paulo,10\nZürich,20\n")
		ds, err := loader.Load(ctx, "cities.csv", bytes.NewReader(data))
		require.NoError(t, err)

		assert.Equal(t, []string{"City", "Sales"}, ds.Columns)
		assert.Equal(t, 2, ds.Len())
		assert.Equal(t, "São Paulo", ds.Cell(0, "City"))
		assert.Equal(t, "Zürich", ds.Cell(1, "City"))
		assert.Equal(t, FormatDelimited, ds.Format)
		assert.NotEmpty(t, ds.Fingerprint)
	})

	t.Run("strips utf-8 bom", func(t *testing.T) {
		data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Region,Sales\nEast,1\n")...)
		ds, err := loader.Load(ctx, "bom.csv", bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "Region", ds.Columns[0])
	})

	t.Run("keeps utf-8 text", func(t *testing.T) {
		ds, err := loader.Load(ctx, "cities.csv", strings.NewReader("Région,Sales\nSão Paulo,10\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"Région", "Sales"}, ds.Columns)
		assert.Equal(t, "São Paulo", ds.Cell(0, "Région"))
	})

	t.Run("utf-8 after bom", func(t *testing.T) {
		data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("City\nZürich\n")...)
		ds, err := loader.Load(ctx, "bom.csv", bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "Zürich", ds.Cell(0, "City"))
	})

	t.Run("tab separated txt", func(t *testing.T) {
		ds, err := loader.Load(ctx, "data.txt", strings.NewReader("Region\tSales\nWest\t5\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"Region", "Sales"}, ds.Columns)
		assert.Equal(t, "5", ds.Cell(0, "Sales"))
	})

	t.Run("pads short rows", func(t *testing.T) {
		ds, err := loader.Load(ctx, "short.csv", strings.NewReader("A,B,C\n1,2\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2", ""}, ds.Row(0))
	})

	t.Run("renames blank and duplicate headers", func(t *testing.T) {
		ds, err := loader.Load(ctx, "dup.csv", strings.NewReader("Sales,,Sales\n1,2,3\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"Sales", "Unnamed: 1", "Sales.1"}, ds.Columns)
	})
}

func TestLoader_LoadErrors(t *testing.T) {
	loader := NewLoader(nil, 64)
	ctx := context.Background()

	tests := []struct {
		name     string
		file     string
		content  []byte
		sentinel error
	}{
		{"unsupported extension", "data.json", []byte(`{"a":1}`), ErrUnsupportedFormat},
		{"empty file", "empty.csv", []byte("  \n"), ErrEmptyFile},
		{"too large", "big.csv", bytes.Repeat([]byte("a,b\n"), 40), ErrTooLarge},
		{"ragged row", "ragged.csv", []byte("A,B\n1,2,3\n"), ErrRaggedRow},
		{"broken quoting", "quote.csv", []byte("A,B\n\"1,2\n"), nil},
		{"legacy binary xls", "old.xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := loader.Load(ctx, tt.file, bytes.NewReader(tt.content))
			require.Error(t, err)
			assert.Nil(t, ds)

			var le *LoadError
			require.True(t, errors.As(err, &le), "expected *LoadError, got %T", err)
			assert.Equal(t, tt.file, le.Source)
			assert.True(t, IsLoadError(err))
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestLoader_LoadSpreadsheet(t *testing.T) {
	loader := NewLoader(nil, 0)

	data := workbook(t,
		[]interface{}{"Order Date", "Region", "Sales"},
		[]interface{}{44941, "East", 100.5},
		[]interface{}{},
		[]interface{}{44952, "West", 50},
	)

	ds, err := loader.Load(context.Background(), "orders.xlsx", bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, FormatSpreadsheet, ds.Format)
	assert.Equal(t, []string{"Order Date", "Region", "Sales"}, ds.Columns)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "44941", ds.Cell(0, "Order Date"))
	assert.Equal(t, "100.5", ds.Cell(0, "Sales"))
	assert.Equal(t, "West", ds.Cell(1, "Region"))
}

func TestLoader_LoadFallback(t *testing.T) {
	ds, err := NewLoader(nil, 0).LoadFallback(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SampleName, ds.Source)
	assert.Greater(t, ds.Len(), 100)
	assert.Nil(t, CheckSchema(ds), "bundled sample must carry the full schema")
}
