package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/dataset"
)

func TestBuildPivot(t *testing.T) {
	ds := table(t, "Order Date,Sub-Category,Sales",
		"3/5/2023,Phones,10",
		"1/5/2023,Phones,20",
		"1/9/2023,Phones,5",
		"3/7/2023,Chairs,40",
		"5/1/2022,Chairs,1",
	)
	idx, err := ParseDates(ds)
	require.NoError(t, err)

	p, err := BuildPivot(dataset.All(ds), idx)
	require.NoError(t, err)

	assert.Equal(t, dataset.ColSubCategory, p.RowLabel)
	assert.Equal(t, []string{"Chairs", "Phones"}, p.Rows)
	assert.Equal(t, []string{"January", "March", "May"}, p.Columns)

	// Chairs x January never occurs: empty, not zero
	assert.Nil(t, p.Cells[0][0].Value)
	require.NotNil(t, p.Cells[0][1].Value)
	assert.True(t, dec("40").Equal(*p.Cells[0][1].Value))
	require.NotNil(t, p.Cells[1][0].Value)
	assert.True(t, dec("25").Equal(*p.Cells[1][0].Value))
	assert.Nil(t, p.Cells[1][2].Value)

	assert.Equal(t, 1.0, p.Cells[0][1].Shade)
	assert.Equal(t, 0.0, p.Cells[0][2].Shade)
}

func TestBuildPivot_Failures(t *testing.T) {
	noSales := table(t, "Order Date,Sub-Category", "1/1/2023,Phones")
	idxNoSales, err := ParseDates(noSales)
	require.NoError(t, err)

	withSales := table(t, "Order Date,Sub-Category,Sales", "1/1/2023,Phones,3")
	idx, err := ParseDates(withSales)
	require.NoError(t, err)

	tests := []struct {
		name string
		view dataset.View
		idx  *DateIndex
		want error
	}{
		{"missing sales", dataset.All(noSales), idxNoSales, ErrColumnsMissing},
		{"no dates", dataset.All(withSales), nil, ErrNoDates},
		{"no rows", dataset.All(withSales).Empty(), idx, ErrNoRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPivot(tt.view, tt.idx)
			var tre *TableRenderError
			require.True(t, errors.As(err, &tre))
			assert.Equal(t, "Pivot table failed.", tre.Placeholder)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
