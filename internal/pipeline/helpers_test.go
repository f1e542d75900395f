package pipeline

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"salesdash/internal/dataset"
)

// table builds a dataset from a comma separated header and rows.
func table(t *testing.T, header string, rows ...string) *dataset.Dataset {
	t.Helper()
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = strings.Split(r, ",")
	}
	ds, err := dataset.New("test.csv", dataset.FormatDelimited, strings.Split(header, ","), records)
	require.NoError(t, err)
	return ds
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

const salesHeader = "Order Date,Region,State,City,Category,Sub-Category,Segment,Sales,Profit,Quantity"

func salesData(t *testing.T) *dataset.Dataset {
	t.Helper()
	return table(t, salesHeader,
		"1/15/2023,East,New York,New York City,Technology,Phones,Consumer,100,20,2",
		"1/28/2023,East,New York,Buffalo,Furniture,Chairs,Corporate,50.50,-5,1",
		"2/3/2023,West,California,Los Angeles,Technology,Phones,Consumer,200,40,4",
		"3/10/2023,West,Washington,Seattle,Office Supplies,Paper,Home Office,25.25,5,5",
		"3/11/2023,East,Pennsylvania,Philadelphia,Furniture,Tables,Consumer,300,-30,3",
		"4/2/2023,Central,Texas,Houston,Technology,Machines,Corporate,75,10,1",
	)
}
