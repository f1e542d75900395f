package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"salesdash/internal/charts"
	"salesdash/internal/dataset"
	"salesdash/internal/pipeline"
)

const regionalCSV = `Order Date,Region,State,City,Category,Segment,Sales,Profit,Quantity
01/05/2021,East,New York,New York City,Furniture,Consumer,100,10,1
02/10/2021,West,California,Los Angeles,Technology,Corporate,250.5,40,2
03/15/2021,East,Ohio,Columbus,Office Supplies,Consumer,50,-5,3
`

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifySession(sessionID string, event Event) {
	m.Called(sessionID, event)
}

func newTestService(t *testing.T) *DashboardService {
	t.Helper()
	return NewDashboardService(DashboardDeps{}, nil)
}

func TestDashboardService_DatasetDefaultsToSample(t *testing.T) {
	svc := newTestService(t)

	info, err := svc.Dataset(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, info.Fallback)
	assert.Greater(t, info.Rows, 0)
	assert.Empty(t, info.Missing)
	assert.Len(t, info.Capabilities, len(dataset.Capabilities))
	for _, c := range info.Capabilities {
		assert.True(t, c.Enabled, string(c.Feature))
	}
}

func TestDashboardService_RequiresSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Dataset(ctx, "")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = svc.Upload(ctx, "", "a.csv", strings.NewReader(regionalCSV))
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = svc.Reset(ctx, "")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = svc.Upload(ctx, "s1", "a.csv", nil)
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestDashboardService_UploadAndReset(t *testing.T) {
	svc := newTestService(t)
	n := &mockNotifier{}
	svc.SetNotifier(n)
	ctx := context.Background()

	n.On("NotifySession", "s1", mock.MatchedBy(func(e Event) bool {
		return e.Type == EventDatasetChanged && e.Source == "regional.csv"
	})).Once()

	info, err := svc.Upload(ctx, "s1", "regional.csv", strings.NewReader(regionalCSV))
	require.NoError(t, err)
	assert.False(t, info.Fallback)
	assert.Equal(t, 3, info.Rows)
	assert.Equal(t, dataset.FormatDelimited, info.Format)
	assert.NotEmpty(t, info.Missing, "the upload lacks several required columns")
	assert.Contains(t, info.Warning, "missing columns")
	assert.Equal(t, 1, svc.SessionCount())

	other, err := svc.Dataset(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, other.Fallback, "uploads are per session")

	n.On("NotifySession", "s1", mock.MatchedBy(func(e Event) bool {
		return e.Type == EventDatasetChanged && e.Fingerprint == other.Fingerprint
	})).Once()

	info, err = svc.Reset(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, info.Fallback)
	assert.Equal(t, 0, svc.SessionCount())
	n.AssertExpectations(t)
}

func TestDashboardService_FailedUploadKeepsPrevious(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "s1", "regional.csv", strings.NewReader(regionalCSV))
	require.NoError(t, err)

	tests := []struct {
		name string
		file string
		body string
	}{
		{"unsupported extension", "report.pdf", "%PDF"},
		{"empty csv", "empty.csv", "   \n"},
		{"corrupt workbook", "broken.xlsx", "not a zip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, "s1", tt.file, strings.NewReader(tt.body))
			require.Error(t, err)
			var loadErr *dataset.LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, tt.file, loadErr.Source)

			info, err := svc.Dataset(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "regional.csv", info.Source)
		})
	}
}

func TestDashboardService_Dashboard(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "s1", "regional.csv", strings.NewReader(regionalCSV))
	require.NoError(t, err)

	d, err := svc.Dashboard(ctx, "s1", pipeline.Query{
		Selection: pipeline.Selection{dataset.ColRegion: {"East"}},
	})
	require.NoError(t, err)
	assert.False(t, d.Fallback)
	assert.Equal(t, 3, d.TotalRows)
	assert.Equal(t, 2, d.FilteredRows)
	assert.True(t, d.Ready(string(dataset.FeatureSalesByCategory)))
	assert.False(t, d.Shown(string(dataset.FeatureSalesHierarchy)), "no Sub-Category column")

	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	d, err = svc.Dashboard(ctx, "s1", pipeline.Query{Start: &start, End: &end})
	require.NoError(t, err)
	assert.Equal(t, 0, d.FilteredRows, "inverted range selects nothing")
}

func TestDashboardService_DashboardCanceled(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Dashboard(ctx, "s1", pipeline.Query{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDashboardService_Chart(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, svc.Chart(ctx, "s1", string(charts.KindRegion), pipeline.Query{}, &buf))
	assert.Contains(t, buf.String(), "<svg")

	err := svc.Chart(ctx, "s1", "radar", pipeline.Query{}, &buf)
	assert.ErrorIs(t, err, charts.ErrUnknownChart)

	_, err = svc.Upload(ctx, "s1", "regional.csv", strings.NewReader(regionalCSV))
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, svc.Chart(ctx, "s1", string(charts.KindScatter), pipeline.Query{}, &buf))
}

func TestDashboardService_Export(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "s1", "regional.csv", strings.NewReader(regionalCSV))
	require.NoError(t, err)

	ds, err := svc.ExportSource(ctx, "s1")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteExport(ctx, &buf, ds))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4, "header plus every row, unfiltered")
	assert.Equal(t, ds.Columns, records[0])
}

func TestDashboardService_ReadyAndSweep(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Ready(ctx))
	_, err := svc.Upload(ctx, "s1", "regional.csv", strings.NewReader(regionalCSV))
	require.NoError(t, err)
	assert.Equal(t, 0, svc.Sweep(ctx), "fresh sessions survive a sweep")
	assert.Equal(t, 1, svc.SessionCount())
}
