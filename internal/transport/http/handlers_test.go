package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"salesdash/internal/charts"
	"salesdash/internal/dataset"
	apierrors "salesdash/internal/errors"
	"salesdash/internal/infrastructure"
	"salesdash/internal/middleware"
	"salesdash/internal/pipeline"
	"salesdash/internal/services"
	"salesdash/internal/shared/testutil"
)

type mockDashboardService struct {
	mock.Mock
}

func (m *mockDashboardService) Dataset(ctx context.Context, sessionID string) (*services.DatasetInfo, error) {
	args := m.Called(ctx, sessionID)
	info, _ := args.Get(0).(*services.DatasetInfo)
	return info, args.Error(1)
}

func (m *mockDashboardService) Upload(ctx context.Context, sessionID, name string, r io.Reader) (*services.DatasetInfo, error) {
	args := m.Called(ctx, sessionID, name, r)
	info, _ := args.Get(0).(*services.DatasetInfo)
	return info, args.Error(1)
}

func (m *mockDashboardService) Reset(ctx context.Context, sessionID string) (*services.DatasetInfo, error) {
	args := m.Called(ctx, sessionID)
	info, _ := args.Get(0).(*services.DatasetInfo)
	return info, args.Error(1)
}

func (m *mockDashboardService) Dashboard(ctx context.Context, sessionID string, q pipeline.Query) (*pipeline.Dashboard, error) {
	args := m.Called(ctx, sessionID, q)
	d, _ := args.Get(0).(*pipeline.Dashboard)
	return d, args.Error(1)
}

func (m *mockDashboardService) Chart(ctx context.Context, sessionID, name string, q pipeline.Query, w io.Writer) error {
	args := m.Called(ctx, sessionID, name, q, w)
	if err := args.Error(0); err != nil {
		return err
	}
	_, err := io.WriteString(w, "<svg></svg>")
	return err
}

func (m *mockDashboardService) ExportSource(ctx context.Context, sessionID string) (*dataset.Dataset, error) {
	args := m.Called(ctx, sessionID)
	ds, _ := args.Get(0).(*dataset.Dataset)
	return ds, args.Error(1)
}

func (m *mockDashboardService) WriteExport(ctx context.Context, w io.Writer, ds *dataset.Dataset) error {
	args := m.Called(ctx, w, ds)
	_, _ = io.WriteString(w, "Region,Sales\r\nEast,10\r\n")
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDeps() (*middleware.Validator, *apierrors.ErrorHandler) {
	logger := testLogger()
	return middleware.NewValidator(logger), apierrors.NewErrorHandler(logger, false)
}

// withSession mimics SessionMiddleware with a fixed id
func withSession(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r.WithContext(infrastructure.WithSessionID(r.Context(), "s1")))
	})
}

func sampleInfo() *services.DatasetInfo {
	return &services.DatasetInfo{
		Source:   "Sample - Superstore.csv",
		Format:   dataset.FormatDelimited,
		Fallback: true,
		Rows:     3,
		Columns:  []string{"Region", "Sales"},
	}
}

func TestDatasetHandler(t *testing.T) {
	v, eh := testDeps()

	t.Run("get", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("Dataset", mock.Anything, "s1").Return(sampleInfo(), nil)
		h := withSession(NewDatasetHandler(svc, v, 1<<20, testLogger(), eh).Routes())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"fallback":true`)
	})

	t.Run("upload", func(t *testing.T) {
		svc := &mockDashboardService{}
		info := &services.DatasetInfo{Source: "orders.csv", Rows: 2}
		svc.On("Upload", mock.Anything, "s1", "orders.csv", mock.Anything).Return(info, nil).Once()
		h := withSession(NewDatasetHandler(svc, v, 1<<20, testLogger(), eh).Routes())

		body, ct := testutil.MultipartUpload(t, "file", "orders.csv", "Region,Sales\nEast,1\n")
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("upload without file", func(t *testing.T) {
		svc := &mockDashboardService{}
		h := withSession(NewDatasetHandler(svc, v, 1<<20, testLogger(), eh).Routes())

		body, ct := testutil.MultipartUpload(t, "other", "orders.csv", "x")
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unreadable upload", func(t *testing.T) {
		svc := &mockDashboardService{}
		loadErr := &dataset.LoadError{Source: "notes.pdf", Err: dataset.ErrUnsupportedFormat}
		svc.On("Upload", mock.Anything, "s1", "notes.pdf", mock.Anything).Return(nil, loadErr)
		h := withSession(NewDatasetHandler(svc, v, 1<<20, testLogger(), eh).Routes())

		body, ct := testutil.MultipartUpload(t, "file", "notes.pdf", "%PDF")
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "unsupported file format")
	})

	t.Run("reset", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("Reset", mock.Anything, "s1").Return(sampleInfo(), nil).Once()
		h := withSession(NewDatasetHandler(svc, v, 1<<20, testLogger(), eh).Routes())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})
}

func TestDashboardHandler(t *testing.T) {
	v, eh := testDeps()

	t.Run("filters reach the service", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("Dashboard", mock.Anything, "s1", mock.MatchedBy(func(q pipeline.Query) bool {
			return q.Start != nil && q.End == nil &&
				assert.ObjectsAreEqual([]string{"East", "West"}, q.Selection[dataset.ColRegion])
		})).Return(&pipeline.Dashboard{TotalRows: 3, FilteredRows: 2}, nil).Once()
		h := NewDashboardHandler(svc, v, testLogger(), eh)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard?start=2021-01-01&region=East&region=West", nil)
		withSession(http.HandlerFunc(h.Dashboard)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		assert.Contains(t, rec.Body.String(), `"filtered_rows":2`)
		svc.AssertExpectations(t)
	})

	t.Run("padded values are passed unchanged", func(t *testing.T) {
		svc := &mockDashboardService{}
		want := pipeline.Query{Selection: pipeline.Selection{dataset.ColRegion: {"East "}}}
		svc.On("Dashboard", mock.Anything, "s1", want).
			Return(&pipeline.Dashboard{TotalRows: 2, FilteredRows: 1}, nil).Once()
		h := NewDashboardHandler(svc, v, testLogger(), eh)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard?region=East+&region=+&start=+", nil)
		withSession(http.HandlerFunc(h.Dashboard)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("bad date", func(t *testing.T) {
		svc := &mockDashboardService{}
		h := NewDashboardHandler(svc, v, testLogger(), eh)

		rec := httptest.NewRecorder()
		withSession(http.HandlerFunc(h.Dashboard)).ServeHTTP(rec,
			httptest.NewRequest(http.MethodGet, "/api/dashboard?start=01/02/2021", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Dashboard", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("chart", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("Chart", mock.Anything, "s1", "region", pipeline.Query{}, mock.Anything).Return(nil)
		svc.On("Chart", mock.Anything, "s1", "radar", pipeline.Query{}, mock.Anything).
			Return(charts.ErrUnknownChart)
		h := withSession(NewDashboardHandler(svc, v, testLogger(), eh).Routes())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/region.svg", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
		assert.Equal(t, "<svg></svg>", rec.Body.String())

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/radar.svg", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestExportHandler(t *testing.T) {
	_, eh := testDeps()
	ds, err := dataset.New("orders.csv", dataset.FormatDelimited,
		[]string{"Region", "Sales"}, [][]string{{"East", "10"}})
	require.NoError(t, err)

	svc := &mockDashboardService{}
	svc.On("ExportSource", mock.Anything, "s1").Return(ds, nil)
	svc.On("WriteExport", mock.Anything, mock.Anything, ds).Return(nil)
	h := withSession(NewExportHandler(svc, testLogger(), eh))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="cleaned_data.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, `"`+ds.Fingerprint+`"`, rec.Header().Get("ETag"))
	assert.Equal(t, "Region,Sales\r\nEast,10\r\n", rec.Body.String())

	t.Run("not modified", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/export", nil)
		req.Header.Set("If-None-Match", `W/"`+ds.Fingerprint+`"`)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotModified, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func TestEtagMatches(t *testing.T) {
	assert.False(t, etagMatches("", `"a"`))
	assert.True(t, etagMatches(`"b", "a"`, `"a"`))
	assert.True(t, etagMatches(`*`, `"a"`))
	assert.False(t, etagMatches(`"b"`, `"a"`))
}

func TestClientLogHandler(t *testing.T) {
	v, eh := testDeps()
	h := NewClientLogHandler(testLogger(), v, eh)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"level":"warn","message":"chart failed","data":{"src":"/x"}}`, http.StatusOK},
		{"missing message", `{"level":"warn"}`, http.StatusBadRequest},
		{"bad level", `{"level":"fatal","message":"x"}`, http.StatusBadRequest},
		{"not json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Handle(rec, httptest.NewRequest(http.MethodPost, "/api/client-log", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

type fixedHub map[string]interface{}

func (f fixedHub) GetHubMetrics() map[string]interface{} { return f }

func TestMetricsHandler(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewMetricsHandler(nil, nil).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("websocket stats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h := NewMetricsHandler(nil, fixedHub{"active_clients": 2})
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/websocket", nil))

		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, float64(2), got["active_clients"])
	})
}

func TestSessionMiddleware(t *testing.T) {
	var seen string
	h := SessionMiddleware(sessionFunc(func(http.ResponseWriter, *http.Request) string { return "abc" }))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = infrastructure.GetSessionID(r.Context())
		}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "abc", seen)
}

type sessionFunc func(http.ResponseWriter, *http.Request) string

func (f sessionFunc) ID(w http.ResponseWriter, r *http.Request) string { return f(w, r) }

func TestEncodeRequest(t *testing.T) {
	req := pipeline.Request{Start: "2021-01-01", Region: []string{"East", "West"}, City: []string{"New York City"}}
	got := encodeRequest(req)
	assert.Equal(t, "city=New+York+City&region=East&region=West&start=2021-01-01", got)

	r := httptest.NewRequest(http.MethodGet, "/?"+got+"&state=+", nil)
	assert.Equal(t, req, requestFromValues(r.URL.Query()), "blank values are dropped")

	padded := pipeline.Request{Region: []string{" East "}}
	r = httptest.NewRequest(http.MethodGet, "/?"+encodeRequest(padded), nil)
	assert.Equal(t, padded, requestFromValues(r.URL.Query()), "cell text survives the round trip")
}

func newPageHandler(t *testing.T, svc DashboardServiceInterface) http.Handler {
	t.Helper()
	return newPageHandlerWithLogger(t, svc, testLogger())
}

func newPageHandlerWithLogger(t *testing.T, svc DashboardServiceInterface, logger *slog.Logger) http.Handler {
	t.Helper()
	v, eh := testDeps()
	h, err := NewPageHandler(svc, v, 1<<20, os.DirFS("../../../web"), logger, eh)
	require.NoError(t, err)
	return withSession(h.Routes())
}

func TestPageHandler(t *testing.T) {
	dash := &pipeline.Dashboard{
		TotalRows:    3,
		FilteredRows: 3,
		Features: []pipeline.FeatureResult{
			{Feature: dataset.FeatureSalesByRegion, Status: pipeline.StatusReady},
			{Feature: dataset.FeaturePivotTable, Status: pipeline.StatusFailed, Message: "Pivot table cannot be created."},
		},
		Filters: []pipeline.StageResult{
			{Column: dataset.ColRegion, Candidates: []string{"East", "West"}, Selected: []string{"East"}},
		},
		Raw: &pipeline.Table{Columns: []string{"Region"}, Rows: [][]string{{"East"}}, Total: 3},
	}

	t.Run("renders", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("Dataset", mock.Anything, "s1").Return(sampleInfo(), nil)
		svc.On("Dashboard", mock.Anything, "s1", mock.Anything).Return(dash, nil)

		rec := httptest.NewRecorder()
		newPageHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?region=East", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Using default sample dataset: Sample - Superstore.csv")
		assert.Contains(t, body, `<option value="East" selected>`)
		assert.Contains(t, body, `/api/charts/region.svg?region=East`)
		assert.Contains(t, body, "Pivot table cannot be created.")
		assert.NotContains(t, body, "Sales by Category", "skipped sections are hidden")
		assert.Contains(t, body, "Showing 1 of 3 rows")
		assert.Contains(t, body, `href="/export"`)
	})

	t.Run("invalid filter", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("Dataset", mock.Anything, "s1").Return(sampleInfo(), nil)
		svc.On("Dashboard", mock.Anything, "s1", pipeline.Query{}).Return(dash, nil)

		rec := httptest.NewRecorder()
		newPageHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?end=yesterday", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `class="banner error"`)
	})

	t.Run("upload redirects", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("Upload", mock.Anything, "s1", "orders.csv", mock.Anything).
			Return(&services.DatasetInfo{Source: "orders.csv"}, nil)

		body, ct := testutil.MultipartUpload(t, "file", "orders.csv", "Region\nEast\n")
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		newPageHandler(t, svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	})

	t.Run("failed upload shows error", func(t *testing.T) {
		svc := &mockDashboardService{}
		loadErr := &dataset.LoadError{Source: "empty.csv", Format: dataset.FormatDelimited, Err: dataset.ErrEmptyFile}
		svc.On("Upload", mock.Anything, "s1", "empty.csv", mock.Anything).Return(nil, loadErr)

		logger, logs := testutil.NewTestLogger(t)
		body, ct := testutil.MultipartUpload(t, "file", "empty.csv", "")
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		newPageHandlerWithLogger(t, svc, logger).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		page := rec.Body.String()
		assert.Contains(t, page, "file is empty")
		assert.Contains(t, page, `action="/upload"`)
		assert.NotContains(t, page, "Using default sample dataset")
		assert.NotContains(t, page, "rows selected")
		assert.NotContains(t, page, "/api/charts/")
		assert.NotContains(t, page, `id="filters"`)
		assert.NotContains(t, page, `href="/export"`)
		svc.AssertNotCalled(t, "Dataset", mock.Anything, mock.Anything)
		svc.AssertNotCalled(t, "Dashboard", mock.Anything, mock.Anything, mock.Anything)

		r, ok := logs.Find("Upload rejected")
		require.True(t, ok)
		assert.Equal(t, slog.LevelWarn, r.Level)
		assert.Equal(t, "empty.csv", r.Attrs["file"])
		assert.Equal(t, int64(http.StatusUnprocessableEntity), r.Attrs["status"])
		assert.True(t, logs.ContainsAttr("component", "audit"))
	})

	t.Run("reset redirects", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("Reset", mock.Anything, "s1").Return(sampleInfo(), nil).Once()

		rec := httptest.NewRecorder()
		newPageHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reset", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("service failure", func(t *testing.T) {
		svc := &mockDashboardService{}
		svc.On("Dataset", mock.Anything, "s1").Return(nil, errors.New("boom"))

		rec := httptest.NewRecorder()
		newPageHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
