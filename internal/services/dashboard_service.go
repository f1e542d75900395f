package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"salesdash/internal/charts"
	"salesdash/internal/dataset"
	"salesdash/internal/exporter"
	"salesdash/internal/infrastructure"
	"salesdash/internal/pipeline"
	"salesdash/internal/session"
)

// Notifier pushes events to the live connections of one session
type Notifier interface {
	NotifySession(sessionID string, event Event)
}

// Event is a server-initiated message for a session's open pages
type Event struct {
	Type        string `json:"type"`
	Source      string `json:"source,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// EventDatasetChanged tells open pages to recompute
const EventDatasetChanged = "dataset_changed"

// DatasetInfo describes the dataset a session is working on
type DatasetInfo struct {
	Source       string             `json:"source"`
	Format       dataset.Format     `json:"format"`
	Fingerprint  string             `json:"fingerprint"`
	Fallback     bool               `json:"fallback"`
	Rows         int                `json:"rows"`
	Columns      []string           `json:"columns"`
	Missing      []string           `json:"missing,omitempty"`
	Warning      string             `json:"warning,omitempty"`
	Capabilities []CapabilityStatus `json:"capabilities"`
	LoadedAt     time.Time          `json:"loaded_at"`
}

// CapabilityStatus reports whether one section can run on the dataset
type CapabilityStatus struct {
	Feature dataset.Feature `json:"feature"`
	Enabled bool            `json:"enabled"`
	Missing []string        `json:"missing,omitempty"`
}

// DashboardDeps are the collaborators of DashboardService
type DashboardDeps struct {
	Sessions *session.Manager
	Loader   *dataset.Loader
	Composer *pipeline.Composer
	Charts   *charts.Renderer
	Exporter *exporter.CSVWriter
	Metrics  *infrastructure.DashboardMetrics
	Tracer   trace.Tracer
}

// DashboardService ties sessions, loading, recomputation, charts and export
// together. It holds no per-request state.
type DashboardService struct {
	sessions *session.Manager
	loader   *dataset.Loader
	composer *pipeline.Composer
	charts   *charts.Renderer
	exporter *exporter.CSVWriter
	metrics  *infrastructure.DashboardMetrics
	tracer   trace.Tracer
	logger   *slog.Logger

	mu       sync.RWMutex
	notifier Notifier

	sessionsMu   sync.Mutex
	lastSessions int
}

// NewDashboardService creates the service. Nil collaborators get defaults.
func NewDashboardService(deps DashboardDeps, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Loader == nil {
		deps.Loader = dataset.NewLoader(logger, 0)
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewManager(deps.Loader, session.Options{}, logger)
	}
	if deps.Composer == nil {
		deps.Composer = pipeline.NewComposer(logger, pipeline.Options{})
	}
	if deps.Charts == nil {
		deps.Charts = charts.NewRenderer(charts.Options{}, logger)
	}
	if deps.Exporter == nil {
		deps.Exporter = exporter.NewCSVWriter(logger)
	}
	if deps.Metrics == nil {
		deps.Metrics = infrastructure.NoopDashboardMetrics()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(infrastructure.InstrumentationName)
	}

	return &DashboardService{
		sessions: deps.Sessions,
		loader:   deps.Loader,
		composer: deps.Composer,
		charts:   deps.Charts,
		exporter: deps.Exporter,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		logger:   logger.With(slog.String("component", "dashboard_service")),
	}
}

// SetNotifier installs the live-update channel. It may be called once the
// websocket hub exists.
func (s *DashboardService) SetNotifier(n Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

func (s *DashboardService) notify(sessionID string, info *DatasetInfo) {
	s.mu.RLock()
	n := s.notifier
	s.mu.RUnlock()
	if n == nil {
		return
	}
	n.NotifySession(sessionID, Event{
		Type:        EventDatasetChanged,
		Source:      info.Source,
		Fingerprint: info.Fingerprint,
	})
}

// Dataset describes the session's current dataset
func (s *DashboardService) Dataset(ctx context.Context, sessionID string) (*DatasetInfo, error) {
	ds, fallback, err := s.current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return describe(ds, fallback), nil
}

// Upload parses r as the named file and makes it the session's dataset. A
// failed upload leaves the previous dataset in place.
func (s *DashboardService) Upload(ctx context.Context, sessionID, name string, r io.Reader) (*DatasetInfo, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	if r == nil {
		return nil, ErrNoFile
	}

	ctx, span := s.tracer.Start(ctx, "dashboard.upload", trace.WithAttributes(
		attribute.String("upload.name", name)))
	defer span.End()

	format, _ := dataset.FormatFor(name)
	ds, err := s.loader.Load(ctx, name, r)
	s.metrics.RecordLoad(ctx, string(format), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}

	s.sessions.Put(sessionID, ds)
	s.syncSessions(ctx)

	info := describe(ds, false)
	span.SetAttributes(
		attribute.Int("dataset.rows", info.Rows),
		attribute.String("dataset.fingerprint", info.Fingerprint))
	s.logger.InfoContext(ctx, "Dataset uploaded",
		slog.String("source", ds.Source),
		slog.String("format", string(ds.Format)),
		slog.Int("rows", ds.Len()),
		slog.Int("missing_columns", len(info.Missing)))

	s.notify(sessionID, info)
	return info, nil
}

// Reset discards the session's upload and returns the bundled sample
func (s *DashboardService) Reset(ctx context.Context, sessionID string) (*DatasetInfo, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	s.sessions.Reset(sessionID)
	s.syncSessions(ctx)

	info, err := s.Dataset(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Session reset to sample dataset")
	s.notify(sessionID, info)
	return info, nil
}

// Dashboard recomputes every section for the query
func (s *DashboardService) Dashboard(ctx context.Context, sessionID string, q pipeline.Query) (*pipeline.Dashboard, error) {
	ctx, span := s.tracer.Start(ctx, "dashboard.compose")
	defer span.End()

	ds, fallback, err := s.current(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dataset unavailable")
		return nil, err
	}

	start := time.Now()
	d := s.composer.Compose(ctx, ds, q)
	d.Fallback = fallback
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("compose dashboard: %w", err)
	}

	s.metrics.RecordRecompute(ctx, time.Since(start), d.FilteredRows, fallback)
	for _, f := range d.Features {
		if f.Status != pipeline.StatusReady {
			s.metrics.RecordFeature(ctx, string(f.Feature), string(f.Status))
		}
	}

	span.SetAttributes(
		attribute.String("dataset.source", d.Source),
		attribute.Int("dataset.rows", d.TotalRows),
		attribute.Int("dashboard.filtered_rows", d.FilteredRows),
		attribute.Bool("dataset.fallback", fallback))
	return d, nil
}

// Chart renders one chart as SVG for the query
func (s *DashboardService) Chart(ctx context.Context, sessionID, name string, q pipeline.Query, w io.Writer) error {
	kind := charts.Kind(name)
	if _, ok := kind.Feature(); !ok {
		return fmt.Errorf("%w: %q", charts.ErrUnknownChart, name)
	}

	d, err := s.Dashboard(ctx, sessionID, q)
	if err != nil {
		return err
	}

	_, span := s.tracer.Start(ctx, "dashboard.chart", trace.WithAttributes(
		attribute.String("chart.kind", name)))
	defer span.End()

	if err := s.charts.Render(w, kind, d); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ExportSource returns the unfiltered dataset an export would write. Its
// fingerprint doubles as the export's ETag.
func (s *DashboardService) ExportSource(ctx context.Context, sessionID string) (*dataset.Dataset, error) {
	ds, _, err := s.current(ctx, sessionID)
	return ds, err
}

// WriteExport writes ds as cleaned CSV
func (s *DashboardService) WriteExport(ctx context.Context, w io.Writer, ds *dataset.Dataset) error {
	ctx, span := s.tracer.Start(ctx, "dashboard.export")
	defer span.End()

	n, err := s.exporter.WriteDataset(ctx, w, ds, exporter.WriteOptions{})
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.metrics.Exports.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("export.bytes", n))
	return nil
}

// Sweep expires idle sessions
func (s *DashboardService) Sweep(ctx context.Context) int {
	n := s.sessions.Sweep()
	s.syncSessions(ctx)
	return n
}

// Ready reports whether the bundled sample can be served
func (s *DashboardService) Ready(ctx context.Context) error {
	_, err := s.sessions.Fallback(ctx)
	return err
}

// SessionCount is the number of sessions holding an upload
func (s *DashboardService) SessionCount() int {
	return s.sessions.Len()
}

func (s *DashboardService) current(ctx context.Context, sessionID string) (*dataset.Dataset, bool, error) {
	if sessionID == "" {
		return nil, false, ErrNoSession
	}
	return s.sessions.Dataset(ctx, sessionID)
}

// syncSessions moves the active-session gauge by the change since the last
// call, covering uploads, resets, evictions and expiry alike.
func (s *DashboardService) syncSessions(ctx context.Context) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	n := s.sessions.Len()
	if delta := n - s.lastSessions; delta != 0 {
		s.metrics.ActiveSessions.Add(ctx, int64(delta))
	}
	s.lastSessions = n
}

func describe(ds *dataset.Dataset, fallback bool) *DatasetInfo {
	info := &DatasetInfo{
		Source:      ds.Source,
		Format:      ds.Format,
		Fingerprint: ds.Fingerprint,
		Fallback:    fallback,
		Rows:        ds.Len(),
		Columns:     ds.Columns,
		LoadedAt:    ds.LoadedAt,
	}
	if w := dataset.CheckSchema(ds); w != nil {
		info.Missing = w.Missing
		info.Warning = w.Error()
	}
	caps := dataset.CheckCapabilities(ds.Columns)
	for _, c := range dataset.Capabilities {
		info.Capabilities = append(info.Capabilities, CapabilityStatus{
			Feature: c.Feature,
			Enabled: caps.Enabled(c.Feature),
			Missing: caps.Missing(c.Feature),
		})
	}
	return info
}
