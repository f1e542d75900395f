package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"salesdash/internal/config"
)

// InstrumentationName names the tracer and meter of this module
const InstrumentationName = "salesdash"

// Version is stamped at build time with -ldflags "-X ...infrastructure.Version=..."
var Version = "dev"

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel sets up tracing (stdout exporter) and metrics (Prometheus
// exporter) as enabled in cfg. Disabled signals fall back to no-op
// providers so callers never nil-check.
func InitializeOTel(cfg config.TelemetryConfig, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = GetLogger()
	}
	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(Version),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	providers := &OTelProviders{
		Logger: logger,
		Tracer: otel.Tracer(InstrumentationName),
		Meter:  noop.NewMeterProvider().Meter(InstrumentationName),
	}

	if cfg.TracingEnabled {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
		)
		otel.SetTracerProvider(tp)
		providers.TracerProvider = tp
		providers.Tracer = tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(Version))
	}

	if cfg.MetricsEnabled {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		otel.SetMeterProvider(mp)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(InstrumentationName, metric.WithInstrumentationVersion(Version))
		providers.PrometheusHTTP = promhttp.Handler()
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("version", Version),
		slog.Bool("tracing_enabled", cfg.TracingEnabled),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled),
		slog.Float64("sample_rate", cfg.SampleRate))

	return providers, nil
}

// Shutdown flushes and stops the providers that were started
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// DashboardMetrics holds the HTTP and pipeline instruments
type DashboardMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	DatasetsLoaded    metric.Int64Counter
	LoadFailures      metric.Int64Counter
	FeaturesSkipped   metric.Int64Counter
	Exports           metric.Int64Counter
	RecomputeDuration metric.Float64Histogram
	FilteredRows      metric.Int64Histogram
	ActiveSessions    metric.Int64UpDownCounter
}

// CreateDashboardMetrics registers the instruments on meter
func CreateDashboardMetrics(meter metric.Meter) (*DashboardMetrics, error) {
	m := &DashboardMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests")); err != nil {
		return nil, err
	}
	if m.DatasetsLoaded, err = meter.Int64Counter("dashboard_datasets_loaded_total",
		metric.WithDescription("Datasets parsed successfully, by format and origin")); err != nil {
		return nil, err
	}
	if m.LoadFailures, err = meter.Int64Counter("dashboard_load_failures_total",
		metric.WithDescription("Uploads rejected with a load error")); err != nil {
		return nil, err
	}
	if m.FeaturesSkipped, err = meter.Int64Counter("dashboard_features_skipped_total",
		metric.WithDescription("Dashboard sections skipped or failed, by feature and status")); err != nil {
		return nil, err
	}
	if m.Exports, err = meter.Int64Counter("dashboard_exports_total",
		metric.WithDescription("Cleaned CSV exports served")); err != nil {
		return nil, err
	}
	if m.RecomputeDuration, err = meter.Float64Histogram("dashboard_recompute_duration_seconds",
		metric.WithDescription("Time to recompute a dashboard from a query"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.FilteredRows, err = meter.Int64Histogram("dashboard_filtered_rows",
		metric.WithDescription("Rows remaining after all filters")); err != nil {
		return nil, err
	}
	if m.ActiveSessions, err = meter.Int64UpDownCounter("dashboard_active_sessions",
		metric.WithDescription("Sessions holding an uploaded dataset")); err != nil {
		return nil, err
	}

	return m, nil
}

// NoopDashboardMetrics returns instruments that record nothing, for tests
// and for runs with metrics disabled.
func NoopDashboardMetrics() *DashboardMetrics {
	m, _ := CreateDashboardMetrics(noop.NewMeterProvider().Meter(InstrumentationName))
	return m
}

// RecordRecompute records the duration and surviving row count of one
// dashboard composition.
func (m *DashboardMetrics) RecordRecompute(ctx context.Context, d time.Duration, filteredRows int, fallback bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("fallback", fallback))
	m.RecomputeDuration.Record(ctx, d.Seconds(), attrs)
	m.FilteredRows.Record(ctx, int64(filteredRows), attrs)
}

// RecordFeature counts a section that did not render
func (m *DashboardMetrics) RecordFeature(ctx context.Context, feature, status string) {
	if m == nil {
		return
	}
	m.FeaturesSkipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("feature", feature),
		attribute.String("status", status)))
}

// RecordLoad counts a load attempt by outcome
func (m *DashboardMetrics) RecordLoad(ctx context.Context, format string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.LoadFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
		return
	}
	m.DatasetsLoaded.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
}

// RecordHTTP records one finished request
func (m *DashboardMetrics) RecordHTTP(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status))
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, d.Seconds(), attrs)
}

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts the OTel trace ID, empty when no span is active
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
