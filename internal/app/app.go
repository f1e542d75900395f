package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"salesdash/internal/charts"
	"salesdash/internal/config"
	"salesdash/internal/dataset"
	"salesdash/internal/errors"
	"salesdash/internal/exporter"
	"salesdash/internal/infrastructure"
	customMiddleware "salesdash/internal/middleware"
	"salesdash/internal/pipeline"
	"salesdash/internal/services"
	"salesdash/internal/session"
	handlers "salesdash/internal/transport/http"
	ws "salesdash/internal/websocket"
)

// AppName is reported in startup logs
const AppName = "Sales Dashboard"

// BuildTime is set at compile time with -ldflags
var BuildTime = ""

// rateLimitIdle is how long a client address stays in the limiter table
const rateLimitIdle = 10 * time.Minute

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	WebFS         fs.FS
	WebSocketHub  *ws.Hub
	RateLimiter   *customMiddleware.RateLimiter
	Services      *ServiceContainer

	metrics      *infrastructure.DashboardMetrics
	errorHandler *errors.ErrorHandler
	validator    *customMiddleware.Validator
	stopJanitor  context.CancelFunc
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Sessions  *session.Manager
	Dashboard *services.DashboardService
	Health    *services.HealthService
}

// NewApplication loads configuration from the environment and builds the
// application. webFS holds templates/ and static/.
func NewApplication(webFS fs.FS) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger, webFS)
}

// New builds the application from an explicit configuration
func New(cfg *config.Config, logger *slog.Logger, webFS fs.FS) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", infrastructure.Version),
		slog.String("environment", cfg.Telemetry.Environment))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		WebFS:         webFS,
		errorHandler:  errors.NewErrorHandler(logger, cfg.Logging.Development),
		validator:     customMiddleware.NewValidator(logger),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up routes: %w", err)
	}

	app.createServer()
	return app, nil
}

// initializeServices wires the pipeline collaborators in dependency order
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.CreateDashboardMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create dashboard metrics: %w", err)
	}
	a.metrics = metrics

	dcfg := a.Config.Dataset
	loader := dataset.NewLoader(a.Logger, dcfg.MaxUploadBytes())
	sessions := session.NewManager(loader, session.Options{
		TTL:          dcfg.SessionTTL,
		MaxSessions:  dcfg.MaxSessions,
		SecureCookie: a.Config.Security.SecureCookies,
	}, a.Logger)

	dashboard := services.NewDashboardService(services.DashboardDeps{
		Sessions: sessions,
		Loader:   loader,
		Composer: pipeline.NewComposer(a.Logger, pipeline.Options{
			SampleRows:  dcfg.SampleRows,
			RawRowLimit: dcfg.RawRowLimit,
		}),
		Charts: charts.NewRenderer(charts.Options{
			Width:  a.Config.Charts.Width,
			Height: a.Config.Charts.Height,
		}, a.Logger),
		Exporter: exporter.NewCSVWriter(a.Logger),
		Metrics:  metrics,
		Tracer:   a.OTelProviders.Tracer,
	}, a.Logger)

	wsMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	hub := ws.NewHub(a.Logger, wsMetrics)
	hub.Start()
	dashboard.SetNotifier(hub)
	a.WebSocketHub = hub

	health := services.NewHealthService(infrastructure.Version, BuildTime, dashboard, hub, a.Logger)

	a.Services = &ServiceContainer{
		Sessions:  sessions,
		Dashboard: dashboard,
		Health:    health,
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	// RequestID first: every later log line carries its trace_id
	r.Use(customMiddleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(errors.NewErrorMiddleware(a.errorHandler, a.Logger).Handler)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.metrics, a.Logger).Handler)
	r.Use(customMiddleware.SecurityHeaders)
	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.Config.Security))
	}
	if rl := a.Config.Security.RateLimit; rl.Enabled {
		a.RateLimiter = customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger, a.errorHandler)
		r.Use(a.RateLimiter.Handler)
	}

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	r.Get("/healthz", healthHandler.HealthCheck)
	r.Get("/readyz", healthHandler.ReadinessCheck)
	r.Get("/livez", healthHandler.LivenessCheck)
	r.Get("/version", healthHandler.Version)
	r.Mount("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.WebSocketHub).Routes())

	if err := a.setupStaticRoutes(r); err != nil {
		return err
	}

	pageHandler, err := handlers.NewPageHandler(a.Services.Dashboard, a.validator,
		a.Config.Dataset.MaxUploadBytes(), a.WebFS, a.Logger, a.errorHandler)
	if err != nil {
		return err
	}

	r.Group(func(r chi.Router) {
		r.Use(handlers.SessionMiddleware(a.Services.Sessions))

		// Long-lived: no request timeout
		r.Handle("/ws", ws.NewHandler(a.WebSocketHub, a.Services.Dashboard, a.validator,
			a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger))

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
			r.Mount("/", pageHandler.Routes())
			a.setupAPIRoutes(r)
		})
	})

	a.Router = r
	return nil
}

// setupAPIRoutes mounts the JSON, chart and export endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	dashboardHandler := handlers.NewDashboardHandler(a.Services.Dashboard, a.validator, a.Logger, a.errorHandler)
	exportHandler := handlers.NewExportHandler(a.Services.Dashboard, a.Logger, a.errorHandler)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/dataset", handlers.NewDatasetHandler(a.Services.Dashboard, a.validator,
			a.Config.Dataset.MaxUploadBytes(), a.Logger, a.errorHandler).Routes())
		r.Get("/dashboard", dashboardHandler.Dashboard)
		r.Mount("/charts", dashboardHandler.Routes())
		r.Method(http.MethodGet, "/export/"+handlers.ExportFileName, exportHandler)
		r.Post("/client-log", handlers.NewClientLogHandler(a.Logger, a.validator, a.errorHandler).Handle)
	})
	r.Method(http.MethodGet, "/export", exportHandler)
}

// setupStaticRoutes serves the page's stylesheet and script
func (a *Application) setupStaticRoutes(r chi.Router) error {
	static, err := fs.Sub(a.WebFS, "static")
	if err != nil {
		return fmt.Errorf("static assets: %w", err)
	}
	r.Route("/static", func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Use(middleware.SetHeader("Cache-Control", "public, max-age=3600"))
		r.Handle("/*", http.StripPrefix("/static", http.FileServer(http.FS(static))))
	})
	return nil
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the janitor and the HTTP server. A listen failure cancels ctx.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", infrastructure.Version),
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	janitorCtx, stop := context.WithCancel(context.Background())
	a.stopJanitor = stop
	go a.runJanitor(janitorCtx, a.Config.Dataset.JanitorInterval)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", a.Server.Addr))
	return nil
}

// runJanitor expires idle sessions and forgets quiet rate-limit clients
func (a *Application) runJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

func (a *Application) sweep(ctx context.Context) {
	expired := a.Services.Dashboard.Sweep(ctx)
	forgotten := 0
	if a.RateLimiter != nil {
		forgotten = a.RateLimiter.Forget(rateLimitIdle)
	}
	if expired > 0 || forgotten > 0 {
		a.Logger.DebugContext(ctx, "Janitor pass",
			slog.Int("sessions_expired", expired),
			slog.Int("rate_limit_clients_forgotten", forgotten))
	}
}

// performStartupHealthCheck parses the bundled sample once so the first
// page view does not pay for it.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	if err := a.Services.Dashboard.Ready(ctx); err != nil {
		return fmt.Errorf("bundled sample unavailable: %w", err)
	}
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if a.stopJanitor != nil {
		a.stopJanitor()
	}

	// Hub first so open sockets do not hold the server open
	a.WebSocketHub.Stop()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	if err := infrastructure.CloseLogFile(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	// ctx may already be cancelled; shutdown gets a fresh one
	return a.Stop(context.Background())
}
