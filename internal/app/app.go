package app

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"phtourism/internal/config"
	apperrors "phtourism/internal/errors"
	"phtourism/internal/infrastructure"
	customMiddleware "phtourism/internal/middleware"
	"phtourism/internal/services"
	handlers "phtourism/internal/transport/http"
	ws "phtourism/internal/websocket"
)

var (
	// Version is overridden at link time
	Version = config.AppVersion
	// RepoURL is set at link time
	RepoURL = ""
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(Version))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.EngineMetrics
	WebSocketHub  *ws.Hub
	ErrorHandler  *apperrors.ErrorHandler
	Services      *ServiceContainer
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Dashboard *services.DashboardService
	Health    *services.HealthService
	Validator *customMiddleware.FilterValidator
}

// NewApplication loads the configuration, initializes logging and telemetry
// and wires every component.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", Version))

	otelCfg := infrastructure.DefaultOTelConfig()
	otelCfg.ServiceVersion = Version
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	return New(context.Background(), cfg, logger, providers)
}

// New wires an application from an already loaded configuration. Nil
// providers disable tracing and metrics.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, providers *infrastructure.OTelProviders) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if providers == nil {
		providers = &infrastructure.OTelProviders{Logger: logger}
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		ErrorHandler:  apperrors.NewErrorHandler(logger, false),
	}

	if providers.Meter != nil {
		metrics, err := infrastructure.CreateEngineMetrics(providers.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create engine metrics: %w", err)
		}
		app.Metrics = metrics
	}

	if err := app.initializeServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices creates the loader, the dashboard service and the hub
func (a *Application) initializeServices(ctx context.Context) error {
	loader, err := NewSourceLoader(ctx, a.Config, a.Logger)
	if err != nil {
		return err
	}

	dashboard := services.NewDashboardService(a.Logger, loader, services.DashboardOptions{
		Views:   ViewOptions(a.Config, a.Logger),
		Cache:   NewViewCache(a.Config.Cache, a.Logger),
		Metrics: a.Metrics,
		Tracer:  a.OTelProviders.Tracer,
	})

	a.WebSocketHub = ws.NewHub(a.Logger, a.Metrics)
	dashboard.Subscribe(a.WebSocketHub.NotifyReload)

	a.Services = &ServiceContainer{
		Dashboard: dashboard,
		Health: services.NewHealthService(a.Logger, services.BuildInfo{
			Version:   Version,
			RepoURL:   RepoURL,
			BuildTime: BuildTime,
			BuildID:   BuildID,
		}, dashboard, a.WebSocketHub),
		Validator: customMiddleware.NewFilterValidator(a.Logger),
	}

	a.Logger.InfoContext(ctx, "Services initialized",
		slog.Int("cache_size", a.Config.Cache.Size),
		slog.Bool("redis_cache", a.Config.Cache.RedisAddr != ""),
		slog.Any("reference_years", a.Config.Trend.ReferenceYears))

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Middleware that does not wrap the ResponseWriter, safe for upgrades
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	wsHandler := ws.NewHandler(a.WebSocketHub, a.Services.Dashboard, a.Services.Validator,
		a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.ErrorHandler, a.Logger)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Handle(config.WebSocketEndpoint, wsHandler)

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
		otelMiddleware := customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger)
		r.Use(otelMiddleware.Handler)

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.ErrorHandler,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)

		metricsHandler := handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP)
		r.Get(config.MetricsEndpoint, metricsHandler.GetMetrics)
		r.Get("/healthz", metricsHandler.GetHealth)
	})

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Compress(5))

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

			healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
			r.Get("/health", healthHandler.HealthCheck)
			r.Get("/health/ready", healthHandler.ReadinessCheck)
			r.Get("/health/live", healthHandler.LivenessCheck)
			r.Get("/version", healthHandler.Version)

			dashboard := a.Services.Dashboard
			validator := a.Services.Validator

			r.Mount("/views", handlers.NewViewsHandler(dashboard, validator, a.Logger, a.ErrorHandler).Routes())
			r.Mount("/geo", handlers.NewGeoHandler(dashboard, a.Logger, a.ErrorHandler).Routes())
			r.Mount("/dataset", handlers.NewDatasetHandler(dashboard, a.Logger, a.ErrorHandler).Routes())
			r.Mount("/export", handlers.NewExportHandler(dashboard, validator, a.Logger, a.ErrorHandler).Routes())
		})
	})
}

// getCORSConfig returns CORS configuration for the dashboard frontend
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the hub and the server, then performs the initial load when
// configured. A failed initial load leaves the server up and not ready.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.WebSocketHub.Start()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			// Signal shutdown through context instead of os.Exit
			cancel()
		}
	}()

	if a.Config.Sources.LoadOnStart {
		a.loadDataset(ctx)
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

func (a *Application) loadDataset(ctx context.Context) {
	info, err := a.Services.Dashboard.Load(ctx)
	if err != nil {
		a.Logger.WarnContext(ctx, "Initial dataset load failed, serving without data",
			slog.String("error", err.Error()))
		return
	}
	a.Logger.InfoContext(ctx, "Initial dataset loaded",
		slog.String("fingerprint", info.Fingerprint),
		slog.Int("records", info.Records),
		slog.Int("skipped", info.Skipped))
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
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

	// ctx may already be cancelled; shutdown gets its own budget
	return a.Stop(context.Background())
}
