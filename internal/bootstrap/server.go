package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"resumeboost/internal/config"
	handlers "resumeboost/internal/http/handler"
	"resumeboost/internal/http/middleware"
	"resumeboost/internal/pdfparser"
	"resumeboost/internal/service"
	"resumeboost/internal/storage"
	"resumeboost/internal/webscraper"
)

const (
	shutdownTimeout = 20 * time.Second
	// multipart framing on top of the resume itself
	formOverhead = 1 << 20
)

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewFiberApp returns a fiber app with the shared middleware chain and /metrics.
func NewFiberApp(name string, bodyLimit int, reg *prometheus.Registry, logger *zap.Logger) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		AppName:               name,
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})

	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, err
	}

	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics"
	})))
	app.Use(middleware.Logger(logger))
	app.Use(prom.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return app, nil
}

// apiBodyLimit leaves room for the multipart framing around the resume. A
// non-positive resume limit disables the resume check, so fiber's default applies.
func apiBodyLimit(maxResumeBytes int64) int {
	if maxResumeBytes <= 0 {
		return fiber.DefaultBodyLimit
	}
	return int(maxResumeBytes) + formOverhead
}

// NewAPI builds the public HTTP API. The returned cleanup closes the run history.
func NewAPI(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*fiber.App, func(), error) {
	reg := NewRegistry()

	pipeline, err := NewPipeline(ctx, cfg, reg, logger)
	if err != nil {
		return nil, nil, err
	}

	runs, closeRuns, err := NewRunRepository(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := closeRuns(); err != nil {
			logger.Warn("close run history", zap.Error(err))
		}
	}

	svc := service.NewAnalysisService(pipeline.Orchestrator, runs, pipeline.Store, logger)

	app, err := NewFiberApp("resumeboost-api", apiBodyLimit(cfg.Orchestrator.MaxResumeBytes), reg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	handlers.RegisterRoutes(app, svc, cfg.Orchestrator.MaxResumeBytes,
		handlers.Checker{Name: "storage", Ping: pipeline.Store.Ping},
		handlers.Checker{Name: "database", Ping: runs.Ping},
	)
	return app, cleanup, nil
}

// NewExtractorApp serves the bundled PDF text extractor function.
func NewExtractorApp(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*fiber.App, error) {
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	app, err := NewFiberApp("resumeboost-extractor", fiber.DefaultBodyLimit, NewRegistry(), logger)
	if err != nil {
		return nil, err
	}
	app.Get("/healthz", handlers.LivenessProbe())
	pdfparser.NewHandler(store, cfg.Orchestrator.MaxResumeBytes, cfg.Storage.Timeout, logger).Register(app)
	return app, nil
}

// NewScraperApp serves the bundled web scraper function. Without usable storage
// settings the scraper still answers but never stores page text.
func NewScraperApp(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*fiber.App, error) {
	var store storage.Storage
	if err := cfg.Storage.Validate(); err != nil {
		logger.Warn("scraper runs without storage", zap.Error(err))
	} else {
		store, err = storage.New(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
	}

	app, err := NewFiberApp("resumeboost-scraper", fiber.DefaultBodyLimit, NewRegistry(), logger)
	if err != nil {
		return nil, err
	}
	app.Get("/healthz", handlers.LivenessProbe())
	webscraper.NewHandler(webscraper.NewFetcher(cfg.Scraper), store, cfg.Storage.Timeout, logger).Register(app)
	return app, nil
}

// Serve listens on addr until ctx is done, then shuts the app down gracefully.
func Serve(ctx context.Context, app *fiber.App, addr string, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr)
	}()
	logger.Info("server listening", zap.String("app", app.Config().AppName), zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.String("app", app.Config().AppName))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
