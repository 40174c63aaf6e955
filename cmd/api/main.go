package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	_ "resumeboost/docs"
	"resumeboost/internal/bootstrap"
	"resumeboost/internal/config"
	"resumeboost/internal/logger"
	"resumeboost/internal/otel"
)

// @title ResumeBoost API
// @version 1.0
// @description Resume analysis against job postings.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration from defaults, RESUMEBOOST_CONFIG and the environment (.env auto-loaded if present)
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	shutdownTracing, err := otel.Init(ctx, "resumeboost-api", zl)
	if err != nil {
		zl.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Storage, function clients, orchestrator, run history and routes
	app, cleanup, err := bootstrap.NewAPI(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to build api", zap.Error(err))
	}
	defer cleanup()

	if err := bootstrap.Serve(ctx, app, ":"+cfg.Port, zl); err != nil {
		zl.Error("server stopped", zap.Error(err))
	}
}
