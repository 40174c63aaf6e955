package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"resumeboost/internal/config"
	"resumeboost/internal/database"
	"resumeboost/internal/database/migration"
	"resumeboost/internal/functions"
	"resumeboost/internal/orchestrator"
	"resumeboost/internal/repository"
	"resumeboost/internal/repository/memory"
	"resumeboost/internal/repository/postgres"
	"resumeboost/internal/storage"
)

// Package bootstrap wires configuration into the long-lived components shared by
// the API server and the terminal client.

// Pipeline is everything a run needs.
type Pipeline struct {
	Store        storage.Storage
	Orchestrator *orchestrator.Orchestrator
}

// NewPipeline builds the object store, the three function clients and the orchestrator.
// metrics are registered on reg when it is not nil.
func NewPipeline(ctx context.Context, cfg *config.AppConfig, reg prometheus.Registerer, logger *zap.Logger) (*Pipeline, error) {
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	clients, err := functions.NewClients(cfg.Functions, logger)
	if err != nil {
		return nil, fmt.Errorf("init functions: %w", err)
	}

	var metrics *orchestrator.Metrics
	if reg != nil {
		metrics, err = orchestrator.NewMetrics(reg)
		if err != nil {
			return nil, fmt.Errorf("register orchestrator metrics: %w", err)
		}
	}

	orch := orchestrator.New(
		store,
		clients.Extractor,
		clients.Scraper,
		clients.Analyzer,
		orchestrator.Options{
			PoolSize:       cfg.Orchestrator.PoolSize,
			MaxResumeBytes: cfg.Orchestrator.MaxResumeBytes,
			MaxResumeText:  cfg.Orchestrator.MaxResumeText,
			StorageTimeout: cfg.Storage.Timeout,
		},
		metrics,
		logger,
	)

	return &Pipeline{Store: store, Orchestrator: orch}, nil
}

// NewRunRepository returns the Postgres run history when a database is configured,
// running the schema migration first, and the in-memory store otherwise.
// The returned close func is never nil.
func NewRunRepository(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (repository.RunRepository, func() error, error) {
	if !cfg.Enabled() {
		logger.Info("database not configured, keeping run history in memory", zap.Int("max_runs", cfg.MemoryMaxRuns))
		return memory.NewRunMemory(cfg.MemoryMaxRuns), func() error { return nil }, nil
	}

	db, err := database.NewPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := migration.EnsureMigrated(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return postgres.NewRunPostgres(db), db.Close, nil
}
