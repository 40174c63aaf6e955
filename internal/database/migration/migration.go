package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelTable is checked before running any step; its presence means the schema is in place.
const sentinelTable = "public.analysis_runs"

var steps = []migrationStep{
	{
		Name: "create_table_analysis_runs",
		SQL: `CREATE TABLE IF NOT EXISTS analysis_runs (
  id              UUID        PRIMARY KEY,
  status          TEXT        NOT NULL CHECK (status IN ('running', 'complete', 'failed')),
  resume_filename TEXT        NOT NULL,
  resume_key      TEXT        NOT NULL DEFAULT '',
  job_url         TEXT        NOT NULL,
  analysis_mode   TEXT        NOT NULL,
  analysis        JSONB,
  error_kind      TEXT        NOT NULL DEFAULT '',
  error_message   TEXT        NOT NULL DEFAULT '',
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_analysis_runs_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_analysis_runs_status ON analysis_runs (status);`,
	},
	{
		Name: "create_index_analysis_runs_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs (created_at);`,
	},
}

// EnsureMigrated checks if the analysis_runs table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	start := time.Now()
	log := logger.With(zap.String("component", "database"))

	log.Info("db migration check")

	var exists bool
	err := db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", sentinelTable).Scan(&exists)
	if err != nil {
		log.Error("db migration failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("schema already exists, skipping migration", zap.Duration("duration", time.Since(start)))
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db migration failed",
				zap.String("migration_step", step.Name),
				zap.Error(err),
				zap.Duration("step_duration", time.Since(stepStart)),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.Info("db migration step", zap.String("migration_step", step.Name), zap.Duration("step_duration", time.Since(stepStart)))
	}

	log.Info("db migration success", zap.Int("steps", len(steps)), zap.Duration("duration", time.Since(start)))
	return nil
}
