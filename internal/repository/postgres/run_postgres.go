package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"resumeboost/internal/model"
	"resumeboost/internal/repository"
)

// RunPostgres is a PostgreSQL implementation of repository.RunRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type RunPostgres struct {
	db *sql.DB
}

// NewRunPostgres creates a new RunPostgres repository.
func NewRunPostgres(db *sql.DB) *RunPostgres {
	return &RunPostgres{db: db}
}

var _ repository.RunRepository = (*RunPostgres)(nil)

const runColumns = `id, status, resume_filename, resume_key, job_url, analysis_mode, analysis,
		error_kind, error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*model.Run, error) {
	var (
		run      model.Run
		analysis sql.NullString
	)
	if err := s.Scan(
		&run.ID,
		&run.Status,
		&run.ResumeFilename,
		&run.ResumeKey,
		&run.JobURL,
		&run.Mode,
		&analysis,
		&run.ErrorKind,
		&run.ErrorMessage,
		&run.CreatedAt,
		&run.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if analysis.Valid {
		run.Analysis = &model.AnalysisResult{Raw: []byte(analysis.String)}
	}
	return &run, nil
}

// analysisParam turns the payload into a JSONB parameter, NULL when absent.
func analysisParam(r *model.AnalysisResult) any {
	if r == nil || len(r.Raw) == 0 {
		return nil
	}
	return string(r.Raw)
}

// Create inserts a new run row.
func (r *RunPostgres) Create(ctx context.Context, run *model.Run) error {
	const q = `
		INSERT INTO analysis_runs (id, status, resume_filename, resume_key, job_url, analysis_mode,
			analysis, error_kind, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, q,
		run.ID,
		run.Status,
		run.ResumeFilename,
		run.ResumeKey,
		run.JobURL,
		run.Mode,
		analysisParam(run.Analysis),
		run.ErrorKind,
		run.ErrorMessage,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Update overwrites the mutable fields of a run.
func (r *RunPostgres) Update(ctx context.Context, run *model.Run) error {
	const q = `
		UPDATE analysis_runs
		SET status = $2, resume_key = $3, analysis = $4, error_kind = $5, error_message = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, q,
		run.ID,
		run.Status,
		run.ResumeKey,
		analysisParam(run.Analysis),
		run.ErrorKind,
		run.ErrorMessage,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// FindByID fetches a single run by its ID.
func (r *RunPostgres) FindByID(ctx context.Context, id string) (*model.Run, error) {
	q := `SELECT ` + runColumns + ` FROM analysis_runs WHERE id = $1`
	run, err := scanRun(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List returns runs using LIMIT/OFFSET pagination and a total count.
func (r *RunPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Run], error) {
	const qCount = `SELECT COUNT(*) FROM analysis_runs`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	qList := `SELECT ` + runColumns + `
		FROM analysis_runs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Run]{
		Items: items,
		Total: total,
	}, nil
}

func (r *RunPostgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
