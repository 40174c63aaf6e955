package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"resumeboost/internal/model"
	"resumeboost/internal/orchestrator"
	"resumeboost/internal/repository"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("analysis run not found")
)

const (
	defaultLimit = 10
	maxLimit     = 100

	// ResumeURLExpiry bounds the lifetime of the download link returned by Get.
	ResumeURLExpiry = 15 * time.Minute
)

// Runner executes one orchestration run.
type Runner interface {
	AnalyzeResume(ctx context.Context, in orchestrator.Input) (*orchestrator.Output, error)
}

// Presigner issues time-limited download links for stored objects.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// AnalyzeInput is a submission as received from a client.
type AnalyzeInput struct {
	Resume   []byte
	Filename string
	JobURL   string
	Mode     model.AnalysisMode
}

// RunListResult is the service-level DTO for paginated runs.
type RunListResult struct {
	Items []model.Run `json:"data"`
	Total int         `json:"total"`
}

// AnalysisService defines the use cases around analysis runs.
type AnalysisService interface {
	// Analyze records a run, executes it and records its outcome. The returned run is
	// non-nil even when the orchestration failed; the error is then an *orchestrator.Error.
	Analyze(ctx context.Context, in AnalyzeInput) (*model.Run, error)

	// List returns runs using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*RunListResult, error)

	// Get returns a single run by its ID, with a download link for its resume
	// when one was stored.
	Get(ctx context.Context, id string) (*model.Run, error)
}

type analysisService struct {
	runner    Runner
	repo      repository.RunRepository
	presigner Presigner
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnalysisService constructs a new AnalysisService. A nil presigner leaves
// resume_url unset.
func NewAnalysisService(runner Runner, repo repository.RunRepository, presigner Presigner, logger *zap.Logger) AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &analysisService{
		runner:    runner,
		repo:      repo,
		presigner: presigner,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *analysisService) Analyze(ctx context.Context, in AnalyzeInput) (*model.Run, error) {
	now := s.now()
	run := &model.Run{
		ID:             uuid.NewString(),
		Status:         model.RunStatusRunning,
		ResumeFilename: in.Filename,
		JobURL:         in.JobURL,
		Mode:           in.Mode,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	log := s.logger.With(zap.String("run_id", run.ID))

	// History is best effort: a repository failure never changes the outcome of the run.
	if err := s.repo.Create(ctx, run); err != nil {
		log.Error("record run", zap.Error(err))
	}

	out, err := s.runner.AnalyzeResume(ctx, orchestrator.Input{
		RunID:    run.ID,
		Resume:   in.Resume,
		Filename: in.Filename,
		JobURL:   in.JobURL,
		Mode:     in.Mode,
	})

	run.UpdatedAt = s.now()
	if err != nil {
		run.Status = model.RunStatusFailed
		run.ErrorKind = string(orchestrator.KindOf(err))
		run.ErrorMessage = err.Error()
	} else {
		analysis := out.Analysis
		run.Status = model.RunStatusComplete
		run.ResumeKey = out.ResumeKey.String()
		run.Analysis = &analysis
	}

	if uerr := s.repo.Update(context.WithoutCancel(ctx), run); uerr != nil {
		log.Error("record run outcome", zap.String("status", string(run.Status)), zap.Error(uerr))
	}
	return run, err
}

// List returns paginated runs without exposing repository types.
func (s *analysisService) List(ctx context.Context, limit, offset int) (*RunListResult, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &RunListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a run by ID.
func (s *analysisService) Get(ctx context.Context, id string) (*model.Run, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	run, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if s.presigner != nil && run.ResumeKey != "" {
		link, perr := s.presigner.PresignGet(ctx, run.ResumeKey, ResumeURLExpiry)
		if perr != nil {
			// The run itself is still worth returning without the link.
			s.logger.Warn("presign resume", zap.String("run_id", run.ID), zap.Error(perr))
		} else {
			run.ResumeURL = link
		}
	}
	return run, nil
}
