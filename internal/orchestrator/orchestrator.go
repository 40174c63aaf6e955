package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"resumeboost/internal/functions"
	"resumeboost/internal/logger"
	"resumeboost/internal/model"
	"resumeboost/internal/storage"
)

const (
	branchResume = "resume"
	branchJob    = "job"

	minPoolSize           = 2
	defaultStorageTimeout = 15 * time.Second
)

// Input is one submission.
type Input struct {
	// RunID names the run in storage keys. A new UUID is used when empty.
	RunID    string
	Resume   []byte
	Filename string
	JobURL   string
	Mode     model.AnalysisMode
}

// Output is a successful run.
type Output struct {
	RunID     string
	ResumeKey model.StorageReference
	ParsedKey model.StorageReference
	JobKey    model.StorageReference
	Analysis  model.AnalysisResult
}

// Options tunes the orchestrator. Zero values fall back to defaults.
type Options struct {
	PoolSize       int
	MaxResumeBytes int64
	MaxResumeText  int64
	StorageTimeout time.Duration
}

// Orchestrator uploads a resume, resolves resume text and job text concurrently and
// hands both to the analyzer. It is safe for concurrent use; the pool is shared by all runs.
type Orchestrator struct {
	store     storage.Storage
	extractor functions.Extractor
	scraper   functions.Scraper
	analyzer  functions.Analyzer
	pool      *semaphore.Weighted
	opts      Options
	metrics   *Metrics
	logger    *zap.Logger
}

// New constructs an Orchestrator. metrics may be nil.
func New(
	store storage.Storage,
	extractor functions.Extractor,
	scraper functions.Scraper,
	analyzer functions.Analyzer,
	opts Options,
	metrics *Metrics,
	logger *zap.Logger,
) *Orchestrator {
	if opts.PoolSize < minPoolSize {
		opts.PoolSize = minPoolSize
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = defaultStorageTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:     store,
		extractor: extractor,
		scraper:   scraper,
		analyzer:  analyzer,
		pool:      semaphore.NewWeighted(int64(opts.PoolSize)),
		opts:      opts,
		metrics:   metrics,
		logger:    logger,
	}
}

// AnalyzeResume runs one submission to completion. Any failure is returned as an *Error.
// Once the fan-out has started the run is not cancelled by ctx; every remote call is
// bounded by its own timeout instead.
func (o *Orchestrator) AnalyzeResume(ctx context.Context, in Input) (*Output, error) {
	out, err := o.run(ctx, in)
	if err != nil {
		o.metrics.observeRun(string(KindOf(err)))
		return nil, err
	}
	o.metrics.observeRun("success")
	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, in Input) (*Output, error) {
	jobURL, err := o.validate(in)
	if err != nil {
		o.logger.Info("rejected submission", zap.String("reason", err.Error()))
		return nil, err
	}

	runID := in.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := o.logger.With(zap.String("run_id", runID))
	log.Info("run started",
		zap.String("filename", in.Filename),
		zap.String("job_url", jobURL),
		zap.String("mode", string(in.Mode)),
	)

	resumeKey, err := storage.ResumeKey(runID, in.Filename)
	if err != nil {
		return nil, newError(KindValidation, msgMissingResume, err)
	}

	ctx = context.WithoutCancel(ctx)

	if err := o.upload(ctx, resumeKey, in.Resume); err != nil {
		log.Error("upload failed", zap.String("key", resumeKey), zap.Error(err))
		return nil, newError(KindUpload, fmt.Sprintf("Error uploading to S3: %v", err), err)
	}
	log.Info("resume uploaded", zap.String("key", resumeKey))

	jobKey := storage.ScrapedContentKey(runID, jobURL)

	var (
		resume model.TaskResult[branchValue]
		job    model.TaskResult[branchValue]
		g      errgroup.Group
	)
	g.Go(func() error {
		resume = o.branch(ctx, log, branchResume, func(ctx context.Context) (branchValue, error) {
			return o.resolveResume(ctx, resumeKey)
		})
		return nil
	})
	g.Go(func() error {
		job = o.branch(ctx, log, branchJob, func(ctx context.Context) (branchValue, error) {
			return o.resolveJob(ctx, jobURL, jobKey)
		})
		return nil
	})
	_ = g.Wait()

	if !resume.IsOk() {
		log.Info("run aborted at join", zap.String("branch", branchResume), zap.Error(resume.Err))
		return nil, resume.Err
	}
	if !job.IsOk() {
		log.Info("run aborted at join", zap.String("branch", branchJob), zap.Error(job.Err))
		return nil, job.Err
	}

	req, err := model.NewAnalysisRequest(resume.Value.text, job.Value.text, in.Mode)
	if err != nil {
		return nil, newError(KindUnexpected, fmt.Sprintf("Unexpected error: %v", err), err)
	}

	start := time.Now()
	resp, err := o.analyzer.Analyze(ctx, req)
	if err != nil {
		log.Error("analysis failed", zap.Duration("latency", time.Since(start)), zap.Error(err))
		return nil, newError(KindAnalysis, fmt.Sprintf("Error analyzing resume: %v", err), err)
	}
	if resp == nil || resp.Analysis == nil || resp.Analysis.Empty() {
		log.Error("analysis returned no result", zap.Duration("latency", time.Since(start)))
		return nil, newError(KindAnalysis, "Error: Analysis result could not be retrieved.", nil)
	}
	log.Info("run complete",
		zap.Duration("latency", time.Since(start)),
		zap.String("analysis", logger.Truncate(resp.Analysis.String(), 120)),
	)

	jobRef := jobKey
	if job.Value.key != "" {
		jobRef = job.Value.key
	}
	return &Output{
		RunID:     runID,
		ResumeKey: model.StorageReference(resumeKey),
		ParsedKey: model.StorageReference(resume.Value.key),
		JobKey:    model.StorageReference(jobRef),
		Analysis:  *resp.Analysis,
	}, nil
}

// branchValue is the text a branch resolved and where it is stored.
type branchValue struct {
	text string
	key  string
}

// branch runs fn on the shared pool and turns its outcome, including a panic, into a TaskResult.
func (o *Orchestrator) branch(
	ctx context.Context,
	log *zap.Logger,
	name string,
	fn func(context.Context) (branchValue, error),
) (res model.TaskResult[branchValue]) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in %s branch: %v", name, r)
			res = model.Failed[branchValue](newError(KindUnexpected, fmt.Sprintf("Unexpected error: %v", r), err))
		}
		o.metrics.observeBranch(name, res.IsOk(), time.Since(start).Seconds())
		if res.IsOk() {
			log.Info("branch succeeded",
				zap.String("branch", name),
				zap.Duration("latency", time.Since(start)),
				zap.Int("chars", len(res.Value.text)),
			)
		} else {
			log.Warn("branch failed",
				zap.String("branch", name),
				zap.Duration("latency", time.Since(start)),
				zap.Error(res.Err),
			)
		}
	}()

	if err := o.pool.Acquire(ctx, 1); err != nil {
		return model.Failed[branchValue](newError(KindUnexpected, fmt.Sprintf("Unexpected error: %v", err), err))
	}
	defer o.pool.Release(1)

	v, err := fn(ctx)
	if err != nil {
		return model.Failed[branchValue](err)
	}
	return model.Ok(v)
}

func (o *Orchestrator) upload(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, o.opts.StorageTimeout)
	defer cancel()

	_, err := o.store.Put(ctx, key, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: "application/pdf",
	})
	return err
}

// resolveResume asks the extractor for the parsed text key and reads the text back.
func (o *Orchestrator) resolveResume(ctx context.Context, resumeKey string) (branchValue, error) {
	resp, err := o.extractor.Extract(ctx, functions.ExtractRequest{
		Bucket: o.store.Bucket(),
		Key:    resumeKey,
	})
	if err != nil {
		return branchValue{}, newError(KindExtraction, fmt.Sprintf("Error parsing resume: %v", err), err)
	}
	if resp == nil || strings.TrimSpace(resp.Key) == "" {
		return branchValue{}, newError(KindExtraction, "Parsed resume text key not returned.", nil)
	}

	readCtx, cancel := context.WithTimeout(ctx, o.opts.StorageTimeout)
	defer cancel()
	data, err := storage.ReadAll(readCtx, o.store, resp.Key, o.opts.MaxResumeText)
	if err != nil {
		return branchValue{}, newError(KindExtraction, fmt.Sprintf("Could not retrieve parsed resume text: %v", err), err)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return branchValue{}, newError(KindExtraction, "Could not retrieve parsed resume text.", nil)
	}
	return branchValue{text: text, key: resp.Key}, nil
}

// resolveJob scrapes the job page. The scraper receives the URL percent-encoded and
// decodes it on its side.
func (o *Orchestrator) resolveJob(ctx context.Context, jobURL, key string) (branchValue, error) {
	resp, err := o.scraper.Scrape(ctx, functions.ScrapeRequest{
		URL: url.PathEscape(jobURL),
		Key: key,
	})
	if err != nil {
		return branchValue{}, newError(KindScraping, fmt.Sprintf("Error scraping job description: %v", err), err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return branchValue{}, newError(KindScraping, "Web scraper did not return any job description content.", nil)
	}
	return branchValue{text: resp.Content, key: resp.Key}, nil
}
