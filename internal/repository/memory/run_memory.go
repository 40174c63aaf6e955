// Package memory provides a concurrency-safe in-memory run repository, used when no
// database is configured. State is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"resumeboost/internal/model"
	"resumeboost/internal/repository"
)

// DefaultMaxRuns caps the history when NewRunMemory is given no limit.
const DefaultMaxRuns = 1000

// RunMemory keeps at most maxRuns runs; creating one more evicts the oldest created.
type RunMemory struct {
	mu      sync.RWMutex
	runs    map[string]*model.Run
	order   []string
	maxRuns int
}

func NewRunMemory(maxRuns int) *RunMemory {
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}
	return &RunMemory{runs: make(map[string]*model.Run), maxRuns: maxRuns}
}

var _ repository.RunRepository = (*RunMemory)(nil)

func (s *RunMemory) Create(_ context.Context, run *model.Run) error {
	cp := cloneRun(run)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; !exists {
		s.order = append(s.order, run.ID)
	}
	s.runs[run.ID] = cp

	for len(s.order) > s.maxRuns {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *RunMemory) Update(_ context.Context, run *model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.runs[run.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Status = run.Status
	cur.ResumeKey = run.ResumeKey
	cur.Analysis = cloneAnalysis(run.Analysis)
	cur.ErrorKind = run.ErrorKind
	cur.ErrorMessage = run.ErrorMessage
	cur.UpdatedAt = run.UpdatedAt
	return nil
}

func (s *RunMemory) FindByID(_ context.Context, id string) (*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to prevent callers from mutating internal state.
	return cloneRun(run), nil
}

func (s *RunMemory) List(_ context.Context, pq repository.PageQuery) (*repository.PageResult[model.Run], error) {
	s.mu.RLock()
	all := make([]model.Run, 0, len(s.runs))
	for _, run := range s.runs {
		all = append(all, *cloneRun(run))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	start := min(max(pq.Offset, 0), total)
	end := total
	if pq.Limit > 0 {
		end = min(start+pq.Limit, total)
	}
	return &repository.PageResult[model.Run]{Items: all[start:end], Total: total}, nil
}

func (s *RunMemory) Ping(context.Context) error {
	return nil
}

func cloneRun(run *model.Run) *model.Run {
	cp := *run
	cp.Analysis = cloneAnalysis(run.Analysis)
	return &cp
}

func cloneAnalysis(a *model.AnalysisResult) *model.AnalysisResult {
	if a == nil {
		return nil
	}
	return &model.AnalysisResult{Raw: append([]byte(nil), a.Raw...)}
}
