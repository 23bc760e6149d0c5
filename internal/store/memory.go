package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/treeprice/internal/model"
)

// MemoryStore keeps runs in process memory. It backs the "none" driver.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]*model.Run
	preds map[string][]model.Prediction
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		runs:  make(map[string]*model.Run),
		preds: make(map[string][]model.Prediction),
	}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateRun(_ context.Context, input model.RunInput) (*model.Run, error) {
	now := time.Now().UTC()
	r := &model.Run{
		ID:        uuid.New().String(),
		Input:     input,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.runs[r.ID] = r
	s.mu.Unlock()
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) update(runID string, fn func(r *model.Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return eris.Wrapf(ErrRunNotFound, "memory: run %s", runID)
	}
	fn(r)
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) CompleteRun(_ context.Context, runID string, result *model.RunResult) error {
	return s.update(runID, func(r *model.Run) {
		r.Status = model.RunStatusComplete
		r.Result = result
	})
}

func (s *MemoryStore) FailRun(_ context.Context, runID string, message string) error {
	return s.update(runID, func(r *model.Run) {
		r.Status = model.RunStatusFailed
		r.Error = message
	})
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[runID]
	if !ok {
		return nil, eris.Wrapf(ErrRunNotFound, "memory: run %s", runID)
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, filter RunFilter) ([]model.Run, error) {
	s.mu.RLock()
	var runs []model.Run
	for _, r := range s.runs {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Target != "" && r.Input.Target != filter.Target {
			continue
		}
		runs = append(runs, *r)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if filter.Offset >= len(runs) {
		return nil, nil
	}
	runs = runs[filter.Offset:]
	if limit := limitOrDefault(filter.Limit); len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryStore) SavePredictions(_ context.Context, runID string, preds []model.Prediction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return 0, eris.Wrapf(ErrRunNotFound, "memory: run %s", runID)
	}
	cp := append([]model.Prediction(nil), preds...)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Row < cp[j].Row })
	s.preds[runID] = cp
	return int64(len(cp)), nil
}

func (s *MemoryStore) ListPredictions(_ context.Context, runID string) ([]model.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runs[runID]; !ok {
		return nil, eris.Wrapf(ErrRunNotFound, "memory: run %s", runID)
	}
	return append([]model.Prediction(nil), s.preds[runID]...), nil
}
