package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/data"
	"github.com/om239903-ai/internship-project/internal/domain/model"
)

// DealResultStore is an in-memory core.DealResultRepository. A single mutex serializes all
// writes, which trivially satisfies single-writer-per-key.
type DealResultStore struct {
	mu    sync.Mutex
	rows  map[string]*model.DealResult
	clock data.TimeProvider
}

// NewDealResultStore creates an empty store.
func NewDealResultStore(clock data.TimeProvider) *DealResultStore {
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	return &DealResultStore{rows: make(map[string]*model.DealResult), clock: clock}
}

// Upsert inserts res or merges its non-nil fields over the stored row.
func (s *DealResultStore) Upsert(_ context.Context, res *model.DealResult) (model.UpsertOutcome, error) {
	if res == nil || res.ScanJobID == "" || res.DealID == "" {
		return "", data.ErrDealResultKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	key := res.Key()
	if existing, ok := s.rows[key]; ok {
		existing.MergeFrom(res)
		existing.UpdatedAt = now
		return model.UpsertUpdated, nil
	}

	row := res.Clone()
	row.CreatedAt = now
	row.UpdatedAt = now
	s.rows[key] = row
	return model.UpsertInserted, nil
}

// List returns matching rows ordered by creation then deal id.
func (s *DealResultStore) List(_ context.Context, q model.DealResultQuery) ([]*model.DealResult, int, error) {
	s.mu.Lock()
	var matched []*model.DealResult
	for _, row := range s.rows {
		if matchesQuery(row, q) {
			matched = append(matched, row.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].DealID < matched[j].DealID
	})

	total := len(matched)
	if q.PageSize <= 0 {
		return matched, total, nil
	}
	start := max(q.Page-1, 0) * q.PageSize
	if start >= total {
		return []*model.DealResult{}, total, nil
	}
	end := min(start+q.PageSize, total)
	return matched[start:end], total, nil
}

// Count returns the number of rows stored for scanJobID.
func (s *DealResultStore) Count(scanJobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.ScanJobID == scanJobID {
			n++
		}
	}
	return n
}

func (s *DealResultStore) deleteJob(scanJobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, row := range s.rows {
		if row.ScanJobID == scanJobID {
			delete(s.rows, key)
		}
	}
}

func matchesQuery(row *model.DealResult, q model.DealResultQuery) bool {
	if row.ScanJobID != q.ScanJobID {
		return false
	}
	if q.Stage != "" && (row.Stage == nil || *row.Stage != q.Stage) {
		return false
	}
	if q.Pipeline != "" && (row.PipelineID == nil || *row.PipelineID != q.Pipeline) {
		return false
	}
	if q.Archived != nil {
		archived := row.Archived != nil && *row.Archived
		if archived != *q.Archived {
			return false
		}
	}
	return true
}

var _ core.DealResultRepository = (*DealResultStore)(nil)
