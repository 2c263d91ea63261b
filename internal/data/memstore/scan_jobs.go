// Package memstore provides in-process implementations of the scan stores. They honour the
// same compare-and-swap contracts as the Postgres repositories and back STORAGE_BACKEND=memory
// and service tests.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/data"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
)

// ScanJobStore is an in-memory core.ScanJobRepository.
type ScanJobStore struct {
	mu      sync.Mutex
	jobs    map[string]*model.ScanJob
	order   []string
	results *DealResultStore
	clock   data.TimeProvider
	pending chan struct{}
}

// NewScanJobStore creates an empty store. results, when non-nil, receives cascade deletes.
func NewScanJobStore(clock data.TimeProvider, results *DealResultStore) *ScanJobStore {
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	return &ScanJobStore{
		jobs:    make(map[string]*model.ScanJob),
		results: results,
		clock:   clock,
		pending: make(chan struct{}, 1),
	}
}

// Create inserts a pending job unless the scan id already has a non-terminal run.
func (s *ScanJobStore) Create(_ context.Context, job *model.ScanJob) (*model.ScanJob, error) {
	if job == nil {
		return nil, data.ErrScanJobRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return nil, &apperrors.AppError{Code: apperrors.ErrCodeConflict, Message: "value already exists", Field: "id"}
	}
	for _, existing := range s.jobs {
		if existing.ScanID == job.ScanID && !existing.Status.IsTerminal() {
			return nil, &apperrors.AppError{Code: apperrors.ErrCodeConflict, Message: "value already exists", Field: "scan_id"}
		}
	}

	now := s.clock.Now()
	stored := cloneJob(job)
	stored.Status = model.ScanStatusPending
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.jobs[stored.ID] = stored
	s.order = append(s.order, stored.ID)

	select {
	case s.pending <- struct{}{}:
	default:
	}
	return cloneJob(stored), nil
}

// GetByID returns a copy of the job.
func (s *ScanJobStore) GetByID(_ context.Context, id string) (*model.ScanJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.NotFoundf("scan job %s not found", id)
	}
	return cloneJob(job), nil
}

// GetLatestByScanID returns the most recently created run for scanID.
func (s *ScanJobStore) GetLatestByScanID(_ context.Context, scanID string) (*model.ScanJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		if job := s.jobs[s.order[i]]; job != nil && job.ScanID == scanID {
			return cloneJob(job), nil
		}
	}
	return nil, apperrors.NotFoundf("scan %s not found", scanID)
}

// List returns jobs newest first.
func (s *ScanJobStore) List(_ context.Context, opts model.ScanListOptions) ([]*model.ScanJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.ScanJob
	skipped := 0
	for i := len(s.order) - 1; i >= 0; i-- {
		job := s.jobs[s.order[i]]
		if job == nil || !matchesList(job, opts) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, cloneJob(job))
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func matchesList(job *model.ScanJob, opts model.ScanListOptions) bool {
	if opts.ScanID != nil && job.ScanID != *opts.ScanID {
		return false
	}
	if opts.Status != nil && job.Status != *opts.Status {
		return false
	}
	if opts.OrganizationID != nil && (job.OrganizationID == nil || *job.OrganizationID != *opts.OrganizationID) {
		return false
	}
	return true
}

// Transition applies tr when the job's status is one of from.
func (s *ScanJobStore) Transition(
	_ context.Context,
	id string,
	from []model.ScanStatus,
	tr model.ScanTransition,
) (*model.ScanJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.NotFoundf("scan job %s not found", id)
	}
	if !slices.Contains(from, job.Status) {
		return nil, apperrors.Conflict("scan job status changed concurrently")
	}

	applyTransition(job, tr)
	return cloneJob(job), nil
}

func applyTransition(job *model.ScanJob, tr model.ScanTransition) {
	at := tr.At
	job.Status = tr.To
	job.UpdatedAt = at
	if tr.To == model.ScanStatusRunning && job.StartedAt == nil {
		job.StartedAt = &at
	}
	if tr.To.IsTerminal() {
		job.CompletedAt = &at
		job.LeaseOwner = nil
		job.LeaseExpiresAt = nil
	}
	if tr.ErrorMessage != nil {
		msg := *tr.ErrorMessage
		job.ErrorMessage = &msg
	}
	if tr.Progress != nil {
		job.TotalItems = tr.Progress.TotalItems
		job.ProcessedItems = tr.Progress.ProcessedItems
		job.FailedItems = tr.Progress.FailedItems
	}
}

// UpdateProgress persists counters and the resume cursor of a running job.
func (s *ScanJobStore) UpdateProgress(_ context.Context, id string, update model.ProgressUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return apperrors.NotFoundf("scan job %s not found", id)
	}
	if job.Status != model.ScanStatusRunning {
		return model.ErrScanJobNotRunning
	}
	job.TotalItems = update.Progress.TotalItems
	job.ProcessedItems = update.Progress.ProcessedItems
	job.FailedItems = update.Progress.FailedItems
	job.LastCursor = update.LastCursor
	job.PagesProcessed = update.PagesProcessed
	job.UpdatedAt = update.At
	return nil
}

// RequestCancel flags a running job.
func (s *ScanJobStore) RequestCancel(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false, apperrors.NotFoundf("scan job %s not found", id)
	}
	if job.Status != model.ScanStatusRunning {
		return false, nil
	}
	if job.CancelRequestedAt == nil {
		job.CancelRequestedAt = &at
		job.UpdatedAt = at
	}
	return true, nil
}

// IsCancelRequested reports whether the durable cancel flag is set.
func (s *ScanJobStore) IsCancelRequested(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, apperrors.NotFoundf("scan job %s not found", id)
	}
	return job.CancelRequestedAt != nil, nil
}

// ReserveNext claims the oldest pending job, or a running job with an expired lease.
func (s *ScanJobStore) ReserveNext(_ context.Context, opts model.ReserveOptions) (*model.ScanJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	running := 0
	runningPerOrg := make(map[string]int)
	for _, job := range s.jobs {
		if job.Status != model.ScanStatusRunning || leaseExpired(job, now) {
			continue
		}
		running++
		if job.OrganizationID != nil {
			runningPerOrg[*job.OrganizationID]++
		}
	}

	for _, id := range s.order {
		job := s.jobs[id]
		switch {
		case job.Status == model.ScanStatusRunning && leaseExpired(job, now):
		case job.Status == model.ScanStatusPending:
			if opts.MaxRunning > 0 && running >= opts.MaxRunning {
				continue
			}
			if opts.MaxRunningPerOrg > 0 && job.OrganizationID != nil &&
				runningPerOrg[*job.OrganizationID] >= opts.MaxRunningPerOrg {
				continue
			}
			applyTransition(job, model.ScanTransition{To: model.ScanStatusRunning, At: now})
		default:
			continue
		}

		owner := opts.Owner
		expires := now.Add(opts.Lease)
		job.LeaseOwner = &owner
		job.LeaseExpiresAt = &expires
		job.UpdatedAt = now
		return cloneJob(job), nil
	}
	return nil, model.ErrNoScanJobsAvailable
}

func leaseExpired(job *model.ScanJob, now time.Time) bool {
	return job.LeaseExpiresAt != nil && !job.LeaseExpiresAt.After(now)
}

// Heartbeat extends the lease when owner still holds it.
func (s *ScanJobStore) Heartbeat(_ context.Context, id, owner string, lease time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != model.ScanStatusRunning || job.LeaseOwner == nil || *job.LeaseOwner != owner {
		return false, nil
	}
	expires := s.clock.Now().Add(lease)
	job.LeaseExpiresAt = &expires
	return true, nil
}

// WaitForPending blocks until a job is created or ctx ends.
func (s *ScanJobStore) WaitForPending(ctx context.Context) error {
	select {
	case <-s.pending:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FailStalePending fails pending jobs created more than maxAge ago.
func (s *ScanJobStore) FailStalePending(_ context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	return s.failWhere(batchSize, "scan timed out waiting for a runner", func(job *model.ScanJob, now time.Time) bool {
		return job.Status == model.ScanStatusPending && job.CreatedAt.Before(now.Add(-maxAge))
	})
}

// FailAbandonedRunning fails running jobs whose lease expired more than maxAge ago.
func (s *ScanJobStore) FailAbandonedRunning(_ context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	return s.failWhere(batchSize, "scan abandoned by its runner", func(job *model.ScanJob, now time.Time) bool {
		return job.Status == model.ScanStatusRunning &&
			job.LeaseExpiresAt != nil && job.LeaseExpiresAt.Before(now.Add(-maxAge))
	})
}

func (s *ScanJobStore) failWhere(batchSize int, msg string, match func(*model.ScanJob, time.Time) bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var n int64
	for _, id := range s.order {
		if batchSize > 0 && n >= int64(batchSize) {
			break
		}
		job := s.jobs[id]
		if !match(job, now) {
			continue
		}
		m := msg
		applyTransition(job, model.ScanTransition{To: model.ScanStatusFailed, At: now, ErrorMessage: &m})
		n++
	}
	return n, nil
}

// DeleteOldScans removes terminal jobs (and their results) that completed before MaxAge ago.
func (s *ScanJobStore) DeleteOldScans(_ context.Context, params core.DeleteOldScansParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-params.MaxAge)
	var n int64
	kept := s.order[:0]
	for _, id := range s.order {
		job := s.jobs[id]
		expired := job.Status == params.Status && job.CompletedAt != nil && job.CompletedAt.Before(cutoff)
		if !expired || (params.BatchSize > 0 && n >= int64(params.BatchSize)) {
			kept = append(kept, id)
			continue
		}
		delete(s.jobs, id)
		if s.results != nil {
			s.results.deleteJob(id)
		}
		n++
	}
	s.order = kept
	return n, nil
}

func cloneJob(job *model.ScanJob) *model.ScanJob {
	cp := *job
	cp.Config.Properties = slices.Clone(job.Config.Properties)
	cp.Config.AssociationTypes = slices.Clone(job.Config.AssociationTypes)
	if dr := job.Config.Filters.DateRange; dr != nil {
		drCopy := *dr
		cp.Config.Filters.DateRange = &drCopy
	}
	cp.OrganizationID = clonePtr(job.OrganizationID)
	cp.ErrorMessage = clonePtr(job.ErrorMessage)
	cp.CancelRequestedAt = clonePtr(job.CancelRequestedAt)
	cp.LeaseOwner = clonePtr(job.LeaseOwner)
	cp.LeaseExpiresAt = clonePtr(job.LeaseExpiresAt)
	cp.StartedAt = clonePtr(job.StartedAt)
	cp.CompletedAt = clonePtr(job.CompletedAt)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var (
	_ core.ScanJobRepository = (*ScanJobStore)(nil)
	_ core.ReaperRepository  = (*ScanJobStore)(nil)
)
