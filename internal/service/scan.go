package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	"github.com/om239903-ai/internship-project/internal/domain/scan"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
	"github.com/om239903-ai/internship-project/internal/observability/metrics"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
)

const (
	// DefaultResultsPageSize is used when a results query omits page_size.
	DefaultResultsPageSize = 50
	// MaxResultsPageSize caps page_size on results queries.
	MaxResultsPageSize = 500
	// DefaultListLimit is used when a list query omits limit.
	DefaultListLimit = 50
	// MaxListLimit caps list queries.
	MaxListLimit = 1000
)

// ScanServiceOptions groups dependencies for ScanService.
type ScanServiceOptions struct {
	Jobs     core.ScanJobRepository    // Required: scan job registry
	Results  core.DealResultRepository // Required: extracted deals
	Cancel   *CancellationController   // Optional: built from Jobs when nil
	Notifier scan.Notifier             // Optional: wakes scan runners after Start
	Logger   *slog.Logger              // Optional: structured logger
	Metrics  statsd.Sink               // Optional: metrics sink
	NewID    func() string             // Optional: run id generator (defaults to UUIDv4)
}

// ScanService is the control plane of the scan registry: it starts runs, answers status
// and results queries, and forwards cancel requests.
type ScanService struct {
	jobs     core.ScanJobRepository
	results  core.DealResultRepository
	cancel   *CancellationController
	notifier scan.Notifier
	logger   *slog.Logger
	metrics  statsd.Sink
	newID    func() string
}

// NewScanService constructs a new ScanService.
func NewScanService(opts ScanServiceOptions) (*ScanService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("ScanJobRepository is required")
	}
	if opts.Results == nil {
		return nil, errors.New("DealResultRepository is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cancel := opts.Cancel
	if cancel == nil {
		var err error
		cancel, err = NewCancellationController(CancellationControllerOptions{
			Jobs:    opts.Jobs,
			Logger:  logger,
			Metrics: opts.Metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("create cancellation controller: %w", err)
		}
	}

	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &ScanService{
		jobs:     opts.Jobs,
		results:  opts.Results,
		cancel:   cancel,
		notifier: opts.Notifier,
		logger:   logger.With("component", "scan_service"),
		metrics:  opts.Metrics,
		newID:    newID,
	}, nil
}

// MustNewScanService constructs a new ScanService and panics on error.
func MustNewScanService(opts ScanServiceOptions) *ScanService {
	svc, err := NewScanService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

// Start validates req and registers a pending run. A second start for a scan id whose
// latest run is not terminal fails with AlreadyInProgress.
func (s *ScanService) Start(ctx context.Context, req *model.StartScanRequest) (*model.ScanJob, error) {
	if req == nil {
		return nil, apperrors.Validation("request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	scanType := req.ScanType
	if scanType == "" {
		scanType = model.ScanTypeDeals
	}
	cfg := req.Config.Normalize()
	job := &model.ScanJob{
		ID:             s.newID(),
		ScanID:         strings.TrimSpace(req.ScanID),
		Status:         model.ScanStatusPending,
		ScanType:       scanType,
		Config:         cfg,
		OrganizationID: req.OrganizationID,
		BatchSize:      cfg.BatchSize,
	}

	created, err := s.jobs.Create(ctx, job)
	if err != nil {
		if apperrors.IsConflict(err) && apperrors.GetField(err) != "id" {
			s.emit(scanType, "start", metrics.ResultNoop, err)
			return nil, apperrors.AlreadyInProgress(job.ScanID)
		}
		s.emit(scanType, "start", metrics.ResultError, err)
		return nil, fmt.Errorf("create scan job: %w", err)
	}

	s.emit(scanType, "start", metrics.ResultSuccess, nil)
	s.logger.InfoContext(ctx, "scan started",
		"scan_id", created.ScanID,
		"scan_job_id", created.ID,
		"config", created.Config,
	)
	if s.notifier != nil {
		s.notifier.Notify()
	}
	return created, nil
}

// Status returns the view of the latest run for scanID. Unknown ids, and lookups that
// fail, yield the not_found view rather than an error.
func (s *ScanService) Status(ctx context.Context, scanID string) model.ScanJobView {
	scanID = strings.TrimSpace(scanID)
	job, err := s.jobs.GetLatestByScanID(ctx, scanID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.ErrorContext(ctx, "scan status lookup failed", "scan_id", scanID, "error", err)
		}
		return model.NotFoundView(scanID)
	}
	return job.View()
}

// Cancel requests cancellation of the latest run for scanID.
func (s *ScanService) Cancel(ctx context.Context, scanID string) (*model.ScanJob, error) {
	job, err := s.latest(ctx, scanID)
	if err != nil {
		return nil, err
	}
	return s.cancel.RequestCancel(ctx, job)
}

// Results returns one page of extracted deals for the latest run of scanID together with
// the run's current status. Rows are readable while the run is still in progress.
func (s *ScanService) Results(ctx context.Context, scanID string, q model.DealResultQuery) (*model.DealResultPage, error) {
	job, err := s.latest(ctx, scanID)
	if err != nil {
		return nil, err
	}

	q.ScanJobID = job.ID
	q.Page = max(q.Page, 1)
	switch {
	case q.PageSize <= 0:
		q.PageSize = DefaultResultsPageSize
	case q.PageSize > MaxResultsPageSize:
		q.PageSize = MaxResultsPageSize
	}

	rows, total, err := s.results.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list deal results: %w", err)
	}
	if rows == nil {
		rows = []*model.DealResult{}
	}
	return &model.DealResultPage{
		Job:      job.View(),
		Results:  rows,
		Page:     q.Page,
		PageSize: q.PageSize,
		Total:    total,
		HasMore:  q.Page*q.PageSize < total,
	}, nil
}

// List returns run views, newest first.
func (s *ScanService) List(ctx context.Context, opts model.ScanListOptions) ([]model.ScanJobView, error) {
	switch {
	case opts.Limit <= 0:
		opts.Limit = DefaultListLimit
	case opts.Limit > MaxListLimit:
		opts.Limit = MaxListLimit
	}
	opts.Offset = max(opts.Offset, 0)
	if opts.ScanID != nil {
		id := strings.TrimSpace(*opts.ScanID)
		opts.ScanID = &id
	}

	jobs, err := s.jobs.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list scan jobs: %w", err)
	}
	out := make([]model.ScanJobView, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.View())
	}
	return out, nil
}

// Get returns the run with the given id.
func (s *ScanService) Get(ctx context.Context, scanJobID string) (*model.ScanJob, error) {
	return s.jobs.GetByID(ctx, scanJobID)
}

func (s *ScanService) latest(ctx context.Context, scanID string) (*model.ScanJob, error) {
	scanID = strings.TrimSpace(scanID)
	if scanID == "" {
		return nil, apperrors.ValidationField("scan_id", "scan_id is required")
	}
	job, err := s.jobs.GetLatestByScanID(ctx, scanID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NotFoundf("scan %q not found", scanID)
		}
		return nil, fmt.Errorf("get scan %s: %w", scanID, err)
	}
	return job, nil
}

func (s *ScanService) emit(scanType model.ScanType, transition, result string, err error) {
	metrics.EmitScanLifecycle(s.metrics, metrics.ScanMetric{
		ScanType:   string(scanType),
		Transition: transition,
		Result:     result,
		Err:        err,
	})
}
