package core

import (
	"context"
	"time"

	"github.com/om239903-ai/internship-project/internal/domain/model"
)

// This file contains repository and collaborator interface definitions (ports in hexagonal architecture).
// Service implementations depend on these interfaces, not on concrete stores or clients.

// ScanJobRepository is the durable registry of scan runs. Every status mutation is a
// compare-and-swap on the expected current status.
type ScanJobRepository interface {
	// Create inserts a pending job. It returns a Conflict error when a non-terminal job
	// already exists for the same scan_id.
	Create(ctx context.Context, job *model.ScanJob) (*model.ScanJob, error)
	GetByID(ctx context.Context, id string) (*model.ScanJob, error)
	// GetLatestByScanID returns the most recent run for scanID.
	GetLatestByScanID(ctx context.Context, scanID string) (*model.ScanJob, error)
	List(ctx context.Context, opts model.ScanListOptions) ([]*model.ScanJob, error)
	// Transition moves the job to tr.To when its status is one of from. It returns a Conflict
	// error when the status did not match and NotFound when the job does not exist.
	Transition(ctx context.Context, id string, from []model.ScanStatus, tr model.ScanTransition) (*model.ScanJob, error)
	// UpdateProgress persists page-boundary counters. It returns model.ErrScanJobNotRunning when
	// the job left the running status.
	UpdateProgress(ctx context.Context, id string, update model.ProgressUpdate) error
	// RequestCancel records the durable cancel flag on a running job. It reports false when
	// the job is not running.
	RequestCancel(ctx context.Context, id string, at time.Time) (bool, error)
	IsCancelRequested(ctx context.Context, id string) (bool, error)
	// ReserveNext claims a pending job (moving it to running) or a running job whose lease
	// expired. It returns model.ErrNoScanJobsAvailable when nothing can be claimed.
	ReserveNext(ctx context.Context, opts model.ReserveOptions) (*model.ScanJob, error)
	// Heartbeat extends the lease held by owner. It reports false when the lease was lost.
	Heartbeat(ctx context.Context, id, owner string, lease time.Duration) (bool, error)
}

// DealResultRepository stores extracted deals keyed by (scan_job_id, deal_id).
type DealResultRepository interface {
	// Upsert inserts the row or merges non-null fields over the existing one.
	Upsert(ctx context.Context, res *model.DealResult) (model.UpsertOutcome, error)
	// List returns one page of rows and the total number of matching rows.
	List(ctx context.Context, q model.DealResultQuery) ([]*model.DealResult, int, error)
}

// SourceClient is the outbound contract of the source system. Every method issues exactly one
// request so callers can meter each one. Errors are classified with the internal/errors codes
// auth, rate_limited, not_found and transient.
type SourceClient interface {
	ListPage(ctx context.Context, req model.ListPageRequest) (*model.SourcePage, error)
	ListAssociations(ctx context.Context, req model.AssociationPageRequest) (*model.AssociationPage, error)
}

// SourceAccountReader is implemented by source clients that can describe their account.
type SourceAccountReader interface {
	AccountInfo(ctx context.Context) (*model.SourceAccount, error)
}

// SourceClientFactory binds a SourceClient to one credential.
type SourceClientFactory interface {
	NewClient(accessToken string) (SourceClient, error)
}

// CancelFlagStore mirrors cancel requests to a fast shared store.
type CancelFlagStore interface {
	SetCancelFlag(ctx context.Context, scanJobID string) error
	IsCancelFlagSet(ctx context.Context, scanJobID string) (bool, error)
	ClearCancelFlag(ctx context.Context, scanJobID string) error
}

// DeleteOldScansParams groups parameters for DeleteOldScans.
type DeleteOldScansParams struct {
	Status    model.ScanStatus
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the retention and stale-job operations.
type ReaperRepository interface {
	// FailStalePending marks pending jobs older than maxAge as failed.
	FailStalePending(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
	// FailAbandonedRunning marks running jobs whose lease expired more than maxAge ago as failed.
	FailAbandonedRunning(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
	// DeleteOldScans deletes terminal jobs (and their results) older than MaxAge.
	DeleteOldScans(ctx context.Context, params DeleteOldScansParams) (int64, error)
}
