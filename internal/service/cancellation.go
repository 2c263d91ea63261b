package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	"github.com/om239903-ai/internship-project/internal/domain/scan"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
	"github.com/om239903-ai/internship-project/internal/observability/metrics"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
)

// maxCancelAttempts bounds how often a cancel re-reads a job whose status moved under it.
const maxCancelAttempts = 3

// CancellationControllerOptions groups dependencies for CancellationController.
type CancellationControllerOptions struct {
	Jobs    core.ScanJobRepository // Required: durable cancel flag and status CAS
	Flags   core.CancelFlagStore   // Optional: fast mirror of the durable flag (Redis)
	Logger  *slog.Logger           // Optional: structured logger
	Metrics statsd.Sink            // Optional: metrics sink
	Now     func() time.Time       // Optional: clock override for tests
}

// CancellationController records operator cancel requests and answers the engine's
// "should I stop" checks.
//
// A pending job is cancelled directly. A running job only gets its cancel flag set;
// the extraction engine observes the flag at its next checkpoint and finishes the run.
type CancellationController struct {
	jobs    core.ScanJobRepository
	flags   core.CancelFlagStore
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

// NewCancellationController constructs a CancellationController.
func NewCancellationController(opts CancellationControllerOptions) (*CancellationController, error) {
	if opts.Jobs == nil {
		return nil, errors.New("ScanJobRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &CancellationController{
		jobs:    opts.Jobs,
		flags:   opts.Flags,
		logger:  logger.With("component", "cancellation_controller"),
		metrics: opts.Metrics,
		now:     now,
	}, nil
}

// RequestCancel cancels job. It returns the job as stored after the request: cancelled
// for a pending job, still running with the cancel flag set for a running one.
// Terminal jobs yield an InvalidCancellation conflict.
func (c *CancellationController) RequestCancel(ctx context.Context, job *model.ScanJob) (*model.ScanJob, error) {
	if job == nil {
		return nil, apperrors.Validation("scan job is required")
	}

	for range maxCancelAttempts {
		if !scan.CanCancel(job.Status) {
			c.emit(job, metrics.ResultNoop)
			return nil, apperrors.InvalidCancellation(job.ScanID, string(job.Status))
		}

		var (
			out  *model.ScanJob
			done bool
			err  error
		)
		if job.Status == model.ScanStatusPending {
			out, done, err = c.cancelPending(ctx, job)
		} else {
			out, done, err = c.cancelRunning(ctx, job)
		}
		if err != nil {
			c.emit(job, metrics.ResultError)
			return nil, err
		}
		if done {
			c.emit(job, metrics.ResultSuccess)
			return out, nil
		}

		// Status moved between the read and the write; decide again on the fresh row.
		job, err = c.jobs.GetByID(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("reload scan job: %w", err)
		}
	}
	return nil, apperrors.Conflict("scan status changed concurrently; retry the cancel")
}

func (c *CancellationController) cancelPending(ctx context.Context, job *model.ScanJob) (*model.ScanJob, bool, error) {
	progress := job.Progress()
	out, err := c.jobs.Transition(ctx, job.ID, []model.ScanStatus{model.ScanStatusPending}, model.ScanTransition{
		To:       model.ScanStatusCancelled,
		At:       c.now(),
		Progress: &progress,
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cancel pending scan: %w", err)
	}
	c.logger.InfoContext(ctx, "pending scan cancelled", "scan_id", job.ScanID, "scan_job_id", job.ID)
	return out, true, nil
}

func (c *CancellationController) cancelRunning(ctx context.Context, job *model.ScanJob) (*model.ScanJob, bool, error) {
	ok, err := c.jobs.RequestCancel(ctx, job.ID, c.now())
	if err != nil {
		return nil, false, fmt.Errorf("request cancel: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	if c.flags != nil {
		// The durable flag is authoritative; the mirror only shortens the engine's reaction time.
		if err := c.flags.SetCancelFlag(ctx, job.ID); err != nil {
			c.logger.WarnContext(ctx, "mirror cancel flag failed", "scan_job_id", job.ID, "error", err)
		}
	}
	c.logger.InfoContext(ctx, "cancel requested for running scan", "scan_id", job.ScanID, "scan_job_id", job.ID)

	out, err := c.jobs.GetByID(ctx, job.ID)
	if err != nil {
		return nil, false, fmt.Errorf("reload scan job: %w", err)
	}
	return out, true, nil
}

// IsCancelled reports whether a cancel was requested for the run. The Redis mirror is
// consulted first; the store answers when the mirror is absent, unset or unreachable.
func (c *CancellationController) IsCancelled(ctx context.Context, scanJobID string) (bool, error) {
	if c.flags != nil {
		set, err := c.flags.IsCancelFlagSet(ctx, scanJobID)
		switch {
		case err != nil:
			c.logger.DebugContext(ctx, "cancel flag lookup failed, using store", "scan_job_id", scanJobID, "error", err)
		case set:
			return true, nil
		}
	}
	return c.jobs.IsCancelRequested(ctx, scanJobID)
}

// Clear drops the mirrored flag once the run has finished.
func (c *CancellationController) Clear(ctx context.Context, scanJobID string) error {
	if c.flags == nil {
		return nil
	}
	return c.flags.ClearCancelFlag(ctx, scanJobID)
}

func (c *CancellationController) emit(job *model.ScanJob, result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.Count(metrics.CancelRequested, 1, map[string]string{
		"scan_type": string(job.ScanType),
		"status":    string(job.Status),
		"result":    result,
	})
}
