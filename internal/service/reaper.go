package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/om239903-ai/internship-project/config"
	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	obserrors "github.com/om239903-ai/internship-project/internal/observability/errors"
	"github.com/om239903-ai/internship-project/internal/observability/metrics"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository // Required: reaper repository
	Config  config.ReaperConfig   // Required: reaper configuration
	Logger  *slog.Logger          // Optional: structured logger
	Metrics statsd.Sink           // Optional: metrics sink (StatsD-compatible)
}

// ReaperService sweeps the scan registry.
//
// This service manages:
// - Failing pending scans that no runner picked up.
// - Failing running scans whose lease expired and that no runner reclaimed.
// - Deleting old terminal scans (and their results) to bound table growth.
type ReaperService struct {
	repo    core.ReaperRepository
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
	}

	return &ReaperService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Spread sweeps of replicas that start together.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

type cleanupFunc func(context.Context) (int64, error)

type cleanupStep struct {
	operation string
	label     string
	fn        cleanupFunc
}

type cleanupOutcome struct {
	operation string
	count     int64
	err       error
}

// RunOnce performs one sweep. Every step runs even when an earlier one fails; the
// returned error joins the step failures.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	start := time.Now()

	steps := []cleanupStep{
		{operation: "fail_pending", label: "fail stale pending scans", fn: s.failStalePending},
		{operation: "fail_abandoned", label: "fail abandoned running scans", fn: s.failAbandonedRunning},
		{operation: "delete_completed", label: "delete old completed scans",
			fn: s.deleteOld(model.ScanStatusCompleted, s.config.CompletedMaxAge)},
		{operation: "delete_failed", label: "delete old failed scans",
			fn: s.deleteOld(model.ScanStatusFailed, s.config.FailedMaxAge)},
		{operation: "delete_cancelled", label: "delete old cancelled scans",
			fn: s.deleteOld(model.ScanStatusCancelled, s.config.CancelledMaxAge)},
	}

	var (
		errs        []error
		allCanceled = true
		outcomes    = make([]cleanupOutcome, 0, len(steps))
	)
	for _, step := range steps {
		count, err := step.fn(ctx)
		outcomes = append(outcomes, cleanupOutcome{
			operation: step.operation,
			count:     count,
			err:       suppressContextCancellation(err),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
			allCanceled = allCanceled && isContextCancellation(err)
		} else if count > 0 && s.logger != nil {
			s.logger.InfoContext(ctx, step.label, "count", count)
		}
	}

	s.emitCleanupMetrics(outcomes, time.Since(start))

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allCanceled {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}
	return nil
}

// drain repeats a batched operation until a batch affects no rows.
func drain(ctx context.Context, batch func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		count, err := batch(ctx)
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (s *ReaperService) failStalePending(ctx context.Context) (int64, error) {
	return drain(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.FailStalePending(ctx, s.config.PendingMaxAge, s.config.BatchSize)
	})
}

func (s *ReaperService) failAbandonedRunning(ctx context.Context) (int64, error) {
	return drain(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.FailAbandonedRunning(ctx, s.config.AbandonedMaxAge, s.config.BatchSize)
	})
}

func (s *ReaperService) deleteOld(status model.ScanStatus, maxAge time.Duration) cleanupFunc {
	return func(ctx context.Context) (int64, error) {
		return drain(ctx, func(ctx context.Context) (int64, error) {
			return s.repo.DeleteOldScans(ctx, core.DeleteOldScansParams{
				Status:    status,
				MaxAge:    maxAge,
				BatchSize: s.config.BatchSize,
			})
		})
	}
}

func (s *ReaperService) emitCleanupMetrics(outcomes []cleanupOutcome, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	var (
		total    int64
		firstErr error
	)
	for _, o := range outcomes {
		total += o.count
		if firstErr == nil {
			firstErr = o.err
		}
		s.emitOperationMetric(o)
	}

	tags := map[string]string{"result": resultFor(total, firstErr)}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}
	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, maps.Clone(tags))
	}
	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *ReaperService) emitOperationMetric(o cleanupOutcome) {
	tags := map[string]string{
		"operation": o.operation,
		"result":    resultFor(o.count, o.err),
	}
	if o.err != nil {
		if class := obserrors.Classify(o.err); class != "" {
			tags["error_class"] = class
		}
	}
	s.metrics.Count("reaper.cleanup_operation", 1, tags)
	if o.err == nil && o.count > 0 {
		s.metrics.Count(metrics.ReaperSwept, o.count, maps.Clone(tags))
	}
}

func resultFor(count int64, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case count == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
