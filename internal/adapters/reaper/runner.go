// Package reaper runs the scan reaper either as a long-lived loop or as a single sweep.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/om239903-ai/internship-project/config"
	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/data"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
	"github.com/om239903-ai/internship-project/internal/service"
)

// RunnerOptions wires a Runner. Repo takes precedence over DB.
type RunnerOptions struct {
	DB      *sql.DB
	Repo    core.ReaperRepository
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Runner sweeps stale, abandoned and expired scan runs.
type Runner struct {
	sweeper *service.ReaperService
	cfg     config.ReaperConfig
	logger  *slog.Logger
}

// NewRunner builds the reaper service over the configured store.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	repo := opts.Repo
	switch {
	case repo != nil:
	case opts.DB != nil:
		repo = data.NewScanJobRepo(opts.DB, data.ScanJobRepoConfig{})
	default:
		return nil, errors.New("reaper needs a scan job store or a database")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sweeper, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:    repo,
		Config:  opts.Config,
		Logger:  logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}
	return &Runner{
		sweeper: sweeper,
		cfg:     opts.Config,
		logger:  logger.With("component", "reaper_runner"),
	}, nil
}

// Run sweeps every configured interval until ctx ends.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "reaper started",
		"interval", r.cfg.Interval,
		"pending_max_age", r.cfg.PendingMaxAge,
		"abandoned_max_age", r.cfg.AbandonedMaxAge,
		"completed_retention", r.cfg.CompletedMaxAge,
		"failed_retention", r.cfg.FailedMaxAge,
		"cancelled_retention", r.cfg.CancelledMaxAge,
	)
	return r.sweeper.Run(ctx)
}

// Sweep performs one pass. Errors from individual steps are joined; the remaining steps
// still run.
func (r *Runner) Sweep(ctx context.Context) error {
	return r.sweeper.RunOnce(ctx)
}
