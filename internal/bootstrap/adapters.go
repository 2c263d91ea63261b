package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/om239903-ai/internship-project/config"
	"github.com/om239903-ai/internship-project/internal/adapters/reaper"
	"github.com/om239903-ai/internship-project/internal/adapters/scanrunner"
	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
)

// ScanRunnerConfig contains configuration for the scan runner.
type ScanRunnerConfig struct {
	Services ServiceContainer
	Config   config.ScanRunnerConfig
	Logger   *slog.Logger
}

// RunScanRunner starts the scan workers and blocks until ctx ends.
func RunScanRunner(ctx context.Context, cfg ScanRunnerConfig) error {
	runner, err := scanrunner.NewRunner(scanrunner.RunnerOptions{
		Jobs:         cfg.Services.Jobs,
		Engine:       cfg.Services.Engine,
		Notifier:     cfg.Services.Notifier,
		Logger:       cfg.Logger,
		Metrics:      cfg.Services.Observability.MetricsSink,
		Concurrency:  cfg.Config.Concurrency,
		MaxPerOrg:    cfg.Config.MaxPerOrg,
		MaxRunning:   cfg.Config.MaxRunning,
		Lease:        cfg.Config.JobLease,
		PollInterval: cfg.Config.PollInterval,
	})
	if err != nil {
		return fmt.Errorf("create scan runner: %w", err)
	}

	return runner.Run(ctx)
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	Repo    core.ReaperRepository
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Repo:    cfg.Repo,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
