// Package scanrunner runs scan workers: it reserves pending (or lease-expired) scan jobs under
// the concurrency caps, keeps their leases alive, and hands them to the extraction engine.
package scanrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	"github.com/om239903-ai/internship-project/internal/domain/scan"
	obserrors "github.com/om239903-ai/internship-project/internal/observability/errors"
	"github.com/om239903-ai/internship-project/internal/observability/metrics"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
	"github.com/om239903-ai/internship-project/internal/service/extraction"
)

const (
	defaultLease        = 2 * time.Minute
	defaultPollInterval = 5 * time.Second
)

// Executor runs one reserved scan job to completion.
type Executor interface {
	Run(ctx context.Context, job *model.ScanJob) error
}

// RunnerOptions configures the scan runner.
type RunnerOptions struct {
	Jobs     core.ScanJobRepository // Required
	Engine   Executor               // Required
	Notifier scan.Notifier          // Optional: wakeups on new pending scans; polling covers the rest
	Logger   *slog.Logger
	Metrics  statsd.Sink

	// Concurrency is the number of workers in this runner, the per-replica cap on running scans.
	Concurrency int
	// MaxRunning caps running scans across all runners sharing Jobs (0 means unlimited).
	MaxRunning int
	// MaxPerOrg caps running scans per organization (0 means unlimited).
	MaxPerOrg    int
	Lease        time.Duration
	PollInterval time.Duration
	// Owner prefixes the lease owner id of every worker; defaults to hostname plus a random suffix.
	Owner string
}

// Runner pulls scan jobs and executes them.
type Runner struct {
	jobs         core.ScanJobRepository
	engine       Executor
	notifier     scan.Notifier
	logger       *slog.Logger
	metrics      statsd.Sink
	workers      int
	maxPerOrg    int
	maxRunning   int
	leasePolicy  *scan.LeasePolicy
	pollInterval time.Duration
	owner        string
}

// NewRunner validates opts and constructs a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("scan job repository is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("scan executor is required")
	}

	lease := opts.Lease
	if lease <= 0 {
		lease = defaultLease
	}
	policy, err := scan.NewLeasePolicy(lease)
	if err != nil {
		return nil, fmt.Errorf("create lease policy: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	owner := opts.Owner
	if owner == "" {
		owner = defaultOwner()
	}

	return &Runner{
		jobs:         opts.Jobs,
		engine:       opts.Engine,
		notifier:     opts.Notifier,
		logger:       logger.With("component", "scan_runner"),
		metrics:      opts.Metrics,
		workers:      max(opts.Concurrency, 1),
		maxPerOrg:    max(opts.MaxPerOrg, 0),
		maxRunning:   max(opts.MaxRunning, 0),
		leasePolicy:  policy,
		pollInterval: poll,
		owner:        owner,
	}, nil
}

func defaultOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "scan-runner"
	}
	return host + "-" + uuid.NewString()[:8]
}

// Run starts the workers and blocks until ctx is cancelled. Jobs interrupted by shutdown
// stay running and are reclaimed by another runner once their lease expires.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting scan runner",
		"workers", r.workers,
		"max_per_org", r.maxPerOrg,
		"lease", r.leasePolicy.Resolve(0),
		"owner", r.owner,
	)

	var wake <-chan struct{}
	if r.notifier != nil {
		unsub, ch := r.notifier.Subscribe()
		defer unsub()
		wake = ch
	}

	var wg sync.WaitGroup
	for i := range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.workerLoop(ctx, fmt.Sprintf("%s/%d", r.owner, i), wake)
		}()
	}
	wg.Wait()

	r.logger.InfoContext(ctx, "scan runner stopped")
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (r *Runner) workerLoop(ctx context.Context, owner string, wake <-chan struct{}) {
	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx, model.ReserveOptions{
			Owner:            owner,
			Lease:            r.leasePolicy.Resolve(0),
			MaxRunningPerOrg: r.maxPerOrg,
			MaxRunning:       r.maxRunning,
		})
		switch {
		case err == nil:
			r.processJob(ctx, owner, job)
		case errors.Is(err, model.ErrNoScanJobsAvailable):
			if !r.wait(ctx, wake) {
				return
			}
		default:
			if ctx.Err() != nil {
				return
			}
			r.logger.ErrorContext(ctx, "reserve next scan failed", "owner", owner, "error", err)
			if r.metrics != nil {
				r.metrics.Count(metrics.RunnerReserveErr, 1, map[string]string{"error_class": obserrors.Classify(err)})
			}
			if !r.wait(ctx, nil) {
				return
			}
		}
	}
}

// wait blocks until a wakeup, the poll interval, or ctx ends. It reports false on ctx end.
func (r *Runner) wait(ctx context.Context, wake <-chan struct{}) bool {
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-wake:
		return true
	case <-timer.C:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, owner string, job *model.ScanJob) {
	log := r.logger.With("scan_id", job.ScanID, "scan_job_id", job.ID)
	if job.PagesProcessed > 0 {
		log.InfoContext(ctx, "resuming scan", "pages_processed", job.PagesProcessed)
	} else {
		log.InfoContext(ctx, "starting scan")
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopHB := r.startHeartbeat(jobCtx, cancel, owner, job.ID, log)
	defer stopHB()

	err := r.engine.Run(jobCtx, job)
	switch {
	case err == nil:
	case errors.Is(err, extraction.ErrJobNotRunning):
		log.WarnContext(ctx, "scan left running status during the run")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.InfoContext(ctx, "scan interrupted; it will be reclaimed after its lease expires")
	default:
		log.ErrorContext(ctx, "scan run failed", "error", err)
	}
}

// startHeartbeat renews the lease every third of its duration. Losing the lease cancels the
// run so two workers never extract the same job.
func (r *Runner) startHeartbeat(
	ctx context.Context,
	cancel context.CancelFunc,
	owner, jobID string,
	log *slog.Logger,
) func() {
	ticker := time.NewTicker(r.leasePolicy.HeartbeatInterval())
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ok, err := r.jobs.Heartbeat(ctx, jobID, owner, r.leasePolicy.Resolve(0))
				switch {
				case err != nil:
					if ctx.Err() == nil {
						log.ErrorContext(ctx, "heartbeat failed", "error", err)
					}
				case !ok:
					log.WarnContext(ctx, "lease lost; stopping run")
					cancel()
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { close(done) }
}
