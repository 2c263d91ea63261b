// Package extraction drives one scan run: it walks the source cursor page by page through the
// rate governor, streams items through the result sink, checkpoints progress at every page
// boundary, and finishes the run in a terminal status.
package extraction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
	"github.com/om239903-ai/internship-project/internal/observability/notify"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
	"github.com/om239903-ai/internship-project/internal/service/governor"
)

const (
	// DefaultEnrichConcurrency bounds in-flight association calls per page.
	DefaultEnrichConcurrency = 4
	// DefaultCancelGracePeriod bounds the wait for in-flight calls after a cancel is observed.
	DefaultCancelGracePeriod = 10 * time.Second
	// DefaultCancelPollInterval rate-limits cancel checks against the stores.
	DefaultCancelPollInterval = time.Second
)

// ErrJobNotRunning is returned when the run loses the running status to another actor
// (typically the reaper) before it finishes.
var ErrJobNotRunning = errors.New("scan job is no longer running")

// ResultSink persists extracted deals.
type ResultSink interface {
	Upsert(ctx context.Context, res *model.DealResult) (model.UpsertOutcome, error)
}

// CancelWatcher reports operator cancel requests for a run.
type CancelWatcher interface {
	IsCancelled(ctx context.Context, scanJobID string) (bool, error)
	Clear(ctx context.Context, scanJobID string) error
}

// FailureNotifier is told about runs that end in the failed status.
type FailureNotifier interface {
	NotifyScanFailure(ctx context.Context, payload notify.ScanFailurePayload)
}

// Options configures an Engine.
type Options struct {
	Jobs      core.ScanJobRepository
	Sink      ResultSink
	Clients   core.SourceClientFactory
	Governors *governor.Registry
	Cancel    CancelWatcher   // optional
	Notifier  FailureNotifier // optional
	Logger    *slog.Logger
	Metrics   statsd.Sink
	Now       func() time.Time

	EnrichConcurrency int
	CancelGracePeriod time.Duration
	// CancelPollInterval spaces the cancel checks made between items; page boundaries always
	// check. Negative checks before every item.
	CancelPollInterval time.Duration
	// PortalID builds deal URLs. When empty, each run looks it up from the source account
	// if the client supports that.
	PortalID string
}

// Engine executes scan runs. It is safe for concurrent use; each Run owns its own state.
type Engine struct {
	jobs      core.ScanJobRepository
	sink      ResultSink
	clients   core.SourceClientFactory
	governors *governor.Registry
	cancel    CancelWatcher
	notifier  FailureNotifier
	logger    *slog.Logger
	metrics   statsd.Sink
	now       func() time.Time

	enrichConcurrency  int
	cancelGrace        time.Duration
	cancelPollInterval time.Duration
	portalID           string
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	switch {
	case opts.Jobs == nil:
		return nil, errors.New("extraction: scan job repository is required")
	case opts.Sink == nil:
		return nil, errors.New("extraction: result sink is required")
	case opts.Clients == nil:
		return nil, errors.New("extraction: source client factory is required")
	case opts.Governors == nil:
		return nil, errors.New("extraction: governor registry is required")
	}

	e := &Engine{
		jobs:               opts.Jobs,
		sink:               opts.Sink,
		clients:            opts.Clients,
		governors:          opts.Governors,
		cancel:             opts.Cancel,
		notifier:           opts.Notifier,
		logger:             opts.Logger,
		metrics:            opts.Metrics,
		now:                opts.Now,
		enrichConcurrency:  opts.EnrichConcurrency,
		cancelGrace:        opts.CancelGracePeriod,
		cancelPollInterval: opts.CancelPollInterval,
		portalID:           opts.PortalID,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "extraction_engine")
	if e.now == nil {
		e.now = time.Now
	}
	if e.enrichConcurrency <= 0 {
		e.enrichConcurrency = DefaultEnrichConcurrency
	}
	if e.cancelGrace <= 0 {
		e.cancelGrace = DefaultCancelGracePeriod
	}
	switch {
	case opts.CancelPollInterval < 0:
		e.cancelPollInterval = 0
	case opts.CancelPollInterval == 0:
		e.cancelPollInterval = DefaultCancelPollInterval
	}
	return e, nil
}

// Run executes job, which must already be in the running status, until it completes, fails,
// is cancelled, or ctx ends. When ctx ends first the job is left running so another runner can
// reclaim it from its last checkpoint; ctx.Err() is returned.
//
// A nil return means the job reached completed or cancelled. A failed job returns the cause.
func (e *Engine) Run(ctx context.Context, job *model.ScanJob) error {
	if job == nil {
		return apperrors.Validation("scan job is required")
	}
	if job.Status != model.ScanStatusRunning {
		return apperrors.Validationf("scan job %s is %s, not running", job.ID, job.Status)
	}

	r := e.newRun(job)
	r.logger.InfoContext(ctx, "scan run started",
		"resume_cursor", job.LastCursor != "",
		"pages_processed", job.PagesProcessed,
		"config", r.cfg,
	)

	client, err := e.clients.NewClient(r.cfg.AccessToken)
	if err != nil {
		return r.fail(ctx, apperrors.Wrap(err, apperrors.ErrCodeInternal, "create source client"))
	}
	r.client = client
	r.gov = e.governors.For(r.cfg.AccessToken)
	r.resolvePortal(ctx)

	return r.execute(ctx)
}
