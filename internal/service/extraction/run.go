package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	"github.com/om239903-ai/internship-project/internal/domain/scan"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
	obserrors "github.com/om239903-ai/internship-project/internal/observability/errors"
	"github.com/om239903-ai/internship-project/internal/observability/metrics"
	"github.com/om239903-ai/internship-project/internal/observability/notify"
	"github.com/om239903-ai/internship-project/internal/service/governor"
)

type pageOutcome int

const (
	pageNext pageOutcome = iota
	pageLast
	pageCancelled
)

// run is the state of one Engine.Run call. Only the dispatch goroutine touches the fields
// other than tracker.
type run struct {
	e       *Engine
	job     *model.ScanJob
	cfg     model.ScanConfig
	client  core.SourceClient
	gov     *governor.Governor
	tracker *scan.Tracker
	filter  scan.Filter
	xform   scan.TransformOptions
	logger  *slog.Logger
	started time.Time

	cursor model.Cursor
	pages  int

	cancelled       bool
	lastCancelCheck time.Time
}

func (e *Engine) newRun(job *model.ScanJob) *run {
	cfg := job.Config.Normalize()
	if job.BatchSize > 0 {
		cfg.BatchSize = model.ClampBatchSize(job.BatchSize)
	}
	started := e.now()
	if job.StartedAt != nil {
		started = *job.StartedAt
	}
	return &run{
		e:       e,
		job:     job,
		cfg:     cfg,
		tracker: scan.NewTracker(job.Progress()),
		filter:  scan.NewFilter(cfg),
		xform:   scan.TransformOptions{PortalID: e.portalID},
		logger: e.logger.With(
			"scan_job_id", job.ID,
			"scan_id", job.ScanID,
		),
		started:   started,
		cursor:    job.LastCursor,
		pages:     job.PagesProcessed,
		cancelled: job.CancelRequestedAt != nil,
	}
}

// resolvePortal fills in the portal id from the source account when none is configured.
// Deal URLs stay empty if the lookup fails.
func (r *run) resolvePortal(ctx context.Context) {
	if r.xform.PortalID != "" {
		return
	}
	reader, ok := r.client.(core.SourceAccountReader)
	if !ok {
		return
	}
	var account *model.SourceAccount
	err := r.gov.Do(ctx, "get_account_info", func(cctx context.Context) error {
		var err error
		account, err = reader.AccountInfo(cctx)
		return err
	})
	if err != nil || account == nil || account.PortalID == "" {
		r.logger.WarnContext(ctx, "portal id lookup failed, deal urls disabled", "error", err)
		return
	}
	r.xform.PortalID = account.PortalID
	r.logger.DebugContext(ctx, "portal id resolved from account", "portal_id", account.PortalID)
}

func (r *run) execute(ctx context.Context) error {
	for {
		if r.cancelRequested(ctx) {
			return r.finishCancelled(ctx)
		}
		if r.pages >= r.cfg.MaxPages {
			r.logger.WarnContext(ctx, "page limit reached, completing scan", "max_pages", r.cfg.MaxPages)
			return r.complete(ctx)
		}

		page, err := r.fetchPage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return r.interrupted(ctx)
			}
			return r.fail(ctx, err)
		}

		outcome, err := r.handlePage(ctx, page)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return r.interrupted(ctx)
		case errors.Is(err, ErrJobNotRunning):
			r.logger.WarnContext(ctx, "scan left running status during extraction, stopping")
			return err
		default:
			return r.fail(ctx, err)
		}

		switch outcome {
		case pageCancelled:
			return r.finishCancelled(ctx)
		case pageLast:
			return r.complete(ctx)
		case pageNext:
		}
	}
}

func (r *run) fetchPage(ctx context.Context) (*model.SourcePage, error) {
	req := model.ListPageRequest{
		Properties: r.cfg.Properties,
		Limit:      r.cfg.BatchSize,
		After:      r.cursor,
		Archived:   r.cfg.IncludeArchived,
	}
	var page *model.SourcePage
	err := r.gov.Do(ctx, "list_page", func(cctx context.Context) error {
		var err error
		page, err = r.client.ListPage(cctx, req)
		return err
	})
	if err != nil {
		r.countPage(metrics.ResultError)
		return nil, err
	}
	if page == nil {
		page = &model.SourcePage{}
	}
	return page, nil
}

// handlePage persists one fetched page and checkpoints it.
func (r *run) handlePage(ctx context.Context, page *model.SourcePage) (pageOutcome, error) {
	pageNumber := r.pages + 1
	last := page.Next.IsZero() || len(page.Items) == 0
	if !last && page.Next == r.cursor {
		return pageNext, apperrors.Internalf("source returned cursor %q twice", page.Next)
	}

	if page.Total != nil {
		r.tracker.Seed(*page.Total)
	}
	kept, skipped := r.filter.Split(page.Items)
	r.tracker.ObservePage(len(kept), skipped, last)

	cancelled, err := r.processItems(ctx, kept, pageNumber)
	if err != nil {
		return pageNext, err
	}
	if cancelled {
		return pageCancelled, nil
	}

	r.pages = pageNumber
	r.cursor = page.Next
	if err := r.checkpoint(ctx); err != nil {
		return pageNext, err
	}
	r.countPage(metrics.ResultSuccess)
	r.logger.DebugContext(ctx, "page processed",
		"page", pageNumber,
		"items", len(page.Items),
		"kept", len(kept),
		"has_next", !last,
	)

	if last {
		return pageLast, nil
	}
	return pageNext, nil
}

func (r *run) checkpoint(ctx context.Context) error {
	err := r.e.jobs.UpdateProgress(ctx, r.job.ID, model.ProgressUpdate{
		Progress:       r.tracker.Snapshot(),
		LastCursor:     r.cursor,
		PagesProcessed: r.pages,
		At:             r.e.now(),
	})
	if errors.Is(err, model.ErrScanJobNotRunning) {
		return ErrJobNotRunning
	}
	if err != nil {
		return fmt.Errorf("checkpoint page %d: %w", r.pages, err)
	}
	return nil
}

// cancelRequested is the page-boundary checkpoint and always consults the cancel store.
// Once observed, cancellation is sticky.
func (r *run) cancelRequested(ctx context.Context) bool {
	if r.cancelled {
		return true
	}
	if r.e.cancel == nil {
		return false
	}
	return r.checkCancel(ctx)
}

// cancelRequestedBetweenItems is the checkpoint before each enrichment dispatch. Store reads
// are spaced at least cancelPollInterval apart.
func (r *run) cancelRequestedBetweenItems(ctx context.Context) bool {
	if r.cancelled {
		return true
	}
	if r.e.cancel == nil {
		return false
	}
	if !r.lastCancelCheck.IsZero() && r.e.now().Sub(r.lastCancelCheck) < r.e.cancelPollInterval {
		return false
	}
	return r.checkCancel(ctx)
}

func (r *run) checkCancel(ctx context.Context) bool {
	r.lastCancelCheck = r.e.now()

	cancelled, err := r.e.cancel.IsCancelled(ctx, r.job.ID)
	if err != nil {
		r.logger.WarnContext(ctx, "cancel check failed", "error", err)
		return false
	}
	if cancelled {
		r.logger.InfoContext(ctx, "cancel request observed", "pages_processed", r.pages)
	}
	r.cancelled = cancelled
	return cancelled
}

func (r *run) complete(ctx context.Context) error {
	_, err := r.finish(ctx, model.ScanStatusCompleted, nil)
	return err
}

func (r *run) finishCancelled(ctx context.Context) error {
	_, err := r.finish(ctx, model.ScanStatusCancelled, nil)
	if r.e.cancel != nil {
		if clearErr := r.e.cancel.Clear(ctx, r.job.ID); clearErr != nil {
			r.logger.WarnContext(ctx, "clear cancel flag failed", "error", clearErr)
		}
	}
	return err
}

// fail records cause on the job and returns it. The message is built from the classified
// error text, which never carries the credential.
func (r *run) fail(ctx context.Context, cause error) error {
	msg := failureMessage(cause)
	final, err := r.finish(ctx, model.ScanStatusFailed, &msg)
	if err != nil {
		return errors.Join(cause, err)
	}
	r.notifyFailure(ctx, final, cause)
	return cause
}

// interrupted leaves the job running for lease reclaim.
func (r *run) interrupted(ctx context.Context) error {
	r.logger.InfoContext(ctx, "scan run interrupted, leaving for reclaim",
		"pages_processed", r.pages,
		"error", ctx.Err(),
	)
	return ctx.Err()
}

func (r *run) finish(ctx context.Context, to model.ScanStatus, errMsg *string) (*model.ScanJob, error) {
	progress := r.tracker.Snapshot()
	final, err := r.e.jobs.Transition(ctx, r.job.ID, []model.ScanStatus{model.ScanStatusRunning}, model.ScanTransition{
		To:           to,
		At:           r.e.now(),
		ErrorMessage: errMsg,
		Progress:     &progress,
	})

	result := metrics.ResultSuccess
	var metricErr error
	if to == model.ScanStatusFailed {
		result = metrics.ResultError
		if errMsg != nil {
			metricErr = errors.New(*errMsg)
		}
	}
	if err != nil {
		result = metrics.ResultError
		metricErr = err
		if apperrors.IsConflict(err) {
			r.logger.WarnContext(ctx, "scan left running status before finalization", "to", to)
			err = ErrJobNotRunning
		} else {
			r.logger.ErrorContext(ctx, "finalize scan failed", "to", to, "error", err)
			err = fmt.Errorf("transition scan to %s: %w", to, err)
		}
	}

	metrics.EmitScanLifecycle(r.e.metrics, metrics.ScanMetric{
		ScanType:   string(r.job.ScanType),
		Transition: "running_to_" + string(to),
		Result:     result,
		Duration:   r.e.now().Sub(r.started),
		Err:        metricErr,
	})
	if err != nil {
		return nil, err
	}

	metrics.EmitItems(r.e.metrics, string(r.job.ScanType), progress.ProcessedItems, progress.FailedItems)
	r.logger.InfoContext(ctx, "scan run finished",
		"status", to,
		"pages_processed", r.pages,
		"total_items", progress.TotalItems,
		"processed_items", progress.ProcessedItems,
		"failed_items", progress.FailedItems,
	)
	return final, nil
}

func (r *run) notifyFailure(ctx context.Context, final *model.ScanJob, cause error) {
	if r.e.notifier == nil {
		return
	}
	payload := notify.ScanFailurePayload{
		ScanJobID:  r.job.ID,
		ScanID:     r.job.ScanID,
		ScanType:   string(r.job.ScanType),
		Error:      failureMessage(cause),
		ErrorClass: obserrors.Classify(cause),
		OccurredAt: r.e.now(),
		Metadata: map[string]string{
			"pages_processed": strconv.Itoa(r.pages),
		},
	}
	if r.job.OrganizationID != nil {
		payload.OrganizationID = *r.job.OrganizationID
	}
	if final != nil {
		payload.Metadata["processed_items"] = strconv.Itoa(final.ProcessedItems)
		payload.Metadata["failed_items"] = strconv.Itoa(final.FailedItems)
	}
	r.e.notifier.NotifyScanFailure(ctx, payload)
}

func (r *run) countPage(result string) {
	if r.e.metrics == nil {
		return
	}
	r.e.metrics.Count(metrics.EnginePage, 1, map[string]string{
		"scan_type": string(r.job.ScanType),
		"result":    result,
	})
}

func failureMessage(err error) string {
	if code := apperrors.GetCode(err); code != "" {
		return fmt.Sprintf("%s: %s", code, err.Error())
	}
	return err.Error()
}
