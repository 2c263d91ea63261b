package extraction

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/om239903-ai/internship-project/internal/domain/model"
	"github.com/om239903-ai/internship-project/internal/domain/scan"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
)

// processItems enriches and persists the kept items of one page with bounded fan-out.
// It reports true when a cancel request stopped dispatch part way through the page.
//
// Fatal errors (auth, sink) from any item stop the page. Other enrichment failures are
// counted against the item and its base record is still persisted.
func (r *run) processItems(ctx context.Context, items []model.SourceItem, pageNumber int) (bool, error) {
	pageCtx, cancelPage := context.WithCancel(ctx)
	defer cancelPage()

	g, gctx := errgroup.WithContext(pageCtx)
	sem := semaphore.NewWeighted(int64(r.e.enrichConcurrency))

	cancelled := false
	for _, item := range items {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		if r.cfg.IncludeAssociations && r.cancelRequestedBetweenItems(ctx) {
			sem.Release(1)
			cancelled = true
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			return r.processItem(gctx, item, pageNumber)
		})
	}

	if cancelled {
		return true, r.drain(ctx, g, cancelPage)
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return false, ctx.Err()
}

// drain waits for already dispatched items, up to the cancel grace period. After the grace
// period the remaining calls are abandoned and their items are neither processed nor failed.
func (r *run) drain(ctx context.Context, g *errgroup.Group, cancelPage context.CancelFunc) error {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	timer := time.NewTimer(r.e.cancelGrace)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			r.logger.WarnContext(ctx, "in-flight item failed while cancelling", "error", err)
		}
		return nil
	case <-timer.C:
		r.logger.WarnContext(ctx, "cancel grace period elapsed, abandoning in-flight calls",
			"grace_period", r.e.cancelGrace)
		cancelPage()
		<-done
		return nil
	case <-ctx.Done():
		cancelPage()
		<-done
		return ctx.Err()
	}
}

func (r *run) processItem(ctx context.Context, item model.SourceItem, pageNumber int) error {
	res := scan.TransformDeal(r.job.ID, item, pageNumber, r.xform)

	var enrichErr error
	if r.cfg.IncludeAssociations {
		assoc, err := r.fetchAssociations(ctx, item.ID)
		switch {
		case err == nil:
			res.Associations = assoc
		case ctx.Err() != nil:
			return ctx.Err()
		case apperrors.IsAuth(err):
			return err
		default:
			enrichErr = apperrors.PartialItemFailure(item.ID, err)
		}
	}

	if _, err := r.e.sink.Upsert(ctx, res); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("persist deal %s: %w", item.ID, err)
	}
	r.tracker.RecordProcessed()

	if enrichErr != nil {
		r.tracker.RecordFailed()
		r.logger.WarnContext(ctx, "association enrichment failed", "deal_id", item.ID, "error", enrichErr)
	}
	return nil
}

// fetchAssociations walks every configured kind page by page. Each request passes through the
// governor on its own, so it takes one limiter token and a retry repeats only that page.
func (r *run) fetchAssociations(ctx context.Context, itemID string) (map[string][]string, error) {
	out := make(map[string][]string, len(r.cfg.AssociationTypes))
	for _, kind := range r.cfg.AssociationTypes {
		ids := []string{}
		req := model.AssociationPageRequest{ItemID: itemID, Kind: kind}
		for {
			var page *model.AssociationPage
			err := r.gov.Do(ctx, "get_associations", func(cctx context.Context) error {
				var err error
				page, err = r.client.ListAssociations(cctx, req)
				return err
			})
			if err != nil {
				return nil, err
			}
			ids = append(ids, page.IDs...)
			if page.Next.IsZero() || page.Next == req.After {
				break
			}
			req.After = page.Next
		}
		out[kind] = ids
	}
	return out, nil
}
