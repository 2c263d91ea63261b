// Package sink persists extracted deals idempotently.
package sink

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"

	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
	"github.com/om239903-ai/internship-project/internal/observability/metrics"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
)

const lockStripeCount = 256

// Options configures a Sink.
type Options struct {
	Repo    core.DealResultRepository
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Sink upserts DealResults keyed by (scan_job_id, deal_id). Writes for the same key are
// serialized in-process; the repository upsert is atomic across processes.
type Sink struct {
	repo    core.DealResultRepository
	logger  *slog.Logger
	metrics statsd.Sink

	stripes [lockStripeCount]sync.Mutex
}

// New creates a Sink.
func New(opts Options) (*Sink, error) {
	if opts.Repo == nil {
		return nil, fmt.Errorf("sink: repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		repo:    opts.Repo,
		logger:  logger.With("component", "result_sink"),
		metrics: opts.Metrics,
	}, nil
}

// Upsert inserts res or merges its non-nil fields over the stored row.
func (s *Sink) Upsert(ctx context.Context, res *model.DealResult) (model.UpsertOutcome, error) {
	if res == nil {
		return "", apperrors.Validation("deal result is required")
	}
	if strings.TrimSpace(res.ScanJobID) == "" {
		return "", apperrors.ValidationField("scan_job_id", "scan_job_id is required")
	}
	if strings.TrimSpace(res.DealID) == "" {
		return "", apperrors.ValidationField("deal_id", "deal_id is required")
	}

	mu := s.keyMutex(res.Key())
	mu.Lock()
	outcome, err := s.repo.Upsert(ctx, res)
	mu.Unlock()

	if err != nil {
		s.count("error")
		s.logger.ErrorContext(ctx, "deal upsert failed",
			"scan_job_id", res.ScanJobID,
			"deal_id", res.DealID,
			"error", err,
		)
		return "", fmt.Errorf("upsert deal %s: %w", res.DealID, err)
	}
	s.count(string(outcome))
	return outcome, nil
}

func (s *Sink) keyMutex(key string) *sync.Mutex {
	return &s.stripes[stripeIndex(key)]
}

func stripeIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(lockStripeCount))
}

func (s *Sink) count(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Count(metrics.SinkUpsert, 1, map[string]string{"outcome": outcome})
}
