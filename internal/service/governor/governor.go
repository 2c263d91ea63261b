// Package governor throttles and retries outbound calls to the CRM source. One Governor is
// shared by every job using the same credential so the provider quota holds across jobs.
package governor

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	apperrors "github.com/om239903-ai/internship-project/internal/errors"
	"github.com/om239903-ai/internship-project/internal/observability/metrics"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
)

// Config sizes the limiter and the retry policy.
type Config struct {
	// Requests per Window is the provider quota.
	Requests int
	Window   time.Duration
	Burst    int

	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int

	// MaxRateLimitHits bounds consecutive rate-limit signals for one call.
	MaxRateLimitHits  int
	DefaultRetryAfter time.Duration

	CallTimeout time.Duration
}

// DefaultConfig matches the HubSpot private-app quota of 150 requests per 10 seconds.
func DefaultConfig() Config {
	return Config{
		Requests:          150,
		Window:            10 * time.Second,
		Burst:             15,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		MaxAttempts:       3,
		MaxRateLimitHits:  10,
		DefaultRetryAfter: time.Second,
		CallTimeout:       30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Requests <= 0 {
		c.Requests = d.Requests
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.Burst <= 0 {
		c.Burst = max(1, c.Requests*int(time.Second)/int(c.Window))
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.BaseDelay > c.MaxDelay {
		c.BaseDelay = c.MaxDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.MaxRateLimitHits <= 0 {
		c.MaxRateLimitHits = d.MaxRateLimitHits
	}
	if c.DefaultRetryAfter <= 0 {
		c.DefaultRetryAfter = d.DefaultRetryAfter
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	return c
}

// Options configures a Governor. Now, Sleep, Jitter and NewLimiter exist for tests.
type Options struct {
	Config  Config
	Logger  *slog.Logger
	Metrics statsd.Sink

	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
	Jitter     func(attempt int) time.Duration
	NewLimiter func(Config) *rate.Limiter
}

// Governor applies the token bucket, global rate-limit suspension, and transient backoff.
type Governor struct {
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	jitter  func(attempt int) time.Duration

	mu             sync.Mutex
	suspendedUntil time.Time
}

// New creates a Governor.
func New(opts Options) *Governor {
	cfg := opts.Config.withDefaults()
	g := &Governor{
		cfg:     cfg,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
		sleep:   opts.Sleep,
		jitter:  opts.Jitter,
	}
	if opts.NewLimiter != nil {
		g.limiter = opts.NewLimiter(cfg)
	} else {
		g.limiter = rate.NewLimiter(rate.Every(cfg.Window/time.Duration(cfg.Requests)), cfg.Burst)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "governor")
	if g.now == nil {
		g.now = time.Now
	}
	if g.sleep == nil {
		g.sleep = sleepContext
	}
	if g.jitter == nil {
		g.jitter = g.randomJitter
	}
	return g
}

// Do runs fn under the limiter, retrying per the error kind fn returns:
//
//	auth, not_found, validation, internal -> returned immediately
//	rate_limited -> suspend every caller for retry_after, retry (bounded by MaxRateLimitHits)
//	transient, timeout, unclassified -> exponential backoff, at most MaxAttempts calls
//
// Exhausted budgets surface as a Transient error.
func (g *Governor) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	var failures, rateLimitHits int
	schedule := g.retrySchedule()
	for {
		if err := g.awaitDispatch(ctx); err != nil {
			return err
		}

		err := g.call(ctx, fn)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		switch {
		case apperrors.IsRateLimited(err):
			rateLimitHits++
			if rateLimitHits > g.cfg.MaxRateLimitHits {
				g.count(metrics.GovernorExhaust, op, "rate_limited")
				return apperrors.Transient(fmt.Sprintf("%s: still rate limited after %d attempts", op, rateLimitHits), err)
			}
			wait := apperrors.GetRetryAfter(err)
			if wait <= 0 {
				wait = g.cfg.DefaultRetryAfter
			}
			g.suspend(wait)
			g.count(metrics.GovernorSuspend, op, "rate_limited")
			g.logger.DebugContext(ctx, "rate limited, suspending dispatch", "op", op, "retry_after", wait)

		case retryable(err):
			failures++
			next := schedule.NextBackOff()
			if next == backoff.Stop {
				g.count(metrics.GovernorExhaust, op, "transient")
				return apperrors.Transient(fmt.Sprintf("%s: retries exhausted after %d attempts", op, failures), err)
			}
			delay := next + g.jitter(failures-1)
			g.count(metrics.GovernorRetry, op, "transient")
			g.logger.DebugContext(ctx, "transient failure, backing off", "op", op, "attempt", failures, "delay", delay, "error", err)
			if sleepErr := g.sleep(ctx, delay); sleepErr != nil {
				return sleepErr
			}

		default:
			return err
		}
	}
}

// Backoff returns min(MaxDelay, BaseDelay*2^attempt) + jitter(attempt).
func (g *Governor) Backoff(attempt int) time.Duration {
	exp := g.exponential()
	delay := exp.NextBackOff()
	for range attempt {
		if delay == g.cfg.MaxDelay {
			break
		}
		delay = exp.NextBackOff()
	}
	return delay + g.jitter(attempt)
}

// exponential doubles from BaseDelay up to MaxDelay without randomization; jitter is added
// separately so the delay stays min(MaxDelay, BaseDelay*2^attempt) + jitter(attempt).
func (g *Governor) exponential() *backoff.ExponentialBackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     g.cfg.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         g.cfg.MaxDelay,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	return exp
}

// retrySchedule allows MaxAttempts-1 transient retries per Do call.
func (g *Governor) retrySchedule() backoff.BackOff {
	return backoff.WithMaxRetries(g.exponential(), uint64(g.cfg.MaxAttempts-1)) // #nosec G115 - MaxAttempts is positive
}

// SuspendedUntil reports the end of the current rate-limit suspension.
func (g *Governor) SuspendedUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.suspendedUntil
}

func (g *Governor) suspend(d time.Duration) {
	until := g.now().Add(d)
	g.mu.Lock()
	if until.After(g.suspendedUntil) {
		g.suspendedUntil = until
	}
	g.mu.Unlock()
}

// awaitDispatch blocks while a suspension is active, then takes a limiter token.
func (g *Governor) awaitDispatch(ctx context.Context) error {
	for {
		g.mu.Lock()
		wait := g.suspendedUntil.Sub(g.now())
		g.mu.Unlock()
		if wait <= 0 {
			break
		}
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return g.limiter.Wait(ctx)
}

// call bounds fn by CallTimeout. A call deadline with a live parent is Transient.
func (g *Governor) call(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	err := fn(cctx)
	if err != nil && ctx.Err() == nil &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded)) &&
		apperrors.GetCode(err) == "" {
		return apperrors.Transient("call timed out", err)
	}
	return err
}

func retryable(err error) bool {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeTransient, apperrors.ErrCodeTimeout, "":
		return true
	default:
		return false
	}
}

func (g *Governor) count(name, op, kind string) {
	if g.metrics == nil {
		return
	}
	g.metrics.Count(name, 1, map[string]string{"op": op, "kind": kind})
}

// randomJitter returns a uniform delay in [0, BaseDelay/2).
func (g *Governor) randomJitter(int) time.Duration {
	bound := uint64(g.cfg.BaseDelay / 2) // #nosec G115 - BaseDelay is positive
	if bound == 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(buf[:]) % bound) // #nosec G115 - bounded by bound
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
