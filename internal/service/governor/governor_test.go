package governor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	apperrors "github.com/om239903-ai/internship-project/internal/errors"
	"github.com/om239903-ai/internship-project/internal/observability/metrics"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
)

// fakeClock advances only when the governor sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func newTestGovernor(clock *fakeClock, rec statsd.Sink) *Governor {
	return New(Options{
		Config:     DefaultConfig(),
		Metrics:    rec,
		Now:        clock.Now,
		Sleep:      clock.Sleep,
		Jitter:     func(int) time.Duration { return 0 },
		NewLimiter: func(Config) *rate.Limiter { return rate.NewLimiter(rate.Inf, 1) },
	})
}

func TestGovernor_SuccessFirstTry(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock, nil)

	calls := 0
	err := g.Do(context.Background(), "list_page", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.Sleeps())
}

func TestGovernor_RateLimitedSuspendsAndRetries(t *testing.T) {
	clock := newFakeClock()
	rec := &statsd.Recorder{}
	g := newTestGovernor(clock, rec)

	calls := 0
	err := g.Do(context.Background(), "list_page", func(context.Context) error {
		calls++
		if calls <= 2 {
			return apperrors.RateLimited(time.Second)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.Sleeps())
	assert.InDelta(t, 2.0, rec.Sum(metrics.GovernorSuspend, nil), 0.001)
}

func TestGovernor_RateLimitedUsesDefaultRetryAfter(t *testing.T) {
	clock := newFakeClock()
	g := New(Options{
		Config:     Config{DefaultRetryAfter: 3 * time.Second},
		Now:        clock.Now,
		Sleep:      clock.Sleep,
		NewLimiter: func(Config) *rate.Limiter { return rate.NewLimiter(rate.Inf, 1) },
	})

	calls := 0
	require.NoError(t, g.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls == 1 {
			return apperrors.RateLimited(0)
		}
		return nil
	}))
	assert.Equal(t, []time.Duration{3 * time.Second}, clock.Sleeps())
}

func TestGovernor_RateLimitDoesNotConsumeTransientBudget(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock, nil)

	calls := 0
	err := g.Do(context.Background(), "op", func(context.Context) error {
		calls++
		switch calls {
		case 1, 3:
			return apperrors.Transient("502", nil)
		case 2, 4, 5:
			return apperrors.RateLimited(time.Second)
		default:
			return nil
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 6, calls)
}

func TestGovernor_RateLimitCeilingSurfacesTransient(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock, nil)

	calls := 0
	err := g.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return apperrors.RateLimited(time.Second)
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	assert.Equal(t, DefaultConfig().MaxRateLimitHits+1, calls)
}

func TestGovernor_TransientBackoffThenExhausted(t *testing.T) {
	clock := newFakeClock()
	rec := &statsd.Recorder{}
	g := newTestGovernor(clock, rec)

	calls := 0
	err := g.Do(context.Background(), "get_associations", func(context.Context) error {
		calls++
		return apperrors.Transient("server error", errors.New("503"))
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.Sleeps())
	assert.InDelta(t, 1.0, rec.Sum(metrics.GovernorExhaust, map[string]string{"kind": "transient"}), 0.001)
}

func TestGovernor_UnclassifiedErrorIsRetried(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock, nil)

	calls := 0
	err := g.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGovernor_NonRetryableReturnedImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"auth", apperrors.Auth("expired token"), apperrors.IsAuth},
		{"not found", apperrors.NotFound("deal missing"), apperrors.IsNotFound},
		{"validation", apperrors.Validation("bad property"), apperrors.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			g := newTestGovernor(clock, nil)
			calls := 0
			err := g.Do(context.Background(), "op", func(context.Context) error {
				calls++
				return tt.err
			})
			require.Error(t, err)
			assert.True(t, tt.is(err))
			assert.Equal(t, 1, calls)
			assert.Empty(t, clock.Sleeps())
		})
	}
}

func TestGovernor_CallTimeoutIsTransient(t *testing.T) {
	clock := newFakeClock()
	g := New(Options{
		Config:     Config{CallTimeout: 10 * time.Millisecond, MaxAttempts: 2},
		Now:        clock.Now,
		Sleep:      clock.Sleep,
		Jitter:     func(int) time.Duration { return 0 },
		NewLimiter: func(Config) *rate.Limiter { return rate.NewLimiter(rate.Inf, 1) },
	})

	calls := 0
	err := g.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	assert.Equal(t, 2, calls)
}

func TestGovernor_ParentCancelStopsRetries(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock, nil)
	ctx, cancel := context.WithCancel(context.Background())

	err := g.Do(ctx, "op", func(context.Context) error {
		cancel()
		return apperrors.Transient("boom", nil)
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestGovernor_SuspensionIsShared(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock, nil)

	first := 0
	require.NoError(t, g.Do(context.Background(), "a", func(context.Context) error {
		first++
		if first == 1 {
			return apperrors.RateLimited(5 * time.Second)
		}
		return nil
	}))
	assert.Equal(t, clock.Now(), g.SuspendedUntil())

	// A longer suspension set by another caller delays this one too.
	g.suspend(2 * time.Second)
	require.NoError(t, g.Do(context.Background(), "b", func(context.Context) error { return nil }))
	assert.Equal(t, []time.Duration{5 * time.Second, 2 * time.Second}, clock.Sleeps())
}

func TestGovernor_Backoff(t *testing.T) {
	g := New(Options{
		Config: Config{BaseDelay: time.Second, MaxDelay: 5 * time.Second},
		Jitter: func(int) time.Duration { return 100 * time.Millisecond },
	})
	assert.Equal(t, 1100*time.Millisecond, g.Backoff(0))
	assert.Equal(t, 2100*time.Millisecond, g.Backoff(1))
	assert.Equal(t, 4100*time.Millisecond, g.Backoff(2))
	assert.Equal(t, 5100*time.Millisecond, g.Backoff(3))
	assert.Equal(t, 5100*time.Millisecond, g.Backoff(64))
}

func TestGovernor_TransientScheduleCapsAtMaxDelay(t *testing.T) {
	clock := newFakeClock()
	g := New(Options{
		Config:     Config{BaseDelay: time.Second, MaxDelay: 5 * time.Second, MaxAttempts: 6},
		Now:        clock.Now,
		Sleep:      clock.Sleep,
		Jitter:     func(attempt int) time.Duration { return time.Duration(attempt) * time.Millisecond },
		NewLimiter: func(Config) *rate.Limiter { return rate.NewLimiter(rate.Inf, 1) },
	})

	calls := 0
	err := g.Do(context.Background(), "list_page", func(context.Context) error {
		calls++
		return apperrors.Transient("bad gateway", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 6, calls)
	assert.Equal(t, []time.Duration{
		time.Second,
		2*time.Second + time.Millisecond,
		4*time.Second + 2*time.Millisecond,
		5*time.Second + 3*time.Millisecond,
		5*time.Second + 4*time.Millisecond,
	}, clock.Sleeps())

	// Each Do call starts a fresh schedule.
	calls = 0
	require.NoError(t, g.Do(context.Background(), "list_page", func(context.Context) error {
		calls++
		if calls == 1 {
			return apperrors.Transient("bad gateway", nil)
		}
		return nil
	}))
	assert.Equal(t, time.Second, clock.Sleeps()[5])
}

func TestGovernor_SingleAttemptDoesNotRetry(t *testing.T) {
	clock := newFakeClock()
	g := New(Options{
		Config:     Config{MaxAttempts: 1},
		Now:        clock.Now,
		Sleep:      clock.Sleep,
		NewLimiter: func(Config) *rate.Limiter { return rate.NewLimiter(rate.Inf, 1) },
	})
	calls := 0
	err := g.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return apperrors.Transient("down", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.Sleeps())
}

func TestGovernor_RandomJitterBounded(t *testing.T) {
	g := New(Options{Config: Config{BaseDelay: 200 * time.Millisecond}})
	for i := range 50 {
		j := g.randomJitter(i)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, 100*time.Millisecond)
	}
}
