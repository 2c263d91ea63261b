package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/om239903-ai/internship-project/config"
	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/data"
	"github.com/om239903-ai/internship-project/internal/data/memstore"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	"github.com/om239903-ai/internship-project/internal/observability/metrics"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
	"github.com/om239903-ai/internship-project/internal/testutil"
)

// mockReaperRepo returns its count on the first call of each operation and 0 afterwards,
// simulating batch exhaustion.
type mockReaperRepo struct {
	mu sync.Mutex

	staleCalls int
	staleCount int64
	staleErr   error

	abandonedCalls int
	abandonedCount int64

	deleteCalls  map[model.ScanStatus]int
	deleteCount  int64
	deleteParams []core.DeleteOldScansParams
}

func (m *mockReaperRepo) FailStalePending(_ context.Context, _ time.Duration, _ int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleCalls++
	if m.staleErr != nil {
		return 0, m.staleErr
	}
	if m.staleCalls == 1 {
		return m.staleCount, nil
	}
	return 0, nil
}

func (m *mockReaperRepo) FailAbandonedRunning(_ context.Context, _ time.Duration, _ int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandonedCalls++
	if m.abandonedCalls == 1 {
		return m.abandonedCount, nil
	}
	return 0, nil
}

func (m *mockReaperRepo) DeleteOldScans(_ context.Context, params core.DeleteOldScansParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteCalls == nil {
		m.deleteCalls = make(map[model.ScanStatus]int)
	}
	m.deleteCalls[params.Status]++
	m.deleteParams = append(m.deleteParams, params)
	if m.deleteCalls[params.Status] == 1 {
		return m.deleteCount, nil
	}
	return 0, nil
}

func (m *mockReaperRepo) staleCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.staleCalls
}

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:        5 * time.Minute,
		PendingMaxAge:   time.Hour,
		AbandonedMaxAge: 30 * time.Minute,
		CompletedMaxAge: 30 * 24 * time.Hour,
		FailedMaxAge:    7 * 24 * time.Hour,
		CancelledMaxAge: 7 * 24 * time.Hour,
		BatchSize:       1000,
	}
}

func TestNewReaperService(t *testing.T) {
	t.Run("creates service with valid options", func(t *testing.T) {
		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   &mockReaperRepo{},
			Config: testReaperConfig(),
			Logger: slog.Default(),
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("returns error when repo is nil", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{Config: testReaperConfig()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ReaperRepository is required")
	})
}

func TestReaperService_RunOnce(t *testing.T) {
	t.Run("runs all cleanup operations", func(t *testing.T) {
		repo := &mockReaperRepo{staleCount: 5, abandonedCount: 2, deleteCount: 10}
		rec := &statsd.Recorder{}
		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig(), Metrics: rec})
		require.NoError(t, err)

		require.NoError(t, svc.RunOnce(context.Background()))

		assert.Equal(t, 2, repo.staleCalls)
		assert.Equal(t, 2, repo.abandonedCalls)
		for _, status := range []model.ScanStatus{
			model.ScanStatusCompleted, model.ScanStatusFailed, model.ScanStatusCancelled,
		} {
			assert.Equal(t, 2, repo.deleteCalls[status], status)
		}
		assert.Equal(t, 30*24*time.Hour, repo.deleteParams[0].MaxAge)

		assert.InDelta(t, 37.0, rec.Sum(metrics.ReaperSwept, nil), 0.001)
		assert.InDelta(t, 1.0, rec.Sum("reaper.cleanup", map[string]string{"result": "success"}), 0.001)
	})

	t.Run("continues on partial errors", func(t *testing.T) {
		repo := &mockReaperRepo{staleErr: errors.New("fail error"), deleteCount: 1}
		rec := &statsd.Recorder{}
		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig(), Metrics: rec})
		require.NoError(t, err)

		err = svc.RunOnce(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fail stale pending scans")

		assert.Equal(t, 1, repo.staleCalls)
		assert.Equal(t, 2, repo.abandonedCalls)
		assert.Equal(t, 2, repo.deleteCalls[model.ScanStatusCancelled])
		assert.InDelta(t, 1.0, rec.Sum("reaper.cleanup", map[string]string{"result": "error"}), 0.001)
	})
}

func TestReaperService_SweepsMemstore(t *testing.T) {
	clock := data.NewFixedTimeProvider(testutil.TestTime())
	results := memstore.NewDealResultStore(clock)
	jobs := memstore.NewScanJobStore(clock, results)
	ctx := context.Background()

	_, err := jobs.Create(ctx, testutil.NewScanJob("scan-abandoned").Build())
	require.NoError(t, err)
	abandoned, err := jobs.ReserveNext(ctx, model.ReserveOptions{Owner: "w1", Lease: time.Minute})
	require.NoError(t, err)
	stale, err := jobs.Create(ctx, testutil.NewScanJob("scan-stale").Build())
	require.NoError(t, err)
	_, err = results.Upsert(ctx, &model.DealResult{ScanJobID: stale.ID, DealID: "1"})
	require.NoError(t, err)

	// Two hours later the pending scan is stale and the running one lost its runner.
	clock.AddTime(2 * time.Hour)
	svc, err := NewReaperService(ReaperServiceOptions{Repo: jobs, Config: testReaperConfig()})
	require.NoError(t, err)
	require.NoError(t, svc.RunOnce(ctx))

	got, err := jobs.GetByID(ctx, abandoned.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "abandoned")

	got, err = jobs.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusFailed, got.Status)

	// Past failed retention both runs and their results are deleted.
	clock.AddTime(8 * 24 * time.Hour)
	require.NoError(t, svc.RunOnce(ctx))
	_, err = jobs.GetByID(ctx, stale.ID)
	require.Error(t, err)
	assert.Equal(t, 0, results.Count(stale.ID))
}

func TestReaperService_Run(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		repo := &mockReaperRepo{}
		cfg := testReaperConfig()
		cfg.Interval = 100 * time.Millisecond
		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Run(ctx) }()

		testutil.WaitForCondition(t, time.Second, func() bool { return repo.staleCallCount() >= 1 })
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Run did not stop after context cancellation")
		}
	})

	t.Run("continues running despite cleanup errors", func(t *testing.T) {
		repo := &mockReaperRepo{staleErr: errors.New("test error")}
		cfg := testReaperConfig()
		cfg.Interval = 50 * time.Millisecond
		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		defer cancel()

		err = svc.Run(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.GreaterOrEqual(t, repo.staleCallCount(), 2)
	})
}
