package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/om239903-ai/internship-project/config"
	"github.com/om239903-ai/internship-project/internal/data"
	"github.com/om239903-ai/internship-project/internal/data/memstore"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	"github.com/om239903-ai/internship-project/internal/testutil"
)

func sanitizedConfig() config.ReaperConfig {
	cfg := config.ReaperConfig{}
	cfg.Sanitize()
	return cfg
}

func TestNewRunner_RequiresStore(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	require.Error(t, err)
}

func TestRunner_StopsOnCancel(t *testing.T) {
	r, err := NewRunner(RunnerOptions{Repo: memstore.NewScanJobStore(nil, nil), Config: sanitizedConfig()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	require.NoError(t, r.Run(ctx))
}

func TestRunner_SweepFailsStalePending(t *testing.T) {
	clock := data.NewFixedTimeProvider(testutil.TestTime())
	jobs := memstore.NewScanJobStore(clock, nil)
	ctx := context.Background()

	job, err := jobs.Create(ctx, testutil.NewScanJob("scan-old").Build())
	require.NoError(t, err)

	cfg := sanitizedConfig()
	clock.AddTime(cfg.PendingMaxAge + time.Minute)

	r, err := NewRunner(RunnerOptions{Repo: jobs, Config: cfg})
	require.NoError(t, err)
	require.NoError(t, r.Sweep(ctx))

	got, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusFailed, got.Status)
}
