package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/om239903-ai/internship-project/internal/data"
	"github.com/om239903-ai/internship-project/internal/data/memstore"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
	"github.com/om239903-ai/internship-project/internal/mocks"
	"github.com/om239903-ai/internship-project/internal/observability/metrics"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
	"github.com/om239903-ai/internship-project/internal/testutil"
)

func newMemJobs() *memstore.ScanJobStore {
	clock := data.NewFixedTimeProvider(testutil.TestTime())
	return memstore.NewScanJobStore(clock, memstore.NewDealResultStore(clock))
}

func createJob(t *testing.T, jobs *memstore.ScanJobStore, scanID string, running bool) *model.ScanJob {
	t.Helper()
	job, err := jobs.Create(context.Background(), testutil.NewScanJob(scanID).Build())
	require.NoError(t, err)
	if !running {
		return job
	}
	job, err = jobs.ReserveNext(context.Background(), model.ReserveOptions{Owner: "w1", Lease: time.Minute})
	require.NoError(t, err)
	return job
}

func TestNewCancellationController_RequiresJobs(t *testing.T) {
	_, err := NewCancellationController(CancellationControllerOptions{})
	require.Error(t, err)
}

func TestCancellationController_CancelPending(t *testing.T) {
	jobs := newMemJobs()
	rec := &statsd.Recorder{}
	c, err := NewCancellationController(CancellationControllerOptions{Jobs: jobs, Metrics: rec})
	require.NoError(t, err)

	job := createJob(t, jobs, "scan-pending", false)

	out, err := c.RequestCancel(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusCancelled, out.Status)
	assert.NotNil(t, out.CompletedAt)
	assert.InDelta(t, 1.0, rec.Sum(metrics.CancelRequested, map[string]string{"result": "success"}), 0.001)
}

func TestCancellationController_CancelRunningSetsFlags(t *testing.T) {
	jobs := newMemJobs()
	_, client := testutil.SetupMiniRedis(t)
	flags := data.NewRedisCancelStore(client, 0)
	c, err := NewCancellationController(CancellationControllerOptions{Jobs: jobs, Flags: flags})
	require.NoError(t, err)

	job := createJob(t, jobs, "scan-running", true)

	out, err := c.RequestCancel(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusRunning, out.Status, "the engine finishes a running job")
	assert.NotNil(t, out.CancelRequestedAt)

	set, err := flags.IsCancelFlagSet(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, set)

	cancelled, err := c.IsCancelled(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	require.NoError(t, c.Clear(context.Background(), job.ID))
	set, err = flags.IsCancelFlagSet(context.Background(), job.ID)
	require.NoError(t, err)
	assert.False(t, set)

	// The durable flag survives clearing the mirror.
	cancelled, err = c.IsCancelled(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestCancellationController_TerminalRejected(t *testing.T) {
	jobs := newMemJobs()
	c, err := NewCancellationController(CancellationControllerOptions{Jobs: jobs})
	require.NoError(t, err)

	job := createJob(t, jobs, "scan-done", true)
	_, err = jobs.Transition(context.Background(), job.ID, []model.ScanStatus{model.ScanStatusRunning},
		model.ScanTransition{To: model.ScanStatusCompleted, At: testutil.TestTime()})
	require.NoError(t, err)
	job, err = jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)

	_, err = c.RequestCancel(context.Background(), job)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, apperrors.ReasonInvalidCancellation, apperrors.GetReason(err))
}

func TestCancellationController_PendingRaceRetriesAsRunning(t *testing.T) {
	jobs := newMemJobs()
	c, err := NewCancellationController(CancellationControllerOptions{Jobs: jobs})
	require.NoError(t, err)

	stale := createJob(t, jobs, "scan-race", false)
	// A runner claims the job after the caller read it as pending.
	_, err = jobs.ReserveNext(context.Background(), model.ReserveOptions{Owner: "w1", Lease: time.Minute})
	require.NoError(t, err)

	out, err := c.RequestCancel(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusRunning, out.Status)
	assert.NotNil(t, out.CancelRequestedAt)
}

func TestCancellationController_MirrorFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobs := newMemJobs()
	flags := mocks.NewMockCancelFlagStore(ctrl)
	c, err := NewCancellationController(CancellationControllerOptions{Jobs: jobs, Flags: flags})
	require.NoError(t, err)

	job := createJob(t, jobs, "scan-mirror", true)
	flags.EXPECT().SetCancelFlag(gomock.Any(), job.ID).Return(errors.New("redis down"))

	out, err := c.RequestCancel(context.Background(), job)
	require.NoError(t, err)
	assert.NotNil(t, out.CancelRequestedAt)
}

func TestCancellationController_IsCancelledFallsBackToStore(t *testing.T) {
	tests := []struct {
		name    string
		flagSet bool
		flagErr error
		durable bool
		want    bool
	}{
		{name: "mirror set", flagSet: true, want: true},
		{name: "mirror unset, durable set", durable: true, want: true},
		{name: "mirror error, durable set", flagErr: errors.New("timeout"), durable: true, want: true},
		{name: "nothing set", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			jobs := newMemJobs()
			flags := mocks.NewMockCancelFlagStore(ctrl)
			c, err := NewCancellationController(CancellationControllerOptions{Jobs: jobs, Flags: flags})
			require.NoError(t, err)

			job := createJob(t, jobs, "scan-check", true)
			if tt.durable {
				_, err = jobs.RequestCancel(context.Background(), job.ID, testutil.TestTime())
				require.NoError(t, err)
			}
			flags.EXPECT().IsCancelFlagSet(gomock.Any(), job.ID).Return(tt.flagSet, tt.flagErr)

			got, err := c.IsCancelled(context.Background(), job.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCancellationController_ClearWithoutMirror(t *testing.T) {
	c, err := NewCancellationController(CancellationControllerOptions{Jobs: newMemJobs()})
	require.NoError(t, err)
	require.NoError(t, c.Clear(context.Background(), "any"))
}
