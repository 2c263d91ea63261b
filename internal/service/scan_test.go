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
	"github.com/om239903-ai/internship-project/internal/testutil"
)

type countingNotifier struct{ n int }

func (c *countingNotifier) Subscribe() (func(), <-chan struct{}) { return func() {}, nil }
func (c *countingNotifier) Notify()                              { c.n++ }
func (c *countingNotifier) StopAll()                             {}

type scanFixture struct {
	svc      *ScanService
	jobs     *memstore.ScanJobStore
	results  *memstore.DealResultStore
	notifier *countingNotifier
}

func newScanFixture(t *testing.T) *scanFixture {
	t.Helper()
	clock := data.NewFixedTimeProvider(testutil.TestTime())
	results := memstore.NewDealResultStore(clock)
	jobs := memstore.NewScanJobStore(clock, results)
	n := &countingNotifier{}
	svc, err := NewScanService(ScanServiceOptions{Jobs: jobs, Results: results, Notifier: n})
	require.NoError(t, err)
	return &scanFixture{svc: svc, jobs: jobs, results: results, notifier: n}
}

func startRequest(scanID string) *model.StartScanRequest {
	return &model.StartScanRequest{
		ScanID: scanID,
		Config: model.ScanConfig{AccessToken: "pat-secret-token"},
	}
}

func TestNewScanService_Validation(t *testing.T) {
	results := memstore.NewDealResultStore(nil)
	_, err := NewScanService(ScanServiceOptions{Results: results})
	require.Error(t, err)
	_, err = NewScanService(ScanServiceOptions{Jobs: memstore.NewScanJobStore(nil, results)})
	require.Error(t, err)
}

func TestScanService_Start(t *testing.T) {
	f := newScanFixture(t)

	job, err := f.svc.Start(context.Background(), startRequest("scan-1"))
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusPending, job.Status)
	assert.Equal(t, model.ScanTypeDeals, job.ScanType)
	assert.Equal(t, 100, job.BatchSize)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, 1, f.notifier.n)

	view := f.svc.Status(context.Background(), "scan-1")
	assert.Equal(t, model.ScanStatusPending, view.Status)
	assert.Equal(t, job.ID, view.JobID)
	assert.Empty(t, view.Config.AccessToken)
}

func TestScanService_StartRejectsInvalidConfig(t *testing.T) {
	f := newScanFixture(t)

	tests := []struct {
		name string
		req  *model.StartScanRequest
	}{
		{name: "nil request", req: nil},
		{name: "missing scan id", req: &model.StartScanRequest{Config: model.ScanConfig{AccessToken: "x"}}},
		{name: "missing token", req: &model.StartScanRequest{ScanID: "scan-1"}},
		{name: "bad scan type", req: &model.StartScanRequest{
			ScanID: "scan-1", ScanType: "contacts", Config: model.ScanConfig{AccessToken: "x"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Start(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
	assert.Equal(t, 0, f.notifier.n)
}

func TestScanService_StartErrorsNeverLeakToken(t *testing.T) {
	f := newScanFixture(t)
	req := startRequest("scan-1")
	req.Config.BatchSize = -5

	_, err := f.svc.Start(context.Background(), req)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "pat-secret-token")
}

func TestScanService_StartAlreadyInProgress(t *testing.T) {
	f := newScanFixture(t)

	_, err := f.svc.Start(context.Background(), startRequest("scan-1"))
	require.NoError(t, err)

	_, err = f.svc.Start(context.Background(), startRequest("scan-1"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonAlreadyInProgress, apperrors.GetReason(err))

	// Exactly one job exists for the scan id.
	views, err := f.svc.List(context.Background(), model.ScanListOptions{ScanID: testutil.StringPtr("scan-1")})
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestScanService_RestartAfterTerminal(t *testing.T) {
	f := newScanFixture(t)

	first, err := f.svc.Start(context.Background(), startRequest("scan-1"))
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), "scan-1")
	require.NoError(t, err)

	second, err := f.svc.Start(context.Background(), startRequest("scan-1"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	view := f.svc.Status(context.Background(), "scan-1")
	assert.Equal(t, second.ID, view.JobID)
	assert.Equal(t, model.ScanStatusPending, view.Status)
}

func TestScanService_PaddedScanIDMatchesStoredID(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()

	job, err := f.svc.Start(ctx, startRequest(" scan-1 "))
	require.NoError(t, err)
	assert.Equal(t, "scan-1", job.ScanID)

	view := f.svc.Status(ctx, "scan-1 ")
	assert.Equal(t, job.ID, view.JobID)

	page, err := f.svc.Results(ctx, " scan-1", model.DealResultQuery{})
	require.NoError(t, err)
	assert.Equal(t, job.ID, page.Job.JobID)

	padded := "\tscan-1\n"
	views, err := f.svc.List(ctx, model.ScanListOptions{ScanID: &padded})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "\tscan-1\n", padded, "caller's filter is not modified")

	cancelled, err := f.svc.Cancel(ctx, "\tscan-1\n")
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(ctx, "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestScanService_StatusUnknown(t *testing.T) {
	f := newScanFixture(t)
	view := f.svc.Status(context.Background(), "nope")
	assert.Equal(t, model.NotFoundView("nope"), view)
}

func TestScanService_StatusStoreErrorIsNotFoundView(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockScanJobRepository(ctrl)
	repo.EXPECT().GetLatestByScanID(gomock.Any(), "scan-1").Return(nil, errors.New("connection refused"))

	svc, err := NewScanService(ScanServiceOptions{Jobs: repo, Results: mocks.NewMockDealResultRepository(ctrl)})
	require.NoError(t, err)

	assert.Equal(t, model.ScanStatusNotFound, svc.Status(context.Background(), "scan-1").Status)
}

func TestScanService_Cancel(t *testing.T) {
	f := newScanFixture(t)

	_, err := f.svc.Cancel(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.svc.Start(context.Background(), startRequest("scan-1"))
	require.NoError(t, err)

	job, err := f.svc.Cancel(context.Background(), "scan-1")
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusCancelled, job.Status)

	_, err = f.svc.Cancel(context.Background(), "scan-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonInvalidCancellation, apperrors.GetReason(err))
}

func TestScanService_Results(t *testing.T) {
	f := newScanFixture(t)

	_, err := f.svc.Results(context.Background(), "missing", model.DealResultQuery{})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.svc.Start(context.Background(), startRequest("scan-1"))
	require.NoError(t, err)
	job, err := f.jobs.ReserveNext(context.Background(), model.ReserveOptions{Owner: "w1", Lease: time.Minute})
	require.NoError(t, err)

	won, lost := "closedwon", "closedlost"
	for i, stage := range []string{won, won, lost} {
		_, err := f.results.Upsert(context.Background(), &model.DealResult{
			ScanJobID: job.ID,
			DealID:    string(rune('a' + i)),
			Stage:     &stage,
		})
		require.NoError(t, err)
	}

	page, err := f.svc.Results(context.Background(), "scan-1", model.DealResultQuery{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusRunning, page.Job.Status, "results are readable mid-run")
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Results, 2)
	assert.Equal(t, 1, page.Page)
	assert.True(t, page.HasMore)

	page, err = f.svc.Results(context.Background(), "scan-1", model.DealResultQuery{Stage: won})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, DefaultResultsPageSize, page.PageSize)
	assert.False(t, page.HasMore)

	page, err = f.svc.Results(context.Background(), "scan-1", model.DealResultQuery{Page: 5, PageSize: 10_000})
	require.NoError(t, err)
	assert.Equal(t, MaxResultsPageSize, page.PageSize)
	assert.Empty(t, page.Results)
	assert.NotNil(t, page.Results)
}

func TestScanService_ListClampsLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockScanJobRepository(ctrl)
	repo.EXPECT().List(gomock.Any(), gomock.Cond(func(o model.ScanListOptions) bool {
		return o.Limit == MaxListLimit && o.Offset == 0
	})).Return([]*model.ScanJob{testutil.NewScanJob("scan-1").Build()}, nil)

	svc, err := NewScanService(ScanServiceOptions{Jobs: repo, Results: mocks.NewMockDealResultRepository(ctrl)})
	require.NoError(t, err)

	views, err := svc.List(context.Background(), model.ScanListOptions{Limit: 1_000_000, Offset: -3})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "scan-1", views[0].ScanID)
}
