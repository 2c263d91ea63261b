package sink

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
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

func newMemSink(t *testing.T, rec statsd.Sink) (*Sink, *memstore.DealResultStore) {
	t.Helper()
	store := memstore.NewDealResultStore(data.NewFixedTimeProvider(testutil.TestTime()))
	s, err := New(Options{Repo: store, Metrics: rec})
	require.NoError(t, err)
	return s, store
}

func TestNew_RequiresRepo(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestSink_UpsertIsIdempotent(t *testing.T) {
	rec := &statsd.Recorder{}
	s, store := newMemSink(t, rec)
	ctx := context.Background()

	res := &model.DealResult{
		ScanJobID: "job-1",
		DealID:    "d1",
		Name:      testutil.StringPtr("Renewal"),
		Amount:    decimal.NewNullDecimal(decimal.RequireFromString("100.50")),
	}

	outcome, err := s.Upsert(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, model.UpsertInserted, outcome)

	outcome, err = s.Upsert(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, model.UpsertUpdated, outcome)

	rows, total, err := store.List(ctx, model.DealResultQuery{ScanJobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "Renewal", *rows[0].Name)

	assert.InDelta(t, 1.0, rec.Sum(metrics.SinkUpsert, map[string]string{"outcome": "inserted"}), 0.001)
	assert.InDelta(t, 1.0, rec.Sum(metrics.SinkUpsert, map[string]string{"outcome": "updated"}), 0.001)
}

func TestSink_NilFieldsDoNotOverwrite(t *testing.T) {
	s, store := newMemSink(t, nil)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &model.DealResult{
		ScanJobID: "job-1",
		DealID:    "d1",
		Name:      testutil.StringPtr("Original"),
		Stage:     testutil.StringPtr("appointmentscheduled"),
	})
	require.NoError(t, err)

	_, err = s.Upsert(ctx, &model.DealResult{
		ScanJobID:    "job-1",
		DealID:       "d1",
		Stage:        testutil.StringPtr("closedwon"),
		Associations: map[string][]string{"contacts": {"c1"}},
	})
	require.NoError(t, err)

	rows, _, err := store.List(ctx, model.DealResultQuery{ScanJobID: "job-1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Original", *rows[0].Name)
	assert.Equal(t, "closedwon", *rows[0].Stage)
	assert.Equal(t, []string{"c1"}, rows[0].Associations["contacts"])
}

func TestSink_ConcurrentUpsertsSameKey(t *testing.T) {
	s, store := newMemSink(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	inserted := make(chan struct{}, 50)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := s.Upsert(ctx, &model.DealResult{ScanJobID: "job-1", DealID: "same"})
			assert.NoError(t, err)
			if outcome == model.UpsertInserted {
				inserted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(inserted)

	assert.Len(t, inserted, 1)
	assert.Equal(t, 1, store.Count("job-1"))
}

func TestSink_Validation(t *testing.T) {
	s, _ := newMemSink(t, nil)
	ctx := context.Background()

	_, err := s.Upsert(ctx, nil)
	assert.True(t, apperrors.IsValidation(err))

	_, err = s.Upsert(ctx, &model.DealResult{DealID: "d1"})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "scan_job_id", apperrors.GetField(err))

	_, err = s.Upsert(ctx, &model.DealResult{ScanJobID: "job-1"})
	assert.Equal(t, "deal_id", apperrors.GetField(err))
}

func TestSink_RepositoryErrorIsWrapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockDealResultRepository(ctrl)
	rec := &statsd.Recorder{}
	s, err := New(Options{Repo: repo, Metrics: rec})
	require.NoError(t, err)

	boom := errors.New("connection refused")
	repo.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(model.UpsertOutcome(""), boom)

	_, err = s.Upsert(context.Background(), &model.DealResult{ScanJobID: "job-1", DealID: "d1"})
	require.ErrorIs(t, err, boom)
	assert.InDelta(t, 1.0, rec.Sum(metrics.SinkUpsert, map[string]string{"outcome": "error"}), 0.001)
}

func TestStripeIndexStable(t *testing.T) {
	a := stripeIndex("job-1/d1")
	assert.Equal(t, a, stripeIndex("job-1/d1"))
	assert.GreaterOrEqual(t, a, 0)
	assert.Less(t, a, lockStripeCount)
}
