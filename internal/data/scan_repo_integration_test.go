package data

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/data/cryptoutil"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
	"github.com/om239903-ai/internship-project/internal/testutil"
)

func TestScanRepos_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := testutil.SetupEphemeralSchemaDB(t)
	ctx := context.Background()

	key, err := cryptoutil.KeyFromString("integration-key")
	require.NoError(t, err)
	sealer, err := cryptoutil.NewAESGCMSealer(key)
	require.NoError(t, err)

	clock := NewFixedTimeProvider(time.Now().UTC().Truncate(time.Microsecond))
	jobs := NewScanJobRepo(db, ScanJobRepoConfig{Sealer: sealer, TimeProvider: clock})
	results := NewDealResultRepo(db, clock)

	job := testutil.NewScanJob("scan-int").WithOrganization("org-1").Build()
	created, err := jobs.Create(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, "test-token", created.Config.AccessToken)

	var stored string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT access_token FROM scan_jobs WHERE id = $1`, created.ID).Scan(&stored))
	assert.NotContains(t, stored, "test-token")

	t.Run("duplicate active scan id conflicts", func(t *testing.T) {
		_, dupErr := jobs.Create(ctx, testutil.NewScanJob("scan-int").Build())
		require.Error(t, dupErr)
		assert.True(t, apperrors.IsConflict(dupErr))
	})

	running, err := jobs.ReserveNext(ctx, model.ReserveOptions{Owner: "w1", Lease: time.Minute, MaxRunningPerOrg: 1})
	require.NoError(t, err)
	assert.Equal(t, created.ID, running.ID)
	assert.Equal(t, model.ScanStatusRunning, running.Status)

	t.Run("results upsert is idempotent and merges", func(t *testing.T) {
		name := "Deal one"
		first := &model.DealResult{
			ScanJobID:  running.ID,
			DealID:     "d1",
			Name:       &name,
			Amount:     decimal.NewNullDecimal(decimal.RequireFromString("150.25")),
			Properties: map[string]any{"dealname": name},
		}
		outcome, upErr := results.Upsert(ctx, first)
		require.NoError(t, upErr)
		assert.Equal(t, model.UpsertInserted, outcome)

		stage := "closedwon"
		outcome, upErr = results.Upsert(ctx, &model.DealResult{
			ScanJobID: running.ID, DealID: "d1", Stage: &stage,
			Associations: map[string][]string{"contacts": {"c1"}},
		})
		require.NoError(t, upErr)
		assert.Equal(t, model.UpsertUpdated, outcome)

		rows, total, listErr := results.List(ctx, model.DealResultQuery{ScanJobID: running.ID, Page: 1, PageSize: 10})
		require.NoError(t, listErr)
		require.Equal(t, 1, total)
		assert.Equal(t, "Deal one", *rows[0].Name)
		assert.Equal(t, "closedwon", *rows[0].Stage)
		assert.Equal(t, "150.25", rows[0].Amount.Decimal.StringFixed(2))
		assert.Equal(t, []string{"c1"}, rows[0].Associations["contacts"])
	})

	require.NoError(t, jobs.UpdateProgress(ctx, running.ID, model.ProgressUpdate{
		Progress: model.Progress{TotalItems: 1, ProcessedItems: 1}, LastCursor: "next", PagesProcessed: 1, At: clock.Now(),
	}))

	ok, err := jobs.RequestCancel(ctx, running.ID, clock.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	done, err := jobs.Transition(ctx, running.ID, []model.ScanStatus{model.ScanStatusRunning}, model.ScanTransition{
		To: model.ScanStatusCancelled, At: clock.Now(), Progress: &model.Progress{TotalItems: 1, ProcessedItems: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ScanStatusCancelled, done.Status)
	assert.Nil(t, done.LeaseOwner)
	assert.Equal(t, model.Cursor("next"), done.LastCursor)

	_, err = jobs.Transition(ctx, running.ID, []model.ScanStatus{model.ScanStatusRunning},
		model.ScanTransition{To: model.ScanStatusCompleted, At: clock.Now()})
	assert.True(t, apperrors.IsConflict(err))

	rerun, err := jobs.Create(ctx, testutil.NewScanJob("scan-int").Build())
	require.NoError(t, err)
	latest, err := jobs.GetLatestByScanID(ctx, "scan-int")
	require.NoError(t, err)
	assert.Equal(t, rerun.ID, latest.ID)

	clock.AddTime(48 * time.Hour)
	n, err := jobs.DeleteOldScans(ctx, core.DeleteOldScansParams{
		Status: model.ScanStatusCancelled, MaxAge: 24 * time.Hour, BatchSize: 10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, total, err := results.List(ctx, model.DealResultQuery{ScanJobID: running.ID})
	require.NoError(t, err)
	assert.Zero(t, total, "results cascade with their run")
}
