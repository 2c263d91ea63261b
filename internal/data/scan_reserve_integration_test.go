package data

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/om239903-ai/internship-project/internal/domain/model"
	"github.com/om239903-ai/internship-project/internal/testutil"
)

// reserveConcurrently races workers against one store and returns the jobs they claimed.
func reserveConcurrently(t *testing.T, repo *ScanJobRepo, workers int, opts model.ReserveOptions) []*model.ScanJob {
	t.Helper()
	var (
		mu      sync.Mutex
		claimed []*model.ScanJob
		wg      sync.WaitGroup
		start   = make(chan struct{})
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			o := opts
			o.Owner = "w" + strconv.Itoa(i)
			job, err := repo.ReserveNext(context.Background(), o)
			if errors.Is(err, model.ErrNoScanJobsAvailable) {
				return
			}
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			claimed = append(claimed, job)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()
	return claimed
}

func TestScanJobRepo_ConcurrentReservationsRespectOrgCap(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := testutil.SetupEphemeralSchemaDB(t)
	ctx := context.Background()
	repo := NewScanJobRepo(db, ScanJobRepoConfig{})

	for i := range 6 {
		_, err := repo.Create(ctx, testutil.NewScanJob("org-x-"+strconv.Itoa(i)).WithOrganization("org-x").Build())
		require.NoError(t, err)
	}

	claimed := reserveConcurrently(t, repo, 6, model.ReserveOptions{Lease: time.Minute, MaxRunningPerOrg: 2})
	assert.Len(t, claimed, 2)

	running := model.ScanStatusRunning
	jobs, err := repo.List(ctx, model.ScanListOptions{Status: &running, Limit: 100})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestScanJobRepo_ConcurrentReservationsRespectGlobalCap(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := testutil.SetupEphemeralSchemaDB(t)
	ctx := context.Background()
	repo := NewScanJobRepo(db, ScanJobRepoConfig{})

	for i := range 8 {
		org := "org-" + strconv.Itoa(i)
		_, err := repo.Create(ctx, testutil.NewScanJob("scan-"+org).WithOrganization(org).Build())
		require.NoError(t, err)
	}

	claimed := reserveConcurrently(t, repo, 8, model.ReserveOptions{Lease: time.Minute, MaxRunning: 3})
	assert.Len(t, claimed, 3)
}
