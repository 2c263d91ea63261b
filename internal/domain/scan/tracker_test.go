package scan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/om239903-ai/internship-project/internal/domain/model"
)

func assertInvariant(t *testing.T, p model.Progress) {
	t.Helper()
	assert.LessOrEqual(t, p.ProcessedItems+p.FailedItems, p.TotalItems, "processed+failed must not exceed total: %+v", p)
}

func TestTracker_EstimatedTotal(t *testing.T) {
	tr := NewTracker(model.Progress{})

	tr.ObservePage(2, 0, false)
	tr.RecordProcessed()
	tr.RecordProcessed()
	p := tr.Snapshot()
	assert.Equal(t, model.Progress{TotalItems: 2, ProcessedItems: 2}, p)
	assertInvariant(t, p)

	tr.ObservePage(1, 0, true)
	tr.RecordProcessed()
	p = tr.Snapshot()
	assert.Equal(t, model.Progress{TotalItems: 3, ProcessedItems: 3}, p)
	assert.InDelta(t, 1.0, p.SuccessRate(), 1e-9)
}

func TestTracker_SeededTotal(t *testing.T) {
	tr := NewTracker(model.Progress{})
	tr.Seed(10)
	tr.Seed(99)

	tr.ObservePage(4, 1, false)
	for range 4 {
		tr.RecordProcessed()
	}
	p := tr.Snapshot()
	assert.Equal(t, 9, p.TotalItems, "skipped items leave the reported total")
	assertInvariant(t, p)

	tr.ObservePage(4, 1, true)
	for range 4 {
		tr.RecordProcessed()
	}
	p = tr.Snapshot()
	assert.Equal(t, 8, p.TotalItems, "total is finalized from observed items on the last page")
	assert.Equal(t, 8, p.ProcessedItems)
}

func TestTracker_PartialFailureKeepsInvariant(t *testing.T) {
	tr := NewTracker(model.Progress{})
	tr.ObservePage(3, 0, true)
	for range 3 {
		tr.RecordProcessed()
	}
	tr.RecordFailed()

	p := tr.Snapshot()
	assert.Equal(t, 3, p.ProcessedItems)
	assert.Equal(t, 1, p.FailedItems)
	assertInvariant(t, p)
	assert.Less(t, p.SuccessRate(), 1.0)
}

func TestTracker_ResumesFromPersistedCounters(t *testing.T) {
	tr := NewTracker(model.Progress{TotalItems: 5, ProcessedItems: 5})
	tr.ObservePage(2, 0, true)
	tr.RecordProcessed()
	tr.RecordProcessed()

	assert.Equal(t, model.Progress{TotalItems: 7, ProcessedItems: 7}, tr.Snapshot())
}

func TestTracker_ConcurrentRecording(t *testing.T) {
	tr := NewTracker(model.Progress{})
	tr.ObservePage(100, 0, true)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordProcessed()
			if i%10 == 0 {
				tr.RecordFailed()
			}
		}()
	}
	wg.Wait()

	p := tr.Snapshot()
	assert.Equal(t, 100, p.ProcessedItems)
	assert.Equal(t, 10, p.FailedItems)
	assertInvariant(t, p)
}
