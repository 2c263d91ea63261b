package scan

import (
	"sync"

	"github.com/om239903-ai/internship-project/internal/domain/model"
)

// Tracker accumulates progress counters for one run. It is safe for concurrent use by the
// enrichment workers of a page.
//
// total_items is seeded from the source-reported total when available, otherwise it is the
// number of items observed so far. It is never allowed below processed+failed, so an item
// that is persisted but fails enrichment raises the total by one and lowers the success rate.
type Tracker struct {
	mu        sync.Mutex
	seeded    bool
	reported  int
	skipped   int
	observed  int
	processed int
	failed    int
	finished  bool
}

// NewTracker resumes from previously persisted counters. Every persisted item was observed
// once, so the observed count restarts from processed_items.
func NewTracker(start model.Progress) *Tracker {
	return &Tracker{
		observed:  start.ProcessedItems,
		processed: start.ProcessedItems,
		failed:    start.FailedItems,
	}
}

// Seed records the source-reported total. Only the first call has effect.
func (t *Tracker) Seed(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seeded || total < 0 {
		return
	}
	t.seeded = true
	t.reported = total
}

// ObservePage records a fetched page: kept items will be processed, skipped items were filtered out.
func (t *Tracker) ObservePage(kept, skipped int, last bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observed += kept
	t.skipped += skipped
	if last {
		t.finished = true
	}
}

// RecordProcessed counts a persisted base record.
func (t *Tracker) RecordProcessed() {
	t.mu.Lock()
	t.processed++
	t.mu.Unlock()
}

// RecordFailed counts an item failure that exhausted its retries.
func (t *Tracker) RecordFailed() {
	t.mu.Lock()
	t.failed++
	t.mu.Unlock()
}

// Snapshot returns the current counters with the total invariant applied.
func (t *Tracker) Snapshot() model.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := t.observed
	if t.seeded && !t.finished {
		total = max(total, t.reported-t.skipped)
	}
	total = max(total, t.processed+t.failed)

	return model.Progress{
		TotalItems:     total,
		ProcessedItems: t.processed,
		FailedItems:    t.failed,
	}
}
