package testutil

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/om239903-ai/internship-project/internal/domain/model"
)

// ScanJobBuilder builds ScanJob fixtures with sensible defaults.
type ScanJobBuilder struct {
	job *model.ScanJob
}

// NewScanJob starts a pending deals scan with a fresh run id.
func NewScanJob(scanID string) *ScanJobBuilder {
	cfg := model.ScanConfig{AccessToken: "test-token"}.Normalize()
	return &ScanJobBuilder{job: &model.ScanJob{
		ID:        uuid.NewString(),
		ScanID:    scanID,
		Status:    model.ScanStatusPending,
		ScanType:  model.ScanTypeDeals,
		Config:    cfg,
		BatchSize: cfg.BatchSize,
	}}
}

// WithID overrides the run id.
func (b *ScanJobBuilder) WithID(id string) *ScanJobBuilder {
	b.job.ID = id
	return b
}

// WithOrganization sets the organization id.
func (b *ScanJobBuilder) WithOrganization(org string) *ScanJobBuilder {
	b.job.OrganizationID = &org
	return b
}

// WithConfig replaces the scan config (normalized).
func (b *ScanJobBuilder) WithConfig(cfg model.ScanConfig) *ScanJobBuilder {
	b.job.Config = cfg.Normalize()
	b.job.BatchSize = b.job.Config.BatchSize
	return b
}

// WithBatchSize sets the page size.
func (b *ScanJobBuilder) WithBatchSize(n int) *ScanJobBuilder {
	b.job.Config.BatchSize = n
	b.job.BatchSize = n
	return b
}

// Running marks the job as running since at.
func (b *ScanJobBuilder) Running(at time.Time) *ScanJobBuilder {
	b.job.Status = model.ScanStatusRunning
	b.job.StartedAt = &at
	return b
}

// Build returns the job.
func (b *ScanJobBuilder) Build() *model.ScanJob {
	return b.job
}

// DealItem builds a source item with the standard deal properties.
func DealItem(id, name, amount, stage string) model.SourceItem {
	return model.SourceItem{
		ID: id,
		Properties: map[string]any{
			"dealname":  name,
			"amount":    amount,
			"dealstage": stage,
			"pipeline":  "default",
		},
	}
}

// DealItems builds n items with ids prefix-1..prefix-n.
func DealItems(prefix string, n int) []model.SourceItem {
	items := make([]model.SourceItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, DealItem(
			prefix+"-"+strconv.Itoa(i),
			fmt.Sprintf("Deal %s %d", prefix, i),
			strconv.Itoa(i*100),
			"appointmentscheduled",
		))
	}
	return items
}

// Page builds a source page.
func Page(next string, items ...model.SourceItem) *model.SourcePage {
	return &model.SourcePage{Items: items, Next: model.Cursor(next)}
}
