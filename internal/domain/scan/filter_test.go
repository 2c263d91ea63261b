package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/om239903-ai/internship-project/internal/domain/model"
)

func deal(id, stage, pipeline, closeDate string, archived bool) model.SourceItem {
	return model.SourceItem{
		ID:       id,
		Archived: archived,
		Properties: map[string]any{
			"dealstage": stage,
			"pipeline":  pipeline,
			"closedate": closeDate,
		},
	}
}

func TestFilter_Archived(t *testing.T) {
	items := []model.SourceItem{
		deal("1", "a", "p", "", false),
		deal("2", "a", "p", "", true),
	}

	kept, dropped := NewFilter(model.ScanConfig{}.Normalize()).Split(items)
	assert.Len(t, kept, 1)
	assert.Equal(t, "1", kept[0].ID)
	assert.Equal(t, 1, dropped)

	kept, dropped = NewFilter(model.ScanConfig{IncludeArchived: true}.Normalize()).Split(items)
	assert.Len(t, kept, 2)
	assert.Zero(t, dropped)
}

func TestFilter_StageAndPipeline(t *testing.T) {
	f := NewFilter(model.ScanConfig{
		Filters: model.ScanFilters{Pipeline: "sales", Stage: "closedwon"},
	}.Normalize())

	assert.True(t, f.Keep(deal("1", "closedwon", "sales", "", false)))
	assert.False(t, f.Keep(deal("2", "closedlost", "sales", "", false)))
	assert.False(t, f.Keep(deal("3", "closedwon", "default", "", false)))
	assert.False(t, f.Keep(model.SourceItem{ID: "4"}))
}

func TestFilter_DateRange(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	f := NewFilter(model.ScanConfig{
		Filters: model.ScanFilters{
			DateRange: &model.DateRangeFilter{Property: "closedate", From: &from, To: &to},
		},
	}.Normalize())

	assert.True(t, f.Keep(deal("1", "", "", "2024-01-15T10:00:00Z", false)))
	assert.True(t, f.Keep(deal("2", "", "", "1704067200000", false)), "inclusive lower bound")
	assert.False(t, f.Keep(deal("3", "", "", "2023-12-31T23:00:00Z", false)))
	assert.False(t, f.Keep(deal("4", "", "", "2024-02-01T00:00:00Z", false)))
	assert.False(t, f.Keep(deal("5", "", "", "", false)), "missing date is excluded")
}
