package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/om239903-ai/internship-project/internal/errors"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
)

func TestEmitScanLifecycle(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitScanLifecycle(rec, ScanMetric{
		ScanType:   "deals",
		Transition: "running_failed",
		Result:     ResultError,
		Duration:   2 * time.Second,
		Err:        apperrors.Auth("bad token"),
	})

	got := rec.Metrics()
	require.Len(t, got, 2)
	assert.Equal(t, ScanTransition, got[0].Name)
	assert.Equal(t, "auth", got[0].Tags["error_class"])
	assert.Equal(t, ScanDuration, got[1].Name)
	assert.InDelta(t, 2000.0, got[1].Value, 0.001)
}

func TestEmitScanLifecycleNilSink(_ *testing.T) {
	EmitScanLifecycle(nil, ScanMetric{})
	EmitItems(nil, "deals", 1, 1)
}

func TestEmitItems(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitItems(rec, "deals", 10, 0)
	EmitItems(rec, "deals", 3, 2)

	assert.InDelta(t, 13.0, rec.Sum(ScanItems, map[string]string{"result": ResultSuccess}), 0.001)
	assert.InDelta(t, 2.0, rec.Sum(ScanItems, map[string]string{"result": ResultError}), 0.001)
}
