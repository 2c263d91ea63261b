// Package metrics defines the scan lifecycle metrics shared by the runner, engine, and services.
package metrics

import (
	"maps"
	"time"

	obserrors "github.com/om239903-ai/internship-project/internal/observability/errors"
	"github.com/om239903-ai/internship-project/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Metric names.
const (
	ScanTransition   = "scan.transition"
	ScanDuration     = "scan.duration"
	ScanItems        = "scan.items"
	EnginePage       = "engine.page"
	GovernorRetry    = "governor.retry"
	GovernorSuspend  = "governor.suspend"
	GovernorExhaust  = "governor.exhausted"
	SinkUpsert       = "sink.upsert"
	ReaperSwept      = "reaper.swept"
	CancelRequested  = "scan.cancel_requested"
	RunnerReserveErr = "runner.reserve_error"
)

// ScanMetric describes one scan status change.
type ScanMetric struct {
	ScanType   string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitScanLifecycle emits the transition counter and, when known, the run duration.
func EmitScanLifecycle(sink statsd.Sink, in ScanMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"scan_type":  in.ScanType,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count(ScanTransition, 1, tags)
	if in.Duration > 0 {
		sink.Timing(ScanDuration, in.Duration, maps.Clone(tags))
	}
}

// EmitItems records processed and failed item totals for a finished run.
func EmitItems(sink statsd.Sink, scanType string, processed, failed int) {
	if sink == nil {
		return
	}
	sink.Count(ScanItems, int64(processed), map[string]string{"scan_type": scanType, "result": ResultSuccess})
	if failed > 0 {
		sink.Count(ScanItems, int64(failed), map[string]string{"scan_type": scanType, "result": ResultError})
	}
}
