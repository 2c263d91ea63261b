// Package failurenotifier fans scan failures out to the configured alert sinks.
//
// A rejected credential is a per-customer problem and is sent as a warning; every other
// failure (retry exhaustion, storage errors) is critical. Repeated failures of the same
// scan_id inside RepeatWindow are logged but not re-sent.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/om239903-ai/internship-project/internal/errors"
	"github.com/om239903-ai/internship-project/internal/observability/notify"
)

const (
	defaultDeliveryTimeout = 10 * time.Second
	defaultRepeatWindow    = 15 * time.Minute
)

// SinkRegistration pairs a sink implementation with a name used in logs.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// DeliveryTimeout bounds each sink call, retries included.
	DeliveryTimeout time.Duration
	// RepeatWindow suppresses re-alerting the same scan_id; negative disables suppression.
	RepeatWindow time.Duration
	Now          func() time.Time
}

// Service dispatches failure events to all registered sinks.
type Service struct {
	logger  *slog.Logger
	sinks   []SinkRegistration
	timeout time.Duration
	window  time.Duration
	now     func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{Name: name, Sink: entry.Sink})
	}

	timeout := opts.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	window := opts.RepeatWindow
	if window == 0 {
		window = defaultRepeatWindow
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		logger:   logger.With("component", "failure_notifier"),
		sinks:    sinks,
		timeout:  timeout,
		window:   window,
		now:      now,
		lastSent: make(map[string]time.Time),
	}
}

// SeverityFor maps an error class onto a notification severity.
func SeverityFor(errorClass string) string {
	if errorClass == string(apperrors.ErrCodeAuth) {
		return notify.SeverityWarning
	}
	return notify.SeverityCritical
}

// NotifyScanFailure fans the payload out to all sinks and waits for delivery. Delivery runs
// on a context detached from ctx's cancellation so a failing run still alerts during shutdown.
func (s *Service) NotifyScanFailure(ctx context.Context, payload notify.ScanFailurePayload) {
	if s == nil || len(s.sinks) == 0 {
		return
	}
	if payload.Severity == "" {
		payload.Severity = SeverityFor(payload.ErrorClass)
	}
	if s.suppressed(payload.ScanID) {
		s.logger.InfoContext(ctx, "scan failure already notified recently",
			"scan_id", payload.ScanID, "scan_job_id", payload.ScanJobID)
		return
	}

	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendScanFailure(deliverCtx, payload); err != nil {
				s.logger.ErrorContext(ctx, "failure notifier delivery error",
					"sink", entry.Name,
					"scan_job_id", payload.ScanJobID,
					"scan_id", payload.ScanID,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// suppressed records the send time and reports whether scanID was notified within the window.
func (s *Service) suppressed(scanID string) bool {
	if s.window < 0 || scanID == "" {
		return false
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range s.lastSent {
		if now.Sub(at) >= s.window {
			delete(s.lastSent, id)
		}
	}
	if _, ok := s.lastSent[scanID]; ok {
		return true
	}
	s.lastSent[scanID] = now
	return false
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}
