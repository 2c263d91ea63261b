package notify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// ScanFailurePayload captures the canonical data we emit when a scan run fails.
// It never carries the scan credential.
type ScanFailurePayload struct {
	ScanJobID      string
	ScanID         string
	ScanType       string
	OrganizationID string
	Error          string
	ErrorClass     string
	Severity       string
	OccurredAt     time.Time
	Metadata       map[string]string
}

// Sink describes a destination capable of consuming scan failure notifications.
type Sink interface {
	SendScanFailure(ctx context.Context, payload ScanFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload ScanFailurePayload) error

// SendScanFailure implements the Sink interface.
func (f SinkFunc) SendScanFailure(ctx context.Context, payload ScanFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// DeliveryRetryInterval is the first delay between delivery attempts.
const DeliveryRetryInterval = 200 * time.Millisecond

// Deliver calls send once plus up to retries more times with exponential backoff.
// Errors wrapped with backoff.Permanent stop immediately.
func Deliver(ctx context.Context, retries int, send func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = DeliveryRetryInterval
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(max(retries, 0))), ctx) // #nosec G115 - clamped
	return backoff.Retry(send, policy)
}
