// Package pagerduty triggers incidents for failed scans through the PagerDuty Events API v2.
package pagerduty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/om239903-ai/internship-project/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

const maxResponseBytes = 4096

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Endpoint overrides APIEndpoint.
	Endpoint string
}

// Client publishes trigger events for scan failures.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	retryLimit int
	http       *http.Client
}

// NewClient constructs a PagerDuty events client. A routing key is required.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	hc := cfg.Client
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	c := &Client{
		routingKey: key,
		source:     strings.TrimSpace(cfg.Source),
		component:  strings.TrimSpace(cfg.Component),
		endpoint:   strings.TrimSpace(cfg.Endpoint),
		retryLimit: max(cfg.RetryLimit, 0),
		http:       hc,
	}
	if c.source == "" {
		c.source = "dealscan"
	}
	if c.component == "" {
		c.component = "scan-runner"
	}
	if c.endpoint == "" {
		c.endpoint = APIEndpoint
	}
	return c, nil
}

// event is an Events API v2 trigger.
type event struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key,omitempty"`
	Payload     eventPayload `json:"payload"`
}

type eventPayload struct {
	Summary   string `json:"summary"`
	Severity  string `json:"severity"`
	Source    string `json:"source"`
	Component string `json:"component,omitempty"`
	// Group clusters incidents by organization; Class by error class.
	Group         string            `json:"group,omitempty"`
	Class         string            `json:"class,omitempty"`
	Timestamp     string            `json:"timestamp"`
	CustomDetails map[string]string `json:"custom_details"`
}

// response is the ingest answer; Message carries the reason on rejections.
type response struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	DedupKey string   `json:"dedup_key"`
	Errors   []string `json:"errors"`
}

// SendScanFailure triggers (or re-triggers) the incident for the failed run.
func (c *Client) SendScanFailure(ctx context.Context, payload notify.ScanFailurePayload) error {
	body, err := json.Marshal(c.buildEvent(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty event: %w", err)
	}
	return notify.Deliver(ctx, c.retryLimit, func() error {
		return c.submit(ctx, body)
	})
}

// DedupKey identifies one incident per scan run; a restarted run of the same scan_id opens
// a new incident.
func DedupKey(scanID, scanJobID string) string {
	return strings.Trim(scanID+":"+scanJobID, ":")
}

func (c *Client) buildEvent(p notify.ScanFailurePayload) event {
	severity := strings.ToLower(strings.TrimSpace(p.Severity))
	if severity == "" {
		severity = notify.SeverityCritical
	}
	at := p.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	scanID := p.ScanID
	if scanID == "" {
		scanID = "unknown"
	}
	scanType := p.ScanType
	if scanType == "" {
		scanType = "deals"
	}

	details := make(map[string]string, len(p.Metadata)+5)
	for k, v := range p.Metadata {
		details[k] = v
	}
	// Canonical fields win over metadata with the same name.
	details["scan_job_id"] = p.ScanJobID
	details["scan_id"] = p.ScanID
	details["scan_type"] = scanType
	details["error"] = p.Error
	if p.OrganizationID != "" {
		details["organization_id"] = p.OrganizationID
	}

	summary := fmt.Sprintf("%s scan %s failed", scanType, scanID)
	if p.ErrorClass != "" {
		summary += " (" + p.ErrorClass + ")"
	}

	return event{
		RoutingKey:  c.routingKey,
		EventAction: "trigger",
		DedupKey:    DedupKey(p.ScanID, p.ScanJobID),
		Payload: eventPayload{
			Summary:       summary,
			Severity:      severity,
			Source:        c.source,
			Component:     c.component,
			Group:         p.OrganizationID,
			Class:         p.ErrorClass,
			Timestamp:     at.UTC().Format(time.RFC3339),
			CustomDetails: details,
		},
	}
}

func (c *Client) submit(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create pagerduty request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("pagerduty request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode/100 == 2 {
		return nil
	}
	if readErr != nil {
		return fmt.Errorf("pagerduty api %s: read body: %w", resp.Status, readErr)
	}

	respErr := fmt.Errorf("pagerduty api %s: %s", resp.Status, describe(raw))
	// 400 is a malformed event and will never succeed; 429 and 5xx are retried.
	if resp.StatusCode == http.StatusBadRequest {
		return backoff.Permanent(respErr)
	}
	return respErr
}

func describe(raw []byte) string {
	var r response
	if err := json.Unmarshal(raw, &r); err == nil && (r.Message != "" || len(r.Errors) > 0) {
		parts := append([]string{r.Message}, r.Errors...)
		return strings.Trim(strings.Join(parts, "; "), "; ")
	}
	return strings.TrimSpace(string(raw))
}
