// Package slack posts scan failure alerts to a Slack incoming webhook as Block Kit messages.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/om239903-ai/internship-project/internal/observability/notify"
)

const (
	defaultUsername   = "dealscan"
	maxErrorBodyBytes = 4096
	// Slack rejects section text above 3000 characters.
	maxSectionText = 2900
)

// progressKeys are lifted out of the metadata into their own fields, in this order.
var progressKeys = []struct{ key, label string }{
	{"pages_processed", "Pages"},
	{"processed_items", "Processed"},
	{"failed_items", "Failed"},
}

// Config captures the Slack webhook settings.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// ScanURLPrefix links the scan id to an operator view, e.g. https://dealscan.example/api/scans.
	ScanURLPrefix string
}

// Client delivers scan failure notifications to a Slack webhook.
type Client struct {
	webhookURL string
	channel    string
	username   string
	retryLimit int
	scanURL    *url.URL
	http       *http.Client
}

// NewClient builds a Slack webhook client.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
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
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   strings.TrimSpace(cfg.Username),
		retryLimit: max(cfg.RetryLimit, 0),
		http:       hc,
	}
	if c.username == "" {
		c.username = defaultUsername
	}
	if u, err := url.Parse(strings.TrimSpace(cfg.ScanURLPrefix)); err == nil && u.Scheme != "" && u.Host != "" {
		c.scanURL = u
	}
	return c, nil
}

// message is the webhook body. Text is the notification fallback for clients without blocks.
type message struct {
	Text     string  `json:"text"`
	Username string  `json:"username,omitempty"`
	Channel  string  `json:"channel,omitempty"`
	Blocks   []block `json:"blocks"`
}

type block struct {
	Type   string       `json:"type"`
	Text   *textObject  `json:"text,omitempty"`
	Fields []textObject `json:"fields,omitempty"`
	// Elements is only used by context blocks.
	Elements []textObject `json:"elements,omitempty"`
}

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(s string) textObject { return textObject{Type: "mrkdwn", Text: s} }

// SendScanFailure posts the alert, retrying 5xx and 429 answers.
func (c *Client) SendScanFailure(ctx context.Context, payload notify.ScanFailurePayload) error {
	body, err := json.Marshal(c.buildMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	return notify.Deliver(ctx, c.retryLimit, func() error {
		return c.post(ctx, body)
	})
}

func (c *Client) buildMessage(p notify.ScanFailurePayload) message {
	severity := p.Severity
	if severity == "" {
		severity = notify.SeverityCritical
	}
	at := p.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}

	title := "Deal scan failed"
	if p.ScanType != "" && p.ScanType != "deals" {
		title = fmt.Sprintf("Scan (%s) failed", p.ScanType)
	}
	headline := fmt.Sprintf(":rotating_light: *%s* %s", title, c.scanRef(p.ScanID))
	if severity == notify.SeverityWarning {
		headline = fmt.Sprintf(":warning: *%s* %s", title, c.scanRef(p.ScanID))
	}

	fields := []textObject{mrkdwn("*Severity*\n" + severity)}
	if p.ErrorClass != "" {
		fields = append(fields, mrkdwn("*Error class*\n`"+p.ErrorClass+"`"))
	}
	if p.OrganizationID != "" {
		fields = append(fields, mrkdwn("*Organization*\n"+escape(p.OrganizationID)))
	}
	rest := make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		rest[k] = v
	}
	for _, pk := range progressKeys {
		if v, ok := rest[pk.key]; ok {
			fields = append(fields, mrkdwn("*"+pk.label+"*\n"+escape(v)))
			delete(rest, pk.key)
		}
	}

	blocks := []block{
		{Type: "section", Text: ptr(mrkdwn(headline))},
		{Type: "section", Fields: fields},
	}
	if p.Error != "" {
		blocks = append(blocks, block{Type: "section", Text: ptr(mrkdwn("```" + truncate(escape(p.Error)) + "```"))})
	}
	if hint := operatorHint(p.ErrorClass); hint != "" {
		blocks = append(blocks, block{Type: "section", Text: ptr(mrkdwn("_" + hint + "_"))})
	}

	ctxElems := []textObject{mrkdwn("run `" + escape(p.ScanJobID) + "` at " + at.UTC().Format(time.RFC3339))}
	if extra := formatExtra(rest); extra != "" {
		ctxElems = append(ctxElems, mrkdwn(extra))
	}
	blocks = append(blocks, block{Type: "context", Elements: ctxElems})

	return message{
		Text:     fmt.Sprintf("%s: scan %s failed (%s)", severity, p.ScanID, p.ErrorClass),
		Username: c.username,
		Channel:  c.channel,
		Blocks:   blocks,
	}
}

func operatorHint(errorClass string) string {
	switch errorClass {
	case "auth":
		return "HubSpot rejected the access token. Rotate the token and start the scan again."
	case "transient", "timeout":
		return "HubSpot or the network stayed unavailable through all retries. Restarting the scan resumes from scratch."
	default:
		return ""
	}
}

// scanRef renders the scan id, linked to the operator view when a prefix is configured.
func (c *Client) scanRef(scanID string) string {
	raw := strings.TrimSpace(scanID)
	if raw == "" {
		return ""
	}
	id := "`" + escape(raw) + "`"
	if c.scanURL == nil {
		return id
	}
	return fmt.Sprintf("<%s|%s>", c.scanURL.JoinPath(raw).String(), escape(raw))
}

func formatExtra(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, escape(k)+"="+escape(meta[k]))
	}
	return strings.Join(parts, " · ")
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxSectionText {
		return s
	}
	return string(r[:maxSectionText]) + "…"
}

func ptr[T any](v T) *T { return &v }

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create slack request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The webhook URL is a credential; keep it out of the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	respErr := fmt.Errorf("slack webhook %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return respErr
	}
	return backoff.Permanent(respErr)
}
