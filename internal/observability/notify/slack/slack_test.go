package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/om239903-ai/internship-project/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func allText(msg message) string {
	var b strings.Builder
	for _, blk := range msg.Blocks {
		if blk.Text != nil {
			b.WriteString(blk.Text.Text + "\n")
		}
		for _, f := range blk.Fields {
			b.WriteString(f.Text + "\n")
		}
		for _, e := range blk.Elements {
			b.WriteString(e.Text + "\n")
		}
	}
	return b.String()
}

func TestBuildMessage(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL:    "https://hooks.slack.com/services/test",
		Channel:       "#alerts",
		Username:      "bot",
		ScanURLPrefix: "https://dealscan.example/api/scans",
	})
	require.NoError(t, err)

	msg := client.buildMessage(notify.ScanFailurePayload{
		ScanJobID:      "job-123",
		ScanID:         "nightly-deals",
		ScanType:       "deals",
		OrganizationID: "org-1",
		Error:          "hubspot rejected the credential (status 401)",
		ErrorClass:     "auth",
		Severity:       notify.SeverityWarning,
		OccurredAt:     time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Metadata:       map[string]string{"processed_items": "42", "pages_processed": "3", "region": "eu"},
	})

	assert.Equal(t, "bot", msg.Username)
	assert.Equal(t, "#alerts", msg.Channel)
	assert.Contains(t, msg.Text, "nightly-deals")
	assert.Equal(t, "context", msg.Blocks[len(msg.Blocks)-1].Type)

	text := allText(msg)
	for _, want := range []string{
		":warning: *Deal scan failed*",
		"<https://dealscan.example/api/scans/nightly-deals|nightly-deals>",
		"*Processed*\n42",
		"*Pages*\n3",
		"org-1",
		"status 401",
		"Rotate the token",
		"job-123",
		"2024-05-01T09:00:00Z",
		"region=eu",
	} {
		assert.Contains(t, text, want)
	}
	assert.NotContains(t, text, "processed_items=")
}

func TestBuildMessageEscapesAndTruncates(t *testing.T) {
	client, err := NewClient(Config{WebhookURL: "https://hooks.slack.com/services/test"})
	require.NoError(t, err)

	msg := client.buildMessage(notify.ScanFailurePayload{
		ScanID: "a<b>",
		Error:  strings.Repeat("x", 5000),
	})
	text := allText(msg)
	assert.Contains(t, text, "`a&lt;b&gt;`")
	assert.Contains(t, text, ":rotating_light:")
	for _, blk := range msg.Blocks {
		if blk.Text != nil {
			assert.LessOrEqual(t, len([]rune(blk.Text.Text)), maxSectionText+10)
		}
	}
}

func TestSendScanFailureRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body message
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body.Blocks)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, RetryLimit: 2})
	require.NoError(t, err)
	require.NoError(t, client.SendScanFailure(context.Background(), notify.ScanFailurePayload{ScanJobID: "j"}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendScanFailureClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid_blocks", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, RetryLimit: 3})
	require.NoError(t, err)
	err = client.SendScanFailure(context.Background(), notify.ScanFailurePayload{ScanJobID: "j"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_blocks")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendScanFailureHidesWebhookURL(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	webhook := srv.URL + "/services/T000/B000/secret"
	srv.Close()

	client, err := NewClient(Config{WebhookURL: webhook})
	require.NoError(t, err)
	err = client.SendScanFailure(context.Background(), notify.ScanFailurePayload{ScanJobID: "j"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}
