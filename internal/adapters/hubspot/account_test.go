package hubspot

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/om239903-ai/internship-project/internal/errors"
)

func TestClient_AccountInfo(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account-info/v3/details", r.URL.Path)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{
			"portalId": 62515,
			"accountType": "STANDARD",
			"timeZone": "US/Eastern",
			"companyCurrency": "USD",
			"dataHostingLocation": "na1"
		}`)
	})

	account, err := c.AccountInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "62515", account.PortalID)
	assert.Equal(t, "STANDARD", account.AccountType)
	assert.Equal(t, "US/Eastern", account.TimeZone)
	assert.Equal(t, "USD", account.CompanyCurrency)
	assert.Equal(t, "na1", account.DataHostingLocation)
}

func TestClient_AccountInfoWithoutPortal(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"accountType": "STANDARD"}`)
	})

	_, err := c.AccountInfo(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestClient_APIUsage(t *testing.T) {
	tests := []struct {
		name          string
		header        map[string]string
		body          string
		wantLimit     *int
		wantRemaining *int
		wantInterval  int
		wantWindow    time.Duration
	}{
		{
			name:          "body only",
			body:          `{"currentUsage": {"dailyLimit": 250000, "dailyRemaining": 249000}}`,
			wantLimit:     intPtr(250000),
			wantRemaining: intPtr(249000),
			wantInterval:  150,
			wantWindow:    10 * time.Second,
		},
		{
			name: "headers take precedence",
			header: map[string]string{
				"X-HubSpot-RateLimit-Daily":                 "500000",
				"X-HubSpot-RateLimit-Daily-Remaining":       "499990",
				"X-HubSpot-RateLimit-Max":                   "190",
				"X-HubSpot-RateLimit-Interval-Milliseconds": "10000",
			},
			body:          `{"currentUsage": {"dailyLimit": 250000, "dailyRemaining": 249000}}`,
			wantLimit:     intPtr(500000),
			wantRemaining: intPtr(499990),
			wantInterval:  190,
			wantWindow:    10 * time.Second,
		},
		{
			name:          "private app results",
			body:          `{"results": [{"name": "private-apps-api-calls-daily", "usageLimit": 1000, "currentUsage": 40}]}`,
			wantLimit:     intPtr(1000),
			wantRemaining: intPtr(960),
			wantInterval:  150,
			wantWindow:    10 * time.Second,
		},
		{
			name:         "nothing reported",
			body:         `{}`,
			wantInterval: 150,
			wantWindow:   10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/account-info/v3/api-usage/daily", r.URL.Path)
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				writeJSON(w, http.StatusOK, tt.body)
			})

			usage, err := c.APIUsage(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, usage.DailyLimit)
			assert.Equal(t, tt.wantRemaining, usage.DailyRemaining)
			assert.Equal(t, tt.wantInterval, usage.IntervalLimit)
			assert.Equal(t, tt.wantWindow, usage.IntervalWindow)
		})
	}
}

func TestClient_APIUsageForbidden(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"category": "MISSING_SCOPES"}`)
	})

	_, err := c.APIUsage(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsAuth(err))
	assert.NotContains(t, err.Error(), testToken)
}

func intPtr(n int) *int { return &n }
