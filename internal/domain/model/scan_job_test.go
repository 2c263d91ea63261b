package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestScanStatus(t *testing.T) {
	for _, s := range []ScanStatus{ScanStatusCompleted, ScanStatusFailed, ScanStatusCancelled} {
		assert.True(t, s.IsTerminal(), s)
		assert.True(t, s.Valid(), s)
	}
	for _, s := range ActiveScanStatuses() {
		assert.False(t, s.IsTerminal(), s)
	}
	assert.False(t, ScanStatusNotFound.Valid(), "not_found is never persisted")

	var st ScanStatus
	require.NoError(t, st.UnmarshalText([]byte(" Running ")))
	assert.Equal(t, ScanStatusRunning, st)
	assert.Error(t, st.UnmarshalText([]byte("not_found")))
}

func TestProgress_SuccessRate(t *testing.T) {
	assert.InDelta(t, 0.0, Progress{}.SuccessRate(), 1e-9)
	assert.InDelta(t, 1.0, Progress{TotalItems: 3, ProcessedItems: 3}.SuccessRate(), 1e-9)
	assert.InDelta(t, 0.75, Progress{TotalItems: 4, ProcessedItems: 3, FailedItems: 1}.SuccessRate(), 1e-9)
	assert.InDelta(t, 2.0, Progress{ProcessedItems: 2}.SuccessRate(), 1e-9, "total floors at one")
}

func TestScanJob_ViewRedactsCredential(t *testing.T) {
	now := time.Now().UTC()
	job := &ScanJob{
		ID:             "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		ScanID:         "scan-1",
		Status:         ScanStatusRunning,
		ScanType:       ScanTypeDeals,
		Config:         ScanConfig{AccessToken: "pat-secret", BatchSize: 50},
		TotalItems:     10,
		ProcessedItems: 5,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	view := job.View()
	assert.Equal(t, "scan-1", view.ScanID)
	assert.InDelta(t, 0.5, view.SuccessRate, 1e-9)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "pat-secret")
	assert.Equal(t, "pat-secret", job.Config.AccessToken)
}

func TestNotFoundView(t *testing.T) {
	view := NotFoundView("missing")
	assert.Equal(t, ScanStatusNotFound, view.Status)
	assert.Equal(t, "missing", view.ScanID)
	assert.Empty(t, view.JobID)
}

func TestStartScanRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     StartScanRequest
		wantErr string
	}{
		{name: "valid", req: StartScanRequest{ScanID: "s1", Config: ScanConfig{AccessToken: "t"}}},
		{name: "missing scan id", req: StartScanRequest{Config: ScanConfig{AccessToken: "t"}}, wantErr: "scan_id"},
		{name: "bad type", req: StartScanRequest{ScanID: "s1", ScanType: "contacts", Config: ScanConfig{AccessToken: "t"}}, wantErr: "scan_type"},
		{name: "blank org", req: StartScanRequest{ScanID: "s1", OrganizationID: strPtr(" "), Config: ScanConfig{AccessToken: "t"}}, wantErr: "organization_id"},
		{name: "bad config", req: StartScanRequest{ScanID: "s1"}, wantErr: "access_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
