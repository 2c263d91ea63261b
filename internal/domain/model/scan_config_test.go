package model

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanConfig_Validate(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	tests := []struct {
		name    string
		cfg     ScanConfig
		wantErr string
	}{
		{name: "minimal", cfg: ScanConfig{AccessToken: "pat-na1-secret"}},
		{name: "missing token", cfg: ScanConfig{}, wantErr: "access_token is required"},
		{name: "blank token", cfg: ScanConfig{AccessToken: "   "}, wantErr: "access_token is required"},
		{name: "negative batch", cfg: ScanConfig{AccessToken: "t", BatchSize: -1}, wantErr: "batch_size"},
		{name: "blank property", cfg: ScanConfig{AccessToken: "t", Properties: []string{"dealname", " "}}, wantErr: "properties"},
		{
			name: "date range without property",
			cfg: ScanConfig{
				AccessToken: "t",
				Filters:     ScanFilters{DateRange: &DateRangeFilter{From: &from}},
			},
			wantErr: "property is required",
		},
		{
			name: "date range inverted",
			cfg: ScanConfig{
				AccessToken: "t",
				Filters:     ScanFilters{DateRange: &DateRangeFilter{Property: "closedate", From: &to, To: &from}},
			},
			wantErr: "after",
		},
		{
			name: "date range ok",
			cfg: ScanConfig{
				AccessToken: "t",
				Filters:     ScanFilters{DateRange: &DateRangeFilter{Property: "closedate", From: &from, To: &to}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScanConfig_Normalize(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		cfg := ScanConfig{AccessToken: " tok "}.Normalize()

		assert.Equal(t, "tok", cfg.AccessToken)
		assert.Equal(t, DefaultDealProperties, cfg.Properties)
		assert.Empty(t, cfg.AssociationTypes)
		assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
		assert.Equal(t, DefaultMaxPages, cfg.MaxPages)
	})

	t.Run("keeps property order and drops duplicates", func(t *testing.T) {
		cfg := ScanConfig{
			AccessToken: "tok",
			Properties:  []string{"amount", "dealname", "amount", " dealstage "},
		}.Normalize()

		assert.Equal(t, []string{"amount", "dealname", "dealstage"}, cfg.Properties)
	})

	t.Run("requests the properties filters read", func(t *testing.T) {
		from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		cfg := ScanConfig{
			AccessToken: "tok",
			Properties:  []string{"dealname", "pipeline"},
			Filters: ScanFilters{
				Pipeline:  "default",
				Stage:     "closedwon",
				DateRange: &DateRangeFilter{Property: " closedate ", From: &from},
			},
		}.Normalize()

		assert.Equal(t, []string{"dealname", "pipeline", "dealstage", "closedate"}, cfg.Properties)
	})

	t.Run("filters add nothing to default properties", func(t *testing.T) {
		cfg := ScanConfig{AccessToken: "tok", Filters: ScanFilters{Stage: "closedwon"}}.Normalize()
		assert.Equal(t, DefaultDealProperties, cfg.Properties)
	})

	t.Run("association defaults only when enabled", func(t *testing.T) {
		cfg := ScanConfig{AccessToken: "tok", IncludeAssociations: true}.Normalize()
		assert.Equal(t, DefaultAssociationTypes, cfg.AssociationTypes)
	})

	t.Run("clamps batch size", func(t *testing.T) {
		assert.Equal(t, MaxBatchSize, ScanConfig{AccessToken: "t", BatchSize: 500}.Normalize().BatchSize)
		assert.Equal(t, 7, ScanConfig{AccessToken: "t", BatchSize: 7}.Normalize().BatchSize)
	})

	t.Run("does not alias input slices", func(t *testing.T) {
		in := ScanConfig{AccessToken: "t"}
		out := in.Normalize()
		out.Properties[0] = "changed"
		assert.Equal(t, "dealname", DefaultDealProperties[0])
	})
}

func TestScanConfig_NeverPrintsCredential(t *testing.T) {
	cfg := ScanConfig{AccessToken: "pat-na1-super-secret", Properties: []string{"dealname"}}

	assert.NotContains(t, fmt.Sprintf("%v", cfg), "super-secret")
	assert.NotContains(t, fmt.Sprintf("%+v", cfg), "super-secret")
	assert.NotContains(t, fmt.Sprintf("%#v", cfg), "super-secret")
	assert.Empty(t, cfg.Redacted().AccessToken)
	assert.Equal(t, "pat-na1-super-secret", cfg.AccessToken, "Redacted must not mutate the receiver")

	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("scan config", "config", cfg)
	assert.NotContains(t, buf.String(), "super-secret")
}

func TestClampBatchSize(t *testing.T) {
	tests := map[int]int{0: DefaultBatchSize, -5: 1, 1: 1, 100: 100, 101: 100}
	for in, want := range tests {
		assert.Equal(t, want, ClampBatchSize(in), "ClampBatchSize(%d)", in)
	}
}
