package model

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	// MaxBatchSize is the largest page size the source accepts.
	MaxBatchSize = 100
	// DefaultBatchSize is used when the config leaves batch_size unset.
	DefaultBatchSize = 100
	// DefaultMaxPages stops runaway pagination.
	DefaultMaxPages = 10000

	redactedCredential = "[REDACTED]"
)

// Deal properties read by the pipeline and stage filters.
const (
	PropertyPipeline  = "pipeline"
	PropertyDealStage = "dealstage"
)

// DefaultDealProperties is requested when the config names no properties.
var DefaultDealProperties = []string{
	"dealname",
	"amount",
	"dealstage",
	"pipeline",
	"closedate",
	"createdate",
	"hs_lastmodifieddate",
	"hubspot_owner_id",
	"dealtype",
	"hs_deal_stage_probability",
}

// DefaultAssociationTypes is requested when associations are enabled without explicit kinds.
var DefaultAssociationTypes = []string{"contacts", "companies"}

// DateRangeFilter keeps items whose Property falls within [From, To]. Either bound may be nil.
type DateRangeFilter struct {
	Property string     `json:"property"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
}

// ScanFilters are predicates applied to extracted items.
type ScanFilters struct {
	Pipeline  string           `json:"pipeline,omitempty"`
	Stage     string           `json:"stage,omitempty"`
	DateRange *DateRangeFilter `json:"date_range,omitempty"`
}

// ScanConfig is the typed configuration of a scan.
//
// Defaults (applied by Normalize):
//
//	properties            -> DefaultDealProperties
//	include_associations  -> false
//	association_types     -> DefaultAssociationTypes when associations are enabled
//	include_archived      -> false (archived items are dropped)
//	filters               -> none; properties a filter reads are added to properties
//	batch_size            -> 100, clamped to [1, 100]
//	max_pages             -> 10000
type ScanConfig struct {
	AccessToken         string      `json:"access_token,omitempty"`
	Properties          []string    `json:"properties,omitempty"`
	IncludeAssociations bool        `json:"include_associations"`
	AssociationTypes    []string    `json:"association_types,omitempty"`
	IncludeArchived     bool        `json:"include_archived"`
	Filters             ScanFilters `json:"filters"`
	BatchSize           int         `json:"batch_size,omitempty"`
	MaxPages            int         `json:"max_pages,omitempty"`
}

// Validate rejects malformed configs. It never echoes the credential.
func (c ScanConfig) Validate() error {
	if strings.TrimSpace(c.AccessToken) == "" {
		return errors.New("access_token is required")
	}
	if c.BatchSize < 0 {
		return errors.New("batch_size must not be negative")
	}
	if c.MaxPages < 0 {
		return errors.New("max_pages must not be negative")
	}
	for _, p := range c.Properties {
		if strings.TrimSpace(p) == "" {
			return errors.New("properties must not contain blank names")
		}
	}
	for _, kind := range c.AssociationTypes {
		if strings.TrimSpace(kind) == "" {
			return errors.New("association_types must not contain blank kinds")
		}
	}
	if dr := c.Filters.DateRange; dr != nil {
		if strings.TrimSpace(dr.Property) == "" {
			return errors.New("filters.date_range.property is required")
		}
		if dr.From == nil && dr.To == nil {
			return errors.New("filters.date_range needs from or to")
		}
		if dr.From != nil && dr.To != nil && dr.From.After(*dr.To) {
			return errors.New("filters.date_range.from is after to")
		}
	}
	return nil
}

// Normalize returns a copy with defaults applied, batch size clamped, and lists de-duplicated in order.
func (c ScanConfig) Normalize() ScanConfig {
	out := c
	out.AccessToken = strings.TrimSpace(c.AccessToken)

	out.Properties = dedupe(c.Properties)
	if len(out.Properties) == 0 {
		out.Properties = append([]string(nil), DefaultDealProperties...)
	}

	out.AssociationTypes = dedupe(c.AssociationTypes)
	if out.IncludeAssociations && len(out.AssociationTypes) == 0 {
		out.AssociationTypes = append([]string(nil), DefaultAssociationTypes...)
	}

	out.BatchSize = ClampBatchSize(c.BatchSize)
	if out.MaxPages <= 0 {
		out.MaxPages = DefaultMaxPages
	}
	if dr := c.Filters.DateRange; dr != nil {
		cp := *dr
		cp.Property = strings.TrimSpace(cp.Property)
		out.Filters.DateRange = &cp
	}
	out.Filters.Pipeline = strings.TrimSpace(c.Filters.Pipeline)
	out.Filters.Stage = strings.TrimSpace(c.Filters.Stage)

	// The source only returns requested properties; a filter on a missing one drops every item.
	out.Properties = dedupe(append(out.Properties, out.Filters.properties()...))
	return out
}

func (f ScanFilters) properties() []string {
	var props []string
	if f.Pipeline != "" {
		props = append(props, PropertyPipeline)
	}
	if f.Stage != "" {
		props = append(props, PropertyDealStage)
	}
	if f.DateRange != nil && f.DateRange.Property != "" {
		props = append(props, f.DateRange.Property)
	}
	return props
}

// Redacted returns a copy without the credential.
func (c ScanConfig) Redacted() ScanConfig {
	out := c
	out.AccessToken = ""
	return out
}

// String never includes the credential so configs are safe in %v verbs.
func (c ScanConfig) String() string {
	token := ""
	if c.AccessToken != "" {
		token = redactedCredential
	}
	return fmt.Sprintf("ScanConfig{AccessToken:%s Properties:%v IncludeAssociations:%t AssociationTypes:%v IncludeArchived:%t BatchSize:%d MaxPages:%d}",
		token, c.Properties, c.IncludeAssociations, c.AssociationTypes, c.IncludeArchived, c.BatchSize, c.MaxPages)
}

// GoString mirrors String for %#v.
func (c ScanConfig) GoString() string {
	return c.String()
}

// LogValue implements slog.LogValuer without the credential.
func (c ScanConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("properties", len(c.Properties)),
		slog.Bool("include_associations", c.IncludeAssociations),
		slog.Any("association_types", c.AssociationTypes),
		slog.Bool("include_archived", c.IncludeArchived),
		slog.Int("batch_size", c.BatchSize),
		slog.Int("max_pages", c.MaxPages),
	)
}

// ClampBatchSize bounds n to [1, MaxBatchSize]; zero selects the default.
func ClampBatchSize(n int) int {
	switch {
	case n == 0:
		return DefaultBatchSize
	case n < 1:
		return 1
	case n > MaxBatchSize:
		return MaxBatchSize
	default:
		return n
	}
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
