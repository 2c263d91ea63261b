package scan

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/om239903-ai/internship-project/internal/domain/model"
)

// epochSecondsCeiling separates epoch seconds from epoch milliseconds in numeric dates.
const epochSecondsCeiling = 1e10

// TransformOptions configure projection of raw source items.
type TransformOptions struct {
	// PortalID builds deal URLs when set.
	PortalID string
}

// TransformDeal projects a raw deal into a DealResult for scanJobID.
func TransformDeal(scanJobID string, item model.SourceItem, page int, opts TransformOptions) *model.DealResult {
	props := item.Properties
	archived := item.Archived
	pageNumber := page

	res := &model.DealResult{
		ScanJobID:        scanJobID,
		DealID:           item.ID,
		Name:             stringProp(props, "dealname"),
		Amount:           decimalProp(props, "amount"),
		Currency:         stringProp(props, "deal_currency_code"),
		Stage:            stringProp(props, "dealstage"),
		StageLabel:       stringProp(props, "dealstage_label"),
		PipelineID:       stringProp(props, "pipeline"),
		PipelineLabel:    stringProp(props, "pipeline_label"),
		CloseDate:        ParseSourceTime(props["closedate"]),
		CreatedDate:      ParseSourceTime(props["createdate"]),
		LastModifiedDate: ParseSourceTime(props["hs_lastmodifieddate"]),
		OwnerID:          stringProp(props, "hubspot_owner_id"),
		OwnerEmail:       stringProp(props, "hubspot_owner_email"),
		DealType:         stringProp(props, "dealtype"),
		Archived:         &archived,
		PageNumber:       &pageNumber,
		Properties:       maps.Clone(props),
	}
	if res.Currency == nil {
		currency := model.DefaultCurrency
		res.Currency = &currency
	}
	if res.CreatedDate == nil && item.CreatedAt != nil {
		t := item.CreatedAt.UTC()
		res.CreatedDate = &t
	}
	if res.LastModifiedDate == nil && item.UpdatedAt != nil {
		t := item.UpdatedAt.UTC()
		res.LastModifiedDate = &t
	}
	if opts.PortalID != "" && item.ID != "" {
		u := fmt.Sprintf("https://app.hubspot.com/contacts/%s/deal/%s", opts.PortalID, item.ID)
		res.DealURL = &u
	}
	return res
}

// ParseSourceTime accepts epoch milliseconds (or seconds) as string or number, and RFC 3339 strings.
// Unparseable values yield nil.
func ParseSourceTime(v any) *time.Time {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		return epochTime(val)
	case int64:
		return epochTime(float64(val))
	case int:
		return epochTime(float64(val))
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochTime(float64(n))
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
		return nil
	default:
		return nil
	}
}

func epochTime(n float64) *time.Time {
	var t time.Time
	if n > epochSecondsCeiling {
		t = time.UnixMilli(int64(n)).UTC()
	} else {
		t = time.Unix(int64(n), 0).UTC()
	}
	return &t
}

func stringProp(props map[string]any, key string) *string {
	v, ok := props[key]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func decimalProp(props map[string]any, key string) decimal.NullDecimal {
	s := stringProp(props, key)
	if s == nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*s))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
