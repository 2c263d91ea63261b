package hubspot

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/om239903-ai/internship-project/internal/domain/model"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
)

const (
	headerDailyLimit     = "X-HubSpot-RateLimit-Daily"
	headerDailyRemaining = "X-HubSpot-RateLimit-Daily-Remaining"
	headerIntervalMax    = "X-HubSpot-RateLimit-Max"
	headerIntervalMillis = "X-HubSpot-RateLimit-Interval-Milliseconds"

	defaultIntervalLimit  = 150
	defaultIntervalWindow = 10 * time.Second
)

// APIUsage is the account's API quota as reported by HubSpot. Daily figures are nil when
// HubSpot reported neither a header nor a body value.
type APIUsage struct {
	DailyLimit     *int
	DailyRemaining *int
	IntervalLimit  int
	IntervalWindow time.Duration
}

func decodeAccount(doc any) (*model.SourceAccount, error) {
	raw, err := exprAccount.Search(doc)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode hubspot account")
	}
	fields, _ := raw.(map[string]any)
	account := &model.SourceAccount{
		PortalID:            scalarString(fields["portal"]),
		AccountType:         scalarString(fields["type"]),
		TimeZone:            scalarString(fields["tz"]),
		CompanyCurrency:     scalarString(fields["currency"]),
		DataHostingLocation: scalarString(fields["hosting"]),
	}
	if account.PortalID == "" {
		return nil, apperrors.Validation("hubspot account details carry no portal id")
	}
	return account, nil
}

func decodeUsage(doc any, header http.Header) (*APIUsage, error) {
	usage := &APIUsage{
		IntervalLimit:  defaultIntervalLimit,
		IntervalWindow: defaultIntervalWindow,
	}

	limit, err := exprDailyLimit.Search(doc)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode hubspot usage")
	}
	if n, ok := intValue(limit); ok {
		usage.DailyLimit = &n
	}
	remaining, err := exprDailyRemaining.Search(doc)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode hubspot usage")
	}
	if n, ok := intValue(remaining); ok {
		usage.DailyRemaining = &n
	} else if usage.DailyLimit != nil {
		used, err := exprDailyUsed.Search(doc)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode hubspot usage")
		}
		if u, ok := intValue(used); ok {
			left := max(*usage.DailyLimit-u, 0)
			usage.DailyRemaining = &left
		}
	}

	if n, ok := headerInt(header, headerDailyLimit); ok {
		usage.DailyLimit = &n
	}
	if n, ok := headerInt(header, headerDailyRemaining); ok {
		usage.DailyRemaining = &n
	}
	if n, ok := headerInt(header, headerIntervalMax); ok && n > 0 {
		usage.IntervalLimit = n
	}
	if n, ok := headerInt(header, headerIntervalMillis); ok && n > 0 {
		usage.IntervalWindow = time.Duration(n) * time.Millisecond
	}
	return usage, nil
}

func headerInt(header http.Header, key string) (int, bool) {
	v := strings.TrimSpace(header.Get(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
