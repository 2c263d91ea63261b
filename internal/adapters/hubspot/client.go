// Package hubspot implements core.SourceClient against the HubSpot CRM v3/v4 APIs.
//
// Errors are classified with the internal/errors codes and are built from the response status
// and HubSpot error category only; response bodies and credentials never reach an error message.
package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"

	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
)

const (
	// DefaultBaseURL is the public HubSpot API host.
	DefaultBaseURL = "https://api.hubapi.com"

	defaultTimeout         = 30 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
	associationPageLimit   = 500
	maxErrorBodyBytes      = 64 << 10
)

// Response extraction expressions, compiled once.
var (
	exprNextCursor     = jmespath.MustCompile("paging.next.after")
	exprTotal          = jmespath.MustCompile("total")
	exprResults        = jmespath.MustCompile("results")
	exprAssociationIDs = jmespath.MustCompile("results[].toObjectId")
	exprErrorCategory  = jmespath.MustCompile("category")
	exprAccount        = jmespath.MustCompile(`{portal: portalId, type: accountType, tz: timeZone, currency: companyCurrency, hosting: dataHostingLocation}`)
	exprDailyLimit     = jmespath.MustCompile("currentUsage.dailyLimit || results[0].usageLimit")
	exprDailyUsed      = jmespath.MustCompile("results[0].currentUsage")
	exprDailyRemaining = jmespath.MustCompile("currentUsage.dailyRemaining")
)

// Options configures the client factory.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// BreakerFailures is the number of consecutive transient failures that opens the breaker.
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open before letting a trial request through.
	BreakerTimeout time.Duration
	// Transport is the base round tripper; http.DefaultTransport when nil.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Factory creates per-credential clients that share one transport and one circuit breaker
// for the configured host.
type Factory struct {
	baseURL   *url.URL
	timeout   time.Duration
	transport http.RoundTripper
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger
}

var _ core.SourceClientFactory = (*Factory)(nil)

// NewFactory validates opts and builds a Factory.
func NewFactory(opts Options) (*Factory, error) {
	raw := strings.TrimRight(opts.BaseURL, "/")
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid hubspot base url %q", raw)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	openFor := opts.BreakerTimeout
	if openFor <= 0 {
		openFor = defaultBreakerTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "hubspot_client", "host", base.Host)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "hubspot:" + base.Host,
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only outages trip the breaker; auth, validation and throttling answers are healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || !apperrors.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Factory{
		baseURL:   base,
		timeout:   timeout,
		transport: transport,
		breaker:   breaker,
		logger:    logger,
	}, nil
}

// NewClient binds a client to accessToken.
func (f *Factory) NewClient(accessToken string) (core.SourceClient, error) {
	return f.Client(accessToken)
}

// Client is NewClient returning the concrete type, for callers that need ValidateToken.
func (f *Factory) Client(accessToken string) (*Client, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, apperrors.ValidationField("access_token", "access token is required")
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return &Client{
		factory: f,
		http: &http.Client{
			Timeout:   f.timeout,
			Transport: &oauth2.Transport{Source: src, Base: f.transport},
		},
	}, nil
}

// Client is a HubSpot client bound to one access token.
type Client struct {
	factory *Factory
	http    *http.Client
}

var _ core.SourceClient = (*Client)(nil)

// ListPage fetches one page of deals.
func (c *Client) ListPage(ctx context.Context, req model.ListPageRequest) (*model.SourcePage, error) {
	q := url.Values{}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if !req.After.IsZero() {
		q.Set("after", string(req.After))
	}
	if len(req.Properties) > 0 {
		q.Set("properties", strings.Join(req.Properties, ","))
	}
	q.Set("archived", strconv.FormatBool(req.Archived))

	doc, err := c.get(ctx, "/crm/v3/objects/deals", q, "deals")
	if err != nil {
		return nil, err
	}
	return decodePage(doc)
}

// ListAssociations fetches one page of the deal's associations of req.Kind.
func (c *Client) ListAssociations(ctx context.Context, req model.AssociationPageRequest) (*model.AssociationPage, error) {
	if req.ItemID == "" || req.Kind == "" {
		return nil, apperrors.Validation("association request needs an item id and a kind")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = associationPageLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if !req.After.IsZero() {
		q.Set("after", string(req.After))
	}

	path := fmt.Sprintf("/crm/v4/objects/deals/%s/associations/%s", url.PathEscape(req.ItemID), url.PathEscape(req.Kind))
	doc, err := c.get(ctx, path, q, "deal "+req.ItemID)
	if err != nil {
		return nil, err
	}
	return decodeAssociations(doc)
}

// ValidateToken performs the cheapest authenticated read to check the credential.
func (c *Client) ValidateToken(ctx context.Context) error {
	q := url.Values{}
	q.Set("limit", "1")
	_, err := c.get(ctx, "/crm/v3/objects/deals", q, "deals")
	return err
}

// AccountInfo reads the account details of the bound credential.
func (c *Client) AccountInfo(ctx context.Context) (*model.SourceAccount, error) {
	doc, err := c.get(ctx, "/account-info/v3/details", url.Values{}, "account")
	if err != nil {
		return nil, err
	}
	return decodeAccount(doc)
}

// APIUsage reads the daily API usage of the account. Rate limit headers, when present,
// take precedence over the body.
func (c *Client) APIUsage(ctx context.Context) (*APIUsage, error) {
	resp, err := c.fetch(ctx, "/account-info/v3/api-usage/daily", url.Values{}, "api usage")
	if err != nil {
		return nil, err
	}
	return decodeUsage(resp.doc, resp.header)
}

// get issues a GET through the circuit breaker and returns the decoded JSON document.
func (c *Client) get(ctx context.Context, path string, q url.Values, resource string) (any, error) {
	resp, err := c.fetch(ctx, path, q, resource)
	if err != nil {
		return nil, err
	}
	return resp.doc, nil
}

// jsonResponse is a decoded 2xx response and its headers.
type jsonResponse struct {
	doc    any
	header http.Header
}

func (c *Client) fetch(ctx context.Context, path string, q url.Values, resource string) (*jsonResponse, error) {
	u := c.factory.baseURL.JoinPath(path)
	u.RawQuery = q.Encode()

	out, err := c.factory.breaker.Execute(func() (any, error) {
		return c.do(ctx, u.String(), path, resource)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, apperrors.Transient("hubspot circuit breaker open", err)
	case err != nil:
		return nil, err
	}
	return out.(*jsonResponse), nil
}

func (c *Client) do(ctx context.Context, rawURL, path, resource string) (*jsonResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build hubspot request")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.Transient("hubspot request failed", redactURLError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	c.factory.logger.DebugContext(ctx, "hubspot response",
		"path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode/100 != 2 {
		return nil, classifyResponse(resp, resource)
	}

	var doc any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.Transient("decode hubspot response", err)
	}
	return &jsonResponse{doc: doc, header: resp.Header}, nil
}

// classifyResponse maps a non-2xx response onto the error taxonomy.
func classifyResponse(resp *http.Response, resource string) error {
	category := errorCategory(resp.Body)
	status := resp.StatusCode

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.Auth(withCategory(fmt.Sprintf("hubspot rejected the credential (status %d)", status), category))
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimited(parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
	case status == http.StatusNotFound:
		return apperrors.NotFoundf("hubspot %s not found", resource)
	case status == http.StatusRequestTimeout || status >= 500:
		return apperrors.Transient(withCategory(fmt.Sprintf("hubspot unavailable (status %d)", status), category), nil)
	default:
		return apperrors.Validation(withCategory(fmt.Sprintf("hubspot rejected the request (status %d)", status), category))
	}
}

func withCategory(msg, category string) string {
	if category == "" {
		return msg
	}
	return msg + ": " + category
}

func errorCategory(body io.Reader) string {
	var doc any
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBodyBytes)).Decode(&doc); err != nil {
		return ""
	}
	category, _ := searchString(doc, exprErrorCategory)
	return category
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Unparseable or missing values
// yield 0 so the caller's default applies.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// redactURLError drops the request URL from transport errors; query strings can carry cursors
// and the error text ends up in job records.
func redactURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}
