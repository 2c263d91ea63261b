package config

import (
	"strings"
	"time"
)

// HubSpotConfig configures the source API client.
type HubSpotConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"https://api.hubapi.com"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"30s"`
	// PortalID, when set, is used to build deal URLs.
	PortalID string `env:"PORTAL_ID"`

	// Circuit breaker: consecutive failures before opening, and open duration.
	BreakerFailures uint32        `env:"BREAKER_FAILURES" envDefault:"5"`
	BreakerTimeout  time.Duration `env:"BREAKER_TIMEOUT"  envDefault:"30s"`
}

// Sanitize applies guardrails to HubSpot configuration values.
func (c *HubSpotConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = "https://api.hubapi.com"
	}
	c.PortalID = strings.TrimSpace(c.PortalID)
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerTimeout < time.Second {
		c.BreakerTimeout = time.Second
	}
}

// GovernorConfig paces outbound calls per credential.
type GovernorConfig struct {
	// Requests per Window is the provider quota.
	Requests int           `env:"REQUESTS" envDefault:"150"`
	Window   time.Duration `env:"WINDOW"   envDefault:"10s"`
	Burst    int           `env:"BURST"    envDefault:"15"`

	BaseDelay   time.Duration `env:"BASE_DELAY"   envDefault:"1s"`
	MaxDelay    time.Duration `env:"MAX_DELAY"    envDefault:"30s"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"3"`

	MaxRateLimitHits  int           `env:"MAX_RATE_LIMIT_HITS" envDefault:"10"`
	DefaultRetryAfter time.Duration `env:"DEFAULT_RETRY_AFTER" envDefault:"1s"`
	CallTimeout       time.Duration `env:"CALL_TIMEOUT"        envDefault:"30s"`
}

// Sanitize applies guardrails to governor configuration values.
func (c *GovernorConfig) Sanitize() {
	if c.Requests < 1 {
		c.Requests = 1
	}
	if c.Window <= 0 {
		c.Window = 10 * time.Second
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.MaxRateLimitHits < 1 {
		c.MaxRateLimitHits = 1
	}
	if c.DefaultRetryAfter <= 0 {
		c.DefaultRetryAfter = time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
}
