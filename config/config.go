package config

import (
	"fmt"
	"os"
	"strings"
)

// StorageBackend selects where scan jobs and results are stored.
type StorageBackend string

const (
	// StorageBackendPostgres stores jobs and results in PostgreSQL.
	StorageBackendPostgres StorageBackend = "postgres"
	// StorageBackendMemory keeps everything in process (development and demos only).
	StorageBackendMemory StorageBackend = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for StorageBackend.
func (b *StorageBackend) UnmarshalText(text []byte) error {
	v := StorageBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case StorageBackendPostgres, StorageBackendMemory:
		*b = v
		return nil
	default:
		return fmt.Errorf("invalid StorageBackend: %q (valid options: postgres, memory)", v)
	}
}

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: API bearer authentication
//   - database.go: Database and Redis configuration
//   - http.go: HTTP server configuration
//   - hubspot.go: Source API and rate governor configuration
//   - services.go: Service mode, scan runner and reaper configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// CredentialsEncryptionKey seals access tokens stored with scan jobs.
	// Required for production, optional for development.
	CredentialsEncryptionKey string `env:"CREDENTIALS_ENCRYPTION_KEY"`

	// StorageBackend selects postgres or memory.
	StorageBackend StorageBackend `env:"STORAGE_BACKEND" envDefault:"postgres"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// API bearer authentication
	APIAuth APIAuthConfig `envPrefix:"API_AUTH_"`

	// Source system and outbound call pacing
	HubSpot  HubSpotConfig  `envPrefix:"HUBSPOT_"`
	Governor GovernorConfig `envPrefix:"GOVERNOR_"`

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http,scan-runner,reaper"`

	// Scan runner configuration
	ScanRunner ScanRunnerConfig `envPrefix:"SCAN_RUNNER_"`

	// Reaper configuration
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	if c.StorageBackend == "" {
		c.StorageBackend = StorageBackendPostgres
	}
	c.HTTP.Sanitize()
	c.Redis.Sanitize()
	c.APIAuth.Sanitize()
	c.HubSpot.Sanitize()
	c.Governor.Sanitize()
	c.ScanRunner.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// UsesPostgres reports whether the durable store is PostgreSQL.
func (c *AppConfig) UsesPostgres() bool {
	return c.StorageBackend != StorageBackendMemory
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	return c.serviceEnabled(ServiceModeHTTP)
}

// IsScanRunnerEnabled returns true if the scan runner service is enabled.
func (c *AppConfig) IsScanRunnerEnabled() bool {
	return c.serviceEnabled(ServiceModeScanRunner)
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	return c.serviceEnabled(ServiceModeReaper)
}
