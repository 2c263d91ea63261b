package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP control plane.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeScanRunner runs the scan workers.
	ServiceModeScanRunner ServiceMode = "scan-runner"
	// ServiceModeReaper runs the stale-job and retention sweeper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeScanRunner,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for part := range strings.SplitSeq(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeScanRunner, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, scan-runner, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ScanRunnerConfig contains scan runner and extraction engine configuration.
type ScanRunnerConfig struct {
	// Concurrency is the number of worker goroutines in this process, so it caps running scans
	// per replica.
	Concurrency int `env:"CONCURRENCY" envDefault:"4"`

	// MaxRunning caps running scans across every replica sharing the database (0 means unlimited).
	MaxRunning int `env:"MAX_RUNNING" envDefault:"0"`

	// MaxPerOrg caps running scans per organization (0 means unlimited).
	MaxPerOrg int `env:"MAX_PER_ORG" envDefault:"2"`

	// JobLease is how long a claimed scan stays owned without a heartbeat.
	JobLease time.Duration `env:"JOB_LEASE" envDefault:"2m"`

	// PollInterval is the fallback reservation tick when no wakeup arrives.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`

	// EnrichConcurrency bounds in-flight association calls per page.
	EnrichConcurrency int `env:"ENRICH_CONCURRENCY" envDefault:"4"`

	// CancelGracePeriod bounds the wait for in-flight calls after a cancel is observed.
	CancelGracePeriod time.Duration `env:"CANCEL_GRACE_PERIOD" envDefault:"10s"`

	// CancelPollInterval spaces cancel checks between items; every page boundary checks.
	CancelPollInterval time.Duration `env:"CANCEL_POLL_INTERVAL" envDefault:"1s"`
}

// Sanitize applies guardrails to scan runner configuration values.
func (s *ScanRunnerConfig) Sanitize() {
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if s.MaxPerOrg < 0 {
		s.MaxPerOrg = 0
	}
	if s.MaxRunning < 0 {
		s.MaxRunning = 0
	}
	if s.JobLease < 10*time.Second {
		s.JobLease = 10 * time.Second
	}
	if s.PollInterval < 100*time.Millisecond {
		s.PollInterval = 100 * time.Millisecond
	}
	if s.EnrichConcurrency < 1 {
		s.EnrichConcurrency = 1
	}
	if s.EnrichConcurrency > 32 {
		s.EnrichConcurrency = 32
	}
	if s.CancelGracePeriod <= 0 {
		s.CancelGracePeriod = 10 * time.Second
	}
	if s.CancelPollInterval < 0 {
		s.CancelPollInterval = 0
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// PendingMaxAge is the maximum age for pending scans before they are marked as failed.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"1h"`

	// AbandonedMaxAge is how long past lease expiry a running scan may stay unclaimed
	// before it is failed.
	AbandonedMaxAge time.Duration `env:"REAPER_ABANDONED_MAX_AGE" envDefault:"30m"`

	// CompletedMaxAge is the maximum age for completed scans (and their results) before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"720h"` // 30 days

	// FailedMaxAge is the maximum age for failed scans before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"168h"` // 7 days

	// CancelledMaxAge is the maximum age for cancelled scans before deletion.
	CancelledMaxAge time.Duration `env:"REAPER_CANCELLED_MAX_AGE" envDefault:"168h"` // 7 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.PendingMaxAge < 5*time.Minute {
		r.PendingMaxAge = 5 * time.Minute
	}
	if r.AbandonedMaxAge < 5*time.Minute {
		r.AbandonedMaxAge = 5 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}
	if r.CancelledMaxAge < 1*time.Hour {
		r.CancelledMaxAge = 1 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
