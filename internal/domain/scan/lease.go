package scan

import (
	"errors"
	"time"
)

// ErrInvalidDefaultLease indicates the configured default lease duration is not positive.
var ErrInvalidDefaultLease = errors.New("default lease must be positive")

// minLease is the shortest lease a runner may hold.
const minLease = time.Second

// LeasePolicy normalises lease durations for reservations and heartbeats.
type LeasePolicy struct {
	defaultLease time.Duration
}

// NewLeasePolicy constructs a LeasePolicy with the provided default lease duration.
func NewLeasePolicy(defaultLease time.Duration) (*LeasePolicy, error) {
	if defaultLease <= 0 {
		return nil, ErrInvalidDefaultLease
	}
	return &LeasePolicy{defaultLease: defaultLease}, nil
}

// Resolve returns the default for zero, clamps tiny values, and truncates to whole seconds.
func (p *LeasePolicy) Resolve(request time.Duration) time.Duration {
	if p == nil {
		return minLease
	}
	if request == 0 {
		request = p.defaultLease
	}
	if request < minLease {
		return minLease
	}
	return request.Truncate(time.Second)
}

// HeartbeatInterval is how often a holder renews its lease: a third of the lease.
func (p *LeasePolicy) HeartbeatInterval() time.Duration {
	return max(p.Resolve(0)/3, 100*time.Millisecond)
}
