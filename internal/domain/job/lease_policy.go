// Package job holds the pure policies that govern job claiming and retry.
package job

import (
	"errors"
	"time"
)

// ErrInvalidDefaultLease indicates the configured default lease duration is not positive.
var ErrInvalidDefaultLease = errors.New("default lease must be positive")

const (
	// MinClaimLease is the shortest lease a claim may carry.
	MinClaimLease = 5 * time.Second
	// MaxClaimLease bounds how long a crashed worker can hold a job hostage.
	MaxClaimLease = time.Hour
)

// LeaseSource identifies how a lease duration was resolved.
type LeaseSource string

const (
	// LeaseSourceExplicit indicates the caller supplied a usable duration.
	LeaseSourceExplicit LeaseSource = "explicit"
	// LeaseSourceDefault indicates the default duration was used.
	LeaseSourceDefault LeaseSource = "default"
	// LeaseSourceClamped indicates the requested duration was pulled into [MinClaimLease, MaxClaimLease].
	LeaseSourceClamped LeaseSource = "clamped"
)

// LeasePolicy normalises claim lease durations.
type LeasePolicy struct {
	defaultLease time.Duration
}

// NewLeasePolicy constructs a LeasePolicy with the provided default lease duration.
// The default itself is clamped into the supported range.
func NewLeasePolicy(defaultLease time.Duration) (*LeasePolicy, error) {
	if defaultLease <= 0 {
		return nil, ErrInvalidDefaultLease
	}
	d, _ := clampLease(defaultLease)
	return &LeasePolicy{defaultLease: d}, nil
}

// Default returns the configured default lease duration.
func (p *LeasePolicy) Default() time.Duration {
	if p == nil {
		return 0
	}
	return p.defaultLease
}

// LeaseDecision captures the outcome of resolving a lease request.
type LeaseDecision struct {
	Lease     time.Duration
	Source    LeaseSource
	Requested time.Duration
}

// UsedDefault reports whether the policy fell back to the default lease.
func (d LeaseDecision) UsedDefault() bool {
	return d.Source == LeaseSourceDefault
}

// Clamped reports whether the requested value was clamped.
func (d LeaseDecision) Clamped() bool {
	return d.Source == LeaseSourceClamped
}

// ExpiresAt returns the claim expiry for a claim taken at now.
func (d LeaseDecision) ExpiresAt(now time.Time) time.Time {
	return now.Add(d.Lease)
}

// Resolve normalises the requested duration. Zero selects the default.
func (p *LeasePolicy) Resolve(request time.Duration) LeaseDecision {
	decision := LeaseDecision{Requested: request}
	if p == nil {
		decision.Lease = MinClaimLease
		decision.Source = LeaseSourceDefault
		return decision
	}

	switch {
	case request == 0:
		decision.Lease = p.defaultLease
		decision.Source = LeaseSourceDefault
	case request < 0:
		decision.Lease = MinClaimLease
		decision.Source = LeaseSourceClamped
	default:
		lease, clamped := clampLease(request)
		decision.Lease = lease
		decision.Source = LeaseSourceExplicit
		if clamped {
			decision.Source = LeaseSourceClamped
		}
	}
	return decision
}

func clampLease(d time.Duration) (time.Duration, bool) {
	d = d.Truncate(time.Second)
	switch {
	case d < MinClaimLease:
		return MinClaimLease, true
	case d > MaxClaimLease:
		return MaxClaimLease, true
	default:
		return d, false
	}
}
