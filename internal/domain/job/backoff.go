package job

import (
	"fmt"
	"strings"
	"time"
)

// BackoffStrategy selects how retry attempts are spaced.
type BackoffStrategy string

const (
	// BackoffFixed retries on the next poll after a fixed delay (zero means the next tick).
	BackoffFixed BackoffStrategy = "fixed"
	// BackoffExponential doubles the delay after every failed attempt up to a cap.
	BackoffExponential BackoffStrategy = "exponential"
)

// Valid reports whether s is a known strategy.
func (s BackoffStrategy) Valid() bool {
	return s == BackoffFixed || s == BackoffExponential
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *BackoffStrategy) UnmarshalText(text []byte) error {
	v := BackoffStrategy(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid backoff strategy: %q", string(text))
	}
	*s = v
	return nil
}

// DefaultMaxBackoff caps exponential backoff when no maximum is configured.
const DefaultMaxBackoff = 24 * time.Hour

// Backoff computes when a failed job becomes eligible again.
type Backoff struct {
	Strategy BackoffStrategy
	Base     time.Duration
	Max      time.Duration
}

// Delay returns the wait before the given attempt number (1-based) may be retried.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 || attempt < 1 {
		return 0
	}
	if b.Strategy != BackoffExponential {
		return b.Base
	}

	limit := b.Max
	if limit <= 0 {
		limit = DefaultMaxBackoff
	}
	d := b.Base
	for i := 1; i < attempt && d < limit; i++ {
		d *= 2
	}
	if d > limit {
		return limit
	}
	return d
}

// NextAttemptAt returns the time the job may be fetched again after attempt failed.
func (b Backoff) NextAttemptAt(now time.Time, attempt int) time.Time {
	return now.Add(b.Delay(attempt))
}
