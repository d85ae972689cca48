// Package limiter implements admission decisions for rate limiting. The
// Strategy contract hides the windowing algorithm, so callers can swap
// FixedWindow for SlidingWindowCounter (or anything else) without changes.
package limiter

import (
	"context"
	"errors"
	"time"
)

// Strategy decides whether a request identified by an opaque key may proceed.
// Implementations must be safe for concurrent use and must not block on
// unrelated identifiers.
type Strategy interface {
	Check(ctx context.Context, identifier string, now time.Time) (Decision, error)
}

// Decision is the outcome of a single rate limit check.
type Decision struct {
	Allowed     bool
	Limit       int
	Remaining   int           // requests left in the current window, floored at 0
	WindowReset time.Duration // time until the current window ends
	RetryAfter  time.Duration // how long to wait, nonzero only when denied
}

var (
	// ErrInvalidIdentifier indicates an empty identifier. This is a caller
	// bug, not something attributable to the remote party.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrStoreUnavailable indicates the counter store failed or timed out.
	// The caller's fail-open/fail-closed policy decides what happens next.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidConfig indicates a non-positive limit or window.
	ErrInvalidConfig = errors.New("invalid configuration")
)

const defaultStoreTimeout = 2 * time.Second

type settings struct {
	storeTimeout time.Duration
}

// Option configures a strategy.
type Option func(*settings)

// WithStoreTimeout bounds each store call so a slow backend cannot stall
// Check indefinitely. Zero disables the bound. Default is 2s.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *settings) { s.storeTimeout = d }
}

func newSettings(opts []Option) settings {
	s := settings{storeTimeout: defaultStoreTimeout}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
