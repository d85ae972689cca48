package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codetesla51/rategate/store"
)

// SlidingWindowCounter estimates the request count over a rolling window by
// weighting the previous fixed window's count by how much of it still
// overlaps the rolling window. This removes most of FixedWindow's boundary
// burst at the cost of one extra store read per check.
type SlidingWindowCounter struct {
	limit        int
	window       time.Duration
	store        store.Counter
	storeTimeout time.Duration
}

func NewSlidingWindowCounter(limit int, window time.Duration, s store.Counter, opts ...Option) (*SlidingWindowCounter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, limit)
	}
	if window < time.Second {
		return nil, fmt.Errorf("%w: window must be at least 1s, got %v", ErrInvalidConfig, window)
	}

	cfg := newSettings(opts)
	return &SlidingWindowCounter{
		limit:        limit,
		window:       window,
		store:        s,
		storeTimeout: cfg.storeTimeout,
	}, nil
}

func (swc *SlidingWindowCounter) Check(ctx context.Context, identifier string, now time.Time) (Decision, error) {
	if identifier == "" {
		return Decision{}, ErrInvalidIdentifier
	}

	windowSecs := int64(swc.window / time.Second)
	windowID := now.Unix() / windowSecs

	if swc.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, swc.storeTimeout)
		defer cancel()
	}

	// The previous window's counter must outlive its own boundary to be
	// readable here, hence the doubled TTL.
	current, err := swc.store.IncrementAndGet(ctx, windowKey(identifier, windowID), 2*swc.window)
	if err != nil {
		return Decision{}, errors.Join(ErrStoreUnavailable, err)
	}
	previous, err := swc.store.Peek(ctx, windowKey(identifier, windowID-1))
	if err != nil {
		return Decision{}, errors.Join(ErrStoreUnavailable, err)
	}

	windowStart := time.Unix(windowID*windowSecs, 0)
	overlap := float64(swc.window-now.Sub(windowStart)) / float64(swc.window)
	estimate := float64(previous)*overlap + float64(current)

	reset := time.Unix((windowID+1)*windowSecs, 0).Sub(now)
	if reset < 0 {
		reset = 0
	}

	remaining := swc.limit - int(estimate)
	if remaining < 0 {
		remaining = 0
	}

	d := Decision{
		Allowed:     estimate <= float64(swc.limit),
		Limit:       swc.limit,
		Remaining:   remaining,
		WindowReset: reset,
	}
	if !d.Allowed {
		d.RetryAfter = reset
	}
	return d, nil
}
