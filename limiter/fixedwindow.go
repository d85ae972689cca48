package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codetesla51/rategate/store"
)

// FixedWindow counts requests in non-overlapping windows of fixed length.
// The window id is folded into the storage key, so a new window starts
// naturally when the clock crosses a boundary; there is no separate reset
// step that could race with the increment.
//
// Known tradeoff: up to 2x the limit can be admitted in a short interval
// straddling a window boundary (the tail of one window plus the head of the
// next). SlidingWindowCounter smooths this out behind the same contract.
type FixedWindow struct {
	limit        int
	window       time.Duration
	store        store.Counter
	storeTimeout time.Duration
}

func NewFixedWindow(limit int, window time.Duration, s store.Counter, opts ...Option) (*FixedWindow, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, limit)
	}
	if window < time.Second {
		return nil, fmt.Errorf("%w: window must be at least 1s, got %v", ErrInvalidConfig, window)
	}

	cfg := newSettings(opts)
	return &FixedWindow{
		limit:        limit,
		window:       window,
		store:        s,
		storeTimeout: cfg.storeTimeout,
	}, nil
}

// Check applies exactly one atomic increment per call, whatever the outcome.
// Admission is decided by the increment's return value, not by arrival time,
// so concurrent callers cannot overshoot the limit.
func (fw *FixedWindow) Check(ctx context.Context, identifier string, now time.Time) (Decision, error) {
	if identifier == "" {
		return Decision{}, ErrInvalidIdentifier
	}

	windowSecs := int64(fw.window / time.Second)
	windowID := now.Unix() / windowSecs
	key := windowKey(identifier, windowID)

	if fw.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fw.storeTimeout)
		defer cancel()
	}

	count, err := fw.store.IncrementAndGet(ctx, key, fw.window)
	if err != nil {
		return Decision{}, errors.Join(ErrStoreUnavailable, err)
	}

	reset := time.Unix((windowID+1)*windowSecs, 0).Sub(now)
	if reset < 0 {
		reset = 0
	}

	d := Decision{
		Allowed:     count <= int64(fw.limit),
		Limit:       fw.limit,
		Remaining:   int(max(0, int64(fw.limit)-count)),
		WindowReset: reset,
	}
	if !d.Allowed {
		d.RetryAfter = reset
	}
	return d, nil
}

func windowKey(identifier string, windowID int64) string {
	return fmt.Sprintf("ratelimit:%s:%d", identifier, windowID)
}
