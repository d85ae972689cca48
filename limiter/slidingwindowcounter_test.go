package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSlidingWindowCounterCutoff(t *testing.T) {
	swc, err := NewSlidingWindowCounter(5, time.Minute, newMemoryStore(t))
	if err != nil {
		t.Fatalf("NewSlidingWindowCounter failed: %v", err)
	}

	// No previous window: behaves like a fixed window
	for i := 0; i < 5; i++ {
		d, err := swc.Check(context.Background(), "user1", windowStart)
		if err != nil {
			t.Fatalf("call %d: Check failed: %v", i+1, err)
		}
		if !d.Allowed {
			t.Errorf("call %d should be allowed", i+1)
		}
	}

	d, err := swc.Check(context.Background(), "user1", windowStart)
	if err != nil {
		t.Fatalf("6th call: Check failed: %v", err)
	}
	if d.Allowed {
		t.Error("6th call should be denied")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("6th call: retry after should be positive, got %v", d.RetryAfter)
	}
}

func TestSlidingWindowCounterSmoothsBoundary(t *testing.T) {
	swc, err := NewSlidingWindowCounter(5, time.Minute, newMemoryStore(t))
	if err != nil {
		t.Fatalf("NewSlidingWindowCounter failed: %v", err)
	}

	// Exhaust the first window
	for i := 0; i < 5; i++ {
		d, err := swc.Check(context.Background(), "user1", windowStart.Add(30*time.Second))
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d in first window should be allowed", i+1)
		}
	}

	// 1s past the boundary a fixed window would start fresh; the weighted
	// previous count still dominates, so this must be denied.
	d, err := swc.Check(context.Background(), "user1", windowStart.Add(61*time.Second))
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if d.Allowed {
		t.Error("request just past the boundary should be denied")
	}

	// Near the end of the second window the previous window barely counts.
	d, err = swc.Check(context.Background(), "user1", windowStart.Add(119*time.Second))
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !d.Allowed {
		t.Error("request late in the second window should be allowed")
	}
}

func TestSlidingWindowCounterIndependentIdentifiers(t *testing.T) {
	swc, err := NewSlidingWindowCounter(2, time.Minute, newMemoryStore(t))
	if err != nil {
		t.Fatalf("NewSlidingWindowCounter failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := swc.Check(context.Background(), "10.0.0.1", windowStart); err != nil {
			t.Fatalf("Check failed: %v", err)
		}
	}

	d, err := swc.Check(context.Background(), "10.0.0.2", windowStart)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !d.Allowed {
		t.Error("identifier B should be unaffected by identifier A")
	}
}

func TestSlidingWindowCounterInvalidIdentifier(t *testing.T) {
	swc, err := NewSlidingWindowCounter(5, time.Minute, newMemoryStore(t))
	if err != nil {
		t.Fatalf("NewSlidingWindowCounter failed: %v", err)
	}

	_, err = swc.Check(context.Background(), "", windowStart)
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("got %v, want ErrInvalidIdentifier", err)
	}
}

func TestSlidingWindowCounterStoreFailure(t *testing.T) {
	swc, err := NewSlidingWindowCounter(5, time.Minute, failingCounter{})
	if err != nil {
		t.Fatalf("NewSlidingWindowCounter failed: %v", err)
	}

	_, err = swc.Check(context.Background(), "user1", windowStart)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("got %v, want ErrStoreUnavailable", err)
	}
}

func TestSlidingWindowCounterInvalidConfig(t *testing.T) {
	s := newMemoryStore(t)

	if _, err := NewSlidingWindowCounter(0, time.Minute, s); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("zero limit: got %v, want ErrInvalidConfig", err)
	}
	if _, err := NewSlidingWindowCounter(5, 0, s); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("zero window: got %v, want ErrInvalidConfig", err)
	}
}
