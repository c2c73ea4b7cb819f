package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	calls := 0
	p := NewRetryPolicy(3, time.Millisecond)
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryPolicyHonorsRetryable(t *testing.T) {
	calls := 0
	final := errors.New("404")
	p := NewRetryPolicy(3, time.Millisecond)
	p.Retryable = func(err error) bool { return !errors.Is(err, final) }
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return final
	})
	if !errors.Is(err, final) || calls != 1 {
		t.Fatalf("expected single attempt with final error, got %d calls err=%v", calls, err)
	}
}

func TestRetryPolicyStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := NewRetryPolicy(5, time.Hour)
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(context.Context) error {
			calls++
			return errors.New("down")
		})
	}()
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("retry did not stop after cancel")
	}
}

func TestCircuitBreakerOpensOnRateLimits(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Hour)
	cb.OnError(errors.New("not a rate limit"))
	if cb.Open() {
		t.Fatalf("non rate-limit errors must not open the breaker")
	}
	cb.OnError(RateLimitError{Provider: "aoai"})
	cb.OnError(RateLimitError{Provider: "aoai"})
	if !cb.Open() {
		t.Fatalf("expected breaker open after threshold")
	}
	cb.OnSuccess()
	if cb.Open() {
		t.Fatalf("expected breaker closed after success")
	}
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { return now }

	cb.OnError(RateLimitError{})
	if cb.Allow() {
		t.Fatalf("expected open breaker to deny")
	}
	now = now.Add(2 * time.Minute)
	if !cb.Allow() {
		t.Fatalf("expected a probe after cooldown")
	}
	if cb.State() != BreakerHalfOpen || cb.Allow() {
		t.Fatalf("expected a single probe while half open, state %s", cb.State())
	}
	cb.OnError(RateLimitError{})
	if cb.State() != BreakerOpen {
		t.Fatalf("failed probe must reopen, got %s", cb.State())
	}
	now = now.Add(2 * time.Minute)
	cb.Allow()
	cb.OnError(errors.New("unauthorized"))
	if cb.State() != BreakerClosed {
		t.Fatalf("non-tripping answer ends the probe, got %s", cb.State())
	}
}

func TestCircuitBreakerCustomTrips(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	cb.SetTrips(func(error) bool { return true })
	cb.OnError(errors.New("upstream 503"))
	if !cb.Open() {
		t.Fatalf("expected custom predicate to trip the breaker")
	}
}
