package resilience

import (
	"errors"
	"sync"
	"time"
)

// RateLimitError represents a provider rate limit response.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "rate limit"
}

// IsRateLimit returns true when the error is a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling a provider after threshold consecutive
// tripping failures. Once the cooldown has passed a single probe is let
// through: success closes the breaker, another tripping failure reopens it.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	threshold int
	openedAt  time.Time
	cooldown  time.Duration
	trips     func(error) bool
	now       func() time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, trips: IsRateLimit, now: time.Now}
}

// SetTrips replaces the predicate deciding which errors count as failures.
// Nil restores the default, rate limits only.
func (c *CircuitBreaker) SetTrips(fn func(error) bool) {
	if fn == nil {
		fn = IsRateLimit
	}
	c.mu.Lock()
	c.trips = fn
	c.mu.Unlock()
}

// Allow reports whether a request may proceed.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if c.now().Sub(c.openedAt) < c.cooldown {
			return false
		}
		c.state = BreakerHalfOpen
		return true
	default:
		// a probe is already in flight
		return false
	}
}

func (c *CircuitBreaker) OnSuccess() {
	c.mu.Lock()
	c.state = BreakerClosed
	c.failures = 0
	c.mu.Unlock()
}

// OnError records a failed request. Errors the predicate ignores still prove
// the provider answered, so they end a probe.
func (c *CircuitBreaker) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.trips(err) {
		if c.state == BreakerHalfOpen {
			c.state = BreakerClosed
			c.failures = 0
		}
		return
	}
	c.failures++
	if c.state == BreakerHalfOpen || c.failures >= c.threshold {
		c.state = BreakerOpen
		c.openedAt = c.now()
	}
}

func (c *CircuitBreaker) State() BreakerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open reports whether the breaker is rejecting requests.
func (c *CircuitBreaker) Open() bool {
	return c.State() == BreakerOpen
}
