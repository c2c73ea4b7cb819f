package llm

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/harunnryd/weathermcp/pkg/errorsx"
	"github.com/harunnryd/weathermcp/pkg/resilience"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	IsRetryable func(error) bool

	// Jitter adds up to this fraction of the delay at random.
	Jitter float64

	// Sleep replaces the context-aware wait; tests use it to skip delays.
	Sleep func(time.Duration)

	// OnRetry runs before each wait with the failed attempt number (1-based).
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = max(c.BaseDelay, 2*time.Second)
	}
	if c.IsRetryable == nil {
		c.IsRetryable = DefaultIsRetryable
	}
	return c
}

// backoff yields exponentially growing, capped delays.
type backoff struct {
	next   time.Duration
	max    time.Duration
	jitter float64
	rnd    *rand.Rand
}

func newBackoff(cfg RetryConfig) *backoff {
	return &backoff{
		next:   cfg.BaseDelay,
		max:    cfg.MaxDelay,
		jitter: cfg.Jitter,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *backoff) Next() time.Duration {
	d := b.next
	if b.next < b.max {
		b.next = min(b.next*2, b.max)
	}
	if b.jitter > 0 {
		d += time.Duration(float64(d) * b.jitter * b.rnd.Float64())
	}
	return d
}

// Retry runs fn until it succeeds, fails with a non-retryable error, or the
// attempts are exhausted. The last error is returned unchanged so callers can
// still match on its type and reason.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) (Response, error)) (Response, error) {
	cfg = cfg.withDefaults()
	b := newBackoff(cfg)
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == cfg.MaxAttempts || !cfg.IsRetryable(err) {
			break
		}
		delay := b.Next()
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if err := wait(ctx, delay, cfg.Sleep); err != nil {
			return Response{}, err
		}
	}
	return Response{}, lastErr
}

func wait(ctx context.Context, d time.Duration, sleep func(time.Duration)) error {
	if sleep != nil {
		sleep(d)
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DefaultIsRetryable retries transport failures, rate limits and 5xx responses.
// Malformed tool arguments, auth failures, model timeouts, 4xx responses and
// expired contexts are final.
func DefaultIsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case resilience.IsRateLimit(err):
		return true
	}
	switch errorsx.Reason(err) {
	case errorsx.ReasonLLMMalformedArgument, errorsx.ReasonLLMAuth, errorsx.ReasonLLMTimeout:
		return false
	}
	var ierr *InvocationError
	if errors.As(err, &ierr) && ierr.StatusCode > 0 {
		return ierr.StatusCode >= 500
	}
	return true
}

// RetryAdapter retries Generate calls of the wrapped adapter. The other
// methods pass straight through.
type RetryAdapter struct {
	LLMAdapter
	cfg RetryConfig
}

func NewRetryAdapter(inner LLMAdapter, cfg RetryConfig) *RetryAdapter {
	return &RetryAdapter{LLMAdapter: inner, cfg: cfg}
}

func (a *RetryAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	return Retry(ctx, a.cfg, func(ctx context.Context) (Response, error) {
		return a.LLMAdapter.Generate(ctx, input)
	})
}
