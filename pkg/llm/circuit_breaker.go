package llm

import (
	"context"
	"sync"
	"time"

	"github.com/harunnryd/weathermcp/pkg/errorsx"
	"github.com/harunnryd/weathermcp/pkg/metrics"
	"github.com/harunnryd/weathermcp/pkg/resilience"
)

// CircuitBreakerAdapter guards a provider with a resilience.CircuitBreaker
// and reports breaker transitions as metrics events.
type CircuitBreakerAdapter struct {
	inner   LLMAdapter
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer

	mu   sync.Mutex
	last resilience.BreakerState
}

func NewCircuitBreakerAdapter(inner LLMAdapter, breaker *resilience.CircuitBreaker) *CircuitBreakerAdapter {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerAdapter{inner: inner, breaker: breaker, obs: metrics.NoopObserver{}, last: breaker.State()}
}

func (a *CircuitBreakerAdapter) Name() string { return a.inner.Name() }

func (a *CircuitBreakerAdapter) SetObserver(obs metrics.Observer) { a.obs = metrics.OrNoop(obs) }

func (a *CircuitBreakerAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	if !a.breaker.Allow() {
		a.record(metrics.EventBreakerDenied, nil)
		return Response{}, NewInvocationError(a.Name(), errorsx.ReasonLLMRateLimit, 0,
			resilience.RateLimitError{Provider: a.Name(), Message: "circuit open"})
	}
	resp, err := a.inner.Generate(ctx, input)
	if err != nil {
		if resilience.IsRateLimit(err) {
			a.record(metrics.EventRateLimit, nil)
		}
		a.breaker.OnError(err)
	} else {
		a.breaker.OnSuccess()
	}
	a.observeTransition()
	return resp, err
}

func (a *CircuitBreakerAdapter) MapTools(tools []Tool) (any, error) {
	return a.inner.MapTools(tools)
}

func (a *CircuitBreakerAdapter) ToProviderFormat(ctx Context) (any, error) {
	return a.inner.ToProviderFormat(ctx)
}

func (a *CircuitBreakerAdapter) FromProviderFormat(raw any) (Response, error) {
	return a.inner.FromProviderFormat(raw)
}

func (a *CircuitBreakerAdapter) observeTransition() {
	state := a.breaker.State()
	a.mu.Lock()
	prev := a.last
	a.last = state
	a.mu.Unlock()
	switch {
	case state == prev:
	case state == resilience.BreakerOpen:
		a.record(metrics.EventBreakerOpen, map[string]any{"from": prev.String()})
	case state == resilience.BreakerClosed:
		a.record(metrics.EventBreakerClose, map[string]any{"from": prev.String()})
	}
}

func (a *CircuitBreakerAdapter) record(name string, fields map[string]any) {
	a.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{
			metrics.TagProvider: a.inner.Name(),
			"component":         "llm",
		},
		Fields: fields,
	})
}
