package resilience

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Policy combines a rate limiter, a circuit breaker and retries around
// calls to one backend. Nil fields are skipped.
type Policy struct {
	Name    string
	Limiter *rate.Limiter
	Breaker *CircuitBreaker
	Retry   RetryConfig
}

// Call runs fn under the policy. Each attempt waits for the limiter and asks
// the breaker for permission.
func Call[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	return Retry(ctx, p.Retry, p.Name, func(ctx context.Context) (T, error) {
		var zero T
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return zero, eris.Wrapf(err, "%s: rate limit wait", p.Name)
			}
		}
		if p.Breaker != nil {
			if err := p.Breaker.Allow(); err != nil {
				return zero, err
			}
		}
		val, err := fn(ctx)
		if p.Breaker != nil {
			p.Breaker.Record(err)
		}
		return val, err
	})
}
