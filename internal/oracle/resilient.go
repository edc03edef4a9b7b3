package oracle

import (
	"context"

	"github.com/sells-group/entailgraph/internal/model"
	"github.com/sells-group/entailgraph/internal/resilience"
)

// Resilient runs another oracle under a rate limit, circuit breaker and
// retry policy.
type Resilient struct {
	inner  Oracle
	policy *resilience.Policy
}

// NewResilient wraps inner with policy.
func NewResilient(inner Oracle, policy *resilience.Policy) *Resilient {
	return &Resilient{inner: inner, policy: policy}
}

func (r *Resilient) Name() string { return r.inner.Name() }

func (r *Resilient) Fingerprint() string { return Fingerprint(r.inner) }

func (r *Resilient) Decide(ctx context.Context, text, hypothesis string) (model.Decision, error) {
	return resilience.Call(ctx, r.policy, func(ctx context.Context) (model.Decision, error) {
		return r.inner.Decide(ctx, text, hypothesis)
	})
}
