package oracle

import (
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/entailgraph/internal/config"
	"github.com/sells-group/entailgraph/internal/model"
	"github.com/sells-group/entailgraph/internal/resilience"
	"github.com/sells-group/entailgraph/pkg/anthropic"
)

// Names lists the oracles New can build.
var Names = []string{"alignment", "edit_distance", "claude"}

// Deps carries the optional collaborators of New.
type Deps struct {
	// Anthropic overrides the client built from config.
	Anthropic anthropic.Client
	// Cache enables the persistent decision cache when cfg.Cache is set.
	Cache DecisionCache
}

// New builds the oracle named by cfg.Name. A misconfigured oracle is an
// error the caller must treat as fatal.
func New(cfg config.OracleConfig, ac config.AnthropicConfig, deps Deps) (Oracle, error) {
	var o Oracle
	switch cfg.Name {
	case "alignment":
		o = NewAlignment(cfg.Threshold)
	case "edit_distance":
		o = NewEditDistance(cfg.Threshold)
	case "claude":
		client := deps.Anthropic
		if client == nil {
			if ac.Key == "" {
				return nil, eris.Wrap(model.ErrOracleFailure, "oracle: claude requires anthropic.key")
			}
			client = anthropic.NewClient(ac.Key)
		}
		o = NewResilient(NewClaude(client, ac.Model, ac.MaxTokens), newPolicy(cfg))
	default:
		return nil, eris.Wrapf(model.ErrOracleFailure, "oracle: unknown oracle %q (want one of %v)", cfg.Name, Names)
	}

	if cfg.Cache && deps.Cache != nil {
		o = NewCached(o, deps.Cache)
	}
	return o, nil
}

func newPolicy(cfg config.OracleConfig) *resilience.Policy {
	p := &resilience.Policy{
		Name:    "oracle." + cfg.Name,
		Retry:   resilience.NewRetryConfig(cfg.MaxAttempts, cfg.InitialBackoffMs, cfg.MaxBackoffMs),
		Breaker: resilience.NewCircuitBreaker("oracle."+cfg.Name, cfg.FailureThreshold, time.Duration(cfg.ResetTimeoutSecs)*time.Second),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.Limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return p
}
