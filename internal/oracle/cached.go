package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/sells-group/entailgraph/internal/model"
)

// DecisionCache persists oracle decisions across runs. GetDecision returns
// nil without error on a miss.
type DecisionCache interface {
	GetDecision(ctx context.Context, key string) (*model.Decision, error)
	SetDecision(ctx context.Context, key string, d model.Decision) error
}

// CacheKey identifies a decision by oracle fingerprint and ordered text pair.
func CacheKey(fingerprint, text, hypothesis string) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(hypothesis))
	return hex.EncodeToString(h.Sum(nil))
}

// Cached consults a DecisionCache before asking the wrapped oracle. Cache
// errors are logged and never fail a decision.
type Cached struct {
	inner Oracle
	cache DecisionCache
}

// NewCached wraps inner with cache.
func NewCached(inner Oracle, cache DecisionCache) *Cached {
	return &Cached{inner: inner, cache: cache}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) Fingerprint() string { return Fingerprint(c.inner) }

func (c *Cached) Decide(ctx context.Context, text, hypothesis string) (model.Decision, error) {
	key := CacheKey(Fingerprint(c.inner), text, hypothesis)

	hit, err := c.cache.GetDecision(ctx, key)
	if err != nil {
		zap.L().Warn("decision cache read failed", zap.String("oracle", c.inner.Name()), zap.Error(err))
	} else if hit != nil {
		return *hit, nil
	}

	d, err := c.inner.Decide(ctx, text, hypothesis)
	if err != nil {
		return model.Decision{}, err
	}
	if err := c.cache.SetDecision(ctx, key, d); err != nil {
		zap.L().Warn("decision cache write failed", zap.String("oracle", c.inner.Name()), zap.Error(err))
	}
	return d, nil
}
