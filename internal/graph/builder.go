package graph

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/entailgraph/internal/model"
	"github.com/sells-group/entailgraph/internal/oracle"
)

// BuildOptions controls raw graph construction.
type BuildOptions struct {
	// MinConfidence is the lowest confidence an oracle edge needs to be kept.
	MinConfidence float64
	// Concurrency bounds the number of in-flight oracle calls. Default: 1.
	Concurrency int
	// CallTimeout bounds a single oracle call. Zero means no timeout.
	CallTimeout time.Duration
}

// BuildStats reports what happened during a build.
type BuildStats struct {
	Pairs    int64 `json:"pairs"`
	Calls    int64 `json:"calls"`
	MemoHits int64 `json:"memo_hits"`
	Failures int64 `json:"failures"`
	Edges    int64 `json:"edges"`
}

type memoEntry struct {
	decision model.Decision
	err      error
}

// Builder asks an oracle about every ordered pair of units and assembles the
// raw graph. Decisions are memoized per ordered text pair, so duplicate
// texts cost one call, including across Build calls on the same Builder.
// Build calls must not overlap.
type Builder struct {
	oracle oracle.Oracle
	opts   BuildOptions

	group singleflight.Group
	mu    sync.RWMutex
	memo  map[[2]string]memoEntry

	calls    atomic.Int64
	hits     atomic.Int64
	failures atomic.Int64
}

// NewBuilder creates a Builder for the given oracle.
func NewBuilder(o oracle.Oracle, opts BuildOptions) *Builder {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Builder{
		oracle: o,
		opts:   opts,
		memo:   make(map[[2]string]memoEntry),
	}
}

// Build creates the raw graph over units. Fragment-graph edges are added as
// given. Per-pair oracle failures are logged and skipped. When ctx is
// cancelled the graph built so far is returned with the context error.
func (b *Builder) Build(ctx context.Context, units []model.EntailmentUnit, fragmentEdges []model.EntailmentRelation) (*RawGraph, BuildStats, error) {
	log := zap.L().With(zap.String("oracle", b.oracle.Name()))
	start := time.Now()
	calls0, hits0, failures0 := b.calls.Load(), b.hits.Load(), b.failures.Load()

	g := NewRawGraph()
	for _, u := range units {
		if err := g.AddUnit(u); err != nil {
			return nil, BuildStats{}, err
		}
	}
	for _, e := range fragmentEdges {
		if err := g.AddEdge(e); err != nil {
			return nil, BuildStats{}, eris.Wrap(err, "graph: add fragment edge")
		}
	}

	var (
		mu    sync.Mutex
		pairs int64
		kept  atomic.Int64
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.opts.Concurrency)

outer:
	for i := range units {
		for j := range units {
			if i == j {
				continue
			}
			if ctx.Err() != nil {
				break outer
			}
			src, dst := units[i], units[j]
			pairs++
			eg.Go(func() error {
				d, ok := b.decide(egCtx, log, src, dst)
				if !ok || d.Label == model.LabelUnknown || d.Confidence < b.opts.MinConfidence {
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				if err := g.AddEdge(model.EntailmentRelation{
					Source:     src.ID,
					Target:     dst.ID,
					Label:      d.Label,
					Confidence: d.Confidence,
					Origin:     model.OriginOracle,
				}); err != nil {
					log.Warn("edge rejected", zap.String("source", src.ID), zap.String("target", dst.ID), zap.Error(err))
					return nil
				}
				kept.Add(1)
				return nil
			})
		}
	}
	_ = eg.Wait()

	stats := BuildStats{
		Pairs:    pairs,
		Calls:    b.calls.Load() - calls0,
		MemoHits: b.hits.Load() - hits0,
		Failures: b.failures.Load() - failures0,
		Edges:    kept.Load(),
	}
	log.Info("raw graph built",
		zap.Int("units", g.NumUnits()),
		zap.Int("edges", g.NumEdges()),
		zap.Int64("pairs", stats.Pairs),
		zap.Int64("oracle_calls", stats.Calls),
		zap.Int64("failures", stats.Failures),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err := ctx.Err(); err != nil {
		return g, stats, eris.Wrap(err, "graph: build cancelled")
	}
	return g, stats, nil
}

// decide returns the memoized decision for (src, dst), asking the oracle at
// most once per ordered text pair.
func (b *Builder) decide(ctx context.Context, log *zap.Logger, src, dst model.EntailmentUnit) (model.Decision, bool) {
	if ctx.Err() != nil {
		return model.Decision{}, false
	}
	key := [2]string{src.Text, dst.Text}

	b.mu.RLock()
	entry, ok := b.memo[key]
	b.mu.RUnlock()
	if ok {
		b.hits.Add(1)
	} else {
		v, _, _ := b.group.Do(src.Text+"\x00"+dst.Text, func() (any, error) {
			b.mu.RLock()
			cached, done := b.memo[key]
			b.mu.RUnlock()
			if done {
				return cached, nil
			}
			e := b.call(ctx, src.Text, dst.Text)
			if e.err != nil && ctx.Err() != nil {
				// Cancelled, not failed: leave the pair for a later build.
				return e, nil
			}
			b.mu.Lock()
			b.memo[key] = e
			b.mu.Unlock()
			return e, nil
		})
		entry = v.(memoEntry)
	}

	if entry.err != nil && ctx.Err() != nil {
		return model.Decision{}, false
	}
	if entry.err != nil {
		b.failures.Add(1)
		log.Warn("oracle decision failed, skipping pair",
			zap.String("source", src.ID),
			zap.String("target", dst.ID),
			zap.Error(entry.err),
		)
		return model.Decision{}, false
	}
	return entry.decision, true
}

func (b *Builder) call(ctx context.Context, text, hypothesis string) memoEntry {
	b.calls.Add(1)
	callCtx := ctx
	if b.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.opts.CallTimeout)
		defer cancel()
	}

	d, err := b.oracle.Decide(callCtx, text, hypothesis)
	if err != nil {
		return memoEntry{err: eris.Wrap(model.ErrOracleFailure, err.Error())}
	}
	if err := d.Validate(); err != nil {
		return memoEntry{err: eris.Wrap(model.ErrOracleFailure, err.Error())}
	}
	return memoEntry{decision: d}
}
