package graph

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entailgraph/internal/model"
	"github.com/sells-group/entailgraph/internal/oracle"
)

// containsOracle says text entails hypothesis when it contains it.
func containsOracle(calls *atomic.Int64) oracle.Oracle {
	return oracle.Func{Label: "contains", Fn: func(_ context.Context, text, hyp string) (model.Decision, error) {
		calls.Add(1)
		if strings.Contains(text, hyp) {
			return model.Decision{Label: model.LabelEntailment, Confidence: 0.9}, nil
		}
		return model.Decision{Label: model.LabelNonEntailment, Confidence: 0.6}, nil
	}}
}

func TestBuilder_AllOrderedPairs(t *testing.T) {
	var calls atomic.Int64
	units := []model.EntailmentUnit{
		unit("u1", "my bill is high"),
		unit("u2", "bill is high"),
		unit("u3", "the app crashes"),
	}

	for _, conc := range []int{1, 4} {
		calls.Store(0)
		b := NewBuilder(containsOracle(&calls), BuildOptions{MinConfidence: 0.5, Concurrency: conc})
		g, stats, err := b.Build(context.Background(), units, nil)
		require.NoError(t, err)

		assert.Equal(t, int64(6), calls.Load())
		assert.Equal(t, int64(6), stats.Pairs)
		assert.Equal(t, 6, g.NumEdges())
		e, ok := g.Edge("u1", "u2", model.OriginOracle)
		require.True(t, ok)
		assert.Equal(t, model.LabelEntailment, e.Label)
		e, ok = g.Edge("u2", "u1", model.OriginOracle)
		require.True(t, ok)
		assert.Equal(t, model.LabelNonEntailment, e.Label)
	}
}

func TestBuilder_MinConfidenceAndUnknown(t *testing.T) {
	o := oracle.Func{Label: "fixed", Fn: func(_ context.Context, text, _ string) (model.Decision, error) {
		if text == "a" {
			return model.Decision{Label: model.LabelUnknown, Confidence: 1}, nil
		}
		return model.Decision{Label: model.LabelEntailment, Confidence: 0.3}, nil
	}}
	units := []model.EntailmentUnit{unit("a", "a"), unit("b", "b")}

	g, _, err := NewBuilder(o, BuildOptions{MinConfidence: 0.5}).Build(context.Background(), units, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.NumEdges())

	g, _, err = NewBuilder(o, BuildOptions{MinConfidence: 0.3}).Build(context.Background(), units, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, g.NumEdges(), "UNKNOWN never becomes an edge")
}

func TestBuilder_MemoizesDuplicateTexts(t *testing.T) {
	var calls atomic.Int64
	units := []model.EntailmentUnit{
		unit("d1:0-4", "same"),
		unit("d2:0-4", "same"),
		unit("d3:0-5", "other"),
	}
	_, stats, err := NewBuilder(containsOracle(&calls), BuildOptions{Concurrency: 2}).Build(context.Background(), units, nil)
	require.NoError(t, err)
	// Distinct ordered text pairs: (same,same) (same,other) (other,same).
	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, int64(3), stats.Calls)
	assert.Equal(t, int64(6), stats.Pairs)
}

func TestBuilder_FailuresAreSkipped(t *testing.T) {
	o := oracle.Func{Label: "failing", Fn: func(_ context.Context, text, _ string) (model.Decision, error) {
		if text == "bad" {
			return model.Decision{}, errors.New("backend down")
		}
		return model.Decision{Label: model.LabelEntailment, Confidence: 1.5}, nil
	}}
	units := []model.EntailmentUnit{unit("x", "bad"), unit("y", "good"), unit("z", "fine")}

	g, stats, err := NewBuilder(o, BuildOptions{}).Build(context.Background(), units, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.NumEdges(), "out-of-range confidence counts as failure")
	assert.Equal(t, int64(6), stats.Failures)
	assert.Equal(t, 3, g.NumUnits())
}

func TestBuilder_TimeoutIsPerPairFailure(t *testing.T) {
	o := oracle.Func{Label: "slow", Fn: func(ctx context.Context, text, _ string) (model.Decision, error) {
		if text == "slow" {
			<-ctx.Done()
			return model.Decision{}, ctx.Err()
		}
		return model.Decision{Label: model.LabelEntailment, Confidence: 1}, nil
	}}
	units := []model.EntailmentUnit{unit("s", "slow"), unit("f", "fast")}

	g, stats, err := NewBuilder(o, BuildOptions{CallTimeout: 10 * time.Millisecond}).Build(context.Background(), units, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Failures)
	_, ok := g.Edge("f", "s", model.OriginOracle)
	assert.True(t, ok)
}

func TestBuilder_CancelReturnsPartialGraph(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int64
	o := oracle.Func{Label: "cancelling", Fn: func(context.Context, string, string) (model.Decision, error) {
		if calls.Add(1) == 2 {
			cancel()
		}
		return model.Decision{Label: model.LabelEntailment, Confidence: 1}, nil
	}}
	units := []model.EntailmentUnit{unit("a", "a"), unit("b", "b"), unit("c", "c"), unit("d", "d")}

	g, _, err := NewBuilder(o, BuildOptions{Concurrency: 1}).Build(ctx, units, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, g)
	assert.Less(t, g.NumEdges(), 12)
	assert.Equal(t, 4, g.NumUnits())
}

func TestBuilder_FragmentEdges(t *testing.T) {
	var calls atomic.Int64
	units := []model.EntailmentUnit{unit("full", "the old car"), unit("core", "the car")}
	fg := model.EntailmentRelation{Source: "full", Target: "core", Label: model.LabelEntailment, Confidence: 1, Origin: model.OriginFragmentGraph}

	g, _, err := NewBuilder(containsOracle(&calls), BuildOptions{MinConfidence: 0.95}).Build(context.Background(), units, []model.EntailmentRelation{fg})
	require.NoError(t, err)
	assert.Equal(t, 1, g.NumEdges())
	_, ok := g.Edge("full", "core", model.OriginFragmentGraph)
	assert.True(t, ok)
}

func TestBuilder_StatsArePerBuild(t *testing.T) {
	var calls atomic.Int64
	units := []model.EntailmentUnit{unit("u1", "my bill is high"), unit("u2", "bill is high"), unit("u3", "the app crashes")}
	b := NewBuilder(containsOracle(&calls), BuildOptions{Concurrency: 1})

	_, first, err := b.Build(context.Background(), units, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(6), first.Calls)
	assert.Zero(t, first.MemoHits)

	g, second, err := b.Build(context.Background(), units, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(6), second.Pairs)
	assert.Zero(t, second.Calls, "decisions are reused")
	assert.Equal(t, int64(6), second.MemoHits)
	assert.Equal(t, 6, g.NumEdges())
	assert.Equal(t, int64(6), calls.Load())
}

func TestBuilder_CancelledCallsAreRetriedNextBuild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int64
	o := oracle.Func{Label: "cancelling", Fn: func(ctx context.Context, _, _ string) (model.Decision, error) {
		if calls.Add(1) == 2 {
			cancel()
			return model.Decision{}, ctx.Err()
		}
		return model.Decision{Label: model.LabelEntailment, Confidence: 1}, nil
	}}
	units := []model.EntailmentUnit{unit("a", "a"), unit("b", "b"), unit("c", "c"), unit("d", "d")}
	b := NewBuilder(o, BuildOptions{Concurrency: 1})

	partial, stats, err := b.Build(ctx, units, nil)
	require.Error(t, err)
	assert.Zero(t, stats.Failures, "cancellation is not an oracle failure")
	assert.Equal(t, 1, partial.NumEdges())

	g, stats, err := b.Build(context.Background(), units, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Failures)
	assert.Equal(t, int64(11), stats.Calls)
	assert.Equal(t, int64(1), stats.MemoHits)
	assert.Equal(t, 12, g.NumEdges())
}
