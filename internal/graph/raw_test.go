package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entailgraph/internal/model"
)

func TestRawGraph_AddEdgeValidation(t *testing.T) {
	g := rawGraph(t, []string{"a", "b"})

	assert.True(t, errors.Is(g.AddEdge(entail("a", "a", 1)), model.ErrDataIntegrity))
	assert.True(t, errors.Is(g.AddEdge(entail("a", "zz", 1)), model.ErrDataIntegrity))
	assert.True(t, errors.Is(g.AddUnit(unit("a", "dup")), model.ErrDataIntegrity))
}

func TestRawGraph_OneEdgePerOrigin(t *testing.T) {
	g := rawGraph(t, []string{"a", "b"})
	require.NoError(t, g.AddEdge(entail("a", "b", 0.4)))
	require.NoError(t, g.AddEdge(entail("a", "b", 0.8)))
	require.NoError(t, g.AddEdge(entail("a", "b", 0.6)))
	fg := entail("a", "b", 1)
	fg.Origin = model.OriginFragmentGraph
	require.NoError(t, g.AddEdge(fg))

	assert.Equal(t, 2, g.NumEdges())
	e, ok := g.Edge("a", "b", model.OriginOracle)
	require.True(t, ok)
	assert.InDelta(t, 0.8, e.Confidence, 1e-9)
	assert.Len(t, g.OutEdges("a"), 2)
	assert.Empty(t, g.OutEdges("b"))
}

func TestRawGraph_FilterDoesNotMutate(t *testing.T) {
	g := rawGraph(t, []string{"a", "b", "c"},
		entail("a", "b", 0.95),
		entail("b", "c", 0.5),
	)

	f := g.Filter(0.9)
	assert.Equal(t, 3, f.NumUnits())
	assert.Equal(t, 1, f.NumEdges())
	assert.Equal(t, 2, g.NumEdges())

	_, ok := f.Edge("b", "c", model.OriginOracle)
	assert.False(t, ok)
}

func TestRawGraph_EdgesSorted(t *testing.T) {
	g := rawGraph(t, []string{"a", "b", "c"},
		entail("c", "a", 1),
		entail("a", "c", 1),
		entail("a", "b", 1),
	)
	edges := g.Edges()
	require.Len(t, edges, 3)
	assert.Equal(t, [2]string{"a", "b"}, [2]string{edges[0].Source, edges[0].Target})
	assert.Equal(t, [2]string{"a", "c"}, [2]string{edges[1].Source, edges[1].Target})
	assert.Equal(t, [2]string{"c", "a"}, [2]string{edges[2].Source, edges[2].Target})
}
