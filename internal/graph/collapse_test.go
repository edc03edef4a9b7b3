package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entailgraph/internal/model"
)

func members(g *CollapsedGraph) [][]string {
	var out [][]string
	for _, c := range g.Clusters() {
		out = append(out, c.Members)
	}
	return out
}

func TestCollapse_MutualEntailmentMerges(t *testing.T) {
	raw := rawGraph(t, []string{"a", "b", "c"},
		entail("a", "b", 0.95),
		entail("b", "a", 0.92),
		entail("b", "c", 0.97),
	)

	g := Collapse(raw, 0.9)
	require.NoError(t, g.CheckPartition(raw))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, members(g))

	ab, _ := g.ClusterOf("a")
	c, _ := g.ClusterOf("c")
	e, ok := g.Edge(ab, c)
	require.True(t, ok)
	assert.InDelta(t, 0.97, e.Confidence, 1e-9)
	assert.False(t, g.HasEdge(c, ab))
	assert.False(t, g.HasEdge(ab, ab))
}

func TestCollapse_BelowThresholdStaysApart(t *testing.T) {
	raw := rawGraph(t, []string{"a", "b"},
		entail("a", "b", 0.95),
		entail("b", "a", 0.85),
	)
	g := Collapse(raw, 0.9)
	assert.Equal(t, 2, g.NumClusters())
	assert.Equal(t, 1, g.NumEdges())
}

func TestCollapse_NonMutualCycleNotMerged(t *testing.T) {
	raw := rawGraph(t, []string{"a", "b", "c"},
		entail("a", "b", 1),
		entail("b", "c", 1),
		entail("c", "a", 1),
	)
	g := Collapse(raw, 0.5)
	assert.Equal(t, 3, g.NumClusters())
	assert.Equal(t, 3, g.NumEdges())
}

func TestCollapse_TransitiveMergeThroughChain(t *testing.T) {
	raw := rawGraph(t, []string{"a", "b", "c", "d"},
		entail("a", "b", 1), entail("b", "a", 1),
		entail("b", "c", 1), entail("c", "b", 1),
		nonEntail("d", "a", 0.8),
	)
	g := Collapse(raw, 0.9)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d"}}, members(g))
	assert.Equal(t, 0, g.NumEdges(), "edge below threshold dropped")

	g = Collapse(raw, 0.5)
	d, _ := g.ClusterOf("d")
	a, _ := g.ClusterOf("a")
	e, ok := g.Edge(d, a)
	require.True(t, ok)
	assert.Equal(t, model.LabelNonEntailment, e.Label)
}

func TestCollapse_KeepsMaxConfidenceEdge(t *testing.T) {
	raw := rawGraph(t, []string{"a", "b", "x"},
		entail("a", "b", 1), entail("b", "a", 1),
		entail("a", "x", 0.6),
		nonEntail("b", "x", 0.8),
	)
	g := Collapse(raw, 0.5)
	ab, _ := g.ClusterOf("a")
	x, _ := g.ClusterOf("x")
	e, ok := g.Edge(ab, x)
	require.True(t, ok)
	assert.InDelta(t, 0.8, e.Confidence, 1e-9)
	assert.Equal(t, model.LabelNonEntailment, e.Label)
}

func TestCollapse_Deterministic(t *testing.T) {
	edges := []model.EntailmentRelation{
		entail("n3", "n1", 1), entail("n1", "n3", 1),
		entail("n2", "n4", 1), entail("n4", "n2", 1),
		entail("n1", "n2", 0.7),
	}
	ids := []string{"n1", "n2", "n3", "n4"}
	first := Collapse(rawGraph(t, ids, edges...), 0.5)

	reversed := make([]model.EntailmentRelation, len(edges))
	for i, e := range edges {
		reversed[len(edges)-1-i] = e
	}
	second := Collapse(rawGraph(t, []string{"n4", "n3", "n2", "n1"}, reversed...), 0.5)

	assert.Equal(t, first.Clusters(), second.Clusters())
	assert.Equal(t, first.Edges(), second.Edges())
	assert.Equal(t, "C0001", first.Clusters()[0].ID)
	assert.Equal(t, []string{"n1", "n3"}, first.Clusters()[0].Members)
}

func TestCollapse_Representative(t *testing.T) {
	raw := NewRawGraph()
	require.NoError(t, raw.AddUnit(unit("a", "bill high")))
	require.NoError(t, raw.AddUnit(unit("b", "my bill is high")))
	require.NoError(t, raw.AddUnit(unit("c", "bill is high!!!")))
	for _, p := range [][2]string{{"a", "b"}, {"b", "a"}, {"b", "c"}, {"c", "b"}} {
		require.NoError(t, raw.AddEdge(entail(p[0], p[1], 1)))
	}
	g := Collapse(raw, 0.5)
	require.Equal(t, 1, g.NumClusters())
	assert.Equal(t, "b", g.Clusters()[0].Representative, "longest text, smallest id on tie")
}

func TestCollapse_EmptyGraph(t *testing.T) {
	g := Collapse(NewRawGraph(), 0.5)
	assert.Equal(t, 0, g.NumClusters())
	assert.Equal(t, 0, ApplyTransitiveClosure(g, false))
}

func TestNewCollapsedGraph_Validation(t *testing.T) {
	units := []model.EntailmentUnit{unit("a", "a"), unit("b", "b")}

	_, err := NewCollapsedGraph([]Cluster{{ID: "C1", Members: []string{"a"}}}, units)
	assert.Error(t, err, "b unclustered")

	_, err = NewCollapsedGraph([]Cluster{{ID: "C1", Members: []string{"a", "b"}}, {ID: "C2", Members: []string{"b"}}}, units)
	assert.Error(t, err, "b twice")

	_, err = NewCollapsedGraph([]Cluster{{ID: "C1", Members: []string{"a", "b", "z"}}}, units)
	assert.Error(t, err, "unknown member")

	g, err := NewCollapsedGraph([]Cluster{{ID: "C1", Members: []string{"b", "a"}}}, units)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.Clusters()[0].Members)
}
