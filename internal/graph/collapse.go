package graph

import (
	"github.com/sells-group/entailgraph/internal/model"
)

// unionFind is a disjoint-set forest whose roots are always the smallest
// index in their set.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[x] != root {
		next := u.parent[x]
		u.parent[x] = root
		x = next
	}
	return root
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	switch {
	case ra == rb:
	case ra < rb:
		u.parent[rb] = ra
	default:
		u.parent[ra] = rb
	}
}

// Collapse merges units joined by ENTAILMENT edges in both directions with
// confidence >= minConfidence into clusters, then carries every other kept
// edge over to the cluster level, one edge per ordered cluster pair. Cycles
// longer than two are not merged. The result depends only on the graph, not
// on insertion order.
func Collapse(raw *RawGraph, minConfidence float64) *CollapsedGraph {
	units := raw.Units()
	idx := make(map[string]int, len(units))
	for i, u := range units {
		idx[u.ID] = i
	}

	entails := make(map[[2]int]bool)
	for _, e := range raw.Edges() {
		if e.Label == model.LabelEntailment && e.Confidence >= minConfidence {
			entails[[2]int{idx[e.Source], idx[e.Target]}] = true
		}
	}

	uf := newUnionFind(len(units))
	for pair := range entails {
		if entails[[2]int{pair[1], pair[0]}] {
			uf.union(pair[0], pair[1])
		}
	}

	// Roots are the smallest member index, so iterating in index order
	// numbers clusters by their smallest member ID.
	byRoot := make(map[int]int)
	var clusters []Cluster
	for i, u := range units {
		r := uf.find(i)
		ci, ok := byRoot[r]
		if !ok {
			ci = len(clusters)
			byRoot[r] = ci
			clusters = append(clusters, Cluster{ID: clusterID(ci + 1)})
		}
		clusters[ci].Members = append(clusters[ci].Members, u.ID)
	}

	g := assemble(clusters, units)

	for _, e := range raw.Edges() {
		if e.Label == model.LabelUnknown || e.Confidence < minConfidence {
			continue
		}
		cs, ct := g.memberOf[e.Source], g.memberOf[e.Target]
		if cs == ct {
			continue
		}
		_ = g.AddEdge(model.EntailmentRelation{
			Source:     cs,
			Target:     ct,
			Label:      e.Label,
			Confidence: e.Confidence,
			Origin:     e.Origin,
		})
	}
	return g
}
