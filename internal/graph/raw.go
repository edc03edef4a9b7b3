// Package graph holds the raw and collapsed entailment graphs and the
// algorithms that build, collapse and close them.
package graph

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/entailgraph/internal/model"
)

type edgeKey struct {
	source, target string
	origin         model.Origin
}

// RawGraph is a directed multigraph of entailment units. Between two units
// there is at most one edge per origin. A RawGraph is not safe for
// concurrent mutation.
type RawGraph struct {
	units map[string]model.EntailmentUnit
	edges map[edgeKey]model.EntailmentRelation
	out   map[string][]edgeKey
}

// NewRawGraph returns an empty graph.
func NewRawGraph() *RawGraph {
	return &RawGraph{
		units: make(map[string]model.EntailmentUnit),
		edges: make(map[edgeKey]model.EntailmentRelation),
		out:   make(map[string][]edgeKey),
	}
}

// AddUnit inserts a node. Unit IDs must be unique.
func (g *RawGraph) AddUnit(u model.EntailmentUnit) error {
	if u.ID == "" {
		return eris.Wrap(model.ErrDataIntegrity, "graph: unit without id")
	}
	if _, ok := g.units[u.ID]; ok {
		return eris.Wrapf(model.ErrDataIntegrity, "graph: duplicate unit %s", u.ID)
	}
	g.units[u.ID] = u
	return nil
}

// AddEdge inserts a relation between two known units. A second edge with the
// same endpoints and origin replaces the first only if it is more confident.
func (g *RawGraph) AddEdge(e model.EntailmentRelation) error {
	if e.Source == e.Target {
		return eris.Wrapf(model.ErrDataIntegrity, "graph: self loop on %s", e.Source)
	}
	if _, ok := g.units[e.Source]; !ok {
		return eris.Wrapf(model.ErrDataIntegrity, "graph: unknown source %s", e.Source)
	}
	if _, ok := g.units[e.Target]; !ok {
		return eris.Wrapf(model.ErrDataIntegrity, "graph: unknown target %s", e.Target)
	}
	if e.Origin == "" {
		e.Origin = model.OriginOracle
	}

	k := edgeKey{source: e.Source, target: e.Target, origin: e.Origin}
	if prev, ok := g.edges[k]; ok {
		if e.Confidence > prev.Confidence {
			g.edges[k] = e
		}
		return nil
	}
	g.edges[k] = e
	g.out[e.Source] = append(g.out[e.Source], k)
	return nil
}

// Unit returns the unit with the given ID.
func (g *RawGraph) Unit(id string) (model.EntailmentUnit, bool) {
	u, ok := g.units[id]
	return u, ok
}

// Units returns all units sorted by ID.
func (g *RawGraph) Units() []model.EntailmentUnit {
	out := make([]model.EntailmentUnit, 0, len(g.units))
	for _, u := range g.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edge returns the edge with the given endpoints and origin.
func (g *RawGraph) Edge(source, target string, origin model.Origin) (model.EntailmentRelation, bool) {
	e, ok := g.edges[edgeKey{source: source, target: target, origin: origin}]
	return e, ok
}

// Edges returns all edges sorted by source, target and origin.
func (g *RawGraph) Edges() []model.EntailmentRelation {
	out := make([]model.EntailmentRelation, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	sortRelations(out)
	return out
}

// OutEdges returns the edges leaving a unit.
func (g *RawGraph) OutEdges(id string) []model.EntailmentRelation {
	keys := g.out[id]
	out := make([]model.EntailmentRelation, 0, len(keys))
	for _, k := range keys {
		out = append(out, g.edges[k])
	}
	sortRelations(out)
	return out
}

// NumUnits returns the node count.
func (g *RawGraph) NumUnits() int { return len(g.units) }

// NumEdges returns the edge count.
func (g *RawGraph) NumEdges() int { return len(g.edges) }

// Filter returns a new graph with every unit and only the edges whose
// confidence is at least minConfidence. The receiver is not modified.
func (g *RawGraph) Filter(minConfidence float64) *RawGraph {
	f := NewRawGraph()
	for id, u := range g.units {
		f.units[id] = u
	}
	for _, e := range g.Edges() {
		if e.Confidence >= minConfidence {
			_ = f.AddEdge(e)
		}
	}
	return f
}

func sortRelations(rs []model.EntailmentRelation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Source != rs[j].Source {
			return rs[i].Source < rs[j].Source
		}
		if rs[i].Target != rs[j].Target {
			return rs[i].Target < rs[j].Target
		}
		return rs[i].Origin < rs[j].Origin
	})
}
