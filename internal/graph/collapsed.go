package graph

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/entailgraph/internal/model"
)

// Cluster is a set of mutually entailing units.
type Cluster struct {
	ID             string   `json:"id"`
	Members        []string `json:"members"`
	Representative string   `json:"representative"`
}

// CollapsedGraph has one node per cluster and at most one edge per ordered
// cluster pair. Edge Source and Target hold cluster IDs.
type CollapsedGraph struct {
	clusters []Cluster
	index    map[string]int
	memberOf map[string]string
	units    map[string]model.EntailmentUnit
	edges    map[[2]string]model.EntailmentRelation
}

// NewCollapsedGraph assembles a collapsed graph from clusters and the units
// they reference. Every member must be a known unit and every unit must
// belong to exactly one cluster.
func NewCollapsedGraph(clusters []Cluster, units []model.EntailmentUnit) (*CollapsedGraph, error) {
	known := make(map[string]bool, len(units))
	for _, u := range units {
		known[u.ID] = true
	}
	ids := make(map[string]bool, len(clusters))
	owner := make(map[string]string)
	for _, c := range clusters {
		if ids[c.ID] {
			return nil, eris.Wrapf(model.ErrDataIntegrity, "graph: duplicate cluster %s", c.ID)
		}
		ids[c.ID] = true
		if len(c.Members) == 0 {
			return nil, eris.Wrapf(model.ErrDataIntegrity, "graph: empty cluster %s", c.ID)
		}
		for _, m := range c.Members {
			if !known[m] {
				return nil, eris.Wrapf(model.ErrDataIntegrity, "graph: cluster %s references unknown unit %s", c.ID, m)
			}
			if prev, ok := owner[m]; ok {
				return nil, eris.Wrapf(model.ErrDataIntegrity, "graph: unit %s in clusters %s and %s", m, prev, c.ID)
			}
			owner[m] = c.ID
		}
	}
	for id := range known {
		if _, ok := owner[id]; !ok {
			return nil, eris.Wrapf(model.ErrDataIntegrity, "graph: unit %s in no cluster", id)
		}
	}
	return assemble(clusters, units), nil
}

// assemble builds the graph without validation.
func assemble(clusters []Cluster, units []model.EntailmentUnit) *CollapsedGraph {
	g := &CollapsedGraph{
		index:    make(map[string]int, len(clusters)),
		memberOf: make(map[string]string, len(units)),
		units:    make(map[string]model.EntailmentUnit, len(units)),
		edges:    make(map[[2]string]model.EntailmentRelation),
	}
	for _, u := range units {
		g.units[u.ID] = u
	}
	for _, c := range clusters {
		members := append([]string(nil), c.Members...)
		sort.Strings(members)
		c.Members = members
		for _, m := range members {
			g.memberOf[m] = c.ID
		}
		if c.Representative == "" {
			c.Representative = g.representative(members)
		}
		g.index[c.ID] = len(g.clusters)
		g.clusters = append(g.clusters, c)
	}
	return g
}

// representative picks the longest member text, ties broken by smallest ID.
func (g *CollapsedGraph) representative(members []string) string {
	best := ""
	for _, m := range members {
		if best == "" || len(g.units[m].Text) > len(g.units[best].Text) {
			best = m
		}
	}
	return best
}

// AddEdge inserts an edge between two clusters. An existing edge for the same
// ordered pair is kept unless the new one is more confident.
func (g *CollapsedGraph) AddEdge(e model.EntailmentRelation) error {
	if e.Source == e.Target {
		return eris.Wrapf(model.ErrDataIntegrity, "graph: cluster self loop on %s", e.Source)
	}
	if _, ok := g.index[e.Source]; !ok {
		return eris.Wrapf(model.ErrDataIntegrity, "graph: unknown cluster %s", e.Source)
	}
	if _, ok := g.index[e.Target]; !ok {
		return eris.Wrapf(model.ErrDataIntegrity, "graph: unknown cluster %s", e.Target)
	}
	k := [2]string{e.Source, e.Target}
	if prev, ok := g.edges[k]; ok && !better(e, prev) {
		return nil
	}
	g.edges[k] = e
	return nil
}

// better reports whether a should replace b for the same cluster pair.
func better(a, b model.EntailmentRelation) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Label == model.LabelEntailment && b.Label != model.LabelEntailment
}

// HasEdge reports whether an edge source -> target exists.
func (g *CollapsedGraph) HasEdge(source, target string) bool {
	_, ok := g.edges[[2]string{source, target}]
	return ok
}

// Edge returns the edge for an ordered cluster pair.
func (g *CollapsedGraph) Edge(source, target string) (model.EntailmentRelation, bool) {
	e, ok := g.edges[[2]string{source, target}]
	return e, ok
}

// Edges returns all cluster edges sorted by source and target.
func (g *CollapsedGraph) Edges() []model.EntailmentRelation {
	out := make([]model.EntailmentRelation, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	sortRelations(out)
	return out
}

// Clusters returns the clusters in creation order.
func (g *CollapsedGraph) Clusters() []Cluster {
	out := make([]Cluster, len(g.clusters))
	copy(out, g.clusters)
	return out
}

// Cluster returns a cluster by ID.
func (g *CollapsedGraph) Cluster(id string) (Cluster, bool) {
	i, ok := g.index[id]
	if !ok {
		return Cluster{}, false
	}
	return g.clusters[i], true
}

// ClusterOf returns the cluster ID holding a unit.
func (g *CollapsedGraph) ClusterOf(unitID string) (string, bool) {
	c, ok := g.memberOf[unitID]
	return c, ok
}

// Unit returns a member unit by ID.
func (g *CollapsedGraph) Unit(id string) (model.EntailmentUnit, bool) {
	u, ok := g.units[id]
	return u, ok
}

// Units returns every member unit sorted by ID.
func (g *CollapsedGraph) Units() []model.EntailmentUnit {
	out := make([]model.EntailmentUnit, 0, len(g.units))
	for _, u := range g.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NumClusters returns the node count.
func (g *CollapsedGraph) NumClusters() int { return len(g.clusters) }

// NumEdges returns the edge count.
func (g *CollapsedGraph) NumEdges() int { return len(g.edges) }

// CheckPartition verifies that every unit of raw sits in exactly one cluster.
func (g *CollapsedGraph) CheckPartition(raw *RawGraph) error {
	seen := 0
	for _, u := range raw.Units() {
		if _, ok := g.memberOf[u.ID]; !ok {
			return eris.Wrapf(model.ErrDataIntegrity, "graph: unit %s not clustered", u.ID)
		}
		seen++
	}
	if seen != len(g.memberOf) {
		return eris.Wrapf(model.ErrDataIntegrity, "graph: %d clustered units, raw graph has %d", len(g.memberOf), seen)
	}
	return nil
}

func clusterID(n int) string {
	return fmt.Sprintf("C%04d", n)
}
