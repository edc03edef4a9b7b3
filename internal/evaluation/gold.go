// Package evaluation scores entailment graphs against a human-annotated
// gold standard.
package evaluation

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/entailgraph/internal/model"
)

// GoldEdge is a directed entailment between two gold clusters.
type GoldEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GoldUnit is one independently annotated set of fragments, partitioned into
// clusters of mutually entailing fragments.
type GoldUnit struct {
	Name     string              `json:"name"`
	Clusters map[string][]string `json:"clusters"`
	Edges    []GoldEdge          `json:"edges"`
}

// GoldStandard is the full annotation.
type GoldStandard struct {
	Units []GoldUnit `json:"units"`
}

// Validate checks that clusters partition the fragments and that edges
// refer to known clusters.
func (u GoldUnit) Validate() error {
	owner := make(map[string]string)
	for cid, frags := range u.Clusters {
		if len(frags) == 0 {
			return eris.Wrapf(model.ErrDataIntegrity, "evaluation: unit %s cluster %s is empty", u.Name, cid)
		}
		for _, f := range frags {
			if prev, ok := owner[f]; ok {
				if prev == cid {
					return eris.Wrapf(model.ErrDataIntegrity, "evaluation: unit %s fragment %s listed twice in cluster %s", u.Name, f, cid)
				}
				return eris.Wrapf(model.ErrDataIntegrity, "evaluation: unit %s fragment %s in clusters %s and %s", u.Name, f, prev, cid)
			}
			owner[f] = cid
		}
	}
	for _, e := range u.Edges {
		if _, ok := u.Clusters[e.From]; !ok {
			return eris.Wrapf(model.ErrDataIntegrity, "evaluation: unit %s edge from unknown cluster %s", u.Name, e.From)
		}
		if _, ok := u.Clusters[e.To]; !ok {
			return eris.Wrapf(model.ErrDataIntegrity, "evaluation: unit %s edge to unknown cluster %s", u.Name, e.To)
		}
	}
	return nil
}

// Fragments returns the annotated fragment IDs, sorted.
func (u GoldUnit) Fragments() []string {
	var out []string
	for _, frags := range u.Clusters {
		out = append(out, frags...)
	}
	sort.Strings(out)
	return out
}

// Merged folds every unit into one, prefixing cluster IDs with the unit name.
func (g GoldStandard) Merged() GoldUnit {
	merged := GoldUnit{Name: "all", Clusters: make(map[string][]string)}
	for _, u := range g.Units {
		for cid, frags := range u.Clusters {
			merged.Clusters[u.Name+"/"+cid] = append([]string(nil), frags...)
		}
		for _, e := range u.Edges {
			merged.Edges = append(merged.Edges, GoldEdge{From: u.Name + "/" + e.From, To: u.Name + "/" + e.To})
		}
	}
	return merged
}

type pair [2]string

type pairSet map[pair]struct{}

func (s pairSet) add(a, b string) {
	if a != b {
		s[pair{a, b}] = struct{}{}
	}
}

// pairs expands a gold unit into ordered fragment pairs that entail: every
// ordered pair inside a cluster plus every member pair across a cluster edge.
func (u GoldUnit) pairs() pairSet {
	out := make(pairSet)
	for _, frags := range u.Clusters {
		for _, a := range frags {
			for _, b := range frags {
				out.add(a, b)
			}
		}
	}
	for _, e := range u.Edges {
		for _, a := range u.Clusters[e.From] {
			for _, b := range u.Clusters[e.To] {
				out.add(a, b)
			}
		}
	}
	return out
}
