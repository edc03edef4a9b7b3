package graph

import (
	"go.uber.org/zap"

	"github.com/sells-group/entailgraph/internal/model"
)

// widest holds best path scores between clusters, where a path scores the
// minimum confidence along it.
type widest struct {
	reach [][]bool
	score [][]float64
}

func newWidest(n int) *widest {
	w := &widest{reach: make([][]bool, n), score: make([][]float64, n)}
	for i := range w.reach {
		w.reach[i] = make([]bool, n)
		w.score[i] = make([]float64, n)
	}
	return w
}

func (w *widest) relax(s, t int, v float64) {
	if !w.reach[s][t] || v > w.score[s][t] {
		w.reach[s][t] = true
		w.score[s][t] = v
	}
}

// close runs Floyd–Warshall over max-min path scores.
func (w *widest) close() {
	n := len(w.reach)
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			if !w.reach[i][k] {
				continue
			}
			for j := 0; j < n; j++ {
				if w.reach[k][j] {
					w.relax(i, j, min(w.score[i][k], w.score[k][j]))
				}
			}
		}
	}
}

// ApplyTransitiveClosure adds an edge X -> Z for every pair of clusters
// joined by a directed path but not by an edge. A pair joined by a path of
// ENTAILMENT edges gets an ENTAILMENT edge scored by the best such path.
// In non-strict mode paths may also run through other edges; a pair reached
// only that way gets a NONENTAILMENT edge scored by its best path, so it is
// never counted as predicted entailment. Existing edges are never removed or
// changed, and a second call adds nothing. It returns the number of edges
// added.
func ApplyTransitiveClosure(g *CollapsedGraph, strict bool) int {
	n := len(g.clusters)
	if n == 0 {
		return 0
	}

	entails := newWidest(n)
	var reachable *widest
	if !strict {
		reachable = newWidest(n)
	}
	for _, e := range g.edges {
		s, t := g.index[e.Source], g.index[e.Target]
		if e.Label == model.LabelEntailment {
			entails.relax(s, t, e.Confidence)
		}
		if reachable != nil {
			reachable.relax(s, t, e.Confidence)
		}
	}
	entails.close()
	if reachable != nil {
		reachable.close()
	}

	added := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			var label model.Label
			var conf float64
			switch {
			case entails.reach[i][j]:
				label, conf = model.LabelEntailment, entails.score[i][j]
			case reachable != nil && reachable.reach[i][j]:
				label, conf = model.LabelNonEntailment, reachable.score[i][j]
			default:
				continue
			}
			src, dst := g.clusters[i].ID, g.clusters[j].ID
			if g.HasEdge(src, dst) {
				continue
			}
			g.edges[[2]string{src, dst}] = model.EntailmentRelation{
				Source:     src,
				Target:     dst,
				Label:      label,
				Confidence: conf,
				Origin:     model.OriginClosure,
			}
			added++
		}
	}

	zap.L().Debug("transitive closure applied",
		zap.Bool("strict", strict),
		zap.Int("clusters", n),
		zap.Int("added", added),
	)
	return added
}
