package evaluation

import (
	"go.uber.org/zap"

	"github.com/sells-group/entailgraph/internal/graph"
	"github.com/sells-group/entailgraph/internal/model"
)

// Measures are the scores of one evaluation.
type Measures struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Matched   int     `json:"matched"`
	Predicted int     `json:"predicted"`
	Gold      int     `json:"gold"`
}

func safeDivide(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func newMeasures(matched, predicted, gold int) Measures {
	m := Measures{Matched: matched, Predicted: predicted, Gold: gold}
	m.Precision = safeDivide(float64(matched), float64(predicted))
	m.Recall = safeDivide(float64(matched), float64(gold))
	m.F1 = safeDivide(2*m.Precision*m.Recall, m.Precision+m.Recall)
	return m
}

// EvaluateRawGraph scores the ENTAILMENT edges of a raw graph. Fragment-graph
// edges count only when includeFragmentGraphEdges is set. With
// singleClusterGold the whole gold standard is one unit; otherwise each unit
// is scored on its own fragments and the counts are summed.
func EvaluateRawGraph(g *graph.RawGraph, gold GoldStandard, includeFragmentGraphEdges, singleClusterGold bool) Measures {
	predicted := make(pairSet)
	for _, e := range g.Edges() {
		if !e.IsEntailment() {
			continue
		}
		if e.Origin == model.OriginFragmentGraph && !includeFragmentGraphEdges {
			continue
		}
		predicted.add(e.Source, e.Target)
	}
	return score(predicted, gold, singleClusterGold)
}

// EvaluateCollapsedGraph scores a collapsed graph. A cluster predicts
// entailment between all its members, and an ENTAILMENT cluster edge between
// every member pair across it.
func EvaluateCollapsedGraph(g *graph.CollapsedGraph, gold GoldStandard, singleClusterGold bool) Measures {
	predicted := make(pairSet)
	for _, c := range g.Clusters() {
		for _, a := range c.Members {
			for _, b := range c.Members {
				predicted.add(a, b)
			}
		}
	}
	for _, e := range g.Edges() {
		if !e.IsEntailment() {
			continue
		}
		src, _ := g.Cluster(e.Source)
		dst, _ := g.Cluster(e.Target)
		for _, a := range src.Members {
			for _, b := range dst.Members {
				predicted.add(a, b)
			}
		}
	}
	return score(predicted, gold, singleClusterGold)
}

// score compares predicted pairs with the gold pairs. Predicted pairs with an
// endpoint outside the unit's annotated fragments are not judged.
func score(predicted pairSet, gold GoldStandard, singleClusterGold bool) Measures {
	units := gold.Units
	if singleClusterGold {
		units = []GoldUnit{gold.Merged()}
	}

	var matched, judged, expected int
	for _, u := range units {
		annotated := make(map[string]bool)
		for _, f := range u.Fragments() {
			annotated[f] = true
		}
		goldPairs := u.pairs()
		expected += len(goldPairs)
		for p := range predicted {
			if !annotated[p[0]] || !annotated[p[1]] {
				continue
			}
			judged++
			if _, ok := goldPairs[p]; ok {
				matched++
			}
		}
	}

	m := newMeasures(matched, judged, expected)
	zap.L().Debug("evaluation scored",
		zap.Int("units", len(units)),
		zap.Int("matched", m.Matched),
		zap.Int("predicted", m.Predicted),
		zap.Int("gold", m.Gold),
	)
	return m
}
