package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/entailgraph/internal/model"
)

func unit(id, text string) model.EntailmentUnit {
	return model.EntailmentUnit{ID: id, DocumentID: "d", Span: model.Region{Begin: 0, End: len(text)}, Text: text}
}

func entail(src, dst string, conf float64) model.EntailmentRelation {
	return model.EntailmentRelation{Source: src, Target: dst, Label: model.LabelEntailment, Confidence: conf, Origin: model.OriginOracle}
}

func nonEntail(src, dst string, conf float64) model.EntailmentRelation {
	return model.EntailmentRelation{Source: src, Target: dst, Label: model.LabelNonEntailment, Confidence: conf, Origin: model.OriginOracle}
}

// rawGraph builds a graph over units named by ids with the given edges.
func rawGraph(t *testing.T, ids []string, edges ...model.EntailmentRelation) *RawGraph {
	t.Helper()
	g := NewRawGraph()
	for _, id := range ids {
		require.NoError(t, g.AddUnit(unit(id, "text "+id)))
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e))
	}
	return g
}
