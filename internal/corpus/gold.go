package corpus

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entailgraph/internal/evaluation"
	"github.com/sells-group/entailgraph/internal/model"
)

type xmlFragmentRef struct {
	ID string `xml:"id,attr"`
}

type xmlCluster struct {
	ID        string           `xml:"id,attr"`
	Fragments []xmlFragmentRef `xml:"fragment"`
}

type xmlGoldEdge struct {
	From string `xml:"from,attr"`
	To   string `xml:"to,attr"`
}

// xmlGoldUnit is one <unit> element of a gold-standard file:
//
//	<goldStandard>
//	  <unit name="u1">
//	    <cluster id="a"><fragment id="d1:0-12"/></cluster>
//	    <edge from="a" to="b"/>
//	  </unit>
//	</goldStandard>
type xmlGoldUnit struct {
	Name     string        `xml:"name,attr"`
	Clusters []xmlCluster  `xml:"cluster"`
	Edges    []xmlGoldEdge `xml:"edge"`
}

func (x xmlGoldUnit) toGold() (evaluation.GoldUnit, error) {
	if x.Name == "" {
		return evaluation.GoldUnit{}, eris.Wrap(model.ErrDataIntegrity, "corpus: gold unit without name")
	}
	u := evaluation.GoldUnit{Name: x.Name, Clusters: make(map[string][]string, len(x.Clusters))}
	for _, c := range x.Clusters {
		if c.ID == "" {
			return evaluation.GoldUnit{}, eris.Wrapf(model.ErrDataIntegrity, "corpus: gold unit %s has a cluster without id", x.Name)
		}
		if _, dup := u.Clusters[c.ID]; dup {
			return evaluation.GoldUnit{}, eris.Wrapf(model.ErrDataIntegrity, "corpus: gold unit %s repeats cluster %s", x.Name, c.ID)
		}
		ids := make([]string, 0, len(c.Fragments))
		for _, f := range c.Fragments {
			ids = append(ids, f.ID)
		}
		u.Clusters[c.ID] = ids
	}
	for _, e := range x.Edges {
		u.Edges = append(u.Edges, evaluation.GoldEdge{From: e.From, To: e.To})
	}
	if err := u.Validate(); err != nil {
		return evaluation.GoldUnit{}, err
	}
	return u, nil
}

// ReadGoldStandard decodes gold units from r. Units that are malformed are
// skipped and reported.
func ReadGoldStandard(ctx context.Context, r io.Reader) (evaluation.GoldStandard, []Skip, error) {
	var gold evaluation.GoldStandard
	var skips []Skip
	seen := make(map[string]bool)

	err := EachXMLElement(ctx, r, "unit", func(x xmlGoldUnit) error {
		u, err := x.toGold()
		if err == nil && seen[u.Name] {
			err = eris.Wrapf(model.ErrDataIntegrity, "corpus: duplicate gold unit %s", u.Name)
		}
		if err != nil {
			zap.L().Warn("skipping gold unit", zap.String("unit", x.Name), zap.Error(err))
			skips = append(skips, Skip{Item: x.Name, Err: err})
			return nil
		}
		seen[u.Name] = true
		gold.Units = append(gold.Units, u)
		return nil
	})
	if err != nil {
		return evaluation.GoldStandard{}, nil, eris.Wrap(err, "corpus: read gold standard")
	}
	if len(gold.Units) == 0 {
		return evaluation.GoldStandard{}, skips, eris.Wrap(model.ErrMissingAnnotationData, "corpus: gold standard has no usable units")
	}
	return gold, skips, nil
}

// LoadGoldStandard reads a gold-standard XML file.
func LoadGoldStandard(ctx context.Context, path string) (evaluation.GoldStandard, []Skip, error) {
	f, err := os.Open(path)
	if err != nil {
		return evaluation.GoldStandard{}, nil, eris.Wrapf(err, "corpus: open %s", path)
	}
	defer f.Close()
	return ReadGoldStandard(ctx, f)
}
