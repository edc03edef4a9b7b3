// Package export writes and reads entailment graphs as XML and Graphviz DOT.
package export

import (
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/entailgraph/internal/corpus"
	"github.com/sells-group/entailgraph/internal/graph"
	"github.com/sells-group/entailgraph/internal/model"
)

const (
	kindRaw       = "raw"
	kindCollapsed = "collapsed"
)

type xmlGraph struct {
	XMLName  xml.Name     `xml:"entailmentGraph"`
	Kind     string       `xml:"kind,attr"`
	Nodes    []xmlNode    `xml:"node"`
	Clusters []xmlCluster `xml:"cluster,omitempty"`
	Edges    []xmlEdge    `xml:"edge"`
}

type xmlNode struct {
	ID       string         `xml:"id,attr"`
	Document string         `xml:"document,attr"`
	Begin    int            `xml:"begin,attr"`
	End      int            `xml:"end,attr"`
	Text     string         `xml:"text"`
	Removed  []model.Region `xml:"removed,omitempty"`
}

type xmlCluster struct {
	ID             string      `xml:"id,attr"`
	Representative string      `xml:"representative,attr"`
	Members        []xmlMember `xml:"member"`
}

type xmlMember struct {
	ID string `xml:"id,attr"`
}

type xmlEdge struct {
	Source     string  `xml:"source,attr"`
	Target     string  `xml:"target,attr"`
	Label      string  `xml:"label,attr"`
	Confidence float64 `xml:"confidence,attr"`
	Origin     string  `xml:"origin,attr"`
}

func toXMLNode(u model.EntailmentUnit) xmlNode {
	return xmlNode{
		ID:       u.ID,
		Document: u.DocumentID,
		Begin:    u.Span.Begin,
		End:      u.Span.End,
		Text:     u.Text,
		Removed:  u.Removed,
	}
}

func (n xmlNode) unit() model.EntailmentUnit {
	return model.EntailmentUnit{
		ID:         n.ID,
		DocumentID: n.Document,
		Span:       model.Region{Begin: n.Begin, End: n.End},
		Text:       n.Text,
		Removed:    n.Removed,
	}
}

func toXMLEdges(rs []model.EntailmentRelation) []xmlEdge {
	out := make([]xmlEdge, 0, len(rs))
	for _, r := range rs {
		out = append(out, xmlEdge{
			Source:     r.Source,
			Target:     r.Target,
			Label:      string(r.Label),
			Confidence: r.Confidence,
			Origin:     string(r.Origin),
		})
	}
	return out
}

func (e xmlEdge) relation() model.EntailmentRelation {
	return model.EntailmentRelation{
		Source:     e.Source,
		Target:     e.Target,
		Label:      model.ParseLabel(e.Label),
		Confidence: e.Confidence,
		Origin:     model.Origin(e.Origin),
	}
}

func encode(w io.Writer, doc xmlGraph) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return eris.Wrap(err, "export: write xml header")
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return eris.Wrap(err, "export: encode xml")
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return eris.Wrap(err, "export: write xml")
	}
	return nil
}

func decode(r io.Reader, kind string) (xmlGraph, error) {
	var doc xmlGraph
	if err := corpus.NewXMLDecoder(r).Decode(&doc); err != nil {
		return xmlGraph{}, eris.Wrap(err, "export: decode xml")
	}
	if doc.Kind != kind {
		return xmlGraph{}, eris.Wrapf(model.ErrDataIntegrity, "export: expected %s graph, got %q", kind, doc.Kind)
	}
	return doc, nil
}

// WriteRawXML serializes a raw graph.
func WriteRawXML(w io.Writer, g *graph.RawGraph) error {
	doc := xmlGraph{Kind: kindRaw, Edges: toXMLEdges(g.Edges())}
	for _, u := range g.Units() {
		doc.Nodes = append(doc.Nodes, toXMLNode(u))
	}
	return encode(w, doc)
}

// ReadRawXML parses a graph written by WriteRawXML.
func ReadRawXML(r io.Reader) (*graph.RawGraph, error) {
	doc, err := decode(r, kindRaw)
	if err != nil {
		return nil, err
	}
	g := graph.NewRawGraph()
	for _, n := range doc.Nodes {
		if err := g.AddUnit(n.unit()); err != nil {
			return nil, eris.Wrap(err, "export: read raw xml")
		}
	}
	for _, e := range doc.Edges {
		if err := g.AddEdge(e.relation()); err != nil {
			return nil, eris.Wrap(err, "export: read raw xml")
		}
	}
	return g, nil
}

// WriteCollapsedXML serializes a collapsed graph with its member units.
func WriteCollapsedXML(w io.Writer, g *graph.CollapsedGraph) error {
	doc := xmlGraph{Kind: kindCollapsed, Edges: toXMLEdges(g.Edges())}
	for _, u := range g.Units() {
		doc.Nodes = append(doc.Nodes, toXMLNode(u))
	}
	for _, c := range g.Clusters() {
		xc := xmlCluster{ID: c.ID, Representative: c.Representative}
		for _, m := range c.Members {
			xc.Members = append(xc.Members, xmlMember{ID: m})
		}
		doc.Clusters = append(doc.Clusters, xc)
	}
	return encode(w, doc)
}

// ReadCollapsedXML parses a graph written by WriteCollapsedXML.
func ReadCollapsedXML(r io.Reader) (*graph.CollapsedGraph, error) {
	doc, err := decode(r, kindCollapsed)
	if err != nil {
		return nil, err
	}
	units := make([]model.EntailmentUnit, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		units = append(units, n.unit())
	}
	clusters := make([]graph.Cluster, 0, len(doc.Clusters))
	for _, xc := range doc.Clusters {
		c := graph.Cluster{ID: xc.ID, Representative: xc.Representative}
		for _, m := range xc.Members {
			c.Members = append(c.Members, m.ID)
		}
		clusters = append(clusters, c)
	}

	g, err := graph.NewCollapsedGraph(clusters, units)
	if err != nil {
		return nil, eris.Wrap(err, "export: read collapsed xml")
	}
	for _, e := range doc.Edges {
		if err := g.AddEdge(e.relation()); err != nil {
			return nil, eris.Wrap(err, "export: read collapsed xml")
		}
	}
	return g, nil
}
