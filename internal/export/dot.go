package export

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"
	"github.com/rotisserie/eris"

	"github.com/sells-group/entailgraph/internal/graph"
	"github.com/sells-group/entailgraph/internal/model"
)

// Node comments carry "document|begin|end|removed" and edge comments carry
// "origin|confidence" so a DOT file can be read back. In collapsed graphs
// the group attribute names the cluster and the representative is drawn bold.

func unitAttrs(u model.EntailmentUnit) map[string]string {
	removed := make([]string, 0, len(u.Removed))
	for _, r := range u.Removed {
		removed = append(removed, strconv.Itoa(r.Begin)+"-"+strconv.Itoa(r.End))
	}
	comment := strings.Join([]string{
		u.DocumentID,
		strconv.Itoa(u.Span.Begin),
		strconv.Itoa(u.Span.End),
		strings.Join(removed, ","),
	}, "|")
	return map[string]string{
		"label":   strconv.Quote(u.Text),
		"comment": strconv.Quote(comment),
	}
}

func edgeAttrs(e model.EntailmentRelation) map[string]string {
	comment := string(e.Origin) + "|" + strconv.FormatFloat(e.Confidence, 'g', -1, 64)
	return map[string]string{
		"label":   strconv.Quote(string(e.Label)),
		"comment": strconv.Quote(comment),
	}
}

func unquote(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if !strings.HasPrefix(s, `"`) {
		return s, nil
	}
	v, err := strconv.Unquote(s)
	if err != nil {
		return "", eris.Wrapf(model.ErrDataIntegrity, "export: bad dot string %s", s)
	}
	return v, nil
}

func parseUnit(n *gographviz.Node) (model.EntailmentUnit, error) {
	id, err := unquote(n.Name)
	if err != nil {
		return model.EntailmentUnit{}, err
	}
	text, err := unquote(n.Attrs["label"])
	if err != nil {
		return model.EntailmentUnit{}, err
	}
	comment, err := unquote(n.Attrs["comment"])
	if err != nil {
		return model.EntailmentUnit{}, err
	}
	parts := strings.Split(comment, "|")
	if len(parts) != 4 {
		return model.EntailmentUnit{}, eris.Wrapf(model.ErrDataIntegrity, "export: node %s has malformed comment %q", id, comment)
	}
	begin, err1 := strconv.Atoi(parts[1])
	end, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return model.EntailmentUnit{}, eris.Wrapf(model.ErrDataIntegrity, "export: node %s has malformed span %q", id, comment)
	}
	u := model.EntailmentUnit{
		ID:         id,
		DocumentID: parts[0],
		Span:       model.Region{Begin: begin, End: end},
		Text:       text,
	}
	if parts[3] != "" {
		for _, r := range strings.Split(parts[3], ",") {
			b, e, ok := strings.Cut(r, "-")
			bi, err1 := strconv.Atoi(b)
			ei, err2 := strconv.Atoi(e)
			if !ok || err1 != nil || err2 != nil {
				return model.EntailmentUnit{}, eris.Wrapf(model.ErrDataIntegrity, "export: node %s has malformed removed span %q", id, r)
			}
			u.Removed = append(u.Removed, model.Region{Begin: bi, End: ei})
		}
	}
	return u, nil
}

func parseEdge(e *gographviz.Edge, src, dst string) (model.EntailmentRelation, error) {
	label, err := unquote(e.Attrs["label"])
	if err != nil {
		return model.EntailmentRelation{}, err
	}
	comment, err := unquote(e.Attrs["comment"])
	if err != nil {
		return model.EntailmentRelation{}, err
	}
	origin, conf, ok := strings.Cut(comment, "|")
	c, cerr := strconv.ParseFloat(conf, 64)
	if !ok || cerr != nil {
		return model.EntailmentRelation{}, eris.Wrapf(model.ErrDataIntegrity, "export: edge %s -> %s has malformed comment %q", src, dst, comment)
	}
	return model.EntailmentRelation{
		Source:     src,
		Target:     dst,
		Label:      model.ParseLabel(label),
		Confidence: c,
		Origin:     model.Origin(origin),
	}, nil
}

func writeDOT(w io.Writer, g *gographviz.Graph) error {
	if _, err := io.WriteString(w, g.String()); err != nil {
		return eris.Wrap(err, "export: write dot")
	}
	return nil
}

func readDOT(r io.Reader, kind string) (*gographviz.Graph, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "export: read dot")
	}
	parsed, err := gographviz.ParseString(string(buf))
	if err != nil {
		return nil, eris.Wrapf(model.ErrDataIntegrity, "export: parse dot: %v", err)
	}
	g := gographviz.NewGraph()
	if err := gographviz.Analyse(parsed, g); err != nil {
		return nil, eris.Wrapf(model.ErrDataIntegrity, "export: analyse dot: %v", err)
	}
	if g.Name != kind {
		return nil, eris.Wrapf(model.ErrDataIntegrity, "export: expected %s graph, got %q", kind, g.Name)
	}
	return g, nil
}

// WriteRawDOT renders a raw graph as a directed DOT multigraph.
func WriteRawDOT(w io.Writer, rg *graph.RawGraph) error {
	g := gographviz.NewGraph()
	if err := g.SetName(kindRaw); err != nil {
		return eris.Wrap(err, "export: dot name")
	}
	if err := g.SetDir(true); err != nil {
		return eris.Wrap(err, "export: dot direction")
	}
	for _, u := range rg.Units() {
		if err := g.AddNode(kindRaw, strconv.Quote(u.ID), unitAttrs(u)); err != nil {
			return eris.Wrapf(err, "export: dot node %s", u.ID)
		}
	}
	for _, e := range rg.Edges() {
		if err := g.AddEdge(strconv.Quote(e.Source), strconv.Quote(e.Target), true, edgeAttrs(e)); err != nil {
			return eris.Wrapf(err, "export: dot edge %s -> %s", e.Source, e.Target)
		}
	}
	return writeDOT(w, g)
}

// ReadRawDOT parses a graph written by WriteRawDOT.
func ReadRawDOT(r io.Reader) (*graph.RawGraph, error) {
	g, err := readDOT(r, kindRaw)
	if err != nil {
		return nil, err
	}
	rg := graph.NewRawGraph()
	for _, n := range g.Nodes.Nodes {
		u, err := parseUnit(n)
		if err != nil {
			return nil, err
		}
		if err := rg.AddUnit(u); err != nil {
			return nil, eris.Wrap(err, "export: read raw dot")
		}
	}
	for _, e := range g.Edges.Edges {
		src, err := unquote(e.Src)
		if err != nil {
			return nil, err
		}
		dst, err := unquote(e.Dst)
		if err != nil {
			return nil, err
		}
		rel, err := parseEdge(e, src, dst)
		if err != nil {
			return nil, err
		}
		if err := rg.AddEdge(rel); err != nil {
			return nil, eris.Wrap(err, "export: read raw dot")
		}
	}
	return rg, nil
}

// WriteCollapsedDOT renders a collapsed graph. Every member unit is a node
// grouped by cluster; cluster edges connect representatives.
func WriteCollapsedDOT(w io.Writer, cg *graph.CollapsedGraph) error {
	g := gographviz.NewGraph()
	if err := g.SetName(kindCollapsed); err != nil {
		return eris.Wrap(err, "export: dot name")
	}
	if err := g.SetDir(true); err != nil {
		return eris.Wrap(err, "export: dot direction")
	}
	for _, c := range cg.Clusters() {
		for _, m := range c.Members {
			u, _ := cg.Unit(m)
			attrs := unitAttrs(u)
			attrs["group"] = strconv.Quote(c.ID)
			if m == c.Representative {
				attrs["style"] = "bold"
			}
			if err := g.AddNode(kindCollapsed, strconv.Quote(m), attrs); err != nil {
				return eris.Wrapf(err, "export: dot node %s", m)
			}
		}
	}
	for _, e := range cg.Edges() {
		src, _ := cg.Cluster(e.Source)
		dst, _ := cg.Cluster(e.Target)
		if err := g.AddEdge(strconv.Quote(src.Representative), strconv.Quote(dst.Representative), true, edgeAttrs(e)); err != nil {
			return eris.Wrapf(err, "export: dot edge %s -> %s", e.Source, e.Target)
		}
	}
	return writeDOT(w, g)
}

// ReadCollapsedDOT parses a graph written by WriteCollapsedDOT.
func ReadCollapsedDOT(r io.Reader) (*graph.CollapsedGraph, error) {
	g, err := readDOT(r, kindCollapsed)
	if err != nil {
		return nil, err
	}

	var units []model.EntailmentUnit
	byCluster := make(map[string]*graph.Cluster)
	clusterOf := make(map[string]string)
	for _, n := range g.Nodes.Nodes {
		u, err := parseUnit(n)
		if err != nil {
			return nil, err
		}
		cid, err := unquote(n.Attrs["group"])
		if err != nil {
			return nil, err
		}
		if cid == "" {
			return nil, eris.Wrapf(model.ErrDataIntegrity, "export: node %s has no cluster", u.ID)
		}
		units = append(units, u)
		clusterOf[u.ID] = cid
		c, ok := byCluster[cid]
		if !ok {
			c = &graph.Cluster{ID: cid}
			byCluster[cid] = c
		}
		c.Members = append(c.Members, u.ID)
		if n.Attrs["style"] == "bold" {
			c.Representative = u.ID
		}
	}

	clusters := make([]graph.Cluster, 0, len(byCluster))
	for _, c := range byCluster {
		clusters = append(clusters, *c)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })

	cg, err := graph.NewCollapsedGraph(clusters, units)
	if err != nil {
		return nil, eris.Wrap(err, "export: read collapsed dot")
	}
	for _, e := range g.Edges.Edges {
		src, err := unquote(e.Src)
		if err != nil {
			return nil, err
		}
		dst, err := unquote(e.Dst)
		if err != nil {
			return nil, err
		}
		rel, err := parseEdge(e, clusterOf[src], clusterOf[dst])
		if err != nil {
			return nil, err
		}
		if err := cg.AddEdge(rel); err != nil {
			return nil, eris.Wrap(err, "export: read collapsed dot")
		}
	}
	return cg, nil
}
