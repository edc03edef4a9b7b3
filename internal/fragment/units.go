package fragment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entailgraph/internal/model"
)

// DefaultMaxModifiers caps the modifiers expanded per fragment (2^n variants).
const DefaultMaxModifiers = 4

// Options controls unit generation.
type Options struct {
	Window       int
	MaxModifiers int
}

// DefaultOptions returns the window and modifier cap used by the experiments.
func DefaultOptions() Options {
	return Options{Window: DefaultWindow, MaxModifiers: DefaultMaxModifiers}
}

// UnitID returns the stable identifier of a fragment, or of one of its
// reduced variants when removed is non-empty.
func UnitID(docID string, span model.Region, removed []model.Region) string {
	id := fmt.Sprintf("%s:%d-%d", docID, span.Begin, span.End)
	if len(removed) == 0 {
		return id
	}
	parts := make([]string, len(removed))
	for i, r := range removed {
		parts[i] = fmt.Sprintf("%d-%d", r.Begin, r.End)
	}
	return id + "~" + strings.Join(parts, ",")
}

// ForDocument annotates a document and turns its fragments into entailment
// units. Fragments with modifiers also yield their reduced variants, linked
// by fragment-graph edges from the fuller to the reduced text.
func ForDocument(doc *model.Document, opts Options) ([]model.EntailmentUnit, []model.EntailmentRelation, error) {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.MaxModifiers < 0 {
		opts.MaxModifiers = 0
	}

	frags, err := Annotate(doc, opts.Window)
	if err != nil {
		return nil, nil, err
	}

	var units []model.EntailmentUnit
	var edges []model.EntailmentRelation
	for _, frag := range frags {
		u, e := fragmentGraph(doc, frag, opts.MaxModifiers)
		units = append(units, u...)
		edges = append(edges, e...)
	}
	if len(units) == 0 {
		return nil, nil, eris.Wrapf(model.ErrGraphGeneration, "fragment: document %s produced no units", doc.ID)
	}
	return units, edges, nil
}

// fragmentGraph expands one fragment into its modifier-reduced variants.
func fragmentGraph(doc *model.Document, frag model.Region, maxModifiers int) ([]model.EntailmentUnit, []model.EntailmentRelation) {
	mods := modifiersIn(doc, frag)
	if len(mods) > maxModifiers {
		zap.L().Debug("truncating fragment modifiers",
			zap.String("document", doc.ID),
			zap.Stringer("fragment", frag),
			zap.Int("modifiers", len(mods)),
			zap.Int("max", maxModifiers),
		)
		mods = mods[:maxModifiers]
	}

	ids := make(map[int]string, 1<<len(mods))
	var units []model.EntailmentUnit
	for mask := 0; mask < 1<<len(mods); mask++ {
		var removed []model.Region
		for i, m := range mods {
			if mask&(1<<i) != 0 {
				removed = append(removed, m)
			}
		}
		text := reducedText(doc, frag, removed)
		if text == "" {
			continue
		}
		u := model.EntailmentUnit{
			ID:         UnitID(doc.ID, frag, removed),
			DocumentID: doc.ID,
			Span:       frag,
			Text:       text,
			Removed:    removed,
		}
		ids[mask] = u.ID
		units = append(units, u)
	}

	var edges []model.EntailmentRelation
	for mask, src := range ids {
		for i := range mods {
			if mask&(1<<i) != 0 {
				continue
			}
			dst, ok := ids[mask|1<<i]
			if !ok {
				continue
			}
			edges = append(edges, model.EntailmentRelation{
				Source:     src,
				Target:     dst,
				Label:      model.LabelEntailment,
				Confidence: 1,
				Origin:     model.OriginFragmentGraph,
			})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return units, edges
}

// modifiersIn returns the modifiers strictly inside frag, sorted and
// non-overlapping.
func modifiersIn(doc *model.Document, frag model.Region) []model.Region {
	var mods []model.Region
	for _, m := range doc.Modifiers {
		if frag.Covers(m.Region) && m.Region != frag {
			mods = append(mods, m.Region)
		}
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Less(mods[j]) })

	out := mods[:0]
	for _, m := range mods {
		if len(out) > 0 && out[len(out)-1].End > m.Begin {
			continue
		}
		out = append(out, m)
	}
	return out
}

// reducedText returns the fragment text with removed spans cut out and
// whitespace collapsed.
func reducedText(doc *model.Document, frag model.Region, removed []model.Region) string {
	var b strings.Builder
	pos := frag.Begin
	for _, r := range removed {
		b.WriteString(doc.Covered(model.Region{Begin: pos, End: r.Begin}))
		b.WriteByte(' ')
		pos = r.End
	}
	b.WriteString(doc.Covered(model.Region{Begin: pos, End: frag.End}))
	return strings.Join(strings.Fields(b.String()), " ")
}
