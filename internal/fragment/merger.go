// Package fragment derives entailment fragments from keyword annotations.
package fragment

import (
	"regexp"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entailgraph/internal/model"
)

// DefaultWindow is the number of word tokens taken on each side of a keyword.
const DefaultWindow = 6

var wordPattern = regexp.MustCompile(`\w`)

// isWord reports whether a token contains at least one word character.
// Punctuation-only tokens are included in a window but do not count toward it.
func isWord(t model.Token) bool {
	return wordPattern.MatchString(t.Text)
}

// MakeFragment extends a keyword by up to window word tokens on each side,
// never leaving the sentence. Tokens must be sorted by offset.
func MakeFragment(kw, sentence model.Region, tokens []model.Token, window int) (model.Region, error) {
	if window < 0 {
		return model.Region{}, eris.Errorf("fragment: negative window %d", window)
	}
	if !sentence.Covers(kw) {
		return model.Region{}, eris.Wrapf(model.ErrGraphGeneration, "fragment: keyword %s outside sentence %s", kw, sentence)
	}

	first, last := -1, -1
	for i, t := range tokens {
		if kw.Covers(t.Region) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return model.Region{}, eris.Wrapf(model.ErrGraphGeneration, "fragment: keyword %s covers no tokens", kw)
	}

	frag := model.Region{Begin: tokens[first].Begin, End: tokens[last].End}
	frag.Begin = extendBackward(tokens, first, sentence, window, frag.Begin)
	frag.End = extendForward(tokens, last, sentence, window, frag.End)
	return frag, nil
}

// extendBackward walks left from idx taking need tokens inside the sentence.
// Every punctuation-only token taken adds one more token to the next round.
func extendBackward(tokens []model.Token, idx int, sentence model.Region, need, begin int) int {
	for round := 0; need > 0 && round <= len(tokens); round++ {
		skipped := 0
		next := idx
		for j := idx - 1; j >= 0 && j >= idx-need; j-- {
			t := tokens[j]
			if !sentence.Covers(t.Region) {
				break
			}
			begin = t.Begin
			next = j
			if !isWord(t) {
				skipped++
			}
		}
		if next == idx {
			break
		}
		idx, need = next, skipped
	}
	return begin
}

func extendForward(tokens []model.Token, idx int, sentence model.Region, need, end int) int {
	for round := 0; need > 0 && round <= len(tokens); round++ {
		skipped := 0
		next := idx
		for j := idx + 1; j < len(tokens) && j <= idx+need; j++ {
			t := tokens[j]
			if !sentence.Covers(t.Region) {
				break
			}
			end = t.End
			next = j
			if !isWord(t) {
				skipped++
			}
		}
		if next == idx {
			break
		}
		idx, need = next, skipped
	}
	return end
}

// FilterFragments merges intersecting or touching regions into their union
// until no two regions intersect. The result is sorted and independent of
// input order. At most len(regions) passes are made.
func FilterFragments(regions []model.Region) []model.Region {
	out := make([]model.Region, len(regions))
	copy(out, regions)

	for pass := 0; pass < len(regions); pass++ {
		merged, changed := mergePass(out)
		out = merged
		if !changed {
			break
		}
	}
	return out
}

func mergePass(regions []model.Region) ([]model.Region, bool) {
	if len(regions) < 2 {
		return regions, false
	}
	sorted := make([]model.Region, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	out := make([]model.Region, 0, len(sorted))
	cur := sorted[0]
	changed := false
	for _, r := range sorted[1:] {
		if cur.Intersects(r) {
			cur = cur.Union(r)
			changed = true
			continue
		}
		out = append(out, cur)
		cur = r
	}
	out = append(out, cur)
	return out, changed
}

// Annotate derives the merged fragment regions of a document. Documents that
// already carry fragment annotations keep them. A keyword that cannot be
// turned into a fragment is logged and skipped.
func Annotate(doc *model.Document, window int) ([]model.Region, error) {
	if len(doc.Fragments) > 0 {
		return FilterFragments(doc.Fragments), nil
	}
	if len(doc.Tokens) == 0 || len(doc.Sentences) == 0 || len(doc.Keywords) == 0 {
		return nil, eris.Wrapf(model.ErrMissingAnnotationData,
			"fragment: document %s has %d tokens, %d sentences, %d keywords",
			doc.ID, len(doc.Tokens), len(doc.Sentences), len(doc.Keywords))
	}

	log := zap.L().With(zap.String("document", doc.ID))
	var frags []model.Region
	for _, kw := range doc.Keywords {
		sentence, ok := coveringSentence(doc.Sentences, kw.Region)
		if !ok {
			log.Warn("keyword outside any sentence", zap.Stringer("keyword", kw.Region))
			continue
		}
		frag, err := MakeFragment(kw.Region, sentence, doc.Tokens, window)
		if err != nil {
			log.Warn("keyword fragment failed", zap.Stringer("keyword", kw.Region), zap.Error(err))
			continue
		}
		frags = append(frags, frag)
	}
	if len(frags) == 0 {
		return nil, eris.Wrapf(model.ErrGraphGeneration, "fragment: document %s yielded no fragments", doc.ID)
	}
	return FilterFragments(frags), nil
}

func coveringSentence(sentences []model.Sentence, r model.Region) (model.Region, bool) {
	for _, s := range sentences {
		if s.Covers(r) {
			return s.Region, true
		}
	}
	return model.Region{}, false
}
