package oracle

import (
	"context"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/sells-group/entailgraph/internal/model"
)

// EditDistance scores entailment by the character edits needed to turn the
// text into the hypothesis. Deletions up to the length difference are free,
// so a text that only adds material to its hypothesis scores 1.
type EditDistance struct {
	threshold float64
}

// NewEditDistance returns an edit-distance oracle.
func NewEditDistance(threshold float64) *EditDistance {
	return &EditDistance{threshold: threshold}
}

func (e *EditDistance) Name() string { return "edit_distance" }

func (e *EditDistance) Fingerprint() string { return thresholdFingerprint(e.Name(), e.threshold) }

func (e *EditDistance) Decide(ctx context.Context, text, hypothesis string) (model.Decision, error) {
	if err := ctx.Err(); err != nil {
		return model.Decision{}, err
	}
	t, h := normalize(text), normalize(hypothesis)
	hl := utf8.RuneCountInString(h)
	if hl == 0 {
		return model.Decision{Label: model.LabelUnknown}, nil
	}

	dist := levenshtein.ComputeDistance(t, h)
	free := max(utf8.RuneCountInString(t)-hl, 0)
	cost := float64(dist-free) / float64(hl)
	return verdict(1-cost, e.threshold), nil
}
