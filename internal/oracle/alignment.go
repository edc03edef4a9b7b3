package oracle

import (
	"context"

	"github.com/sells-group/entailgraph/internal/model"
)

// Alignment scores how many hypothesis content words are aligned to a word
// of the text. A text covering its hypothesis entails it.
type Alignment struct {
	threshold float64
}

// NewAlignment returns an alignment oracle that labels ENTAILMENT when the
// coverage reaches threshold.
func NewAlignment(threshold float64) *Alignment {
	return &Alignment{threshold: threshold}
}

func (a *Alignment) Name() string { return "alignment" }

func (a *Alignment) Fingerprint() string { return thresholdFingerprint(a.Name(), a.threshold) }

func (a *Alignment) Decide(ctx context.Context, text, hypothesis string) (model.Decision, error) {
	if err := ctx.Err(); err != nil {
		return model.Decision{}, err
	}
	hyp := contentTokens(hypothesis)
	if len(hyp) == 0 {
		return model.Decision{Label: model.LabelUnknown}, nil
	}

	vocab := make(map[string]bool)
	for _, t := range contentTokens(text) {
		vocab[t] = true
	}
	aligned := 0
	for _, h := range hyp {
		if vocab[h] {
			aligned++
		}
	}
	return verdict(float64(aligned)/float64(len(hyp)), a.threshold), nil
}
