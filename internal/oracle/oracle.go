// Package oracle decides directional entailment between two texts.
package oracle

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/entailgraph/internal/model"
)

// Oracle returns a labelled, scored decision for whether text entails
// hypothesis. Implementations must be safe for concurrent use.
type Oracle interface {
	Name() string
	Decide(ctx context.Context, text, hypothesis string) (model.Decision, error)
}

// Fingerprinter is implemented by oracles whose verdicts depend on settings
// beyond their name. Cached decisions are keyed by the fingerprint.
type Fingerprinter interface {
	Fingerprint() string
}

// Fingerprint identifies o together with the settings its verdicts depend on.
// Oracles without settings are identified by name.
func Fingerprint(o Oracle) string {
	if f, ok := o.(Fingerprinter); ok {
		return f.Fingerprint()
	}
	return o.Name()
}

func thresholdFingerprint(name string, threshold float64) string {
	return name + "|threshold=" + strconv.FormatFloat(threshold, 'g', -1, 64)
}

// Func adapts a plain function to Oracle.
type Func struct {
	Label string
	Fn    func(ctx context.Context, text, hypothesis string) (model.Decision, error)
}

// Name returns the label given to the adapter.
func (f Func) Name() string { return f.Label }

// Decide calls the wrapped function.
func (f Func) Decide(ctx context.Context, text, hypothesis string) (model.Decision, error) {
	return f.Fn(ctx, text, hypothesis)
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"be": true, "to": true, "of": true, "and": true, "or": true, "in": true,
	"on": true, "at": true, "it": true, "this": true, "that": true,
}

// normalize applies NFKC and Unicode case folding and collapses whitespace.
// A Caser is stateful, so one is created per call.
func normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// contentTokens returns the normalized non-stopword tokens of s.
func contentTokens(s string) []string {
	fields := strings.FieldsFunc(normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

// verdict maps a directional score onto a decision at threshold.
func verdict(score, threshold float64) model.Decision {
	score = min(max(score, 0), 1)
	if score >= threshold {
		return model.Decision{Label: model.LabelEntailment, Confidence: score}
	}
	return model.Decision{Label: model.LabelNonEntailment, Confidence: 1 - score}
}
