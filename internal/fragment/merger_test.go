package fragment

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/entailgraph/internal/model"
)

// tokenize splits on single spaces and records offsets.
func tokenize(text string) []model.Token {
	var tokens []model.Token
	pos := 0
	for _, f := range strings.Split(text, " ") {
		if f != "" {
			tokens = append(tokens, model.Token{Region: model.Region{Begin: pos, End: pos + len(f)}, Text: f})
		}
		pos += len(f) + 1
	}
	return tokens
}

func TestMakeFragment_PunctuationExtendsWindow(t *testing.T) {
	text := "Hi John , how is mom ?"
	tokens := tokenize(text)
	sentence := model.Region{Begin: 0, End: len(text)}

	frag, err := MakeFragment(model.Region{Begin: 3, End: 7}, sentence, tokens, 2)
	require.NoError(t, err)
	assert.Equal(t, model.Region{Begin: 0, End: 16}, frag)
	assert.Equal(t, "Hi John , how is", text[frag.Begin:frag.End])
}

func TestMakeFragment_StopsAtSentence(t *testing.T) {
	text := "Hello there . John said yes ."
	tokens := tokenize(text)
	sentence := model.Region{Begin: 14, End: 29}

	frag, err := MakeFragment(model.Region{Begin: 14, End: 18}, sentence, tokens, 3)
	require.NoError(t, err)
	assert.Equal(t, model.Region{Begin: 14, End: 29}, frag)
}

func TestMakeFragment_ZeroWindow(t *testing.T) {
	text := "we like the red car"
	tokens := tokenize(text)

	frag, err := MakeFragment(model.Region{Begin: 12, End: 19}, model.Region{Begin: 0, End: len(text)}, tokens, 0)
	require.NoError(t, err)
	assert.Equal(t, "red car", text[frag.Begin:frag.End])
}

func TestMakeFragment_LeadingPunctuation(t *testing.T) {
	text := "well , , yes keyword"
	tokens := tokenize(text)

	frag, err := MakeFragment(model.Region{Begin: 13, End: 20}, model.Region{Begin: 0, End: len(text)}, tokens, 2)
	require.NoError(t, err)
	assert.Equal(t, text, text[frag.Begin:frag.End])
}

func TestMakeFragment_KeywordWithoutTokens(t *testing.T) {
	text := "a b"
	_, err := MakeFragment(model.Region{Begin: 1, End: 2}, model.Region{Begin: 0, End: 3}, tokenize(text), 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrGraphGeneration))
}

func TestMakeFragment_KeywordOutsideSentence(t *testing.T) {
	_, err := MakeFragment(model.Region{Begin: 10, End: 12}, model.Region{Begin: 0, End: 5}, nil, 2)
	assert.True(t, errors.Is(err, model.ErrGraphGeneration))
}

func TestFilterFragments(t *testing.T) {
	tests := []struct {
		name string
		in   []model.Region
		want []model.Region
	}{
		{"empty", nil, []model.Region{}},
		{"single", []model.Region{{Begin: 2, End: 5}}, []model.Region{{Begin: 2, End: 5}}},
		{"overlap", []model.Region{{Begin: 0, End: 5}, {Begin: 3, End: 9}}, []model.Region{{Begin: 0, End: 9}}},
		{"touching", []model.Region{{Begin: 0, End: 5}, {Begin: 5, End: 9}}, []model.Region{{Begin: 0, End: 9}}},
		{"disjoint", []model.Region{{Begin: 6, End: 9}, {Begin: 0, End: 5}}, []model.Region{{Begin: 0, End: 5}, {Begin: 6, End: 9}}},
		{"duplicates", []model.Region{{Begin: 1, End: 4}, {Begin: 1, End: 4}}, []model.Region{{Begin: 1, End: 4}}},
		{"chain", []model.Region{{Begin: 10, End: 14}, {Begin: 0, End: 4}, {Begin: 3, End: 11}}, []model.Region{{Begin: 0, End: 14}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterFragments(tt.in)
			assert.ElementsMatch(t, tt.want, got)
			assert.Equal(t, got, FilterFragments(got), "idempotent")
		})
	}
}

func TestFilterFragments_OrderIndependent(t *testing.T) {
	a := []model.Region{{Begin: 0, End: 3}, {Begin: 8, End: 10}, {Begin: 2, End: 5}, {Begin: 20, End: 22}}
	b := []model.Region{{Begin: 20, End: 22}, {Begin: 2, End: 5}, {Begin: 8, End: 10}, {Begin: 0, End: 3}}
	assert.Equal(t, FilterFragments(a), FilterFragments(b))
}

func TestAnnotate_MissingData(t *testing.T) {
	_, err := Annotate(&model.Document{ID: "d1", Text: "x"}, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMissingAnnotationData))
}

func TestAnnotate_MergesKeywordWindows(t *testing.T) {
	text := "my phone bill is too high this month"
	doc := &model.Document{
		ID:        "d1",
		Text:      text,
		Tokens:    tokenize(text),
		Sentences: []model.Sentence{{Region: model.Region{Begin: 0, End: len(text)}}},
		Keywords: []model.Keyword{
			{Region: model.Region{Begin: 3, End: 8}},   // phone
			{Region: model.Region{Begin: 21, End: 25}}, // high
		},
	}

	frags, err := Annotate(doc, 1)
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "my phone bill", doc.Covered(frags[0]))
	assert.Equal(t, "too high this", doc.Covered(frags[1]))

	frags, err = Annotate(doc, 3)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, text, doc.Covered(frags[0]))
}

func TestAnnotate_NoUsableKeyword(t *testing.T) {
	text := "a b c"
	doc := &model.Document{
		ID:        "d1",
		Text:      text,
		Tokens:    tokenize(text),
		Sentences: []model.Sentence{{Region: model.Region{Begin: 0, End: 1}}},
		Keywords:  []model.Keyword{{Region: model.Region{Begin: 4, End: 5}}},
	}
	_, err := Annotate(doc, 2)
	assert.True(t, errors.Is(err, model.ErrGraphGeneration))
}

func TestAnnotate_DeterminedFragments(t *testing.T) {
	doc := &model.Document{
		ID:        "d1",
		Text:      "abcdefghij",
		Fragments: []model.Region{{Begin: 5, End: 8}, {Begin: 0, End: 5}},
	}
	frags, err := Annotate(doc, 2)
	require.NoError(t, err)
	assert.Equal(t, []model.Region{{Begin: 0, End: 8}}, frags)
}
