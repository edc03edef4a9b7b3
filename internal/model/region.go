package model

import "fmt"

// Region is a half-open character span [Begin, End) within a document's text.
type Region struct {
	Begin int `json:"begin" xml:"begin,attr"`
	End   int `json:"end" xml:"end,attr"`
}

// NewRegion validates and returns a region.
func NewRegion(begin, end int) (Region, error) {
	r := Region{Begin: begin, End: end}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate reports whether the region satisfies 0 <= Begin < End.
func (r Region) Validate() error {
	if r.Begin < 0 || r.End <= r.Begin {
		return fmt.Errorf("invalid region [%d,%d)", r.Begin, r.End)
	}
	return nil
}

// Len returns the number of characters covered.
func (r Region) Len() int { return r.End - r.Begin }

// Intersects reports whether the two regions overlap or touch. Touching
// spans ([0,5) and [5,9)) count as intersecting so that adjacent fragments
// merge into one.
func (r Region) Intersects(o Region) bool {
	return r.Begin <= o.End && o.Begin <= r.End
}

// Covers reports whether o lies entirely inside r.
func (r Region) Covers(o Region) bool {
	return r.Begin <= o.Begin && o.End <= r.End
}

// Union returns the smallest region containing both.
func (r Region) Union(o Region) Region {
	u := r
	if o.Begin < u.Begin {
		u.Begin = o.Begin
	}
	if o.End > u.End {
		u.End = o.End
	}
	return u
}

// Less orders regions by Begin, then End.
func (r Region) Less(o Region) bool {
	if r.Begin != o.Begin {
		return r.Begin < o.Begin
	}
	return r.End < o.End
}

func (r Region) String() string {
	return fmt.Sprintf("[%d,%d)", r.Begin, r.End)
}

// Token is an annotated token of a document.
type Token struct {
	Region
	Text string `json:"text"`
}

// Sentence is an annotated sentence span.
type Sentence struct {
	Region
}

// Keyword is an annotated keyword span.
type Keyword struct {
	Region
}

// Modifier is an optional span inside a fragment that can be dropped
// without changing the fragment's core statement.
type Modifier struct {
	Region
}

// Document is one annotated interaction transcript. Token, sentence and
// keyword slices are sorted by offset.
type Document struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Tokens    []Token    `json:"tokens"`
	Sentences []Sentence `json:"sentences"`
	Keywords  []Keyword  `json:"keywords"`
	Modifiers []Modifier `json:"modifiers,omitempty"`
	// Fragments, when present, are used as-is instead of being derived
	// from keywords.
	Fragments []Region `json:"fragments,omitempty"`
}

// Covered returns the text covered by r, clamped to the document bounds.
func (d *Document) Covered(r Region) string {
	begin, end := r.Begin, r.End
	if begin < 0 {
		begin = 0
	}
	if end > len(d.Text) {
		end = len(d.Text)
	}
	if begin >= end {
		return ""
	}
	return d.Text[begin:end]
}
