package model

import (
	"fmt"
	"strings"
)

// Label is the verdict of an entailment decision.
type Label string

const (
	LabelEntailment    Label = "ENTAILMENT"
	LabelNonEntailment Label = "NONENTAILMENT"
	LabelUnknown       Label = "UNKNOWN"
)

// ParseLabel maps a case-insensitive string to a Label. Anything unrecognised
// is UNKNOWN.
func ParseLabel(s string) Label {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ENTAILMENT":
		return LabelEntailment
	case "NONENTAILMENT", "NON_ENTAILMENT", "NON-ENTAILMENT":
		return LabelNonEntailment
	default:
		return LabelUnknown
	}
}

// Decision is an oracle verdict for an ordered (text, hypothesis) pair.
type Decision struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Validate checks the confidence range.
func (d Decision) Validate() error {
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %.4f out of [0,1]", d.Confidence)
	}
	return nil
}

// Origin records where an edge came from.
type Origin string

const (
	OriginOracle        Origin = "oracle"
	OriginFragmentGraph Origin = "fragment_graph"
	OriginClosure       Origin = "closure"
)

// EntailmentUnit is a graph node: one fragment text with its provenance.
// Removed lists the modifier spans dropped from Span to produce Text.
type EntailmentUnit struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"document_id"`
	Span       Region   `json:"span"`
	Text       string   `json:"text"`
	Removed    []Region `json:"removed,omitempty"`
}

// EntailmentRelation is a directed edge Source -> Target.
type EntailmentRelation struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
	Origin     Origin  `json:"origin"`
}

// IsEntailment reports whether the edge asserts entailment.
func (r EntailmentRelation) IsEntailment() bool {
	return r.Label == LabelEntailment
}
