package model

import "github.com/rotisserie/eris"

// Error kinds shared across the pipeline. Callers wrap them with eris and
// test with errors.Is.
var (
	// ErrMissingAnnotationData means a document lacks the tokens, sentences
	// or keywords needed to derive fragments.
	ErrMissingAnnotationData = eris.New("missing annotation data")
	// ErrOracleFailure means an entailment decision could not be obtained.
	ErrOracleFailure = eris.New("oracle failure")
	// ErrDataIntegrity means an input item is malformed or inconsistent.
	ErrDataIntegrity = eris.New("data integrity")
	// ErrGraphGeneration means no graph element could be produced from an
	// otherwise valid input.
	ErrGraphGeneration = eris.New("graph generation")
)
