// Package corpus loads annotated interaction documents and gold-standard
// annotations.
package corpus

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// NewXMLDecoder returns a decoder that understands any charset declared in
// the XML prolog.
func NewXMLDecoder(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return decoder
}

// EachXMLElement decodes every element named elementName into a T and hands
// it to fn. Decoding stops at the first read error, at ctx cancellation, or
// when fn returns an error.
func EachXMLElement[T any](ctx context.Context, r io.Reader, elementName string, fn func(T) error) error {
	decoder := NewXMLDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "xml: context cancelled")
		}

		tok, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "xml: read token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != elementName {
			continue
		}

		var item T
		if err := decoder.DecodeElement(&item, &se); err != nil {
			return eris.Wrap(err, "xml: decode element")
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}

// EachJSONElement decodes a JSON array [{...},{...}] one element at a time.
func EachJSONElement[T any](ctx context.Context, r io.Reader, fn func(T) error) error {
	decoder := json.NewDecoder(r)

	tok, err := decoder.Token()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "json: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return eris.Errorf("json: expected '[', got %v", tok)
	}

	for decoder.More() {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "json: context cancelled")
		}
		var item T
		if err := decoder.Decode(&item); err != nil {
			return eris.Wrap(err, "json: decode element")
		}
		if err := fn(item); err != nil {
			return err
		}
	}

	if _, err := decoder.Token(); err != nil && err != io.EOF {
		return eris.Wrap(err, "json: read closing token")
	}
	return nil
}
