package corpus

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entailgraph/internal/model"
)

// Skip records an input item that was dropped while loading.
type Skip struct {
	Item string
	Err  error
}

// LoadDocuments reads documents from a JSON array file or from a directory
// of one-document JSON files. Documents that fail validation are returned as
// skips; unreadable input is an error.
func LoadDocuments(ctx context.Context, path string) ([]model.Document, []Skip, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "corpus: stat %s", path)
	}

	var docs []model.Document
	var skips []Skip
	accept := func(item string, doc model.Document) {
		if err := NormalizeDocument(&doc); err != nil {
			zap.L().Warn("skipping document", zap.String("item", item), zap.Error(err))
			skips = append(skips, Skip{Item: item, Err: err})
			return
		}
		docs = append(docs, doc)
	}

	if !info.IsDir() {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "corpus: open %s", path)
		}
		defer f.Close()

		i := 0
		err = EachJSONElement(ctx, f, func(doc model.Document) error {
			item := doc.ID
			if item == "" {
				item = filepath.Base(path) + "#" + strconv.Itoa(i)
			}
			i++
			accept(item, doc)
			return nil
		})
		if err != nil {
			return nil, nil, eris.Wrapf(err, "corpus: read %s", path)
		}
		return docs, skips, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "corpus: read dir %s", path)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, eris.Wrap(err, "corpus: context cancelled")
		}
		data, err := os.ReadFile(filepath.Join(path, e.Name()))
		if err != nil {
			return nil, nil, eris.Wrapf(err, "corpus: read %s", e.Name())
		}
		var doc model.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			err = eris.Wrapf(model.ErrDataIntegrity, "corpus: decode %s: %v", e.Name(), err)
			zap.L().Warn("skipping document", zap.String("item", e.Name()), zap.Error(err))
			skips = append(skips, Skip{Item: e.Name(), Err: err})
			continue
		}
		if doc.ID == "" {
			doc.ID = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		accept(e.Name(), doc)
	}
	return docs, skips, nil
}

// NormalizeDocument checks offsets against the text, sorts annotations and
// fills missing token text.
func NormalizeDocument(doc *model.Document) error {
	if doc.ID == "" {
		return eris.Wrap(model.ErrDataIntegrity, "corpus: document without id")
	}
	if strings.TrimSpace(doc.Text) == "" {
		return eris.Wrapf(model.ErrDataIntegrity, "corpus: document %s has no text", doc.ID)
	}

	check := func(kind string, r model.Region) error {
		if err := r.Validate(); err != nil {
			return eris.Wrapf(model.ErrDataIntegrity, "corpus: document %s %s: %v", doc.ID, kind, err)
		}
		if r.End > len(doc.Text) {
			return eris.Wrapf(model.ErrDataIntegrity, "corpus: document %s %s %s beyond text length %d", doc.ID, kind, r, len(doc.Text))
		}
		return nil
	}

	for i := range doc.Tokens {
		if err := check("token", doc.Tokens[i].Region); err != nil {
			return err
		}
		if doc.Tokens[i].Text == "" {
			doc.Tokens[i].Text = doc.Covered(doc.Tokens[i].Region)
		}
	}
	for _, s := range doc.Sentences {
		if err := check("sentence", s.Region); err != nil {
			return err
		}
	}
	for _, k := range doc.Keywords {
		if err := check("keyword", k.Region); err != nil {
			return err
		}
	}
	for _, m := range doc.Modifiers {
		if err := check("modifier", m.Region); err != nil {
			return err
		}
	}
	for _, f := range doc.Fragments {
		if err := check("fragment", f); err != nil {
			return err
		}
	}

	sort.Slice(doc.Tokens, func(i, j int) bool { return doc.Tokens[i].Less(doc.Tokens[j].Region) })
	sort.Slice(doc.Sentences, func(i, j int) bool { return doc.Sentences[i].Less(doc.Sentences[j].Region) })
	sort.Slice(doc.Keywords, func(i, j int) bool { return doc.Keywords[i].Less(doc.Keywords[j].Region) })
	return nil
}

