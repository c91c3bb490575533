package catalog

import (
	"fmt"
	"strings"

	"github.com/matsen/shelf/internal/author"
	"github.com/matsen/shelf/internal/reference"
)

// Term kinds accepted by ReplaceTerm.
const (
	TermAuthor      = "author"
	TermPublication = "publication"
	TermKeyword     = "keyword"
	TermTag         = "tag"
)

// ReplaceTerm renames a term across every document not pending deletion and
// returns the ids it changed. Authors are given as "Last, First" and must
// match exactly; other terms match exactly too. An empty replacement removes
// keywords and tags.
func (c *Catalog) ReplaceTerm(kind, old, repl string) ([]int64, error) {
	old = strings.TrimSpace(old)
	repl = strings.TrimSpace(repl)
	if old == "" {
		return nil, fmt.Errorf("empty %s to replace", kind)
	}

	var apply func(*reference.Document) bool
	switch kind {
	case TermAuthor:
		if repl == "" {
			return nil, fmt.Errorf("empty replacement author")
		}
		from, to := author.ParseQuery(old), reference.ParseAuthor(repl)
		apply = func(d *reference.Document) bool {
			authors, changed := author.Replace(d.AuthorList(), from, to)
			if changed {
				d.SetAuthors(authors)
			}
			return changed
		}
	case TermPublication:
		apply = func(d *reference.Document) bool {
			if d.Publication != old || old == repl {
				return false
			}
			d.Publication = repl
			return true
		}
	case TermKeyword:
		apply = func(d *reference.Document) bool {
			var changed bool
			d.Keywords, changed = replaceString(d.Keywords, old, repl)
			return changed
		}
	case TermTag:
		apply = func(d *reference.Document) bool {
			var changed bool
			d.Tags, changed = replaceString(d.Tags, old, repl)
			return changed
		}
	default:
		return nil, fmt.Errorf("unknown term kind %q (want author, publication, keyword or tag)", kind)
	}

	var changed []int64
	for _, id := range c.DocumentIDs() {
		doc := c.docs[id]
		if doc.DeletionPending.IsTrue() {
			continue
		}
		if apply(doc) {
			c.MarkDocument(id)
			changed = append(changed, id)
		}
	}
	return changed, nil
}

// replaceString swaps old for repl in list, dropping duplicates the swap
// creates. An empty repl removes old.
func replaceString(list []string, old, repl string) ([]string, bool) {
	if old == repl || !containsString(list, old) {
		return list, false
	}
	var out []string
	for _, s := range list {
		if s == old {
			s = repl
		}
		if s == "" || containsString(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out, true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
