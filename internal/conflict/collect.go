package conflict

import (
	"strings"

	"github.com/matsen/shelf/internal/reference"
)

// Collect returns a conflict for every scalar field, and for the author
// list, on which the documents hold two or more distinct non-empty values.
// Fields appear in display order.
func Collect(docs []*reference.Document) []FieldConflict {
	var out []FieldConflict
	for _, name := range reference.ScalarFields {
		if c, ok := collectField(docs, name, func(d *reference.Document) string { return d.Field(name) }); ok {
			out = append(out, c)
		}
	}
	if c, ok := collectField(docs, AuthorsField, authorString); ok {
		out = append(out, c)
	}
	return out
}

func collectField(docs []*reference.Document, name string, value func(*reference.Document) string) (FieldConflict, bool) {
	c := FieldConflict{Field: name}
	seen := make(map[string]bool)
	for _, d := range docs {
		v := value(d)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		c.Values = append(c.Values, v)
		c.Sources = append(c.Sources, d.ID)
	}
	return c, len(c.Values) > 1
}

// distinctValues returns the distinct non-empty values of a field.
func distinctValues(docs []*reference.Document, value func(*reference.Document) string) []string {
	c, _ := collectField(docs, "", value)
	return c.Values
}

func authorString(d *reference.Document) string {
	return strings.Join(d.Authors(), "; ")
}

// parseAuthors reverses authorString.
func parseAuthors(s string) []reference.Author {
	var out []reference.Author
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, reference.ParseAuthor(part))
	}
	return out
}
