package conflict

import (
	"errors"
	"fmt"

	"github.com/matsen/shelf/internal/reference"
)

// ErrTooFewDocuments is returned when a merge has fewer than two members.
var ErrTooFewDocuments = errors.New("a merge needs at least two documents")

// Field completeness weights (higher = more important)
const (
	weightAbstract    = 5
	weightAuthors     = 4
	weightPublication = 3
	weightYear        = 2
	weightDOI         = 1
)

// Completeness scores how much bibliographic metadata a document carries.
func Completeness(d *reference.Document) int {
	score := 0
	if d.Abstract != "" {
		score += weightAbstract
	}
	if len(d.LastNames) > 0 {
		score += weightAuthors
	}
	if d.Publication != "" {
		score += weightPublication
	}
	if d.Year != 0 {
		score += weightYear
	}
	if d.DOI != "" {
		score += weightDOI
	}
	return score
}

// Merge builds the replacement for a duplicate group. Scalar fields take
// the unique non-empty value, or the resolution's pick when members
// disagree. Unresolved disagreements take the value of the most complete
// member. The author list comes from the pick or else the longest list.
// Keywords, tags, URLs, files and folders are unions in member order; the
// read, favourite and confirmed flags are OR-ed. The result has no id and
// is added now; the caller inserts it and trashes the members.
func Merge(docs []*reference.Document, res Resolution) (*reference.Document, error) {
	if len(docs) < 2 {
		return nil, ErrTooFewDocuments
	}
	ranked := byCompleteness(docs)
	merged := reference.New()

	for _, name := range reference.ScalarFields {
		value := func(d *reference.Document) string { return d.Field(name) }
		v, ok := res.Pick(name)
		if !ok {
			v = choose(ranked, distinctValues(docs, value), value)
		}
		if v == "" && name == "type" {
			continue
		}
		if err := merged.SetField(name, v); err != nil {
			return nil, fmt.Errorf("merging %s: %w", name, err)
		}
	}

	if v, ok := res.Pick(AuthorsField); ok {
		merged.SetAuthors(parseAuthors(v))
	} else {
		merged.SetAuthors(longestAuthors(ranked))
	}

	for _, d := range docs {
		merged.Keywords = union(merged.Keywords, d.Keywords)
		merged.Tags = union(merged.Tags, d.Tags)
		merged.URLs = union(merged.URLs, d.URLs)
		merged.Files = union(merged.Files, d.Files)
		merged.Folders = union(merged.Folders, d.Folders)
		merged.Read = merged.Read.Or(d.Read)
		merged.Favourite = merged.Favourite.Or(d.Favourite)
		merged.Confirmed = merged.Confirmed.Or(d.Confirmed)
		merged.S2ID = firstNonEmpty(merged.S2ID, d.S2ID)
	}
	if res.Folders != nil {
		merged.Folders = append([]string(nil), res.Folders...)
	}
	merged.DeletionPending = reference.FlagFalse
	merged.SourceType = "merge"
	return merged, nil
}

// choose returns the single value, or the most complete member's value.
func choose(ranked []*reference.Document, values []string, value func(*reference.Document) string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	}
	for _, d := range ranked {
		if v := value(d); v != "" {
			return v
		}
	}
	return ""
}

func longestAuthors(ranked []*reference.Document) []reference.Author {
	var best []reference.Author
	for _, d := range ranked {
		if a := d.AuthorList(); len(a) > len(best) {
			best = a
		}
	}
	return best
}

// byCompleteness orders documents most complete first, keeping member
// order among equals.
func byCompleteness(docs []*reference.Document) []*reference.Document {
	out := append([]*reference.Document(nil), docs...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && Completeness(out[j]) > Completeness(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// union appends the values of b missing from a, preserving order.
func union(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			a = append(a, s)
		}
	}
	return a
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
