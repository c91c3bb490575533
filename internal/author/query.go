// Package author parses author names and matches them for `shelf list
// --author` and bulk author renames.
package author

import (
	"strings"

	"github.com/matsen/shelf/internal/reference"
)

// Query represents a parsed author name.
type Query struct {
	First string // First name (may be empty for last-name-only queries)
	Last  string // Last name (required)
}

// ParseQuery parses an author string into a structured Query.
//
// Supported formats:
//   - "Doe"        → last="Doe" (single word = last name only)
//   - "Jane Doe"   → first="Jane", last="Doe" (space-separated = First Last)
//   - "Doe, Jane"  → first="Jane", last="Doe" (comma = Last, First)
//
// Names are trimmed but case is preserved.
func ParseQuery(input string) Query {
	a := reference.ParseAuthor(input)
	return Query{First: a.First, Last: a.Last}
}

// Matches checks if the query matches a given author.
//
// Matching rules:
//   - Last name: case-insensitive exact match (required)
//   - First name: case-insensitive prefix match (if query has first name)
//
// This lets "Jan Doe" match "Janet Q Doe" while "Do" never matches "Doe".
func (q Query) Matches(a reference.Author) bool {
	if !strings.EqualFold(q.Last, a.Last) {
		return false
	}
	if q.First == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(a.First), strings.ToLower(q.First))
}

// Is reports whether a is exactly this author. Comparison is case-sensitive
// and a query without a first name only matches authors without one.
func (q Query) Is(a reference.Author) bool {
	return q.Last == a.Last && q.First == a.First
}

// MatchesAny checks if the query matches any author in the list.
func (q Query) MatchesAny(authors []reference.Author) bool {
	for _, a := range authors {
		if q.Matches(a) {
			return true
		}
	}
	return false
}

// AllMatch checks if all queries match at least one author each.
func AllMatch(queries []Query, authors []reference.Author) bool {
	for _, q := range queries {
		if !q.MatchesAny(authors) {
			return false
		}
	}
	return true
}

// Replace returns authors with every author that Is old replaced by repl,
// and whether anything changed.
func Replace(authors []reference.Author, old Query, repl reference.Author) ([]reference.Author, bool) {
	out := make([]reference.Author, len(authors))
	changed := false
	for i, a := range authors {
		if old.Is(a) {
			out[i] = repl
			changed = changed || a != repl
			continue
		}
		out[i] = a
	}
	return out, changed
}
