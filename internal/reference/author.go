package reference

import "strings"

// Author is one contributor of a document, in stored order.
type Author struct {
	First string `json:"first"` // First/given name(s)
	Last  string `json:"last"`  // Last/family name
}

// String formats the author as "Last, First". A missing half is left empty.
func (a Author) String() string {
	return a.Last + ", " + a.First
}

// ParseAuthor parses "Last, First" or "First Last" into an Author.
// A single word is treated as the last name.
func ParseAuthor(s string) Author {
	s = strings.TrimSpace(s)
	if s == "" {
		return Author{}
	}
	if idx := strings.Index(s, ","); idx >= 0 {
		return Author{
			Last:  strings.TrimSpace(s[:idx]),
			First: strings.TrimSpace(s[idx+1:]),
		}
	}
	parts := strings.Fields(s)
	if len(parts) == 1 {
		return Author{Last: parts[0]}
	}
	return Author{
		First: strings.Join(parts[:len(parts)-1], " "),
		Last:  parts[len(parts)-1],
	}
}
