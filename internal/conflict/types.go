// Package conflict collects field disagreements inside a duplicate group and
// merges the group into one document.
package conflict

import "strings"

// AuthorsField names the author list in conflicts and resolutions.
const AuthorsField = "authors"

// FieldConflict lists the distinct non-empty values a field takes across
// the members of a group, in member order.
type FieldConflict struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
	// Sources[i] is the id of the first member holding Values[i].
	Sources []int64 `json:"sources"`
}

// Resolution carries the user's picks for conflicting fields.
type Resolution struct {
	// Fields maps a field name to the chosen value. An explicit empty string
	// clears the field. For AuthorsField the value is a "; "-joined list of
	// "Last, First" names.
	Fields map[string]string `json:"fields,omitempty"`
	// Folders replaces the default union of member folders when non-nil.
	Folders []string `json:"folders,omitempty"`
}

// Pick returns the chosen value for field and whether one was made.
func (r Resolution) Pick(field string) (string, bool) {
	if r.Fields == nil {
		return "", false
	}
	v, ok := r.Fields[field]
	return v, ok
}

// FieldNames returns the names of the conflicting fields.
func FieldNames(conflicts []FieldConflict) string {
	names := make([]string, len(conflicts))
	for i, c := range conflicts {
		names[i] = c.Field
	}
	return strings.Join(names, ", ")
}
