package author

import (
	"reflect"
	"testing"

	"github.com/matsen/shelf/internal/reference"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Query
	}{
		{"single word is last name", "Doe", Query{Last: "Doe"}},
		{"two words is First Last", "Jane Doe", Query{First: "Jane", Last: "Doe"}},
		{"three words: first two are first name", "Jane Q Doe", Query{First: "Jane Q", Last: "Doe"}},
		{"comma format: Last, First", "Doe, Jane", Query{First: "Jane", Last: "Doe"}},
		{"comma format with spaces", "Doe,  Jane Q", Query{First: "Jane Q", Last: "Doe"}},
		{"leading/trailing whitespace", "  Roe  ", Query{Last: "Roe"}},
		{"empty string", "", Query{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseQuery(tt.input); got != tt.want {
				t.Errorf("ParseQuery(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestQueryMatches(t *testing.T) {
	janet := reference.Author{First: "Janet Q", Last: "Doe"}

	tests := []struct {
		name  string
		query Query
		want  bool
	}{
		{"last name only", Query{Last: "Doe"}, true},
		{"last name case-insensitive", Query{Last: "doe"}, true},
		{"first name prefix", Query{First: "Jan", Last: "Doe"}, true},
		{"first name mismatch", Query{First: "Bob", Last: "Doe"}, false},
		{"last name is not a prefix match", Query{Last: "Do"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(janet); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAllMatch(t *testing.T) {
	authors := []reference.Author{{First: "Jane", Last: "Doe"}, {First: "Rick", Last: "Roe"}}

	if !AllMatch([]Query{{Last: "Doe"}, {Last: "Roe"}}, authors) {
		t.Error("AllMatch() = false for two present authors")
	}
	if AllMatch([]Query{{Last: "Doe"}, {Last: "Poe"}}, authors) {
		t.Error("AllMatch() = true with a missing author")
	}
	if !AllMatch(nil, authors) {
		t.Error("AllMatch(nil) should be true")
	}
}

func TestReplace(t *testing.T) {
	authors := []reference.Author{{First: "Jane", Last: "Doe"}, {First: "Janet", Last: "Doe"}, {Last: "Roe"}}

	got, changed := Replace(authors, ParseQuery("Doe, Jane"), reference.Author{First: "J.", Last: "Doe"})
	want := []reference.Author{{First: "J.", Last: "Doe"}, {First: "Janet", Last: "Doe"}, {Last: "Roe"}}
	if !changed || !reflect.DeepEqual(got, want) {
		t.Errorf("Replace() = %v, %v; want %v, true", got, changed, want)
	}
	if authors[0].First != "Jane" {
		t.Error("Replace() modified its input")
	}

	if _, changed := Replace(authors, ParseQuery("Poe"), reference.Author{Last: "Moe"}); changed {
		t.Error("Replace() reported a change with no matching author")
	}
}
