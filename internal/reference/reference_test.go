package reference

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestDocument_CiteKey(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{"explicit", Document{CitationKey: "Doe2021a", LastNames: []string{"Doe"}, FirstNames: []string{"Jane"}, Year: 2021}, "Doe2021a"},
		{"synthesized", Document{LastNames: []string{"Doe"}, FirstNames: []string{"Jane"}, Year: 2021}, "Doe2021"},
		{"no year", Document{LastNames: []string{"Doe"}, FirstNames: []string{"Jane"}}, ""},
		{"no author", Document{Year: 2021}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.CiteKey(); got != tt.want {
				t.Errorf("CiteKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDocument_Authors(t *testing.T) {
	doc := Document{}
	doc.SetAuthors([]Author{{First: "Jane", Last: "Doe"}, {Last: "Roe"}})

	want := []string{"Doe, Jane", "Roe, "}
	if got := doc.Authors(); !reflect.DeepEqual(got, want) {
		t.Errorf("Authors() = %v, want %v", got, want)
	}
	if len(doc.FirstNames) != len(doc.LastNames) {
		t.Errorf("FirstNames/LastNames lengths differ: %d vs %d", len(doc.FirstNames), len(doc.LastNames))
	}
}

func TestDocument_Validate(t *testing.T) {
	doc := New()
	if err := doc.Validate(); err != nil {
		t.Fatalf("Validate() on new document error = %v", err)
	}

	doc.FirstNames = []string{"Jane"}
	if err := doc.Validate(); err == nil {
		t.Error("Validate() should fail when author sequences differ in length")
	}
}

func TestParseAuthor(t *testing.T) {
	tests := []struct {
		input string
		want  Author
	}{
		{"Doe, Jane", Author{First: "Jane", Last: "Doe"}},
		{"Jane Q Doe", Author{First: "Jane Q", Last: "Doe"}},
		{"Doe", Author{Last: "Doe"}},
		{"  ", Author{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseAuthor(tt.input); got != tt.want {
				t.Errorf("ParseAuthor(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFlag_JSON(t *testing.T) {
	tests := []struct {
		flag Flag
		want string
	}{
		{FlagTrue, `"true"`},
		{FlagFalse, `"false"`},
		{FlagUnset, `null`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.flag)
		if err != nil {
			t.Fatalf("Marshal(%v) error = %v", tt.flag, err)
		}
		if string(data) != tt.want {
			t.Errorf("Marshal(%v) = %s, want %s", tt.flag, data, tt.want)
		}
		var back Flag
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", data, err)
		}
		if back != tt.flag {
			t.Errorf("Unmarshal(%s) = %v, want %v", data, back, tt.flag)
		}
	}

	var f Flag
	if err := json.Unmarshal([]byte(`true`), &f); err != nil || f != FlagTrue {
		t.Errorf("Unmarshal(true) = %v, %v; want FlagTrue", f, err)
	}
}

func TestFlag_Or(t *testing.T) {
	if got := FlagFalse.Or(FlagTrue); got != FlagTrue {
		t.Errorf("FlagFalse.Or(FlagTrue) = %v", got)
	}
	if got := FlagUnset.Or(FlagFalse); got != FlagFalse {
		t.Errorf("FlagUnset.Or(FlagFalse) = %v", got)
	}
	if got := FlagUnset.Or(FlagUnset); got != FlagUnset {
		t.Errorf("FlagUnset.Or(FlagUnset) = %v", got)
	}
}

func TestDocument_SetField(t *testing.T) {
	doc := New()
	if err := doc.SetField("title", "A Study"); err != nil {
		t.Fatalf("SetField(title) error = %v", err)
	}
	if err := doc.SetField("year", "2021"); err != nil {
		t.Fatalf("SetField(year) error = %v", err)
	}
	if doc.Title != "A Study" || doc.Year != 2021 {
		t.Errorf("got title=%q year=%d", doc.Title, doc.Year)
	}
	if got := doc.Field("year"); got != "2021" {
		t.Errorf("Field(year) = %q, want 2021", got)
	}
	if err := doc.SetField("year", "soon"); err == nil {
		t.Error("SetField(year, soon) should fail")
	}
	if err := doc.SetField("colour", "red"); err == nil {
		t.Error("SetField(colour) should fail")
	}
	for _, name := range ScalarFields {
		if !IsScalarField(name) {
			t.Errorf("IsScalarField(%q) = false", name)
		}
	}
}

func TestDocument_Clone(t *testing.T) {
	doc := New()
	doc.Tags = []string{"a"}
	c := doc.Clone()
	c.Tags[0] = "b"
	if doc.Tags[0] != "a" {
		t.Error("Clone() shares the Tags slice")
	}
}
