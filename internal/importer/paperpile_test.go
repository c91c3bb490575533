package importer

import (
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/matsen/shelf/internal/reference"
)

func TestFlexibleString_String(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"string year", `"2026"`, "2026"},
		{"number year", `2026`, "2026"},
		{"null value", `null`, ""},
		{"padded", `" 7 "`, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexibleString
			if err := json.Unmarshal([]byte(tt.input), &f); err != nil {
				t.Fatalf("UnmarshalJSON() error = %v", err)
			}
			if got := f.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlexibleString_InvalidInput(t *testing.T) {
	for _, input := range []string{`[1,2,3]`, `{"key": "value"}`} {
		var f FlexibleString
		if err := json.Unmarshal([]byte(input), &f); err == nil {
			t.Errorf("UnmarshalJSON() expected error for input %s", input)
		}
	}
}

func TestParsePaperpile_ValidEntry(t *testing.T) {
	data := []byte(`[{
		"_id": "abc123",
		"citekey": "Smith2026-ab",
		"pubtype": "inproceedings",
		"doi": "10.1234/test",
		"title": "  Test Paper ",
		"abstract": "This is a test abstract",
		"journal": "Test Journal",
		"volume": "12",
		"keywords": "ocean, ice ,",
		"labelsNamed": ["to-read"],
		"url": ["https://example.org/p"],
		"published": {"year": "2026", "month": "3", "day": "15"},
		"author": [
			{"first": "John", "last": "Smith"},
			{"first": "Jane", "last": "Doe"}
		],
		"attachments": [
			{"_id": "att2", "article_pdf": 0, "filename": "Papers/supplement.pdf"},
			{"_id": "att1", "article_pdf": 1, "filename": "Papers/main.pdf"}
		]
	}]`)

	base := t.TempDir()
	docs, errs := ParsePaperpile(data, base)
	if len(errs) > 0 {
		t.Fatalf("ParsePaperpile() returned errors: %v", errs)
	}
	if len(docs) != 1 {
		t.Fatalf("ParsePaperpile() returned %d docs, want 1", len(docs))
	}
	doc := docs[0]

	checks := []struct {
		field, got, want string
	}{
		{"title", doc.Title, "Test Paper"},
		{"type", doc.Type, "inproceedings"},
		{"doi", doc.DOI, "10.1234/test"},
		{"publication", doc.Publication, "Test Journal"},
		{"volume", doc.Volume, "12"},
		{"citationkey", doc.CitationKey, "Smith2026-ab"},
		{"source type", doc.SourceType, SourcePaperpile},
		{"source id", doc.SourceID, "abc123"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}

	if doc.Year != 2026 || doc.Month != 3 || doc.Day != 15 {
		t.Errorf("date = %d-%d-%d, want 2026-3-15", doc.Year, doc.Month, doc.Day)
	}
	if !reflect.DeepEqual(doc.Authors(), []string{"Smith, John", "Doe, Jane"}) {
		t.Errorf("Authors() = %v", doc.Authors())
	}
	if !reflect.DeepEqual(doc.Keywords, []string{"ocean", "ice"}) {
		t.Errorf("Keywords = %v", doc.Keywords)
	}
	if !reflect.DeepEqual(doc.Tags, []string{"to-read"}) || !reflect.DeepEqual(doc.URLs, []string{"https://example.org/p"}) {
		t.Errorf("Tags = %v, URLs = %v", doc.Tags, doc.URLs)
	}
	wantFiles := []string{
		filepath.Join(base, "Papers", "main.pdf"),
		filepath.Join(base, "Papers", "supplement.pdf"),
	}
	if !reflect.DeepEqual(doc.Files, wantFiles) {
		t.Errorf("Files = %v, want main PDF first: %v", doc.Files, wantFiles)
	}
	if !doc.Confirmed.IsTrue() || doc.DeletionPending.IsTrue() {
		t.Errorf("flags: confirmed = %v, pending = %v", doc.Confirmed, doc.DeletionPending)
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestParsePaperpile_Defaults(t *testing.T) {
	data := []byte(`[{"_id": "abc123", "title": "Test Paper"}]`)

	docs, errs := ParsePaperpile(data, "")
	if len(errs) > 0 {
		t.Fatalf("ParsePaperpile() returned errors: %v", errs)
	}
	doc := docs[0]
	if doc.Type != reference.DefaultType || doc.Year != 0 || len(doc.LastNames) != 0 || len(doc.Files) != 0 {
		t.Errorf("doc = %+v, want defaults", doc)
	}
	if doc.CiteKey() != "" {
		t.Errorf("CiteKey() = %q, want empty without author and year", doc.CiteKey())
	}
}

func TestParsePaperpile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing title", `[{"_id": "abc", "published": {"year": "2026"}}]`},
		{"blank title", `[{"_id": "abc", "title": "  "}]`},
		{"invalid year", `[{"_id": "abc", "title": "Test", "published": {"year": "soon"}}]`},
		{"invalid JSON", `not valid json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, errs := ParsePaperpile([]byte(tt.data), "")
			if len(errs) == 0 {
				t.Errorf("ParsePaperpile() expected error, got docs: %+v", docs)
			}
		})
	}
}

func TestParsePaperpile_NumericDateAndRange(t *testing.T) {
	data := []byte(`[{
		"_id": "abc123",
		"title": "Test Paper",
		"published": {"year": 2026, "month": 13, "day": 4}
	}]`)

	docs, errs := ParsePaperpile(data, "")
	if len(errs) > 0 {
		t.Fatalf("ParsePaperpile() returned errors: %v", errs)
	}
	if docs[0].Year != 2026 || docs[0].Month != 0 || docs[0].Day != 4 {
		t.Errorf("date = %d-%d-%d, want 2026-0-4", docs[0].Year, docs[0].Month, docs[0].Day)
	}
}

func TestParsePaperpile_PartialErrors(t *testing.T) {
	data := []byte(`[
		{"_id": "1", "citekey": "Valid2026", "title": "Valid", "author": [{"last": "Valid"}]},
		{"_id": "2", "citekey": "Invalid", "title": ""},
		{"_id": "3", "citekey": "AlsoValid2026", "title": "Also Valid", "author": [{"last": "Corporation"}]}
	]`)

	docs, errs := ParsePaperpile(data, "")
	if len(docs) != 2 || len(errs) != 1 {
		t.Fatalf("ParsePaperpile() = %d docs, %d errors; want 2, 1", len(docs), len(errs))
	}
	if got := docs[1].AuthorList(); len(got) != 1 || got[0].Last != "Corporation" || got[0].First != "" {
		t.Errorf("AuthorList() = %+v, want last name only", got)
	}
}
