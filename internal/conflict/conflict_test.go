package conflict

import (
	"errors"
	"reflect"
	"testing"

	"github.com/matsen/shelf/internal/reference"
)

// groupOfTwo returns two records of the same paper that disagree on title
// and year and agree on the journal.
func groupOfTwo() (*reference.Document, *reference.Document) {
	a := reference.New()
	a.ID = 1
	a.Title = "A Study of Trees"
	a.Publication = "Nature"
	a.Year = 2020
	a.SetAuthors([]reference.Author{{First: "Jane", Last: "Doe"}})
	a.Tags = []string{"phylo"}
	a.Files = []string{"_collections/a.pdf"}
	a.Folders = []string{"1"}
	a.Read = reference.FlagTrue

	b := reference.New()
	b.ID = 2
	b.Title = "A study of trees"
	b.Publication = "Nature"
	b.Year = 2021
	b.Abstract = "We study trees."
	b.SetAuthors([]reference.Author{{First: "Jane", Last: "Doe"}, {First: "Rick", Last: "Roe"}})
	b.Tags = []string{"phylo", "todo"}
	b.Files = []string{"_collections/b.pdf"}
	b.Folders = []string{"2"}
	b.Favourite = reference.FlagTrue
	b.Confirmed = reference.FlagTrue
	return a, b
}

func TestCollect(t *testing.T) {
	a, b := groupOfTwo()
	got := Collect([]*reference.Document{a, b})

	var fields []string
	for _, c := range got {
		fields = append(fields, c.Field)
	}
	if want := []string{"title", "year", AuthorsField}; !reflect.DeepEqual(fields, want) {
		t.Fatalf("conflicting fields = %v, want %v", fields, want)
	}
	if !reflect.DeepEqual(got[0].Values, []string{"A Study of Trees", "A study of trees"}) ||
		!reflect.DeepEqual(got[0].Sources, []int64{1, 2}) {
		t.Errorf("title conflict = %+v", got[0])
	}
	if got[2].Values[1] != "Doe, Jane; Roe, Rick" {
		t.Errorf("authors conflict = %+v", got[2])
	}
	if FieldNames(got) != "title, year, authors" {
		t.Errorf("FieldNames() = %q", FieldNames(got))
	}

	if got := Collect([]*reference.Document{a, a.Clone()}); len(got) != 0 {
		t.Errorf("Collect() of identical records = %+v", got)
	}
}

func TestMerge(t *testing.T) {
	a, b := groupOfTwo()
	res := Resolution{Fields: map[string]string{"title": "A Study of Trees", "year": "2021"}}

	merged, err := Merge([]*reference.Document{a, b}, res)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if merged.Title != "A Study of Trees" || merged.Year != 2021 || merged.Publication != "Nature" {
		t.Errorf("scalars = %q %d %q", merged.Title, merged.Year, merged.Publication)
	}
	if merged.Abstract != "We study trees." {
		t.Errorf("Abstract = %q", merged.Abstract)
	}
	if got := merged.Authors(); !reflect.DeepEqual(got, []string{"Doe, Jane", "Roe, Rick"}) {
		t.Errorf("Authors() = %v", got)
	}
	if !reflect.DeepEqual(merged.Tags, []string{"phylo", "todo"}) {
		t.Errorf("Tags = %v", merged.Tags)
	}
	if !reflect.DeepEqual(merged.Files, []string{"_collections/a.pdf", "_collections/b.pdf"}) {
		t.Errorf("Files = %v", merged.Files)
	}
	if !reflect.DeepEqual(merged.Folders, []string{"1", "2"}) {
		t.Errorf("Folders = %v", merged.Folders)
	}
	if !merged.Read.IsTrue() || !merged.Favourite.IsTrue() || !merged.Confirmed.IsTrue() || merged.DeletionPending.IsTrue() {
		t.Errorf("flags = %v %v %v %v", merged.Read, merged.Favourite, merged.Confirmed, merged.DeletionPending)
	}
	if merged.ID != 0 || merged.Added == 0 || merged.SourceType != "merge" {
		t.Errorf("identity = id %d added %d source %q", merged.ID, merged.Added, merged.SourceType)
	}
	if err := merged.Validate(); err != nil {
		t.Errorf("merged record invalid: %v", err)
	}
}

func TestMergeResolutionOverrides(t *testing.T) {
	a, b := groupOfTwo()
	res := Resolution{
		Fields: map[string]string{
			"title":      "",
			"year":       "2020",
			"abstract":   "Typed by hand.",
			AuthorsField: "Doe, J.; Roe, R.",
		},
		Folders: []string{"2"},
	}
	merged, err := Merge([]*reference.Document{a, b}, res)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Title != "" {
		t.Errorf("explicit empty pick ignored: %q", merged.Title)
	}
	if merged.Abstract != "Typed by hand." || merged.Year != 2020 {
		t.Errorf("picks ignored: %q %d", merged.Abstract, merged.Year)
	}
	if got := merged.Authors(); !reflect.DeepEqual(got, []string{"Doe, J.", "Roe, R."}) {
		t.Errorf("Authors() = %v", got)
	}
	if !reflect.DeepEqual(merged.Folders, []string{"2"}) {
		t.Errorf("Folders = %v", merged.Folders)
	}
}

func TestMergeUnresolvedUsesMostComplete(t *testing.T) {
	a, b := groupOfTwo()
	merged, err := Merge([]*reference.Document{a, b}, Resolution{})
	if err != nil {
		t.Fatal(err)
	}
	// b has an abstract, so it is the more complete record.
	if merged.Title != "A study of trees" || merged.Year != 2021 {
		t.Errorf("unresolved fields = %q %d", merged.Title, merged.Year)
	}
	if merged.Type != reference.DefaultType {
		t.Errorf("Type = %q", merged.Type)
	}
}

func TestMergeTooFew(t *testing.T) {
	a, _ := groupOfTwo()
	if _, err := Merge([]*reference.Document{a}, Resolution{}); !errors.Is(err, ErrTooFewDocuments) {
		t.Errorf("Merge() error = %v", err)
	}
	if _, err := Merge([]*reference.Document{a, a}, Resolution{Fields: map[string]string{"year": "soon"}}); err == nil {
		t.Error("Merge() accepted a non-numeric year")
	}
}

func TestCompleteness(t *testing.T) {
	a, b := groupOfTwo()
	if Completeness(b) <= Completeness(a) {
		t.Errorf("Completeness(b) = %d, want more than %d", Completeness(b), Completeness(a))
	}
	if Completeness(reference.New()) != 0 {
		t.Error("empty record has nonzero completeness")
	}
}
