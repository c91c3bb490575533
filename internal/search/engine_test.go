package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/matsen/shelf/internal/catalog"
	"github.com/matsen/shelf/internal/config"
	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/fulltext"
	"github.com/matsen/shelf/internal/reference"
	"github.com/matsen/shelf/internal/storage"
	"github.com/matsen/shelf/internal/worker"
)

type noFiles struct{}

func (noFiles) Place(*reference.Document, string, int) (string, error) { return "", nil }
func (noFiles) Move(string, string) error                             { return nil }
func (noFiles) Remove(string)                                         {}
func (noFiles) Exists(string) bool                                    { return true }

type testLibrary struct {
	lib     config.Library
	db      *storage.DB
	catalog *catalog.Catalog
	master  *worker.Master
}

// setupLibrary saves folder 1 "Oceans" with subfolder 2 "Arctic" and these
// documents:
//
//	4 "Ocean Currents in the Arctic", in 1
//	5 "Sea ice thickness", in 2
//	6 "Currents of the past", trashed
func setupLibrary(t *testing.T) *testLibrary {
	t.Helper()
	lib := config.NewLibrary(t.TempDir(), "lib")
	if err := lib.Init(); err != nil {
		t.Fatal(err)
	}
	db, err := storage.OpenDB(lib, nil)
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tx, err := db.Begin(noFiles{})
	if err != nil {
		t.Fatal(err)
	}
	folders := []*reference.Folder{
		{ID: "1", Name: "Oceans", ParentID: reference.RootParentID},
		{ID: "2", Name: "Arctic", ParentID: "1"},
	}
	for _, f := range folders {
		if err := tx.SaveFolder(f.ID, f); err != nil {
			t.Fatalf("SaveFolder(%s) error = %v", f.ID, err)
		}
	}
	docs := []struct {
		id      int64
		title   string
		folders []string
		trashed bool
	}{
		{4, "Ocean Currents in the Arctic", []string{"1"}, false},
		{5, "Sea ice thickness", []string{"2"}, false},
		{6, "Currents of the past", nil, true},
	}
	for _, d := range docs {
		doc := reference.New()
		doc.ID = d.id
		doc.Title = d.title
		doc.Abstract = "measurements"
		doc.Confirmed = reference.FlagTrue
		doc.Folders = d.folders
		if d.trashed {
			doc.DeletionPending = reference.FlagTrue
		}
		if _, err := tx.SaveDocument(d.id, doc); err != nil {
			t.Fatalf("SaveDocument(%d) error = %v", d.id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	snap, err := db.LoadCatalog()
	if err != nil {
		t.Fatal(err)
	}
	return &testLibrary{
		lib:     lib,
		db:      db,
		catalog: catalog.FromSnapshot(snap, nil),
		master:  worker.NewMaster(2, nil),
	}
}

// buildIndex writes text attachments for the given documents and indexes
// them.
func (l *testLibrary) buildIndex(t *testing.T, texts map[int64]string) {
	t.Helper()
	var ids []int64
	var files []fulltext.File
	for id, text := range texts {
		rel := config.CollectionsDir + "/doc" + string(rune('0'+id)) + ".txt"
		path := filepath.Join(l.lib.Folder, filepath.FromSlash(rel))
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
		files = append(files, fulltext.File{DocID: id, RelPath: rel, Path: path})
	}
	b := fulltext.NewBuilder(l.lib.FullTextPath(), l.master, nil)
	stats, err := b.Update(context.Background(), ids, files)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if stats.FilesIndexed != len(files) {
		t.Fatalf("indexed %d files, want %d", stats.FilesIndexed, len(files))
	}
}

func (l *testLibrary) engine() *Engine {
	return NewEngine(l.db, l.catalog, l.lib, l.master, nil)
}

func TestSearchWithFullText(t *testing.T) {
	l := setupLibrary(t)
	l.buildIndex(t, map[int64]string{
		4: "Strong currents were observed near the shelf.",
		5: "Thickness correlates with currents and wind.",
		6: "Old currents in trashed work.",
		9: "Currents in a document that no longer exists.",
	})

	hits, err := l.engine().Search(context.Background(), Request{
		Query:  "currents",
		Fields: []string{"Title", "Abstract", FieldPDF},
		Folder: reference.AllFolderID,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search() = %+v, want documents 4 and 5", hits)
	}

	first := hits[0]
	if first.DocID != 4 || !reflect.DeepEqual(first.Fields, []string{"Title"}) {
		t.Errorf("hits[0] = %+v, want doc 4 matching Title", first)
	}
	snippet := first.Snippets[config.CollectionsDir+"/doc4.txt"]
	if !strings.Contains(snippet, "<b>currents</b>") {
		t.Errorf("snippet = %q, want highlighted match", snippet)
	}

	second := hits[1]
	if second.DocID != 5 || len(second.Fields) != 0 || len(second.Snippets) != 1 {
		t.Errorf("hits[1] = %+v, want full-text-only doc 5", second)
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	l := setupLibrary(t)
	hits, err := l.engine().Search(context.Background(), Request{
		Query:  "currents",
		Fields: []string{"Title", "Abstract", FieldPDF},
		Folder: reference.AllFolderID,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].DocID != 4 || len(hits[0].Snippets) != 0 {
		t.Errorf("Search() = %+v, want doc 4 without snippets", hits)
	}
}

func TestSearchScopes(t *testing.T) {
	l := setupLibrary(t)
	l.buildIndex(t, map[int64]string{5: "currents", 6: "currents"})

	tests := []struct {
		name    string
		folder  string
		descend bool
		fields  []string
		want    []int64
	}{
		{"all skips trashed", reference.AllFolderID, false, []string{"Title"}, []int64{4}},
		{"trash", reference.TrashFolderID, false, []string{"Title"}, []int64{6}},
		{"trash full text", reference.TrashFolderID, false, []string{FieldPDF}, []int64{6}},
		{"folder only", "1", false, []string{"Abstract"}, []int64{4}},
		{"folder with descendants", "1", true, []string{"Abstract"}, []int64{4, 5}},
		{"subfolder full text", "2", false, []string{FieldPDF}, []int64{5}},
		{"needs review is empty", reference.ReviewFolderID, false, []string{"Title", FieldPDF}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := "currents"
			if tt.fields[0] == "Abstract" {
				query = "measure"
			}
			hits, err := l.engine().Search(context.Background(), Request{
				Query: query, Fields: tt.fields, Folder: tt.folder, Descend: tt.descend,
			})
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			var got []int64
			for _, h := range hits {
				got = append(got, h.DocID)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Search() ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchMultipleFieldsOrder(t *testing.T) {
	l := setupLibrary(t)
	hits, err := l.engine().Search(context.Background(), Request{
		Query:  "e",
		Fields: []string{"Abstract", "Title"},
		Folder: reference.AllFolderID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].DocID != 4 || hits[1].DocID != 5 {
		t.Fatalf("Search() = %+v", hits)
	}
	if !reflect.DeepEqual(hits[0].Fields, []string{"Abstract", "Title"}) {
		t.Errorf("Fields = %v, want request order", hits[0].Fields)
	}
}

func TestSearchRejectsUnknownField(t *testing.T) {
	l := setupLibrary(t)
	_, err := l.engine().Search(context.Background(), Request{Query: "x", Fields: []string{"Color"}, Folder: reference.AllFolderID})
	if err == nil {
		t.Error("Search() accepted an unknown field")
	}
}

func TestSearchCancelled(t *testing.T) {
	l := setupLibrary(t)
	l.buildIndex(t, map[int64]string{4: "currents"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.engine().Search(ctx, Request{Query: "currents", Fields: []string{FieldPDF}, Folder: reference.AllFolderID})
	if !errors.Is(err, failure.ErrCancelled) {
		t.Errorf("Search() error = %v, want CANCELLED", err)
	}
}
