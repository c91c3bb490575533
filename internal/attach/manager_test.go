package attach_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/matsen/shelf/internal/attach"
	"github.com/matsen/shelf/internal/attach/mocks"
	"github.com/matsen/shelf/internal/config"
	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/reference"
)

func sampleDoc() *reference.Document {
	d := reference.New()
	d.ID = 7
	d.Title = "A Study"
	d.Year = 2021
	d.SetAuthors([]reference.Author{{First: "Jane", Last: "Doe"}})
	return d
}

// setupManager returns a copying, renaming manager over a fresh library and
// a source folder outside it.
func setupManager(t *testing.T, trasher attach.Trasher) (*attach.Manager, string) {
	t.Helper()
	root := t.TempDir()
	lib := config.NewLibrary(root, "lib")
	if err := lib.Init(); err != nil {
		t.Fatal(err)
	}
	m := attach.NewManager(lib, config.SavingSettings{FileMoveManner: config.MannerCopy, RenameFiles: 1}, trasher, nil)
	src := filepath.Join(root, "incoming")
	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatal(err)
	}
	return m, src
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestTargetName(t *testing.T) {
	dir := "/lib/_collections"
	twoFiles := sampleDoc()
	twoFiles.Files = []string{"a", "b"}
	unsafe := sampleDoc()
	unsafe.Title = `What? A/B: "yes"`
	collapsed := sampleDoc()
	collapsed.Title = "x__y"
	noYear := sampleDoc()
	noYear.Year = 0

	tests := []struct {
		name   string
		doc    *reference.Document
		src    string
		pos    int
		rename bool
		want   string
	}{
		{"renaming off", sampleDoc(), "/in/paper.pdf", 1, false, "paper.pdf"},
		{"renamed", sampleDoc(), "/in/paper.pdf", 1, true, "Doe_2021_A Study.pdf"},
		{"position suffix", twoFiles, "/in/paper.pdf", 2, true, "Doe_2021_A Study_2.pdf"},
		{"unsafe characters", unsafe, "/in/p.pdf", 1, true, "Doe_2021_What_ A_B_ _yes_.pdf"},
		{"collapsed underscores", collapsed, "/in/p.pdf", 1, true, "Doe_2021_x_y.pdf"},
		{"missing year", noYear, "/in/p.pdf", 1, true, "Doe_A Study.pdf"},
		{"no metadata", reference.New(), "/in/p.pdf", 1, true, "p.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := attach.TargetName(tt.doc, tt.src, tt.pos, tt.rename, dir); got != tt.want {
				t.Errorf("TargetName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTargetNameBoundsPathLength(t *testing.T) {
	dir := "/library/_collections"
	d := sampleDoc()
	d.Title = strings.Repeat("é", 300)
	name := attach.TargetName(d, "/in/p.pdf", 1, true, dir)
	if n := len(filepath.Join(dir, name)); n > attach.MaxPathLen {
		t.Errorf("path length = %d, want <= %d", n, attach.MaxPathLen)
	}
	if !strings.HasSuffix(name, ".pdf") || !strings.HasPrefix(name, "Doe_2021_é") {
		t.Errorf("TargetName() = %q", name)
	}
}

func TestPlaceCopies(t *testing.T) {
	m, src := setupManager(t, nil)
	path := filepath.Join(src, "paper.pdf")
	writeFile(t, path, "%PDF-1.4 body")
	mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	rel, err := m.Place(sampleDoc(), path, 1)
	if err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	if rel != "_collections/Doe_2021_A Study.pdf" {
		t.Errorf("Place() = %q", rel)
	}
	got, err := os.ReadFile(m.Locate(rel))
	if err != nil || string(got) != "%PDF-1.4 body" {
		t.Errorf("copied content = %q, %v", got, err)
	}
	info, err := os.Stat(m.Locate(rel))
	if err != nil || !info.ModTime().Equal(mtime) {
		t.Errorf("copied mtime = %v, want %v", info.ModTime(), mtime)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("copy removed the source")
	}

	again, err := m.Place(sampleDoc(), path, 1)
	if err != nil {
		t.Fatal(err)
	}
	if again != "_collections/Doe_2021_A Study_(1).pdf" {
		t.Errorf("colliding Place() = %q", again)
	}
}

func TestPlaceLinks(t *testing.T) {
	m, src := setupManager(t, nil)
	m.Manner = config.MannerLink
	m.RenameFiles = false
	path := filepath.Join(src, "paper.pdf")
	writeFile(t, path, "x")

	rel, err := m.Place(sampleDoc(), path, 1)
	if err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	if rel != "_collections/paper.pdf" {
		t.Errorf("Place() = %q", rel)
	}
	if !m.IsSymlink(rel) {
		t.Error("linked file is not a symlink")
	}
	if target, _ := os.Readlink(m.Locate(rel)); target != path {
		t.Errorf("link target = %q, want %q", target, path)
	}
}

func TestPlaceMissingSource(t *testing.T) {
	m, src := setupManager(t, nil)
	_, err := m.Place(sampleDoc(), filepath.Join(src, "nope.pdf"), 1)
	if !errors.Is(err, failure.ErrFileNotFound) {
		t.Errorf("Place() error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestMove(t *testing.T) {
	m, _ := setupManager(t, nil)
	writeFile(t, m.Locate("_collections/a.pdf"), "a")
	writeFile(t, m.Locate("_collections/b.pdf"), "b")

	if err := m.Move("_collections/a.pdf", "_collections/b.pdf"); err == nil {
		t.Error("Move() onto an existing file succeeded")
	}
	if err := m.Move("_collections/a.pdf", "_collections/c.pdf"); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if m.Exists("_collections/a.pdf") || !m.Exists("_collections/c.pdf") {
		t.Error("Move() did not rename the file")
	}
	if err := m.Move("_collections/gone.pdf", "_collections/d.pdf"); !errors.Is(err, failure.ErrFileNotFound) {
		t.Errorf("Move() of a missing file error = %v", err)
	}
}

func TestRemoveSendsToTrash(t *testing.T) {
	ctrl := gomock.NewController(t)
	trasher := mocks.NewMockTrasher(ctrl)
	m, _ := setupManager(t, trasher)
	writeFile(t, m.Locate("_collections/a.pdf"), "a")
	writeFile(t, m.Locate("_collections/b.pdf"), "b")

	trasher.EXPECT().Trash(m.Locate("_collections/a.pdf")).Return(nil)
	trasher.EXPECT().Trash(m.Locate("_collections/b.pdf")).Return(errors.New("trash full"))

	m.Remove("_collections/a.pdf")
	m.Remove("_collections/b.pdf")
	// Missing files never reach the trash.
	m.Remove("_collections/missing.pdf")
}

func TestRenamedPath(t *testing.T) {
	m, _ := setupManager(t, nil)
	doc := sampleDoc()
	writeFile(t, m.Locate("_collections/old.pdf"), "a")
	writeFile(t, m.Locate("_collections/Doe_2021_A Study_(1).pdf"), "b")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"needs rename", "_collections/old.pdf", "_collections/Doe_2021_A Study.pdf"},
		{"already named with collision suffix", "_collections/Doe_2021_A Study_(1).pdf", "_collections/Doe_2021_A Study_(1).pdf"},
		{"outside collections", "elsewhere/old.pdf", "elsewhere/old.pdf"},
		{"absolute", "/tmp/old.pdf", "/tmp/old.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.RenamedPath(doc, tt.in, 1); got != tt.want {
				t.Errorf("RenamedPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLocateAndRel(t *testing.T) {
	m, src := setupManager(t, nil)
	abs := m.Locate("_collections/a.pdf")
	if abs != filepath.Join(m.LibraryFolder, "_collections", "a.pdf") {
		t.Errorf("Locate() = %q", abs)
	}
	if got := m.Locate("/x/y.pdf"); got != "/x/y.pdf" {
		t.Errorf("Locate(abs) = %q", got)
	}
	if rel, ok := m.Rel(abs); !ok || rel != "_collections/a.pdf" {
		t.Errorf("Rel() = %q, %v", rel, ok)
	}
	if _, ok := m.Rel(filepath.Join(src, "a.pdf")); ok {
		t.Error("Rel() accepted a path outside the library")
	}
	if _, err := m.Open("_collections/none.pdf"); !errors.Is(err, failure.ErrFileNotFound) {
		t.Errorf("Open() error = %v", err)
	}
}

func TestFreedesktopTrash(t *testing.T) {
	dir := t.TempDir()
	trash := &attach.FreedesktopTrash{Dir: filepath.Join(dir, "Trash")}

	for i := 0; i < 2; i++ {
		sub := filepath.Join(dir, "src", string(rune('a'+i)))
		if err := os.MkdirAll(sub, 0755); err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(sub, "paper one.pdf")
		writeFile(t, path, "x")
		if err := trash.Trash(path); err != nil {
			t.Fatalf("Trash() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("trashed file still in place")
		}
	}

	for _, name := range []string{"paper one.pdf", "paper one.1.pdf"} {
		if _, err := os.Stat(filepath.Join(dir, "Trash", "files", name)); err != nil {
			t.Errorf("missing trashed file %s", name)
		}
	}
	info, err := os.ReadFile(filepath.Join(dir, "Trash", "info", "paper one.pdf.trashinfo"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(info), "Path=") || !strings.Contains(string(info), "paper%20one.pdf") {
		t.Errorf("trashinfo = %q", info)
	}
}

func TestMacTrash(t *testing.T) {
	dir := t.TempDir()
	trash := &attach.MacTrash{Dir: filepath.Join(dir, ".Trash")}
	path := filepath.Join(dir, "a.pdf")
	writeFile(t, path, "x")
	if err := trash.Trash(path); err != nil {
		t.Fatalf("Trash() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".Trash", "a.pdf")); err != nil {
		t.Error("file not in trash")
	}
}
