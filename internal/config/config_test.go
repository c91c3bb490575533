package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLibraryLayout(t *testing.T) {
	lib := NewLibrary("/data/refs", "mylib")

	if lib.DBPath != "/data/refs/mylib.sqlite" {
		t.Errorf("DBPath = %q", lib.DBPath)
	}
	if lib.Folder != "/data/refs/mylib" {
		t.Errorf("Folder = %q", lib.Folder)
	}
	if got := lib.CollectionsPath(); got != "/data/refs/mylib/_collections" {
		t.Errorf("CollectionsPath() = %q", got)
	}
	if got := lib.FullTextPath(); got != "/data/refs/mylib/_fulltext/index.db" {
		t.Errorf("FullTextPath() = %q", got)
	}
	if got := lib.CachePath(); got != "/data/refs/mylib/_cache" {
		t.Errorf("CachePath() = %q", got)
	}
}

func TestLibraryFromDBAndFolder(t *testing.T) {
	fromDB := LibraryFromDB("/data/refs/mylib.sqlite")
	fromFolder := LibraryFromFolder("/data/refs/mylib/")

	if fromDB != fromFolder {
		t.Errorf("LibraryFromDB = %+v, LibraryFromFolder = %+v", fromDB, fromFolder)
	}
	if fromDB.Name != "mylib" {
		t.Errorf("Name = %q, want mylib", fromDB.Name)
	}
}

func TestLibraryInit(t *testing.T) {
	tmpDir := t.TempDir()
	lib := NewLibrary(tmpDir, "lib")

	if lib.Exists() {
		t.Error("Exists() = true before the database is created")
	}
	if err := lib.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	info, err := os.Stat(lib.CollectionsPath())
	if err != nil || !info.IsDir() {
		t.Fatalf("collections folder not created: %v", err)
	}
	if lib.HasFullText() {
		t.Error("HasFullText() = true for a new library")
	}

	if err := os.WriteFile(lib.DBPath, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if !lib.Exists() {
		t.Error("Exists() = false after creating the database file")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/refs", filepath.Join(home, "refs")},
		{"/abs/path", "/abs/path"},
		{"rel/path", "rel/path"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ExpandPath(tt.input); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateStorageFolder(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"empty", "", false},
		{"directory", tmpDir, false},
		{"missing", filepath.Join(tmpDir, "missing"), true},
		{"file", file, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStorageFolder(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStorageFolder(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}
