// Package config handles library layout and user settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DBExt is the extension of the catalog database file.
	DBExt = ".sqlite"
	// CollectionsDir holds the attachments of a library.
	CollectionsDir = "_collections"
	// FullTextDir holds the full-text index of a library.
	FullTextDir = "_fulltext"
	// FullTextFile is the index database inside FullTextDir.
	FullTextFile = "index.db"
	// CacheDir holds derived data such as thumbnails.
	CacheDir = "_cache"
)

// Library locates the files of one library: a catalog database and the
// co-located library folder of the same name.
type Library struct {
	Name   string // Library name (database file name without extension)
	DBPath string // <parent>/<name>.sqlite
	Folder string // <parent>/<name>/
}

// NewLibrary returns the layout of a library called name under storageFolder.
func NewLibrary(storageFolder, name string) Library {
	storageFolder = ExpandPath(storageFolder)
	return Library{
		Name:   name,
		DBPath: filepath.Join(storageFolder, name+DBExt),
		Folder: filepath.Join(storageFolder, name),
	}
}

// LibraryFromDB returns the layout of the library whose database is dbPath.
func LibraryFromDB(dbPath string) Library {
	dbPath = ExpandPath(dbPath)
	name := strings.TrimSuffix(filepath.Base(dbPath), filepath.Ext(dbPath))
	return Library{
		Name:   name,
		DBPath: dbPath,
		Folder: filepath.Join(filepath.Dir(dbPath), name),
	}
}

// LibraryFromFolder returns the layout of the library rooted at folder.
func LibraryFromFolder(folder string) Library {
	folder = filepath.Clean(ExpandPath(folder))
	return Library{
		Name:   filepath.Base(folder),
		DBPath: folder + DBExt,
		Folder: folder,
	}
}

// CollectionsPath returns the attachments folder.
func (l Library) CollectionsPath() string {
	return filepath.Join(l.Folder, CollectionsDir)
}

// FullTextPath returns the full-text index database path.
func (l Library) FullTextPath() string {
	return filepath.Join(l.Folder, FullTextDir, FullTextFile)
}

// CachePath returns the cache folder.
func (l Library) CachePath() string {
	return filepath.Join(l.Folder, CacheDir)
}

// Init creates the library folder and its attachments folder.
func (l Library) Init() error {
	if err := os.MkdirAll(l.CollectionsPath(), 0755); err != nil {
		return fmt.Errorf("creating library folder: %w", err)
	}
	return nil
}

// Exists reports whether the catalog database file exists.
func (l Library) Exists() bool {
	info, err := os.Stat(l.DBPath)
	return err == nil && !info.IsDir()
}

// HasFullText reports whether a full-text index exists for the library.
func (l Library) HasFullText() bool {
	_, err := os.Stat(l.FullTextPath())
	return err == nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}

// ValidateStorageFolder checks that the storage folder exists and is a directory.
func ValidateStorageFolder(path string) error {
	if path == "" {
		return nil // Empty is allowed (not yet configured)
	}

	expandedPath := ExpandPath(path)

	info, err := os.Stat(expandedPath)
	if err != nil {
		return fmt.Errorf("path does not exist: %s", expandedPath)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", expandedPath)
	}

	return nil
}
