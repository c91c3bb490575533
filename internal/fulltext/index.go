// Package fulltext maintains the per-library full-text index of attachment
// text, an SQLite FTS5 database under <library>/_fulltext/.
package fulltext

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/matsen/shelf/internal/failure"
)

// CurrentIndexVersion is stored in user_version. Increment it when the
// schema changes incompatibly.
const CurrentIndexVersion = 1

// ErrIndexNotFound is returned when a library has no full-text index.
var ErrIndexNotFound = errors.New("full-text index not found")

// ErrUnsupportedVersion is returned for an index written by another version.
var ErrUnsupportedVersion = errors.New("unsupported full-text index version")

// Index is an open full-text index.
type Index struct {
	db   *sql.DB
	path string
}

// fileKey identifies one indexed attachment.
type fileKey struct {
	DocID   int64
	RelPath string
}

// Create opens the index at path for writing, creating it when missing.
// Only the session owner writes, through one short-lived handle.
func Create(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: creating index folder: %v", failure.ErrIndex, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening index: %v", failure.ErrIndex, err)
	}
	db.SetMaxOpenConns(1)

	idx := &Index{db: db, path: path}
	if err := idx.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// OpenReadOnly opens an existing index for queries. Safe to use from a
// worker while the catalog is busy.
func OpenReadOnly(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrIndexNotFound
		}
		return nil, fmt.Errorf("%w: %v", failure.ErrIndex, err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening index: %v", failure.ErrIndex, err)
	}
	idx := &Index{db: db, path: path}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: reading index version: %v", failure.ErrIndex, err)
	}
	if version != CurrentIndexVersion {
		db.Close()
		return nil, fmt.Errorf("%w: got %d, want %d (rebuild with 'shelf index')",
			ErrUnsupportedVersion, version, CurrentIndexVersion)
	}
	return idx, nil
}

// Exists reports whether an index file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Size returns the size of the index file in bytes.
func Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrIndexNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}

// Close closes the index.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func (idx *Index) createSchema() error {
	stmts := []string{
		"PRAGMA busy_timeout=5000",
		`CREATE VIRTUAL TABLE IF NOT EXISTS pages USING fts5(
			docid UNINDEXED,
			relpath UNINDEXED,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			docid INTEGER NOT NULL,
			relpath TEXT NOT NULL,
			hash TEXT NOT NULL,
			indexed_at INTEGER NOT NULL,
			PRIMARY KEY (docid, relpath)
		)`,
		fmt.Sprintf("PRAGMA user_version = %d", CurrentIndexVersion),
	}
	for _, stmt := range stmts {
		if _, err := idx.db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: creating index schema: %v", failure.ErrIndex, err)
		}
	}
	return nil
}

// hashes returns the content hash of every indexed file.
func (idx *Index) hashes() (map[fileKey]string, error) {
	rows, err := idx.db.Query("SELECT docid, relpath, hash FROM files")
	if err != nil {
		return nil, fmt.Errorf("%w: reading hashes: %v", failure.ErrIndex, err)
	}
	defer rows.Close()

	out := make(map[fileKey]string)
	for rows.Next() {
		var k fileKey
		var h string
		if err := rows.Scan(&k.DocID, &k.RelPath, &h); err != nil {
			return nil, fmt.Errorf("%w: %v", failure.ErrIndex, err)
		}
		out[k] = h
	}
	return out, rows.Err()
}

// put replaces the indexed text of one file.
func (idx *Index) put(tx *sql.Tx, k fileKey, hash, body string, now int64) error {
	if err := deleteFile(tx, k); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO pages (docid, relpath, body) VALUES (?, ?, ?)", k.DocID, k.RelPath, body); err != nil {
		return fmt.Errorf("%w: indexing %s: %v", failure.ErrIndex, k.RelPath, err)
	}
	if _, err := tx.Exec("INSERT INTO files (docid, relpath, hash, indexed_at) VALUES (?, ?, ?, ?)", k.DocID, k.RelPath, hash, now); err != nil {
		return fmt.Errorf("%w: recording %s: %v", failure.ErrIndex, k.RelPath, err)
	}
	return nil
}

func deleteFile(tx *sql.Tx, k fileKey) error {
	if _, err := tx.Exec("DELETE FROM pages WHERE docid = ? AND relpath = ?", k.DocID, k.RelPath); err != nil {
		return fmt.Errorf("%w: %v", failure.ErrIndex, err)
	}
	if _, err := tx.Exec("DELETE FROM files WHERE docid = ? AND relpath = ?", k.DocID, k.RelPath); err != nil {
		return fmt.Errorf("%w: %v", failure.ErrIndex, err)
	}
	return nil
}

// RemoveDocuments drops every entry of the given documents.
func (idx *Index) RemoveDocuments(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", failure.ErrIndex, err)
	}
	defer tx.Rollback()
	for _, id := range ids {
		if _, err := tx.Exec("DELETE FROM pages WHERE docid = ?", id); err != nil {
			return fmt.Errorf("%w: removing document %d: %v", failure.ErrIndex, id, err)
		}
		if _, err := tx.Exec("DELETE FROM files WHERE docid = ?", id); err != nil {
			return fmt.Errorf("%w: removing document %d: %v", failure.ErrIndex, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", failure.ErrIndex, err)
	}
	return nil
}

// Count returns the number of indexed files.
func (idx *Index) Count() (int, error) {
	var n int
	if err := idx.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", failure.ErrIndex, err)
	}
	return n, nil
}
