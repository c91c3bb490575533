package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/config"
	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/reference"
)

// ContributionAuthor is the role tag of author rows in DocumentContributors.
const ContributionAuthor = "DocumentAuthor"

// DB wraps the catalog database of one library.
type DB struct {
	db     *sql.DB
	lib    config.Library
	logger *zap.Logger
}

// selectDocFields contains the standard field list for Documents queries.
const selectDocFields = `id, title, type, publication, volume, issue, pages,
	year, month, day, doi, abstract, arxivId, pmid, pmcid, s2id,
	sourceType, sourceId, issn, isbn, publisher, institution, city, country,
	edition, series, chapter, citationkey, added,
	read, favourite, confirmed, deletionPending`

// OpenDB opens or creates the catalog database of lib.
func OpenDB(lib config.Library, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", lib.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db, lib: lib, logger: logging.OrNop(logger)}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Library returns the layout of the library this database belongs to.
func (d *DB) Library() config.Library {
	return d.lib
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS Documents (
			id INTEGER PRIMARY KEY,
			title TEXT,
			type TEXT,
			publication TEXT,
			volume TEXT,
			issue TEXT,
			pages TEXT,
			year INTEGER,
			month INTEGER,
			day INTEGER,
			doi TEXT,
			abstract TEXT,
			arxivId TEXT,
			pmid TEXT,
			pmcid TEXT,
			s2id TEXT,
			sourceType TEXT,
			sourceId TEXT,
			issn TEXT,
			isbn TEXT,
			publisher TEXT,
			institution TEXT,
			city TEXT,
			country TEXT,
			edition TEXT,
			series TEXT,
			chapter TEXT,
			citationkey TEXT,
			added INTEGER NOT NULL,
			read TEXT,
			favourite TEXT,
			confirmed TEXT,
			deletionPending TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_documents_doi ON Documents(doi) WHERE doi IS NOT NULL;

		CREATE TABLE IF NOT EXISTS Folders (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			parentId INTEGER NOT NULL,
			path TEXT,
			UNIQUE(name, parentId)
		);

		-- Author rows are read back in rowid order.
		CREATE TABLE IF NOT EXISTS DocumentContributors (
			did INTEGER NOT NULL REFERENCES Documents(id) ON DELETE CASCADE,
			contribution TEXT NOT NULL,
			firstNames TEXT,
			lastName TEXT
		);

		CREATE TABLE IF NOT EXISTS DocumentKeywords (
			did INTEGER NOT NULL REFERENCES Documents(id) ON DELETE CASCADE,
			text TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS DocumentTags (
			did INTEGER NOT NULL REFERENCES Documents(id) ON DELETE CASCADE,
			tag TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS DocumentUrls (
			did INTEGER NOT NULL REFERENCES Documents(id) ON DELETE CASCADE,
			url TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS DocumentFiles (
			did INTEGER NOT NULL REFERENCES Documents(id) ON DELETE CASCADE,
			relpath TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS DocumentNotes (
			did INTEGER NOT NULL REFERENCES Documents(id) ON DELETE CASCADE,
			note TEXT,
			modifiedTime INTEGER,
			createdTime INTEGER
		);

		CREATE TABLE IF NOT EXISTS DocumentFolders (
			did INTEGER NOT NULL REFERENCES Documents(id) ON DELETE CASCADE,
			folderid INTEGER NOT NULL REFERENCES Folders(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_contributors_did ON DocumentContributors(did);
		CREATE INDEX IF NOT EXISTS idx_files_did ON DocumentFiles(did);
		CREATE INDEX IF NOT EXISTS idx_files_relpath ON DocumentFiles(relpath);
		CREATE INDEX IF NOT EXISTS idx_docfolders_folder ON DocumentFolders(folderid);
	`

	_, err := db.Exec(schema)
	return err
}

// Count returns the number of documents on disk.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM Documents").Scan(&count)
	return count, err
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(s scanner) (*reference.Document, error) {
	doc := &reference.Document{}
	var strs [24]sql.NullString
	var year, month, day sql.NullInt64
	var read, favourite, confirmed, pending sql.NullString

	err := s.Scan(
		&doc.ID, &strs[0], &strs[1], &strs[2], &strs[3], &strs[4], &strs[5],
		&year, &month, &day, &strs[6], &strs[7], &strs[8], &strs[9], &strs[10], &strs[11],
		&strs[12], &strs[13], &strs[14], &strs[15], &strs[16], &strs[17], &strs[18], &strs[19],
		&strs[20], &strs[21], &strs[22], &strs[23], &doc.Added,
		&read, &favourite, &confirmed, &pending,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	targets := []*string{
		&doc.Title, &doc.Type, &doc.Publication, &doc.Volume, &doc.Issue, &doc.Pages,
		&doc.DOI, &doc.Abstract, &doc.ArxivID, &doc.PMID, &doc.PMCID, &doc.S2ID,
		&doc.SourceType, &doc.SourceID, &doc.ISSN, &doc.ISBN, &doc.Publisher, &doc.Institution,
		&doc.City, &doc.Country, &doc.Edition, &doc.Series, &doc.Chapter, &doc.CitationKey,
	}
	for i, t := range targets {
		*t = strs[i].String
	}

	doc.Year = int(year.Int64)
	doc.Month = int(month.Int64)
	doc.Day = int(day.Int64)
	doc.Read = flagFromColumn(read)
	doc.Favourite = flagFromColumn(favourite)
	doc.Confirmed = flagFromColumn(confirmed)
	doc.DeletionPending = flagFromColumn(pending)

	return doc, nil
}

// documentArgs returns the Documents column values in selectDocFields order,
// without the id.
func documentArgs(doc *reference.Document) []interface{} {
	return []interface{}{
		nullableStringValue(doc.Title), nullableStringValue(doc.Type),
		nullableStringValue(doc.Publication), nullableStringValue(doc.Volume),
		nullableStringValue(doc.Issue), nullableStringValue(doc.Pages),
		nullableInt(doc.Year), nullableInt(doc.Month), nullableInt(doc.Day),
		nullableStringValue(doc.DOI), nullableStringValue(doc.Abstract),
		nullableStringValue(doc.ArxivID), nullableStringValue(doc.PMID),
		nullableStringValue(doc.PMCID), nullableStringValue(doc.S2ID),
		nullableStringValue(doc.SourceType), nullableStringValue(doc.SourceID),
		nullableStringValue(doc.ISSN), nullableStringValue(doc.ISBN),
		nullableStringValue(doc.Publisher), nullableStringValue(doc.Institution),
		nullableStringValue(doc.City), nullableStringValue(doc.Country),
		nullableStringValue(doc.Edition), nullableStringValue(doc.Series),
		nullableStringValue(doc.Chapter), nullableStringValue(doc.CitationKey),
		doc.Added,
		flagColumn(doc.Read), flagColumn(doc.Favourite),
		flagColumn(doc.Confirmed), flagColumn(doc.DeletionPending),
	}
}

// flagColumn converts a flag to its stored form: "true", "false" or NULL.
func flagColumn(f reference.Flag) sql.NullString {
	if f == reference.FlagUnset {
		return sql.NullString{}
	}
	return sql.NullString{String: f.String(), Valid: true}
}

func flagFromColumn(s sql.NullString) reference.Flag {
	if !s.Valid {
		return reference.FlagUnset
	}
	return reference.ParseFlag(s.String)
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullableInt converts an int to sql.NullInt64, treating zero as NULL.
func nullableInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

// relativize converts a legacy absolute path under the library folder to a
// path relative to it. Other paths are returned unchanged.
func relativize(libFolder, p string) string {
	if !filepath.IsAbs(p) || libFolder == "" {
		return p
	}
	rel, err := filepath.Rel(libFolder, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.ToSlash(rel)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
