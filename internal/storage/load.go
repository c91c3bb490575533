package storage

import (
	"database/sql"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/reference"
)

// Snapshot is the catalog as materialized from disk.
type Snapshot struct {
	Documents  map[int64]*reference.Document
	Folders    map[string]*reference.Folder // Real folders only
	FolderDocs map[string][]int64           // Folder id -> member ids, ascending
}

// LoadCatalog reads every document and folder from disk.
func (d *DB) LoadCatalog() (*Snapshot, error) {
	snap := &Snapshot{
		Documents:  make(map[int64]*reference.Document),
		Folders:    make(map[string]*reference.Folder),
		FolderDocs: make(map[string][]int64),
	}

	rows, err := d.db.Query(`SELECT ` + selectDocFields + ` FROM Documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		snap.Documents[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("loading documents: %w", err)
	}
	rows.Close()

	if err := d.loadAuthors(snap.Documents); err != nil {
		return nil, err
	}

	lists := []struct {
		query  string
		assign func(doc *reference.Document, v string)
	}{
		{`SELECT did, text FROM DocumentKeywords ORDER BY rowid`,
			func(doc *reference.Document, v string) { doc.Keywords = append(doc.Keywords, v) }},
		{`SELECT did, tag FROM DocumentTags ORDER BY rowid`,
			func(doc *reference.Document, v string) { doc.Tags = append(doc.Tags, v) }},
		{`SELECT did, url FROM DocumentUrls ORDER BY rowid`,
			func(doc *reference.Document, v string) { doc.URLs = append(doc.URLs, v) }},
		{`SELECT did, relpath FROM DocumentFiles ORDER BY rowid`,
			func(doc *reference.Document, v string) {
				rel := relativize(d.lib.Folder, v)
				if rel != v {
					d.logger.Debug("converted legacy file path", zap.Int64("doc_id", doc.ID), zap.String("relpath", rel))
				}
				doc.Files = append(doc.Files, rel)
			}},
	}
	for _, l := range lists {
		if err := d.loadStrings(snap.Documents, l.query, l.assign); err != nil {
			return nil, err
		}
	}

	if err := d.loadNotes(snap.Documents); err != nil {
		return nil, err
	}
	if err := d.loadFolders(snap); err != nil {
		return nil, err
	}

	return snap, nil
}

func (d *DB) loadAuthors(docs map[int64]*reference.Document) error {
	rows, err := d.db.Query(`
		SELECT did, firstNames, lastName FROM DocumentContributors
		WHERE contribution = ? ORDER BY rowid`, ContributionAuthor)
	if err != nil {
		return fmt.Errorf("loading authors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var did int64
		var first, last sql.NullString
		if err := rows.Scan(&did, &first, &last); err != nil {
			return fmt.Errorf("scanning author: %w", err)
		}
		if doc, ok := docs[did]; ok {
			doc.FirstNames = append(doc.FirstNames, first.String)
			doc.LastNames = append(doc.LastNames, last.String)
		}
	}
	return rows.Err()
}

func (d *DB) loadStrings(docs map[int64]*reference.Document, query string, assign func(*reference.Document, string)) error {
	rows, err := d.db.Query(query)
	if err != nil {
		return fmt.Errorf("loading %q: %w", query, err)
	}
	defer rows.Close()

	for rows.Next() {
		var did int64
		var v string
		if err := rows.Scan(&did, &v); err != nil {
			return fmt.Errorf("scanning %q: %w", query, err)
		}
		if doc, ok := docs[did]; ok {
			assign(doc, v)
		}
	}
	return rows.Err()
}

func (d *DB) loadNotes(docs map[int64]*reference.Document) error {
	rows, err := d.db.Query(`SELECT did, note, modifiedTime, createdTime FROM DocumentNotes ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("loading notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var did int64
		var note sql.NullString
		var modified, created sql.NullInt64
		if err := rows.Scan(&did, &note, &modified, &created); err != nil {
			return fmt.Errorf("scanning note: %w", err)
		}
		if doc, ok := docs[did]; ok {
			doc.Notes = note.String
			doc.NotesModified = modified.Int64
			doc.NotesCreated = created.Int64
		}
	}
	return rows.Err()
}

func (d *DB) loadFolders(snap *Snapshot) error {
	rows, err := d.db.Query(`SELECT id, name, parentId FROM Folders ORDER BY id`)
	if err != nil {
		return fmt.Errorf("loading folders: %w", err)
	}
	for rows.Next() {
		var id, parent int64
		var name string
		if err := rows.Scan(&id, &name, &parent); err != nil {
			rows.Close()
			return fmt.Errorf("scanning folder: %w", err)
		}
		fid := strconv.FormatInt(id, 10)
		snap.Folders[fid] = &reference.Folder{ID: fid, Name: name, ParentID: strconv.FormatInt(parent, 10)}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("loading folders: %w", err)
	}
	rows.Close()

	rows, err = d.db.Query(`SELECT did, folderid FROM DocumentFolders ORDER BY did, rowid`)
	if err != nil {
		return fmt.Errorf("loading memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var did, folderID int64
		if err := rows.Scan(&did, &folderID); err != nil {
			return fmt.Errorf("scanning membership: %w", err)
		}
		fid := strconv.FormatInt(folderID, 10)
		doc, ok := snap.Documents[did]
		if _, known := snap.Folders[fid]; !ok || !known {
			continue
		}
		if doc.InFolder(fid) {
			continue
		}
		doc.Folders = append(doc.Folders, fid)
		snap.FolderDocs[fid] = append(snap.FolderDocs[fid], did)
	}
	return rows.Err()
}
