package importer

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/matsen/shelf/internal/attach"
	"github.com/matsen/shelf/internal/config"
	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/fulltext"
	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/reference"
	"github.com/matsen/shelf/internal/storage"
	"github.com/matsen/shelf/internal/worker"
)

const (
	// SourceMendeley marks documents imported from a Mendeley catalog.
	SourceMendeley = "mendeley"

	mendeleyDefault = "Default"
	// MendeleyDefaultFolder receives the source's Default folder and every
	// live document that belonged to no folder.
	MendeleyDefaultFolder = "Default_Mendeley"

	mendeleyAuthor = "DocumentAuthor"
)

// mendeleyTypes maps Mendeley document types onto BibTeX-style types.
var mendeleyTypes = map[string]string{
	"JournalArticle":        "article",
	"Book":                  "book",
	"BookSection":           "inbook",
	"ConferenceProceedings": "inproceedings",
	"Thesis":                "phdthesis",
	"Report":                "techreport",
	"WorkingPaper":          "unpublished",
	"Generic":               "misc",
}

// MendeleyOptions configures a Mendeley import.
type MendeleyOptions struct {
	// Index builds the full-text index of the imported attachments.
	Index bool
	// Master runs text extraction when Index is set.
	Master  *worker.Master
	Trasher attach.Trasher
	Logger  *zap.Logger
}

// MendeleyResult summarizes an import.
type MendeleyResult struct {
	Documents    int                  `json:"documents"`
	Folders      int                  `json:"folders"`
	Files        int                  `json:"files"`
	MissingFiles []string             `json:"missing_files,omitempty"`
	Report       failure.Report       `json:"report"`
	Index        *fulltext.BuildStats `json:"index,omitempty"`
}

// mendeleyCatalog is everything read from the source.
type mendeleyCatalog struct {
	docs    map[int64]*reference.Document
	folders map[int64]*reference.Folder // Keyed by source id; ParentID holds the source parent
}

// ImportMendeley creates a fresh library at dest from the Mendeley catalog at
// src. Attachments are copied into _collections/ under the renaming scheme.
// Entities that fail to save are reported; the rest of the import commits.
func ImportMendeley(ctx context.Context, src string, dest config.Library, opts MendeleyOptions) (*MendeleyResult, error) {
	logger := logging.FromContext(ctx, opts.Logger).With(zap.String("source", src))
	if dest.Exists() {
		return nil, fmt.Errorf("%w: library %s already exists", failure.ErrIO, dest.DBPath)
	}

	cat, err := readMendeley(src)
	if err != nil {
		return nil, err
	}
	result := &MendeleyResult{}
	folders := remapFolders(cat.folders)
	result.MissingFiles = adaptDocuments(cat.docs, folders)

	if err := dest.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
	}
	db, err := storage.OpenDB(dest, logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	files := attach.NewManager(dest, config.SavingSettings{
		FileMoveManner: config.MannerCopy,
		RenameFiles:    1,
	}, opts.Trasher, logger)
	tx, err := db.Begin(files)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(folders.byNew))
	for id := range folders.byNew {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return len(ids[i]) < len(ids[j]) || len(ids[i]) == len(ids[j]) && ids[i] < ids[j] })
	for _, id := range ids {
		if err := tx.SaveFolder(id, folders.byNew[id]); err != nil {
			result.Report.Add(id, err)
			continue
		}
		result.Folders++
	}

	var indexIDs []int64
	var indexFiles []fulltext.File
	for _, id := range sortedDocIDs(cat.docs) {
		if ctx.Err() != nil {
			tx.Rollback()
			return nil, fmt.Errorf("%w: %v", failure.ErrCancelled, ctx.Err())
		}
		doc := cat.docs[id]
		saved, err := tx.SaveDocument(id, doc)
		if err != nil {
			result.Report.Add(strconv.FormatInt(id, 10), err)
			continue
		}
		result.Documents++
		result.Files += len(saved.Files)
		if len(saved.Files) > 0 {
			indexIDs = append(indexIDs, id)
			for _, rel := range saved.Files {
				indexFiles = append(indexFiles, fulltext.File{DocID: id, RelPath: rel, Path: files.Locate(rel)})
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	result.Report.Saved = result.Documents + result.Folders
	logger.Info("mendeley import committed",
		zap.Int("documents", result.Documents),
		zap.Int("folders", result.Folders),
		zap.Int("files", result.Files),
		zap.Int("missing_files", len(result.MissingFiles)),
		zap.Int("failed", len(result.Report.Failed)))

	if opts.Index && opts.Master != nil && len(indexFiles) > 0 {
		b := fulltext.NewBuilder(dest.FullTextPath(), opts.Master, logger)
		stats, err := b.Update(ctx, indexIDs, indexFiles)
		if err != nil {
			if failure.IsCancelled(err) {
				return result, err
			}
			// The catalog is committed; a failed index is rebuilt later.
			logger.Warn("indexing imported files failed", zap.Error(err))
		}
		result.Index = stats
	}
	return result, nil
}

// readMendeley loads documents and folders from a Mendeley SQLite catalog.
func readMendeley(path string) (*mendeleyCatalog, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", failure.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", failure.ErrIO, path, err)
	}
	defer db.Close()

	cat := &mendeleyCatalog{
		docs:    make(map[int64]*reference.Document),
		folders: make(map[int64]*reference.Folder),
	}
	steps := []func(*sql.DB) error{
		cat.readDocuments,
		cat.readAuthors,
		cat.readLists,
		cat.readFiles,
		cat.readFolders,
	}
	for _, step := range steps {
		if err := step(db); err != nil {
			return nil, fmt.Errorf("%w: %s is not a readable Mendeley catalog: %v", failure.ErrDecode, path, err)
		}
	}
	return cat, nil
}

func (c *mendeleyCatalog) readDocuments(db *sql.DB) error {
	rows, err := db.Query(`SELECT id, title, type, publication, volume, issue, pages,
		year, month, day, doi, abstract, arxivId, pmid, issn, isbn, publisher,
		institution, city, country, edition, series, chapter, citationKey, note,
		added, read, favourite, confirmed, deletionPending
		FROM Documents ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                                          int64
			head                                        [6]sql.NullString
			tail                                        [15]sql.NullString
			year, month, day, added                     sql.NullInt64
			read, favourite, confirmed, deletionPending sql.NullString
		)
		dest := []any{&id}
		for i := range head {
			dest = append(dest, &head[i])
		}
		dest = append(dest, &year, &month, &day)
		for i := range tail {
			dest = append(dest, &tail[i])
		}
		dest = append(dest, &added, &read, &favourite, &confirmed, &deletionPending)
		if err := rows.Scan(dest...); err != nil {
			return err
		}

		doc := reference.New()
		doc.ID = id
		headFields := []*string{&doc.Title, &doc.Type, &doc.Publication, &doc.Volume, &doc.Issue, &doc.Pages}
		tailFields := []*string{
			&doc.DOI, &doc.Abstract, &doc.ArxivID, &doc.PMID, &doc.ISSN, &doc.ISBN,
			&doc.Publisher, &doc.Institution, &doc.City, &doc.Country, &doc.Edition,
			&doc.Series, &doc.Chapter, &doc.CitationKey, &doc.Notes,
		}
		for i, p := range headFields {
			*p = strings.TrimSpace(head[i].String)
		}
		for i, p := range tailFields {
			*p = strings.TrimSpace(tail[i].String)
		}
		doc.Type = mendeleyType(head[1].String)
		doc.Year = int(year.Int64)
		if month.Int64 >= 1 && month.Int64 <= 12 {
			doc.Month = int(month.Int64)
		}
		if day.Int64 >= 1 && day.Int64 <= 31 {
			doc.Day = int(day.Int64)
		}
		if added.Valid && added.Int64 > 0 {
			doc.Added = added.Int64
			if doc.Added > 1e11 {
				doc.Added /= 1000 // Milliseconds
			}
		}
		doc.Read = reference.ParseFlag(read.String)
		doc.Favourite = reference.ParseFlag(favourite.String)
		doc.Confirmed = reference.ParseFlag(confirmed.String)
		doc.DeletionPending = reference.ParseFlag(deletionPending.String)
		doc.SourceType = SourceMendeley
		doc.SourceID = strconv.FormatInt(id, 10)
		c.docs[id] = doc
	}
	return rows.Err()
}

func mendeleyType(t string) string {
	if mapped, ok := mendeleyTypes[t]; ok {
		return mapped
	}
	if t = strings.TrimSpace(t); t != "" {
		return strings.ToLower(t)
	}
	return reference.DefaultType
}

func (c *mendeleyCatalog) readAuthors(db *sql.DB) error {
	rows, err := db.Query(`SELECT documentId, firstNames, lastName FROM DocumentContributors
		WHERE contribution = ? ORDER BY id`, mendeleyAuthor)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var first, last sql.NullString
		if err := rows.Scan(&id, &first, &last); err != nil {
			return err
		}
		if doc, ok := c.docs[id]; ok {
			doc.FirstNames = append(doc.FirstNames, strings.TrimSpace(first.String))
			doc.LastNames = append(doc.LastNames, strings.TrimSpace(last.String))
		}
	}
	return rows.Err()
}

func (c *mendeleyCatalog) readLists(db *sql.DB) error {
	lists := []struct {
		query  string
		assign func(*reference.Document, string)
	}{
		{`SELECT documentId, keyword FROM DocumentKeywords ORDER BY rowid`,
			func(d *reference.Document, v string) { d.Keywords = append(d.Keywords, v) }},
		{`SELECT documentId, tag FROM DocumentTags ORDER BY rowid`,
			func(d *reference.Document, v string) { d.Tags = append(d.Tags, v) }},
		{`SELECT documentId, url FROM DocumentUrls ORDER BY documentId, position`,
			func(d *reference.Document, v string) { d.URLs = append(d.URLs, v) }},
		{`SELECT documentId, folderId FROM DocumentFolders ORDER BY rowid`,
			func(d *reference.Document, v string) { d.Folders = append(d.Folders, v) }},
	}
	for _, l := range lists {
		if err := scanPairs(db, l.query, func(id int64, v string) {
			if doc, ok := c.docs[id]; ok && v != "" {
				l.assign(doc, v)
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

// readFiles attaches local file paths. Remote-only entries are skipped.
func (c *mendeleyCatalog) readFiles(db *sql.DB) error {
	return scanPairs(db, `SELECT df.documentId, f.localUrl FROM DocumentFiles df
		JOIN Files f ON f.hash = df.hash ORDER BY df.rowid`, func(id int64, v string) {
		doc, ok := c.docs[id]
		if !ok {
			return
		}
		if p := localPath(v); p != "" {
			doc.Files = append(doc.Files, p)
		}
	})
}

func (c *mendeleyCatalog) readFolders(db *sql.DB) error {
	rows, err := db.Query(`SELECT id, name, parentId FROM Folders ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name sql.NullString
		var parent sql.NullInt64
		if err := rows.Scan(&id, &name, &parent); err != nil {
			return err
		}
		parentID := reference.RootParentID
		if parent.Valid && parent.Int64 > 0 {
			parentID = strconv.FormatInt(parent.Int64, 10)
		}
		c.folders[id] = &reference.Folder{ID: strconv.FormatInt(id, 10), Name: name.String, ParentID: parentID}
	}
	return rows.Err()
}

func scanPairs(db *sql.DB, query string, fn func(int64, string)) error {
	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var v sql.NullString
		if err := rows.Scan(&id, &v); err != nil {
			return err
		}
		fn(id, strings.TrimSpace(v.String))
	}
	return rows.Err()
}

// localPath turns a file:// URL into an absolute path.
func localPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "" && u.Scheme != "file") {
		return ""
	}
	if u.Scheme == "" {
		if filepath.IsAbs(raw) {
			return raw
		}
		return ""
	}
	return filepath.FromSlash(u.Path)
}

// folderMap holds the destination folders and the source-to-destination id
// mapping.
type folderMap struct {
	byNew    map[string]*reference.Folder
	bySource map[string]string
	def      string // Destination id of Default_Mendeley
}

// remapFolders numbers the source folders from 1, re-parents folders whose
// parent is missing to the root, and renames Default. Default_Mendeley is
// created when the source has no Default folder.
func remapFolders(src map[int64]*reference.Folder) *folderMap {
	m := &folderMap{byNew: make(map[string]*reference.Folder), bySource: make(map[string]string)}
	ids := make([]int64, 0, len(src))
	for id := range src {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	next := int64(1)
	for _, id := range ids {
		m.bySource[src[id].ID] = strconv.FormatInt(next, 10)
		next++
	}
	for _, id := range ids {
		f := src[id]
		newID := m.bySource[f.ID]
		parent, ok := m.bySource[f.ParentID]
		if !ok {
			parent = reference.RootParentID
		}
		name := f.Name
		if name == mendeleyDefault && parent == reference.RootParentID && m.def == "" {
			name = MendeleyDefaultFolder
			m.def = newID
		}
		m.byNew[newID] = &reference.Folder{ID: newID, Name: name, ParentID: parent}
	}
	if m.def == "" {
		m.def = strconv.FormatInt(next, 10)
		m.byNew[m.def] = &reference.Folder{ID: m.def, Name: MendeleyDefaultFolder, ParentID: reference.RootParentID}
	}
	return m
}

// adaptDocuments rewrites folder memberships to destination ids, files live
// unfiled documents under Default_Mendeley and drops attachments that are
// missing on disk. It returns the missing paths.
func adaptDocuments(docs map[int64]*reference.Document, folders *folderMap) []string {
	var missing []string
	for _, id := range sortedDocIDs(docs) {
		doc := docs[id]
		var mapped []string
		for _, f := range doc.Folders {
			if newID, ok := folders.bySource[f]; ok && !contains(mapped, newID) {
				mapped = append(mapped, newID)
			}
		}
		if len(mapped) == 0 && !doc.DeletionPending.IsTrue() {
			mapped = []string{folders.def}
		}
		doc.Folders = mapped

		var present []string
		for _, p := range doc.Files {
			if _, err := os.Stat(p); err != nil {
				missing = append(missing, p)
				continue
			}
			if !contains(present, p) {
				present = append(present, p)
			}
		}
		doc.Files = present

		if len(doc.FirstNames) != len(doc.LastNames) {
			doc.SetAuthors(doc.AuthorList())
		}
	}
	return missing
}

func sortedDocIDs(docs map[int64]*reference.Document) []int64 {
	ids := make([]int64, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
