package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/reference"
)

// AttachmentManager performs the physical file operations of a save.
type AttachmentManager interface {
	// Place puts the file at src into the library for doc and returns its
	// relative path. position is the 1-based index of src in doc.Files.
	Place(doc *reference.Document, src string, position int) (string, error)
	// Move renames a file within the library.
	Move(from, to string) error
	// Remove sends a library file to the OS trash. Errors are logged only.
	Remove(relpath string)
	// Exists reports whether a relative path exists in the library.
	Exists(relpath string) bool
}

// SavedDocument carries the values a save wrote that the caller does not
// already know.
type SavedDocument struct {
	Files         []string // Final relative file list
	NotesCreated  int64
	NotesModified int64
}

// Tx is one save transaction. Each entity is reconciled inside its own
// savepoint, so a failing entity rolls back alone and the rest commit
// together.
type Tx struct {
	db    *DB
	tx    *sql.Tx
	files AttachmentManager
	seq   int
	now   func() time.Time

	// Files to send to the OS trash once the transaction commits.
	trash []string
	// File operations to reverse if the transaction does not commit.
	undo []func()
}

// Begin starts a save transaction. files performs attachment operations.
func (d *DB) Begin(files AttachmentManager) (*Tx, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", failure.ErrIO, err)
	}
	return &Tx{db: d, tx: tx, files: files, now: time.Now}, nil
}

// Commit commits the transaction, then trashes files dropped by the save.
// If the commit fails, attachments placed or moved by the save are put back.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		t.trash = nil
		t.revertFiles(0)
		return fmt.Errorf("%w: committing: %v", failure.ErrIO, err)
	}
	for _, rel := range t.trash {
		t.files.Remove(rel)
	}
	t.trash = nil
	t.undo = nil
	return nil
}

// Rollback abandons the transaction and reverses its file operations.
func (t *Tx) Rollback() error {
	t.trash = nil
	t.revertFiles(0)
	return t.tx.Rollback()
}

// revertFiles undoes the file operations recorded after mark, newest first.
func (t *Tx) revertFiles(mark int) {
	for i := len(t.undo) - 1; i >= mark; i-- {
		t.undo[i]()
	}
	t.undo = t.undo[:mark]
}

// savepoint runs fn inside a savepoint, rolling back to it if fn fails.
func (t *Tx) savepoint(fn func() error) error {
	t.seq++
	name := "entity_" + strconv.Itoa(t.seq)
	queued := len(t.trash)
	undone := len(t.undo)

	if _, err := t.tx.Exec("SAVEPOINT " + name); err != nil {
		return fmt.Errorf("%w: %v", failure.ErrIO, err)
	}
	if err := fn(); err != nil {
		t.trash = t.trash[:queued]
		t.revertFiles(undone)
		if _, rbErr := t.tx.Exec("ROLLBACK TO " + name); rbErr != nil {
			t.db.logger.Error("rollback to savepoint failed", zap.String("savepoint", name), zap.Error(rbErr))
		}
		t.tx.Exec("RELEASE " + name)
		return err
	}
	if _, err := t.tx.Exec("RELEASE " + name); err != nil {
		return fmt.Errorf("%w: %v", failure.ErrIO, err)
	}
	return nil
}

// SaveFolder reconciles one folder: a nil folder is deleted, any other is
// inserted or replaced.
func (t *Tx) SaveFolder(id string, f *reference.Folder) error {
	fid, err := strconv.ParseInt(id, 10, 64)
	if err != nil || fid < 1 {
		return failure.Wrap(id, fmt.Errorf("%w: folder id %q cannot be stored", failure.ErrInvalidMove, id))
	}

	err = t.savepoint(func() error {
		if f == nil {
			if _, err := t.tx.Exec(`DELETE FROM Folders WHERE id = ?`, fid); err != nil {
				return fmt.Errorf("%w: deleting folder: %v", failure.ErrIO, err)
			}
			return nil
		}

		parent, err := strconv.ParseInt(f.ParentID, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid parent id %q", failure.ErrInvalidMove, f.ParentID)
		}
		path := t.db.lib.Name + "/" + f.Name
		_, err = t.tx.Exec(`
			INSERT INTO Folders (id, name, parentId, path) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, parentId = excluded.parentId, path = excluded.path`,
			fid, f.Name, parent, path)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: folder %q already exists under %s", failure.ErrSchemaConflict, f.Name, f.ParentID)
		}
		if err != nil {
			return fmt.Errorf("%w: writing folder: %v", failure.ErrIO, err)
		}
		return nil
	})
	return failure.Wrap(id, err)
}

// SaveDocument reconciles one document with disk: insert when absent on disk,
// delete when doc is nil, update otherwise. The returned SavedDocument is nil
// when the document was deleted or never existed.
func (t *Tx) SaveDocument(id int64, doc *reference.Document) (*SavedDocument, error) {
	var saved *SavedDocument
	err := t.savepoint(func() error {
		var exists int
		err := t.tx.QueryRow(`SELECT COUNT(*) FROM Documents WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%w: checking document: %v", failure.ErrIO, err)
		}

		switch {
		case exists == 0 && doc == nil:
			return nil
		case exists == 0:
			saved, err = t.insertDocument(id, doc)
		case doc == nil:
			err = t.deleteDocument(id)
		default:
			saved, err = t.updateDocument(id, doc)
		}
		return err
	})
	if err != nil {
		return nil, failure.Wrap(strconv.FormatInt(id, 10), err)
	}
	return saved, nil
}

func (t *Tx) insertDocument(id int64, doc *reference.Document) (*SavedDocument, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrSchemaConflict, err)
	}

	args := append([]interface{}{id}, documentArgs(doc)...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	if _, err := t.tx.Exec(`INSERT INTO Documents (`+selectDocFields+`) VALUES (`+placeholders+`)`, args...); err != nil {
		return nil, fmt.Errorf("%w: inserting document: %v", failure.ErrIO, err)
	}

	if err := t.writeAuthors(id, doc); err != nil {
		return nil, err
	}
	for _, rel := range relations {
		if err := t.writeList(id, rel, rel.get(doc)); err != nil {
			return nil, err
		}
	}
	if err := t.writeFolders(id, doc.Folders); err != nil {
		return nil, err
	}

	saved := &SavedDocument{}
	if err := t.reconcileNotes(id, doc, saved); err != nil {
		return nil, err
	}
	files, err := t.reconcileFiles(id, doc, nil)
	if err != nil {
		return nil, err
	}
	saved.Files = files
	return saved, nil
}

func (t *Tx) deleteDocument(id int64) error {
	disk, err := t.diskStrings(`SELECT relpath FROM DocumentFiles WHERE did = ? ORDER BY rowid`, id)
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(`DELETE FROM Documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: deleting document: %v", failure.ErrIO, err)
	}
	for _, rel := range disk {
		if err := t.queueTrash(id, rel); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tx) updateDocument(id int64, doc *reference.Document) (*SavedDocument, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrSchemaConflict, err)
	}

	cols := strings.Split(selectDocFields, ",")[1:]
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i]) + " = ?"
	}
	args := append(documentArgs(doc), id)
	if _, err := t.tx.Exec(`UPDATE Documents SET `+strings.Join(cols, ", ")+` WHERE id = ?`, args...); err != nil {
		return nil, fmt.Errorf("%w: updating document: %v", failure.ErrIO, err)
	}

	diskFirst, diskLast, err := t.diskAuthors(id)
	if err != nil {
		return nil, err
	}
	if !equalStrings(diskFirst, doc.FirstNames) || !equalStrings(diskLast, doc.LastNames) {
		if _, err := t.tx.Exec(`DELETE FROM DocumentContributors WHERE did = ? AND contribution = ?`, id, ContributionAuthor); err != nil {
			return nil, fmt.Errorf("%w: clearing authors: %v", failure.ErrIO, err)
		}
		if err := t.writeAuthors(id, doc); err != nil {
			return nil, err
		}
	}

	for _, rel := range relations {
		disk, err := t.diskStrings(`SELECT `+rel.column+` FROM `+rel.table+` WHERE did = ? ORDER BY rowid`, id)
		if err != nil {
			return nil, err
		}
		if equalStrings(disk, rel.get(doc)) {
			continue
		}
		if _, err := t.tx.Exec(`DELETE FROM `+rel.table+` WHERE did = ?`, id); err != nil {
			return nil, fmt.Errorf("%w: clearing %s: %v", failure.ErrIO, rel.table, err)
		}
		if err := t.writeList(id, rel, rel.get(doc)); err != nil {
			return nil, err
		}
	}

	diskFolders, err := t.diskStrings(`SELECT folderid FROM DocumentFolders WHERE did = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, err
	}
	if !sameSet(diskFolders, doc.Folders) {
		if _, err := t.tx.Exec(`DELETE FROM DocumentFolders WHERE did = ?`, id); err != nil {
			return nil, fmt.Errorf("%w: clearing folders: %v", failure.ErrIO, err)
		}
		if err := t.writeFolders(id, doc.Folders); err != nil {
			return nil, err
		}
	}

	saved := &SavedDocument{}
	if err := t.reconcileNotes(id, doc, saved); err != nil {
		return nil, err
	}

	diskFiles, err := t.diskStrings(`SELECT relpath FROM DocumentFiles WHERE did = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, err
	}
	files, err := t.reconcileFiles(id, doc, diskFiles)
	if err != nil {
		return nil, err
	}
	saved.Files = files
	return saved, nil
}

// relation is a one-to-many string table keyed by did.
type relation struct {
	table  string
	column string
	get    func(*reference.Document) []string
}

var relations = []relation{
	{"DocumentKeywords", "text", func(d *reference.Document) []string { return d.Keywords }},
	{"DocumentTags", "tag", func(d *reference.Document) []string { return d.Tags }},
	{"DocumentUrls", "url", func(d *reference.Document) []string { return d.URLs }},
}

func (t *Tx) writeList(id int64, rel relation, values []string) error {
	for _, v := range values {
		if _, err := t.tx.Exec(`INSERT INTO `+rel.table+` (did, `+rel.column+`) VALUES (?, ?)`, id, v); err != nil {
			return fmt.Errorf("%w: writing %s: %v", failure.ErrIO, rel.table, err)
		}
	}
	return nil
}

// writeAuthors inserts the authors in stored order; readers rebuild the list
// from rowid order.
func (t *Tx) writeAuthors(id int64, doc *reference.Document) error {
	for i := range doc.LastNames {
		_, err := t.tx.Exec(`INSERT INTO DocumentContributors (did, contribution, firstNames, lastName) VALUES (?, ?, ?, ?)`,
			id, ContributionAuthor, doc.FirstNames[i], doc.LastNames[i])
		if err != nil {
			return fmt.Errorf("%w: writing author: %v", failure.ErrIO, err)
		}
	}
	return nil
}

func (t *Tx) writeFolders(id int64, folders []string) error {
	for _, f := range folders {
		fid, err := strconv.ParseInt(f, 10, 64)
		if err != nil || fid < 1 {
			continue // System folders are never stored
		}
		if _, err := t.tx.Exec(`INSERT INTO DocumentFolders (did, folderid) VALUES (?, ?)`, id, fid); err != nil {
			return fmt.Errorf("%w: writing membership in folder %s: %v", failure.ErrSchemaConflict, f, err)
		}
	}
	return nil
}

// reconcileNotes keeps the stored createdTime and stamps modifiedTime when
// the note text changes.
func (t *Tx) reconcileNotes(id int64, doc *reference.Document, saved *SavedDocument) error {
	var note sql.NullString
	var modified, created sql.NullInt64
	err := t.tx.QueryRow(`SELECT note, modifiedTime, createdTime FROM DocumentNotes WHERE did = ? ORDER BY rowid LIMIT 1`, id).
		Scan(&note, &modified, &created)
	hasRow := err == nil
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("%w: reading notes: %v", failure.ErrIO, err)
	}

	now := t.now().Unix()
	switch {
	case doc.Notes == "":
		if hasRow {
			if _, err := t.tx.Exec(`DELETE FROM DocumentNotes WHERE did = ?`, id); err != nil {
				return fmt.Errorf("%w: clearing notes: %v", failure.ErrIO, err)
			}
		}
	case !hasRow:
		createdAt := doc.NotesCreated
		if createdAt == 0 {
			createdAt = now
		}
		if _, err := t.tx.Exec(`INSERT INTO DocumentNotes (did, note, modifiedTime, createdTime) VALUES (?, ?, ?, ?)`,
			id, doc.Notes, now, createdAt); err != nil {
			return fmt.Errorf("%w: writing notes: %v", failure.ErrIO, err)
		}
		saved.NotesCreated, saved.NotesModified = createdAt, now
	case note.String != doc.Notes:
		if _, err := t.tx.Exec(`UPDATE DocumentNotes SET note = ?, modifiedTime = ? WHERE did = ?`, doc.Notes, now, id); err != nil {
			return fmt.Errorf("%w: updating notes: %v", failure.ErrIO, err)
		}
		saved.NotesCreated, saved.NotesModified = created.Int64, now
	default:
		saved.NotesCreated, saved.NotesModified = created.Int64, modified.Int64
	}
	return nil
}

// reconcileFiles brings the library folder and DocumentFiles in line with
// doc.Files. Absolute paths outside the library are placed; relative paths
// that replace dropped ones are moves; dropped paths go to the OS trash after
// commit unless another document still references them.
func (t *Tx) reconcileFiles(id int64, doc *reference.Document, disk []string) ([]string, error) {
	want := make([]string, len(doc.Files))
	var fresh []int
	for i, p := range doc.Files {
		want[i] = relativize(t.db.lib.Folder, p)
		if filepath.IsAbs(want[i]) {
			fresh = append(fresh, i)
		}
	}

	wantSet := make(map[string]bool, len(want))
	for _, p := range want {
		wantSet[p] = true
	}
	diskSet := make(map[string]bool, len(disk))
	for _, p := range disk {
		diskSet[p] = true
	}

	var removed, added []string
	for _, p := range disk {
		if !wantSet[p] {
			removed = append(removed, p)
		}
	}
	for _, p := range want {
		if !filepath.IsAbs(p) && !diskSet[p] && !t.files.Exists(p) {
			added = append(added, p)
		}
	}

	paired := 0
	for ; paired < len(removed) && paired < len(added); paired++ {
		from, to := removed[paired], added[paired]
		if err := t.files.Move(from, to); err != nil {
			return nil, err
		}
		t.undo = append(t.undo, func() { t.files.Move(to, from) })
	}
	for _, p := range removed[paired:] {
		if err := t.queueTrash(id, p); err != nil {
			return nil, err
		}
	}

	for _, i := range fresh {
		rel, err := t.files.Place(doc, want[i], i+1)
		if err != nil {
			return nil, err
		}
		want[i] = rel
		t.undo = append(t.undo, func() { t.files.Remove(rel) })
	}

	if !equalStrings(disk, want) {
		if _, err := t.tx.Exec(`DELETE FROM DocumentFiles WHERE did = ?`, id); err != nil {
			return nil, fmt.Errorf("%w: clearing files: %v", failure.ErrIO, err)
		}
		for _, p := range want {
			if _, err := t.tx.Exec(`INSERT INTO DocumentFiles (did, relpath) VALUES (?, ?)`, id, p); err != nil {
				return nil, fmt.Errorf("%w: writing file: %v", failure.ErrIO, err)
			}
		}
	}
	return want, nil
}

// queueTrash schedules rel for the OS trash unless another document uses it.
func (t *Tx) queueTrash(id int64, rel string) error {
	var others int
	err := t.tx.QueryRow(`SELECT COUNT(*) FROM DocumentFiles WHERE relpath = ? AND did != ?`, rel, id).Scan(&others)
	if err != nil {
		return fmt.Errorf("%w: checking file references: %v", failure.ErrIO, err)
	}
	if others > 0 {
		t.db.logger.Debug("file still referenced, not trashed", zap.Int64("doc_id", id), zap.String("relpath", rel))
		return nil
	}
	t.trash = append(t.trash, rel)
	return nil
}

func (t *Tx) diskStrings(query string, id int64) ([]string, error) {
	rows, err := t.tx.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (t *Tx) diskAuthors(id int64) ([]string, []string, error) {
	rows, err := t.tx.Query(`SELECT firstNames, lastName FROM DocumentContributors WHERE did = ? AND contribution = ? ORDER BY rowid`,
		id, ContributionAuthor)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading authors: %v", failure.ErrIO, err)
	}
	defer rows.Close()

	var first, last []string
	for rows.Next() {
		var f, l sql.NullString
		if err := rows.Scan(&f, &l); err != nil {
			return nil, nil, fmt.Errorf("%w: reading authors: %v", failure.ErrIO, err)
		}
		first = append(first, f.String)
		last = append(last, l.String)
	}
	return first, last, rows.Err()
}

func equalStrings(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		if seen[v] == 0 {
			return false
		}
		seen[v]--
	}
	return true
}
