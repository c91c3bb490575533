// Package catalog holds the live in-memory model of an open library: the
// document and folder maps, the folder tree, and the change sets a save
// walks.
package catalog

import (
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/reference"
	"github.com/matsen/shelf/internal/storage"
)

// Catalog is the authoritative model during a session. It is not safe for
// concurrent use; the session serializes access.
type Catalog struct {
	docs       map[int64]*reference.Document
	folders    map[string]*reference.Folder // Real folders only
	folderDocs map[string]map[int64]bool

	changedDocs    []int64
	changedFolders []string

	nextDoc    int64
	nextFolder int64

	logger *zap.Logger
}

// New returns an empty catalog.
func New(logger *zap.Logger) *Catalog {
	return &Catalog{
		docs:       make(map[int64]*reference.Document),
		folders:    make(map[string]*reference.Folder),
		folderDocs: make(map[string]map[int64]bool),
		nextDoc:    1,
		nextFolder: 1,
		logger:     logging.OrNop(logger),
	}
}

// FromSnapshot builds a catalog from a loaded snapshot with empty change sets.
func FromSnapshot(snap *storage.Snapshot, logger *zap.Logger) *Catalog {
	c := New(logger)
	for id, doc := range snap.Documents {
		c.docs[id] = doc
		if id >= c.nextDoc {
			c.nextDoc = id + 1
		}
	}
	for id, f := range snap.Folders {
		c.folders[id] = f
		if n, err := strconv.ParseInt(id, 10, 64); err == nil && n >= c.nextFolder {
			c.nextFolder = n + 1
		}
	}
	for fid, ids := range snap.FolderDocs {
		for _, id := range ids {
			c.addMember(fid, id)
		}
	}
	return c
}

// Document returns the document with id.
func (c *Catalog) Document(id int64) (*reference.Document, bool) {
	doc, ok := c.docs[id]
	return doc, ok
}

// DocumentIDs returns every document id in ascending order.
func (c *Catalog) DocumentIDs() []int64 {
	ids := make([]int64, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Len returns the number of documents.
func (c *Catalog) Len() int {
	return len(c.docs)
}

// Folder returns the folder with id. System folders are synthesized.
func (c *Catalog) Folder(id string) (*reference.Folder, bool) {
	for _, sf := range reference.SystemFolders() {
		if sf.ID == id {
			sf := sf
			return &sf, true
		}
	}
	f, ok := c.folders[id]
	return f, ok
}

// FolderIDs returns the ids of every real folder in ascending numeric order.
func (c *Catalog) FolderIDs() []string {
	ids := make([]string, 0, len(c.folders))
	for id := range c.folders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return folderLess(ids[i], ids[j]) })
	return ids
}

// Members returns the ids of the documents directly in a folder, ascending.
// All and Needs Review are derived from document flags; Trash holds the
// orphans: pending-deletion documents that belong to no folder.
func (c *Catalog) Members(folderID string) []int64 {
	var ids []int64
	switch folderID {
	case reference.AllFolderID:
		for id, doc := range c.docs {
			if !doc.DeletionPending.IsTrue() {
				ids = append(ids, id)
			}
		}
	case reference.ReviewFolderID:
		for id, doc := range c.docs {
			if !doc.Confirmed.IsTrue() {
				ids = append(ids, id)
			}
		}
	case reference.TrashFolderID:
		for id, doc := range c.docs {
			if doc.DeletionPending.IsTrue() && len(doc.Folders) == 0 {
				ids = append(ids, id)
			}
		}
	default:
		for id := range c.folderDocs[folderID] {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids
}

// Insert adds doc under a fresh id and returns the id.
func (c *Catalog) Insert(doc *reference.Document) int64 {
	id := c.nextDoc
	c.nextDoc++
	doc.ID = id
	if doc.Added == 0 {
		doc.Added = reference.New().Added
	}
	c.docs[id] = doc
	c.indexFolders(doc)
	c.MarkDocument(id)
	return id
}

// Replace swaps in a new record for an existing document, keeping its id
// and reindexing its folder memberships. A pending-deletion record loses its
// live folders; a record that lost memberships is checked for orphaning.
func (c *Catalog) Replace(doc *reference.Document) error {
	old, ok := c.docs[doc.ID]
	if !ok {
		return fmt.Errorf("%w: document %d", failure.ErrNotFound, doc.ID)
	}
	removed := false
	for _, fid := range old.Folders {
		c.removeMember(fid, doc.ID)
		if !doc.InFolder(fid) {
			removed = true
		}
	}
	c.docs[doc.ID] = doc
	c.indexFolders(doc)
	c.MarkDocument(doc.ID)
	if doc.DeletionPending.IsTrue() {
		c.dropLiveFolders(doc)
	} else if removed {
		c.evaluateOrphan(doc.ID)
	}
	return nil
}

// MarkDocument appends id to the document change set.
func (c *Catalog) MarkDocument(id int64) {
	c.changedDocs = append(c.changedDocs, id)
}

// MarkFolder appends id to the folder change set.
func (c *Catalog) MarkFolder(id string) {
	c.changedFolders = append(c.changedFolders, id)
}

// HasChanges reports whether anything awaits a save.
func (c *Catalog) HasChanges() bool {
	return len(c.changedDocs) > 0 || len(c.changedFolders) > 0
}

// ChangedDocuments returns the deduplicated document change set in first-change order.
func (c *Catalog) ChangedDocuments() []int64 {
	seen := make(map[int64]bool, len(c.changedDocs))
	var out []int64
	for _, id := range c.changedDocs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// ChangedFolders returns the deduplicated folder change set in first-change order.
func (c *Catalog) ChangedFolders() []string {
	seen := make(map[string]bool, len(c.changedFolders))
	var out []string
	for _, id := range c.changedFolders {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// ClearSaved drops saved entities from the change sets. Anything else stays
// queued for the next save.
func (c *Catalog) ClearSaved(docs []int64, folders []string) {
	savedDocs := make(map[int64]bool, len(docs))
	for _, id := range docs {
		savedDocs[id] = true
	}
	keptDocs := c.changedDocs[:0]
	for _, id := range c.changedDocs {
		if !savedDocs[id] {
			keptDocs = append(keptDocs, id)
		}
	}
	c.changedDocs = keptDocs

	savedFolders := make(map[string]bool, len(folders))
	for _, id := range folders {
		savedFolders[id] = true
	}
	keptFolders := c.changedFolders[:0]
	for _, id := range c.changedFolders {
		if !savedFolders[id] {
			keptFolders = append(keptFolders, id)
		}
	}
	c.changedFolders = keptFolders
}

// ApplySaved writes back what a save decided for a document: its final file
// list and note timestamps. It does not mark the document changed.
func (c *Catalog) ApplySaved(id int64, saved *storage.SavedDocument) {
	doc, ok := c.docs[id]
	if !ok || saved == nil {
		return
	}
	doc.Files = saved.Files
	doc.NotesCreated = saved.NotesCreated
	doc.NotesModified = saved.NotesModified
}

// indexFolders drops unknown folder ids from doc and indexes the rest.
func (c *Catalog) indexFolders(doc *reference.Document) {
	var folders []string
	for _, fid := range doc.Folders {
		if _, real := c.folders[fid]; real && !contains(folders, fid) {
			folders = append(folders, fid)
			c.addMember(fid, doc.ID)
		}
	}
	doc.Folders = folders
}

func (c *Catalog) addMember(folderID string, docID int64) {
	if reference.IsSystemFolder(folderID) {
		return
	}
	set, ok := c.folderDocs[folderID]
	if !ok {
		set = make(map[int64]bool)
		c.folderDocs[folderID] = set
	}
	set[docID] = true
}

func (c *Catalog) removeMember(folderID string, docID int64) {
	if set, ok := c.folderDocs[folderID]; ok {
		delete(set, docID)
		if len(set) == 0 {
			delete(c.folderDocs, folderID)
		}
	}
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// folderLess orders folder ids numerically, falling back to string order.
func folderLess(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
