package catalog

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/reference"
)

// AddToFolder files a document into a folder. Adding to Trash trashes the
// document. Adding to a live folder restores a pending-deletion document.
func (c *Catalog) AddToFolder(docID int64, folderID string) error {
	doc, ok := c.docs[docID]
	if !ok {
		return fmt.Errorf("%w: document %d", failure.ErrNotFound, docID)
	}
	switch folderID {
	case reference.AllFolderID, reference.ReviewFolderID:
		return fmt.Errorf("%w: documents cannot be added to folder %s", failure.ErrInvalidMove, folderID)
	case reference.TrashFolderID:
		c.TrashDocuments([]int64{docID})
		return nil
	}
	if _, ok := c.folders[folderID]; !ok {
		return fmt.Errorf("%w: folder %s", failure.ErrNotFound, folderID)
	}

	if !doc.InFolder(folderID) {
		doc.Folders = append(doc.Folders, folderID)
	}
	c.addMember(folderID, docID)
	if !c.IsTrashed(folderID) {
		doc.DeletionPending = reference.FlagFalse
	}
	c.MarkDocument(docID)
	return nil
}

// RemoveFromFolder unfiles a document. A document left without any live
// folder becomes an orphan in Trash.
func (c *Catalog) RemoveFromFolder(docID int64, folderID string) error {
	doc, ok := c.docs[docID]
	if !ok {
		return fmt.Errorf("%w: document %d", failure.ErrNotFound, docID)
	}
	if reference.IsSystemFolder(folderID) {
		return fmt.Errorf("%w: documents cannot be removed from folder %s", failure.ErrInvalidMove, folderID)
	}
	if !doc.InFolder(folderID) {
		return nil
	}

	var kept []string
	for _, fid := range doc.Folders {
		if fid != folderID {
			kept = append(kept, fid)
		}
	}
	doc.Folders = kept
	c.removeMember(folderID, docID)
	c.MarkDocument(docID)
	c.evaluateOrphan(docID)
	return nil
}

// TrashDocuments marks documents pending deletion and drops their live
// memberships. Memberships of trashed folders are kept. Unknown ids are
// skipped; the trashed ids are returned.
func (c *Catalog) TrashDocuments(ids []int64) []int64 {
	var trashed []int64
	for _, id := range ids {
		doc, ok := c.docs[id]
		if !ok {
			continue
		}
		c.dropLiveFolders(doc)
		doc.DeletionPending = reference.FlagTrue
		c.MarkDocument(id)
		trashed = append(trashed, id)
	}
	if len(trashed) > 0 {
		c.logger.Debug("documents trashed", zap.Int64s("doc_ids", trashed))
	}
	return trashed
}

// RestoreDocuments clears deletionPending. Restored documents show in All
// even when they belong to no folder.
func (c *Catalog) RestoreDocuments(ids []int64) []int64 {
	var restored []int64
	for _, id := range ids {
		doc, ok := c.docs[id]
		if !ok || !doc.DeletionPending.IsTrue() {
			continue
		}
		doc.DeletionPending = reference.FlagFalse
		c.MarkDocument(id)
		restored = append(restored, id)
	}
	return restored
}

// DeleteDocuments removes documents permanently. The next save deletes
// their rows and sends their files to the OS trash.
func (c *Catalog) DeleteDocuments(ids []int64) []int64 {
	var deleted []int64
	for _, id := range ids {
		if _, ok := c.docs[id]; !ok {
			continue
		}
		c.deleteDocument(id)
		deleted = append(deleted, id)
	}
	if len(deleted) > 0 {
		c.logger.Debug("documents deleted", zap.Int64s("doc_ids", deleted))
	}
	return deleted
}

// EmptyTrash permanently deletes every trashed folder and every document
// pending deletion.
func (c *Catalog) EmptyTrash() DeleteResult {
	var res DeleteResult
	for _, root := range c.ChildrenOf(reference.TrashFolderID) {
		r, err := c.DeleteFolder(root.ID)
		if err != nil {
			c.logger.Warn("emptying trashed folder", zap.String("folder_id", root.ID), zap.Error(err))
			continue
		}
		res.Folders = append(res.Folders, r.Folders...)
		res.Documents = append(res.Documents, r.Documents...)
	}

	var pending []int64
	for id, doc := range c.docs {
		if doc.DeletionPending.IsTrue() {
			pending = append(pending, id)
		}
	}
	sortIDs(pending)
	res.Documents = append(res.Documents, c.DeleteDocuments(pending)...)
	sortIDs(res.Documents)
	return res
}

// dropLiveFolders removes doc from every folder outside Trash.
func (c *Catalog) dropLiveFolders(doc *reference.Document) {
	var kept []string
	for _, fid := range doc.Folders {
		if c.IsTrashed(fid) {
			kept = append(kept, fid)
			continue
		}
		c.removeMember(fid, doc.ID)
	}
	doc.Folders = kept
}

func (c *Catalog) deleteDocument(id int64) {
	doc := c.docs[id]
	for _, fid := range doc.Folders {
		c.removeMember(fid, id)
	}
	delete(c.docs, id)
	c.MarkDocument(id)
}

// evaluateOrphan trashes a document that belongs to no live folder after a
// membership was removed.
func (c *Catalog) evaluateOrphan(id int64) {
	doc := c.docs[id]
	for _, fid := range doc.Folders {
		if !c.IsTrashed(fid) {
			return
		}
	}
	if doc.DeletionPending.IsTrue() {
		return
	}
	doc.DeletionPending = reference.FlagTrue
	c.MarkDocument(id)
	c.logger.Debug("document orphaned", zap.Int64("doc_id", id))
}
