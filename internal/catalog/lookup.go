package catalog

import (
	"fmt"

	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/reference"
)

// ApplyLookup replaces a document's bibliographic record with one fetched by
// DOI. Catalog state is kept from the existing record: id, flags, added time,
// files, folders, tags, notes and the abstract when the lookup has none.
func (c *Catalog) ApplyLookup(id int64, found *reference.Document) (*reference.Document, error) {
	cur, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %d", failure.ErrNotFound, id)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: empty lookup result for document %d", failure.ErrNotFound, id)
	}

	next := found.Clone()
	next.ID = cur.ID
	next.Read = cur.Read
	next.Favourite = cur.Favourite
	next.DeletionPending = cur.DeletionPending
	next.Added = cur.Added
	next.Files = cur.Files
	next.Folders = cur.Folders
	next.Tags = cur.Tags
	next.Notes = cur.Notes
	next.NotesCreated = cur.NotesCreated
	next.NotesModified = cur.NotesModified
	if cur.Abstract != "" {
		next.Abstract = cur.Abstract
	}
	if next.Type == "" {
		next.Type = cur.Type
	}
	if next.CitationKey == "" {
		next.CitationKey = cur.CitationKey
	}
	next.SourceType, next.SourceID = cur.SourceType, cur.SourceID
	// A looked-up record has been checked against the registry.
	next.Confirmed = reference.FlagTrue

	c.docs[id] = next
	c.MarkDocument(id)
	return next, nil
}
