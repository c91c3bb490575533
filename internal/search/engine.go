// Package search runs field searches over the catalog and fuses them with
// full-text matches from the attachment index.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/config"
	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/fulltext"
	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/reference"
	"github.com/matsen/shelf/internal/storage"
	"github.com/matsen/shelf/internal/worker"
)

// FieldPDF selects the full-text index.
const FieldPDF = "PDF"

// Hit is one document matching a search.
type Hit struct {
	DocID int64 `json:"doc_id"`
	// Fields lists the relational fields that matched, in request order.
	Fields []string `json:"fields"`
	// Snippets maps an attachment relpath to its highlighted excerpt.
	Snippets map[string]string `json:"snippets,omitempty"`
}

// Request describes one search.
type Request struct {
	Query   string
	Fields  []string
	Folder  string // Folder id, real or system
	Descend bool   // Include subfolders
}

// FieldSearcher runs one relational field search.
type FieldSearcher interface {
	SearchField(field, query string, scope storage.Scope) ([]int64, error)
}

// Catalog is the part of the live catalog a search reads.
type Catalog interface {
	Document(id int64) (*reference.Document, bool)
	DocumentIDs() []int64
	Members(folderID string) []int64
	DescendantsOf(id string) []string
	TrashedFolders() []string
}

// Engine answers search requests for one library.
type Engine struct {
	fields  FieldSearcher
	catalog Catalog
	lib     config.Library
	master  *worker.Master
	logger  *zap.Logger
}

// NewEngine returns an engine. Relational searches run on the caller's
// goroutine; full-text queries run on master.
func NewEngine(fields FieldSearcher, catalog Catalog, lib config.Library, master *worker.Master, logger *zap.Logger) *Engine {
	return &Engine{
		fields:  fields,
		catalog: catalog,
		lib:     lib,
		master:  master,
		logger:  logging.OrNop(logger),
	}
}

// Search returns the documents matching req. Hits come in order of first
// relational appearance, then full-text-only hits by id.
func (e *Engine) Search(ctx context.Context, req Request) ([]Hit, error) {
	if req.Query == "" || len(req.Fields) == 0 {
		return nil, nil
	}
	logger := logging.FromContext(ctx, e.logger)
	scope := e.scope(req)

	var hits []*Hit
	byID := make(map[int64]*Hit)
	wantPDF := false
	for _, field := range req.Fields {
		if field == FieldPDF {
			wantPDF = true
			continue
		}
		if !storage.IsRelationalField(field) {
			return nil, fmt.Errorf("unknown search field: %s", field)
		}
		ids, err := e.fields.SearchField(field, req.Query, scope)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
		}
		for _, id := range ids {
			h, ok := byID[id]
			if !ok {
				h = &Hit{DocID: id}
				byID[id] = h
				hits = append(hits, h)
			}
			h.Fields = append(h.Fields, field)
		}
	}

	if wantPDF && e.lib.HasFullText() {
		matches, err := e.fullText(ctx, req.Query)
		switch {
		case failure.IsCancelled(err):
			return nil, err
		case err != nil:
			// A broken index degrades to relational results.
			logger.Warn("full-text search failed", zap.String("query", req.Query), zap.Error(err))
		default:
			hits = e.fuse(hits, byID, matches, e.inScope(req))
		}
	}

	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = *h
	}
	logger.Debug("search done", zap.String("query", req.Query), zap.Strings("fields", req.Fields), zap.Int("hits", len(out)))
	return out, nil
}

// fullText queries the index from the worker pool over a read-only handle.
func (e *Engine) fullText(ctx context.Context, query string) ([]fulltext.Match, error) {
	path := e.lib.FullTextPath()
	job := worker.Job[[]fulltext.Match]{ID: 0, Do: func(ctx context.Context) ([]fulltext.Match, error) {
		idx, err := fulltext.OpenReadOnly(path)
		if err != nil {
			return nil, err
		}
		defer idx.Close()
		return idx.Query(ctx, query, 0)
	}}
	results, err := worker.Run(ctx, e.master, []worker.Job[[]fulltext.Match]{job})
	if err != nil {
		return nil, err
	}
	if results[0].Err != nil {
		if errors.Is(results[0].Err, fulltext.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, results[0].Err
	}
	return results[0].Value, nil
}

// fuse attaches snippets to existing hits and appends full-text-only hits.
// Matches for unknown or out-of-scope documents are stale and dropped.
func (e *Engine) fuse(hits []*Hit, byID map[int64]*Hit, matches []fulltext.Match, scope map[int64]bool) []*Hit {
	var extra []*Hit
	for _, m := range matches {
		if !scope[m.DocID] {
			continue
		}
		h, ok := byID[m.DocID]
		if !ok {
			h = &Hit{DocID: m.DocID}
			byID[m.DocID] = h
			extra = append(extra, h)
		}
		if h.Snippets == nil {
			h.Snippets = make(map[string]string)
		}
		if _, seen := h.Snippets[m.RelPath]; !seen {
			h.Snippets[m.RelPath] = m.Snippet
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].DocID < extra[j].DocID })
	return append(hits, extra...)
}

// scope maps the request folder onto a storage scope.
func (e *Engine) scope(req Request) storage.Scope {
	switch req.Folder {
	case reference.AllFolderID, reference.ReviewFolderID:
		return storage.Scope{System: req.Folder}
	case reference.TrashFolderID:
		s := storage.Scope{System: reference.TrashFolderID}
		if req.Descend {
			s.Folders = e.catalog.TrashedFolders()
		}
		return s
	}
	folders := []string{req.Folder}
	if req.Descend {
		folders = append(folders, e.catalog.DescendantsOf(req.Folder)...)
	}
	return storage.Scope{Folders: folders}
}

// inScope computes the same scope as scope against the live catalog.
func (e *Engine) inScope(req Request) map[int64]bool {
	set := make(map[int64]bool)
	var folders []string
	switch req.Folder {
	case reference.AllFolderID, reference.ReviewFolderID:
		for _, id := range e.catalog.Members(req.Folder) {
			set[id] = true
		}
		return set
	case reference.TrashFolderID:
		for _, id := range e.catalog.Members(reference.TrashFolderID) {
			set[id] = true
		}
		if req.Descend {
			folders = e.catalog.TrashedFolders()
		}
	default:
		folders = []string{req.Folder}
		if req.Descend {
			folders = append(folders, e.catalog.DescendantsOf(req.Folder)...)
		}
	}
	for _, f := range folders {
		for _, id := range e.catalog.Members(f) {
			set[id] = true
		}
	}
	return set
}
