package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/conflict"
	"github.com/matsen/shelf/internal/dedupe"
	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/reference"
	"github.com/matsen/shelf/internal/search"
)

// SearchRequest returns a request over the configured default fields and
// folder descent.
func (s *Session) SearchRequest(query, folderID string) search.Request {
	return search.Request{
		Query:   query,
		Fields:  append([]string(nil), s.settings.Search.SearchFields...),
		Folder:  folderID,
		Descend: s.settings.Search.DesendFolder,
	}
}

// Search flushes pending changes so the indices see them, then runs req.
func (s *Session) Search(ctx context.Context, req search.Request) ([]search.Hit, error) {
	report, err := s.Save(ctx)
	if err != nil {
		return nil, err
	}
	if !report.OK() {
		logging.FromContext(ctx, s.logger).Warn("searching with unsaved entities", zap.Int("failed", len(report.Failed)))
	}

	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if req.Folder == "" {
		req.Folder = reference.AllFolderID
	}
	if _, ok := s.cat.Folder(req.Folder); !ok {
		return nil, fmt.Errorf("%w: folder %s", failure.ErrNotFound, req.Folder)
	}
	return s.engine.Search(ctx, req)
}

// CheckDuplicates groups the duplicates among a folder's documents. With a
// non-zero docID only the group of that document is returned. Scoring runs
// on the worker pool over snapshots, so the session stays usable meanwhile
// and a cancelled check changes nothing.
func (s *Session) CheckDuplicates(ctx context.Context, folderID string, docID int64) ([][]int64, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	if folderID == "" {
		folderID = reference.AllFolderID
	}
	if _, ok := s.cat.Folder(folderID); !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: folder %s", failure.ErrNotFound, folderID)
	}
	var cands []dedupe.Candidate
	for _, id := range s.cat.Members(folderID) {
		doc, _ := s.cat.Document(id)
		cands = append(cands, dedupe.CandidateFrom(doc))
	}
	var target *dedupe.Candidate
	if docID != 0 {
		doc, ok := s.cat.Document(docID)
		if !ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: document %d", failure.ErrNotFound, docID)
		}
		c := dedupe.CandidateFrom(doc)
		target = &c
	}
	threshold := s.settings.DuplicateMinScore
	s.mu.Unlock()

	logger := logging.FromContext(ctx, s.logger)
	var groups [][]int64
	var err error
	if target != nil {
		groups, err = dedupe.FindForDocument(ctx, s.master, *target, cands, threshold)
	} else {
		groups, err = dedupe.FindGroups(ctx, s.master, cands, threshold)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("duplicate check done",
		zap.String("folder_id", folderID), zap.Int("candidates", len(cands)), zap.Int("groups", len(groups)))
	return groups, nil
}

// Conflicts lists the fields on which the members of a group disagree.
func (s *Session) Conflicts(ids []int64) ([]conflict.FieldConflict, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	docs, err := s.group(ids)
	if err != nil {
		return nil, err
	}
	return conflict.Collect(docs), nil
}

// MergeGroup replaces a duplicate group by one new document built from the
// resolution, and trashes the members. It returns the new id.
func (s *Session) MergeGroup(ids []int64, res conflict.Resolution) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	docs, err := s.group(ids)
	if err != nil {
		return 0, err
	}
	merged, err := conflict.Merge(docs, res)
	if err != nil {
		return 0, err
	}
	id := s.cat.Insert(merged)
	trashed := s.cat.TrashDocuments(ids)
	s.logger.Info("duplicates merged", zap.Int64("doc_id", id), zap.Int64s("trashed", trashed))
	return id, nil
}

// group clones the documents of a duplicate group, in the given order.
func (s *Session) group(ids []int64) ([]*reference.Document, error) {
	docs := make([]*reference.Document, 0, len(ids))
	for _, id := range ids {
		doc, ok := s.cat.Document(id)
		if !ok {
			return nil, fmt.Errorf("%w: document %d", failure.ErrNotFound, id)
		}
		docs = append(docs, doc.Clone())
	}
	return docs, nil
}

// ReplaceTerm renames an author, publication, keyword or tag across the
// library and returns the changed ids.
func (s *Session) ReplaceTerm(kind, old, repl string) ([]int64, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.cat.ReplaceTerm(kind, old, repl)
}

// UpdateFromDOI refreshes a document from its DOI. An explicit doi replaces
// the stored one. The network lookup runs without holding the session.
func (s *Session) UpdateFromDOI(ctx context.Context, id int64, doi string) (*reference.Document, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	doc, ok := s.cat.Document(id)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: document %d", failure.ErrNotFound, id)
	}
	if doi == "" {
		doi = doc.DOI
	}
	s.mu.Unlock()
	if doi == "" {
		return nil, fmt.Errorf("%w: document %d has no DOI", failure.ErrNotFound, id)
	}

	found, err := s.lookup.Lookup(ctx, doi)
	if err != nil {
		return nil, err
	}

	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	updated, err := s.cat.ApplyLookup(id, found)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, s.logger).Info("document updated from DOI", zap.Int64("doc_id", id), zap.String("doi", doi))
	return updated.Clone(), nil
}
