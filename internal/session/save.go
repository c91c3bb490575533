package session

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/fulltext"
	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/storage"
)

// Save reconciles the change sets with the catalog database. It never fails
// as a whole over an entity: per-entity failures land in the report and stay
// queued for the next save. The error is reserved for a closed session and
// for a transaction that cannot begin or commit.
//
// A save requested while another is running is skipped and reported as such.
func (s *Session) Save(ctx context.Context) (failure.Report, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return failure.Report{Skipped: true}, nil
	}
	defer s.inFlight.Store(false)

	if err := s.lock(); err != nil {
		return failure.Report{}, err
	}
	defer s.mu.Unlock()
	return s.save(ctx)
}

// save runs with the session locked.
func (s *Session) save(ctx context.Context) (failure.Report, error) {
	report := failure.Report{Failed: []failure.Failed{}}
	folderIDs := s.cat.ChangedFolders()
	docIDs := s.cat.ChangedDocuments()
	if len(folderIDs) == 0 && len(docIDs) == 0 {
		return report, nil
	}
	logger := logging.FromContext(ctx, s.logger)

	tx, err := s.db.Begin(s.files)
	if err != nil {
		return report, err
	}

	savedFolders, failedFolders := s.saveFolders(tx, folderIDs)
	for _, id := range folderIDs {
		if err, ok := failedFolders[id]; ok {
			report.Add(id, err)
		}
	}

	var savedDocs, deleted []int64
	var reindex []int64
	results := make(map[int64]*storage.SavedDocument)
	for _, id := range docIDs {
		doc, live := s.cat.Document(id)
		if !live {
			doc = nil
		}
		var before []string
		if live {
			before = append(before, doc.Files...)
		}
		saved, err := tx.SaveDocument(id, doc)
		if err != nil {
			report.Add(strconv.FormatInt(id, 10), err)
			logger.Warn("document not saved", zap.Int64("doc_id", id), zap.Error(err))
			continue
		}
		savedDocs = append(savedDocs, id)
		if !live {
			deleted = append(deleted, id)
			continue
		}
		results[id] = saved
		if saved != nil && !equalFiles(before, saved.Files) {
			reindex = append(reindex, id)
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return failure.Report{}, err
	}
	for id, saved := range results {
		s.cat.ApplySaved(id, saved)
	}
	s.cat.ClearSaved(savedDocs, savedFolders)
	report.Saved = len(savedDocs) + len(savedFolders)

	logger.Info("library saved",
		zap.Int("saved", report.Saved),
		zap.Int("failed", len(report.Failed)),
		zap.Int("deleted", len(deleted)))

	s.updateIndex(ctx, reindex, deleted)
	return report, nil
}

// saveFolders saves folders in change order. Folders that hit a schema
// conflict are retried once after the others, since a sibling saved later
// in the batch may free the name they need.
func (s *Session) saveFolders(tx *storage.Tx, ids []string) ([]string, map[string]error) {
	var saved, retry []string
	failed := make(map[string]error)
	attempt := func(id string) error {
		f, ok := s.cat.Folder(id)
		if !ok {
			f = nil
		}
		return tx.SaveFolder(id, f)
	}

	for _, id := range ids {
		err := attempt(id)
		switch {
		case err == nil:
			saved = append(saved, id)
		case failure.KindOf(err) == failure.KindSchemaConflict:
			retry = append(retry, id)
		default:
			failed[id] = err
		}
	}
	for _, id := range retry {
		if err := attempt(id); err != nil {
			failed[id] = err
			continue
		}
		saved = append(saved, id)
	}
	return saved, failed
}

// updateIndex refreshes the full-text entries of documents whose files
// changed and drops those of deleted documents. Indexing is best effort: a
// failure is logged and never affects the catalog save. Without an index
// nothing is created here.
func (s *Session) updateIndex(ctx context.Context, changed, deleted []int64) {
	if !s.lib.HasFullText() || len(changed)+len(deleted) == 0 {
		return
	}
	logger := logging.FromContext(ctx, s.logger)

	if len(deleted) > 0 {
		if err := s.index.RemoveDocuments(deleted); err != nil {
			logger.Warn("dropping deleted documents from index",
				zap.String("kind", string(failure.KindIndex)), zap.Int64s("doc_ids", deleted), zap.Error(err))
		}
	}
	if len(changed) == 0 {
		return
	}

	stats, err := s.index.Update(ctx, changed, s.indexFiles(changed))
	if err != nil {
		logger.Warn("updating full-text index",
			zap.String("kind", string(failure.KindIndex)), zap.Int64s("doc_ids", changed), zap.Error(err))
		return
	}
	logger.Debug("full-text index updated",
		zap.Int("indexed", stats.FilesIndexed),
		zap.Int("unchanged", stats.FilesUnchanged),
		zap.Int("failed", stats.FilesFailed))
}

// indexFiles lists the attachments of ids with their locations on disk.
func (s *Session) indexFiles(ids []int64) []fulltext.File {
	var files []fulltext.File
	for _, id := range ids {
		doc, ok := s.cat.Document(id)
		if !ok {
			continue
		}
		for _, rel := range doc.Files {
			files = append(files, fulltext.File{DocID: id, RelPath: rel, Path: s.files.Locate(rel)})
		}
	}
	return files
}

func equalFiles(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
