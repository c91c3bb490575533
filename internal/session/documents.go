package session

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/catalog"
	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/reference"
)

// AddDocument inserts doc under a fresh id. Files given as paths outside the
// library are placed into _collections/ on the next save.
func (s *Session) AddDocument(doc *reference.Document, files ...string) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	doc = doc.Clone()
	if doc.Added == 0 {
		doc.Added = reference.New().Added
	}
	if doc.Type == "" {
		doc.Type = reference.DefaultType
	}
	paths, err := sourcePaths(files)
	if err != nil {
		return 0, err
	}
	doc.Files = append(doc.Files, paths...)
	if err := doc.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", failure.ErrDecode, err)
	}
	id := s.cat.Insert(doc)
	s.logger.Debug("document added", zap.Int64("doc_id", id), zap.Int("files", len(doc.Files)))
	return id, nil
}

// UpdateDocument replaces the record of an existing document.
func (s *Session) UpdateDocument(doc *reference.Document) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := doc.Validate(); err != nil {
		return fmt.Errorf("%w: %v", failure.ErrDecode, err)
	}
	return s.cat.Replace(doc.Clone())
}

// AttachFiles appends files to a document. They are placed on the next save.
func (s *Session) AttachFiles(id int64, files ...string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	doc, ok := s.cat.Document(id)
	if !ok {
		return fmt.Errorf("%w: document %d", failure.ErrNotFound, id)
	}
	paths, err := sourcePaths(files)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if !contains(doc.Files, p) {
			doc.Files = append(doc.Files, p)
		}
	}
	s.cat.MarkDocument(id)
	return nil
}

// DetachFile drops one attachment. The file goes to the OS trash on the next
// save unless another document still uses it.
func (s *Session) DetachFile(id int64, relpath string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	doc, ok := s.cat.Document(id)
	if !ok {
		return fmt.Errorf("%w: document %d", failure.ErrNotFound, id)
	}
	var kept []string
	for _, f := range doc.Files {
		if f != relpath {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(doc.Files) {
		return fmt.Errorf("%w: document %d has no file %s", failure.ErrNotFound, id, relpath)
	}
	doc.Files = kept
	s.cat.MarkDocument(id)
	return nil
}

// FilePath returns the location on disk of a document's attachment.
// position is 1-based. A missing file is FILE_NOT_FOUND; the catalog row is
// left alone.
func (s *Session) FilePath(id int64, position int) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	doc, ok := s.cat.Document(id)
	if !ok {
		return "", fmt.Errorf("%w: document %d", failure.ErrNotFound, id)
	}
	if position < 1 || position > len(doc.Files) {
		return "", fmt.Errorf("%w: document %d has %d files", failure.ErrFileNotFound, id, len(doc.Files))
	}
	rel := doc.Files[position-1]
	if !s.files.Exists(rel) {
		return "", fmt.Errorf("%w: %s", failure.ErrFileNotFound, rel)
	}
	return s.files.Locate(rel), nil
}

// RenameFiles renames the attachments of ids after the naming scheme and
// returns how many files will move on the next save.
func (s *Session) RenameFiles(ids []int64) (int, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	claimed := make(map[string]bool)
	var moved int
	for _, id := range ids {
		doc, ok := s.cat.Document(id)
		if !ok {
			return moved, fmt.Errorf("%w: document %d", failure.ErrNotFound, id)
		}
		changed := false
		for i, rel := range doc.Files {
			next := s.files.RenamedPath(doc, rel, i+1)
			if next == rel || claimed[next] {
				continue
			}
			claimed[next] = true
			doc.Files[i] = next
			changed = true
			moved++
		}
		if changed {
			s.cat.MarkDocument(id)
		}
	}
	return moved, nil
}

// SetFlag sets the read, favourite or confirmed flag of documents.
func (s *Session) SetFlag(ids []int64, flag string, value bool) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	for _, id := range ids {
		doc, ok := s.cat.Document(id)
		if !ok {
			return fmt.Errorf("%w: document %d", failure.ErrNotFound, id)
		}
		f := reference.BoolFlag(value)
		switch flag {
		case "read":
			doc.Read = f
		case "favourite":
			doc.Favourite = f
		case "confirmed":
			doc.Confirmed = f
		default:
			return fmt.Errorf("unknown flag %q (want read, favourite or confirmed)", flag)
		}
		s.cat.MarkDocument(id)
	}
	return nil
}

// TrashDocuments moves documents to Trash and returns the trashed ids.
func (s *Session) TrashDocuments(ids []int64) ([]int64, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.cat.TrashDocuments(ids), nil
}

// RestoreDocuments takes documents out of Trash.
func (s *Session) RestoreDocuments(ids []int64) ([]int64, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.cat.RestoreDocuments(ids), nil
}

// DeleteDocuments permanently deletes documents. Rows and unshared files go
// on the next save.
func (s *Session) DeleteDocuments(ids []int64) ([]int64, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.cat.DeleteDocuments(ids), nil
}

// EmptyTrash permanently deletes everything in Trash.
func (s *Session) EmptyTrash() (catalog.DeleteResult, error) {
	if err := s.lock(); err != nil {
		return catalog.DeleteResult{}, err
	}
	defer s.mu.Unlock()
	return s.cat.EmptyTrash(), nil
}

// sourcePaths makes attachment sources absolute and checks they exist.
func sourcePaths(files []string) ([]string, error) {
	out := make([]string, 0, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
		}
		if _, err := os.Stat(abs); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", failure.ErrFileNotFound, f)
			}
			return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
		}
		out = append(out, abs)
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
