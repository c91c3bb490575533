package session

import (
	"github.com/matsen/shelf/internal/catalog"
)

// AddFolder creates a folder under parent and returns its id.
func (s *Session) AddFolder(name, parent string) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()
	return s.cat.AddFolder(name, parent)
}

// RenameFolder renames a folder. A clash with a sibling is rejected and the
// folder keeps its name.
func (s *Session) RenameFolder(id, name string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.cat.RenameFolder(id, name)
}

// ReparentFolder moves a folder. Moving into Trash soft-trashes it, moving
// out of Trash restores it.
func (s *Session) ReparentFolder(id, parent string) (catalog.MoveResult, error) {
	if err := s.lock(); err != nil {
		return catalog.MoveResult{}, err
	}
	defer s.mu.Unlock()
	return s.cat.Reparent(id, parent)
}

// DeleteFolder soft-trashes a live folder or permanently deletes a trashed
// one.
func (s *Session) DeleteFolder(id string) (catalog.DeleteResult, error) {
	if err := s.lock(); err != nil {
		return catalog.DeleteResult{}, err
	}
	defer s.mu.Unlock()
	return s.cat.DeleteFolder(id)
}

// AddToFolder files documents into a folder. It stops at the first error;
// documents filed before it stay filed.
func (s *Session) AddToFolder(ids []int64, folderID string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	for _, id := range ids {
		if err := s.cat.AddToFolder(id, folderID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFromFolder unfiles documents from a folder.
func (s *Session) RemoveFromFolder(ids []int64, folderID string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	for _, id := range ids {
		if err := s.cat.RemoveFromFolder(id, folderID); err != nil {
			return err
		}
	}
	return nil
}
