// Package attach manages the attachment files of a library: placing new
// files into _collections/, renaming them, and sending removed files to the
// OS trash.
package attach

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/config"
	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/reference"
)

// Manager performs file operations for one library. It implements
// storage.AttachmentManager.
type Manager struct {
	LibraryFolder string
	RenameFiles   bool
	Manner        string // config.MannerCopy or config.MannerLink
	Trasher       Trasher

	logger *zap.Logger
}

// NewManager returns a manager for lib using the saving settings.
func NewManager(lib config.Library, s config.SavingSettings, trasher Trasher, logger *zap.Logger) *Manager {
	if trasher == nil {
		trasher = NewTrasher()
	}
	return &Manager{
		LibraryFolder: lib.Folder,
		RenameFiles:   s.RenameFiles != 0,
		Manner:        s.FileMoveManner,
		Trasher:       trasher,
		logger:        logging.OrNop(logger),
	}
}

func (m *Manager) collections() string {
	return filepath.Join(m.LibraryFolder, config.CollectionsDir)
}

// Place copies or links src into _collections/ and returns its path
// relative to the library folder.
func (m *Manager) Place(doc *reference.Document, src string, position int) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", failure.ErrFileNotFound, src)
		}
		return "", fmt.Errorf("%w: %v", failure.ErrIO, err)
	}
	dir := m.collections()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", failure.ErrIO, dir, err)
	}

	name := uniqueName(dir, TargetName(doc, src, position, m.RenameFiles, dir))
	dst := filepath.Join(dir, name)
	if m.Manner == config.MannerLink {
		abs, err := filepath.Abs(src)
		if err != nil {
			return "", fmt.Errorf("%w: %v", failure.ErrIO, err)
		}
		if err := os.Symlink(abs, dst); err != nil {
			return "", fmt.Errorf("%w: linking %s: %v", failure.ErrIO, src, err)
		}
	} else if err := copyFile(src, dst, info); err != nil {
		return "", fmt.Errorf("%w: %v", failure.ErrIO, err)
	}

	rel := filepath.ToSlash(filepath.Join(config.CollectionsDir, name))
	m.logger.Debug("attachment placed", zap.Int64("doc_id", doc.ID), zap.String("relpath", rel), zap.String("manner", m.Manner))
	return rel, nil
}

// RenamedPath returns where a placed file would live under the naming
// scheme, or relpath itself when it already has that name. Files outside
// _collections/ are left where they are.
func (m *Manager) RenamedPath(doc *reference.Document, relpath string, position int) string {
	if filepath.IsAbs(relpath) || !strings.HasPrefix(relpath, config.CollectionsDir+"/") {
		return relpath
	}
	dir := m.collections()
	name := TargetName(doc, relpath, position, true, dir)
	if sameStem(filepath.Base(relpath), name) {
		return relpath
	}
	return filepath.ToSlash(filepath.Join(config.CollectionsDir, uniqueName(dir, name)))
}

// Move renames a file within the library. The target must not exist.
func (m *Manager) Move(from, to string) error {
	src, dst := m.Locate(from), m.Locate(to)
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%w: %s already exists", failure.ErrIO, to)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("%w: %v", failure.ErrIO, err)
	}
	if err := os.Rename(src, dst); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", failure.ErrFileNotFound, from)
		}
		return fmt.Errorf("%w: moving %s: %v", failure.ErrIO, from, err)
	}
	m.logger.Debug("attachment moved", zap.String("from", from), zap.String("to", to))
	return nil
}

// Remove sends a library file to the OS trash. Failures are logged and
// never returned.
func (m *Manager) Remove(relpath string) {
	path := m.Locate(relpath)
	if _, err := os.Lstat(path); err != nil {
		m.logger.Warn("attachment to remove is missing", zap.String("relpath", relpath))
		return
	}
	if err := m.Trasher.Trash(path); err != nil {
		m.logger.Error("sending attachment to trash", zap.String("relpath", relpath), zap.Error(err))
		return
	}
	m.logger.Info("attachment trashed", zap.String("relpath", relpath))
}

// Exists reports whether a relative path exists in the library.
func (m *Manager) Exists(relpath string) bool {
	_, err := os.Lstat(m.Locate(relpath))
	return err == nil
}

// Locate returns the absolute path of a file. Absolute input is returned
// unchanged.
func (m *Manager) Locate(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.LibraryFolder, filepath.FromSlash(path))
}

// Rel returns the library-relative form of an absolute path inside the
// library folder.
func (m *Manager) Rel(abs string) (string, bool) {
	rel, err := filepath.Rel(m.LibraryFolder, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// IsSymlink reports whether a library file is a symbolic link.
func (m *Manager) IsSymlink(relpath string) bool {
	info, err := os.Lstat(m.Locate(relpath))
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// Open opens a library file for reading.
func (m *Manager) Open(relpath string) (*os.File, error) {
	f, err := os.Open(m.Locate(relpath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", failure.ErrFileNotFound, relpath)
		}
		return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
	}
	return f, nil
}

// copyFile copies content, permissions and modification time.
func copyFile(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
