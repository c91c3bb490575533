// Package session is the controller of one open library. It owns the
// in-memory catalog, routes every user operation through it, and saves the
// change sets to the catalog database explicitly or on a timer.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/attach"
	"github.com/matsen/shelf/internal/catalog"
	"github.com/matsen/shelf/internal/config"
	"github.com/matsen/shelf/internal/doi"
	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/fulltext"
	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/reference"
	"github.com/matsen/shelf/internal/search"
	"github.com/matsen/shelf/internal/storage"
	"github.com/matsen/shelf/internal/worker"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("no library open")

// Lookuper fetches a partial record by DOI.
type Lookuper interface {
	Lookup(ctx context.Context, doi string) (*reference.Document, error)
}

// Prompter asks whether pending changes should be saved before closing.
type Prompter interface {
	ConfirmSave(pending int) (bool, error)
}

// Options configures Open.
type Options struct {
	Logger   *zap.Logger
	Trasher  attach.Trasher // OS trash; the platform default when nil
	Workers  int            // Worker pool size; worker.DefaultWorkers when 0
	Lookup   Lookuper       // DOI lookup; a Crossref client when nil
	AutoSave bool           // Start the auto-saver at saving/auto_save_min
	Create   bool           // Create the library when it does not exist
}

// Session is one open library.
type Session struct {
	mu       sync.Mutex
	inFlight atomic.Bool // A save is running

	lib      config.Library
	settings *config.Settings
	db       *storage.DB
	cat      *catalog.Catalog
	files    *attach.Manager
	master   *worker.Master
	engine   *search.Engine
	index    *fulltext.Builder
	lookup   Lookuper
	auto     *AutoSaver
	logger   *zap.Logger
	closed   bool
}

// Open opens the library whose catalog database is dbPath and materializes
// its catalog with empty change sets.
func Open(ctx context.Context, dbPath string, settings *config.Settings, opts Options) (*Session, error) {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	lib := config.LibraryFromDB(dbPath)
	logger := logging.FromContext(ctx, opts.Logger).With(zap.String("library", lib.Name))

	if !lib.Exists() {
		if !opts.Create {
			return nil, fmt.Errorf("%w: library %s does not exist", failure.ErrNotFound, lib.DBPath)
		}
		if err := lib.Init(); err != nil {
			return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
		}
	}

	db, err := storage.OpenDB(lib, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
	}
	snap, err := db.LoadCatalog()
	if err != nil {
		db.Close()
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = worker.DefaultWorkers
	}
	master := worker.NewMaster(workers, logger)
	cat := catalog.FromSnapshot(snap, logger)

	s := &Session{
		lib:      lib,
		settings: settings,
		db:       db,
		cat:      cat,
		files:    attach.NewManager(lib, settings.Saving, opts.Trasher, logger),
		master:   master,
		engine:   search.NewEngine(db, cat, lib, master, logger),
		index:    fulltext.NewBuilder(lib.FullTextPath(), master, logger),
		lookup:   opts.Lookup,
		logger:   logger,
	}
	if s.lookup == nil {
		s.lookup = doi.NewClient(doi.WithLogger(logger))
	}
	if opts.AutoSave && settings.Saving.AutoSaveMin > 0 {
		s.auto = s.StartAutoSave(time.Duration(settings.Saving.AutoSaveMin) * time.Minute)
	}

	logger.Info("library opened",
		zap.Int("documents", cat.Len()),
		zap.Int("folders", len(cat.FolderIDs())))
	return s, nil
}

// Library returns the open library.
func (s *Session) Library() config.Library {
	return s.lib
}

// Settings returns the settings the session was opened with.
func (s *Session) Settings() *config.Settings {
	return s.settings
}

// Master returns the worker pool, for progress reporting and Abort.
func (s *Session) Master() *worker.Master {
	return s.master
}

// Pending returns the number of entities awaiting a save.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	return len(s.cat.ChangedDocuments()) + len(s.cat.ChangedFolders())
}

// Close ends the session. With pending changes the prompter decides whether
// they are saved; a nil prompter saves. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context, p Prompter) error {
	if s.auto != nil {
		s.auto.Stop()
	}

	if pending := s.Pending(); pending > 0 {
		save := true
		if p != nil {
			var err error
			if save, err = p.ConfirmSave(pending); err != nil {
				return err
			}
		}
		if save {
			report, err := s.Save(ctx)
			if err != nil {
				return err
			}
			if !report.OK() {
				s.logger.Warn("closing with unsaved entities", zap.Int("failed", len(report.Failed)))
			}
		} else {
			s.logger.Info("discarding unsaved changes", zap.Int("pending", pending))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: closing catalog: %v", failure.ErrIO, err)
	}
	s.logger.Info("library closed")
	return nil
}

// Switch closes this session and opens another library. Only one library is
// open at a time.
func (s *Session) Switch(ctx context.Context, dbPath string, p Prompter, opts Options) (*Session, error) {
	if err := s.Close(ctx, p); err != nil {
		return nil, err
	}
	if opts.Lookup == nil {
		opts.Lookup = s.lookup
	}
	if opts.Logger == nil {
		opts.Logger = s.logger
	}
	return Open(ctx, dbPath, s.settings, opts)
}

// Info summarizes the open library.
type Info struct {
	Name         string    `json:"name"`
	DBPath       string    `json:"db_path"`
	Folder       string    `json:"folder"`
	Documents    int       `json:"documents"`
	Live         int       `json:"live"`
	NeedsReview  int       `json:"needs_review"`
	Trashed      int       `json:"trashed"`
	Folders      int       `json:"folders"`
	FullText     bool      `json:"full_text"`
	FullTextSize int64     `json:"full_text_size,omitempty"`
	Pending      int       `json:"pending"`
	LastAdded    time.Time `json:"last_added,omitempty"`
}

// Info returns counts for the open library.
func (s *Session) Info() (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Info{}, ErrClosed
	}
	info := Info{
		Name:        s.lib.Name,
		DBPath:      s.lib.DBPath,
		Folder:      s.lib.Folder,
		Documents:   s.cat.Len(),
		Live:        len(s.cat.Members(reference.AllFolderID)),
		NeedsReview: len(s.cat.Members(reference.ReviewFolderID)),
		Folders:     len(s.cat.FolderIDs()),
		FullText:    s.lib.HasFullText(),
		Pending:     len(s.cat.ChangedDocuments()) + len(s.cat.ChangedFolders()),
	}
	info.Trashed = info.Documents - info.Live
	if info.FullText {
		if size, err := fulltext.Size(s.lib.FullTextPath()); err == nil {
			info.FullTextSize = size
		}
	}
	var last int64
	for _, id := range s.cat.DocumentIDs() {
		if doc, _ := s.cat.Document(id); doc.Added > last {
			last = doc.Added
		}
	}
	if last > 0 {
		info.LastAdded = time.Unix(last, 0)
	}
	return info, nil
}

// Document returns a copy of one document.
func (s *Session) Document(id int64) (*reference.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	doc, ok := s.cat.Document(id)
	if !ok {
		return nil, fmt.Errorf("%w: document %d", failure.ErrNotFound, id)
	}
	return doc.Clone(), nil
}

// Documents returns copies of the documents in a folder. With descend the
// subfolders' documents are included.
func (s *Session) Documents(folderID string, descend bool) ([]*reference.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.cat.Folder(folderID); !ok {
		return nil, fmt.Errorf("%w: folder %s", failure.ErrNotFound, folderID)
	}
	ids := s.cat.Members(folderID)
	if descend && folderID != reference.AllFolderID && folderID != reference.ReviewFolderID {
		_, ids = s.cat.WalkTree(folderID)
	}
	return s.clones(ids), nil
}

// Tree returns the folder tree below All and Trash with member counts.
func (s *Session) Tree() ([]*catalog.TreeNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.cat.SortedTree(), nil
}

// clones copies the documents with ids, skipping unknown ones.
func (s *Session) clones(ids []int64) []*reference.Document {
	out := make([]*reference.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := s.cat.Document(id); ok {
			out = append(out, doc.Clone())
		}
	}
	return out
}

// lock acquires the session for a mutation.
func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}
