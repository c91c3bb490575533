package fulltext

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/pdf"
	"github.com/matsen/shelf/internal/worker"
)

// File is one attachment to index.
type File struct {
	DocID   int64
	RelPath string // As stored in the catalog
	Path    string // Absolute location on disk
}

// BuildStats summarizes an index update.
type BuildStats struct {
	FilesIndexed   int           `json:"files_indexed"`
	FilesUnchanged int           `json:"files_unchanged"`
	FilesSkipped   int           `json:"files_skipped"` // Unsupported file types
	FilesFailed    int           `json:"files_failed"`
	FilesRemoved   int           `json:"files_removed"`
	Duration       time.Duration `json:"duration"`
}

// Extractor returns the plain text of a file.
type Extractor func(path string) (string, error)

// Builder updates the full-text index of one library.
type Builder struct {
	path    string
	master  *worker.Master
	extract Extractor
	logger  *zap.Logger
}

// NewBuilder returns a builder for the index at path. Text extraction runs
// on master's workers.
func NewBuilder(path string, master *worker.Master, logger *zap.Logger) *Builder {
	return &Builder{path: path, master: master, extract: ExtractText, logger: logging.OrNop(logger)}
}

// SetExtractor replaces the text extractor.
func (b *Builder) SetExtractor(fn Extractor) {
	b.extract = fn
}

// ExtractText reads PDFs through the PDF reader and text files directly.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := pdf.Extract(path, 0)
		if err != nil {
			return "", err
		}
		return text.Joined(), nil
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", failure.ErrFileNotFound, path)
			}
			return "", fmt.Errorf("%w: %v", failure.ErrIO, err)
		}
		return string(data), nil
	}
	return "", errUnsupported
}

var errUnsupported = errors.New("unsupported attachment type")

// extracted is what a worker hands back for one file.
type extracted struct {
	key       fileKey
	hash      string
	text      string
	unchanged bool
	skipped   bool
}

// Update indexes files, skipping those whose content hash is unchanged.
// Index entries of the documents in docIDs that are not among files are
// dropped, so a document whose attachments changed loses its stale entries.
// Files that fail to read are counted and logged but do not stop the update.
func (b *Builder) Update(ctx context.Context, docIDs []int64, files []File) (*BuildStats, error) {
	start := time.Now()
	stats := &BuildStats{}
	logger := logging.FromContext(ctx, b.logger)

	idx, err := Create(b.path)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	known, err := idx.hashes()
	if err != nil {
		return nil, err
	}

	jobs := make([]worker.Job[extracted], len(files))
	for i, f := range files {
		f := f
		key := fileKey{DocID: f.DocID, RelPath: f.RelPath}
		prev := known[key]
		jobs[i] = worker.Job[extracted]{ID: i, Do: func(ctx context.Context) (extracted, error) {
			return b.extractFile(f, key, prev)
		}}
	}
	results, err := worker.Run(ctx, b.master, jobs)
	if err != nil {
		return nil, err
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrIndex, err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	wanted := make(map[fileKey]bool, len(files))
	for _, r := range results {
		f := files[r.JobID]
		wanted[fileKey{DocID: f.DocID, RelPath: f.RelPath}] = true
		if r.Status == worker.StatusFailed {
			stats.FilesFailed++
			logger.Warn("indexing attachment", zap.Int64("doc_id", f.DocID), zap.String("relpath", f.RelPath), zap.Error(r.Err))
			continue
		}
		v := r.Value
		switch {
		case v.skipped:
			stats.FilesSkipped++
		case v.unchanged:
			stats.FilesUnchanged++
		default:
			if err := idx.put(tx, v.key, v.hash, v.text, now); err != nil {
				return nil, err
			}
			stats.FilesIndexed++
		}
	}

	scope := make(map[int64]bool, len(docIDs))
	for _, id := range docIDs {
		scope[id] = true
	}
	for k := range known {
		if scope[k.DocID] && !wanted[k] {
			if err := deleteFile(tx, k); err != nil {
				return nil, err
			}
			stats.FilesRemoved++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrIndex, err)
	}
	stats.Duration = time.Since(start)
	logger.Info("full-text index updated",
		zap.Int("indexed", stats.FilesIndexed),
		zap.Int("unchanged", stats.FilesUnchanged),
		zap.Int("failed", stats.FilesFailed),
		zap.Int("removed", stats.FilesRemoved))
	return stats, nil
}

// RemoveDocuments drops the entries of deleted documents. Without an index
// there is nothing to do.
func (b *Builder) RemoveDocuments(ids []int64) error {
	if !Exists(b.path) || len(ids) == 0 {
		return nil
	}
	idx, err := Create(b.path)
	if err != nil {
		return err
	}
	defer idx.Close()
	return idx.RemoveDocuments(ids)
}

func (b *Builder) extractFile(f File, key fileKey, prevHash string) (extracted, error) {
	out := extracted{key: key}
	hash, err := hashFile(f.Path)
	if err != nil {
		return out, err
	}
	out.hash = hash
	if hash == prevHash {
		out.unchanged = true
		return out, nil
	}
	text, err := b.extract(f.Path)
	if errors.Is(err, errUnsupported) {
		out.skipped = true
		return out, nil
	}
	if err != nil {
		return out, err
	}
	out.text = text
	return out, nil
}

// hashFile returns the hex BLAKE2b-256 digest of a file's content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", failure.ErrFileNotFound, path)
		}
		return "", fmt.Errorf("%w: %v", failure.ErrIO, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%w: hashing %s: %v", failure.ErrIO, path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
