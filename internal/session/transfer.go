package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/export"
	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/fulltext"
	"github.com/matsen/shelf/internal/importer"
	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/reference"
	"github.com/matsen/shelf/internal/storage"
)

// Export formats.
const (
	FormatBib   = "bib"
	FormatRIS   = "ris"
	FormatJSONL = "jsonl"
)

// SourceRecords marks documents imported from a JSONL records file.
const SourceRecords = "records"

// ImportResult summarizes an import into the open library.
type ImportResult struct {
	Added   []int64          `json:"added"`
	Skipped int              `json:"skipped"` // Already in the library by DOI
	Failed  []failure.Failed `json:"failed,omitempty"`
}

func (r *ImportResult) fail(id string, err error) {
	r.Failed = append(r.Failed, failure.Failed{ID: id, Kind: failure.KindOf(err), Detail: err.Error()})
}

// ImportRecords adds the records of a file: JSONL document records (.jsonl)
// or a Paperpile JSON export (.json). Records whose DOI is already in the
// library are skipped. Imported documents are filed into folderID when it is
// a real folder.
func (s *Session) ImportRecords(ctx context.Context, path, folderID string) (*ImportResult, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", failure.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
	}
	base := filepath.Dir(path)
	name := filepath.Base(path)
	res := &ImportResult{}

	var docs []*reference.Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		records, err := storage.ReadAll(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", failure.ErrDecode, err)
		}
		for i := range records {
			doc := &records[i]
			if doc.SourceType == "" {
				doc.SourceType = SourceRecords
			}
			doc.Files = resolveFiles(base, doc.Files)
			docs = append(docs, doc)
		}
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
		}
		var errs []error
		docs, errs = importer.ParsePaperpile(data, base)
		if len(docs) == 0 && len(errs) > 0 {
			return nil, fmt.Errorf("%w: %v", failure.ErrDecode, errs[0])
		}
		for _, err := range errs {
			res.fail(name, fmt.Errorf("%w: %v", failure.ErrDecode, err))
		}
	default:
		return nil, fmt.Errorf("%w: unsupported records file %s (want .jsonl or .json)", failure.ErrDecode, name)
	}

	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	existing := s.clones(s.cat.Members(reference.AllFolderID))
	for i, doc := range docs {
		if ctx.Err() != nil {
			// Documents already inserted stay; the rest are dropped.
			return res, fmt.Errorf("%w: %v", failure.ErrCancelled, ctx.Err())
		}
		if isImported(existing, doc) {
			res.Skipped++
			continue
		}
		var missing []string
		doc.Files, missing = existingFiles(doc.Files)
		for _, f := range missing {
			res.fail(name+"#"+strconv.Itoa(i+1), fmt.Errorf("%w: %s", failure.ErrFileNotFound, f))
		}
		prepareImport(doc, folderID)
		if err := doc.Validate(); err != nil {
			res.fail(name+"#"+strconv.Itoa(i+1), fmt.Errorf("%w: %v", failure.ErrDecode, err))
			continue
		}
		res.Added = append(res.Added, s.cat.Insert(doc))
		existing = append(existing, doc)
	}
	logging.FromContext(ctx, s.logger).Info("records imported",
		zap.String("path", path),
		zap.Int("added", len(res.Added)),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", len(res.Failed)))
	return res, nil
}

// ImportPDFs creates one unconfirmed document per PDF, attaching the file.
// Extraction runs on the worker pool; a cancelled import adds nothing. An
// undecodable PDF is still added under its file name and reported.
func (s *Session) ImportPDFs(ctx context.Context, paths []string, folderID string) (*ImportResult, error) {
	results, err := importer.FromPDFs(ctx, s.master, paths)
	if err != nil {
		return nil, err
	}

	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	res := &ImportResult{}
	existing := s.clones(s.cat.Members(reference.AllFolderID))
	for _, r := range results {
		if r.Doc == nil {
			res.fail(r.Path, r.Err)
			continue
		}
		if r.Err != nil {
			res.fail(r.Path, r.Err)
		}
		if _, dup := storage.FindByDOI(existing, r.Doc.DOI); dup {
			res.Skipped++
			continue
		}
		prepareImport(r.Doc, folderID)
		res.Added = append(res.Added, s.cat.Insert(r.Doc))
		existing = append(existing, r.Doc)
	}
	logging.FromContext(ctx, s.logger).Info("pdfs imported",
		zap.Int("added", len(res.Added)),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", len(res.Failed)))
	return res, nil
}

// isImported reports whether a live document already has doc's DOI or comes
// from the same import source record.
func isImported(existing []*reference.Document, doc *reference.Document) bool {
	if _, dup := storage.FindByDOI(existing, doc.DOI); dup {
		return true
	}
	_, dup := storage.FindBySourceID(existing, doc.SourceType, doc.SourceID)
	return dup
}

// prepareImport clears catalog state a record must not bring along.
func prepareImport(doc *reference.Document, folderID string) {
	doc.ID = 0
	doc.DeletionPending = reference.FlagFalse
	doc.Folders = nil
	if folderID != "" && !reference.IsSystemFolder(folderID) {
		doc.Folders = []string{folderID}
	}
	if doc.Added == 0 {
		doc.Added = reference.New().Added
	}
	if doc.Type == "" {
		doc.Type = reference.DefaultType
	}
}

// resolveFiles makes record file paths absolute against base so they are
// placed into the library on save.
func resolveFiles(base string, files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !filepath.IsAbs(f) {
			f = filepath.Join(base, filepath.FromSlash(f))
		}
		out = append(out, f)
	}
	return out
}

// existingFiles splits paths into those present on disk and those missing.
func existingFiles(files []string) (present, missing []string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			missing = append(missing, f)
			continue
		}
		present = append(present, f)
	}
	return present, missing
}

// BuildFullTextIndex indexes every attachment of the library, creating the
// index when needed. Unchanged files are skipped by content hash.
func (s *Session) BuildFullTextIndex(ctx context.Context) (*fulltext.BuildStats, error) {
	if _, err := s.Save(ctx); err != nil {
		return nil, err
	}
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	ids := s.cat.DocumentIDs()
	stats, err := s.index.Update(ctx, ids, s.indexFiles(ids))
	if err != nil {
		if failure.IsCancelled(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", failure.ErrIndex, err)
	}
	logging.FromContext(ctx, s.logger).Info("full-text index built",
		zap.Int("indexed", stats.FilesIndexed),
		zap.Int("unchanged", stats.FilesUnchanged),
		zap.Int("skipped", stats.FilesSkipped),
		zap.Int("failed", stats.FilesFailed),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// Export renders documents as BibTeX, RIS or JSONL. No ids exports every
// document in All.
func (s *Session) Export(format string, ids []int64) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	docs, err := s.exportDocuments(ids)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatBib:
		return export.ToBibTeXList(docs, export.BibOptions(s.settings.Export, s.lib)), nil
	case FormatRIS:
		return export.ToRISList(docs, export.RISOptions(s.settings.Export, s.lib)), nil
	case FormatJSONL:
		var b strings.Builder
		for _, doc := range docs {
			data, err := json.Marshal(doc)
			if err != nil {
				return "", fmt.Errorf("encoding document %d: %w", doc.ID, err)
			}
			b.Write(data)
			b.WriteByte('\n')
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("unknown export format %q (want bib, ris or jsonl)", format)
}

// ExportResult summarizes an export to a file.
type ExportResult struct {
	Path    string `json:"path"`
	Written int    `json:"written"`
	Skipped int    `json:"skipped,omitempty"` // Already in the .bib file
}

// ExportFile writes documents to path. BibTeX is appended, skipping entries
// the file already holds by DOI or key; RIS and JSONL replace the file.
func (s *Session) ExportFile(format string, ids []int64, path string) (ExportResult, error) {
	res := ExportResult{Path: path}
	if err := s.lock(); err != nil {
		return res, err
	}
	defer s.mu.Unlock()

	docs, err := s.exportDocuments(ids)
	if err != nil {
		return res, err
	}
	switch format {
	case FormatBib:
		appended, err := export.AppendBibTeX(path, docs, export.BibOptions(s.settings.Export, s.lib))
		if err != nil {
			return res, fmt.Errorf("%w: %v", failure.ErrIO, err)
		}
		res.Written, res.Skipped = appended.Added, appended.Skipped
	case FormatRIS:
		text := export.ToRISList(docs, export.RISOptions(s.settings.Export, s.lib))
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			return res, fmt.Errorf("%w: %v", failure.ErrIO, err)
		}
		res.Written = len(docs)
	case FormatJSONL:
		records := make([]reference.Document, len(docs))
		for i, doc := range docs {
			records[i] = *doc
		}
		if err := storage.WriteAll(path, records); err != nil {
			return res, fmt.Errorf("%w: %v", failure.ErrIO, err)
		}
		res.Written = len(docs)
	default:
		return res, fmt.Errorf("unknown export format %q (want bib, ris or jsonl)", format)
	}
	s.logger.Info("exported", zap.String("format", format), zap.String("path", path), zap.Int("written", res.Written))
	return res, nil
}

func (s *Session) exportDocuments(ids []int64) ([]*reference.Document, error) {
	if len(ids) == 0 {
		return s.clones(s.cat.Members(reference.AllFolderID)), nil
	}
	docs, err := s.group(ids)
	if err != nil {
		return nil, err
	}
	return docs, nil
}
