package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/pdf"
	"github.com/matsen/shelf/internal/reference"
	"github.com/matsen/shelf/internal/worker"
)

// SourcePDF marks documents created from a bare PDF file.
const SourcePDF = "pdf"

// FromPDF builds a placeholder document for a PDF file: title from the
// first substantial line, DOI from the first pages, unconfirmed so it lands
// in Needs Review. The file is attached by absolute path.
//
// When the PDF cannot be decoded the document is still returned, titled
// after the file name, together with a DECODE_FAILURE error.
func FromPDF(path string) (*reference.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", failure.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
	}

	doc := reference.New()
	doc.SourceType = SourcePDF
	doc.Files = []string{abs}

	text, err := pdf.Extract(abs, pdf.DOIPages)
	if err == nil {
		doc.Title = text.Title()
		doc.DOI = text.DOI()
	}
	if doc.Title == "" {
		base := filepath.Base(abs)
		doc.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if err != nil {
		return doc, err
	}
	return doc, nil
}

// PDFResult is the outcome of importing one file. Doc is set even on a
// decode failure.
type PDFResult struct {
	Path string
	Doc  *reference.Document
	Err  error
}

// FromPDFs runs FromPDF for every path on the worker pool. Results keep the
// order of paths. Cancellation discards all results.
func FromPDFs(ctx context.Context, m *worker.Master, paths []string) ([]PDFResult, error) {
	jobs := make([]worker.Job[PDFResult], len(paths))
	for i, p := range paths {
		jobs[i] = worker.Job[PDFResult]{ID: i, Do: func(context.Context) (PDFResult, error) {
			doc, err := FromPDF(p)
			return PDFResult{Path: p, Doc: doc, Err: err}, nil
		}}
	}
	results, err := worker.Run(ctx, m, jobs)
	if err != nil {
		return nil, err
	}
	out := make([]PDFResult, len(results))
	for i, r := range results {
		out[i] = r.Value
		if r.Err != nil {
			out[i] = PDFResult{Path: paths[r.JobID], Err: r.Err}
		}
	}
	return out, nil
}

// IsDecodeFailure reports whether a PDF import kept a placeholder document.
func IsDecodeFailure(err error) bool {
	return errors.Is(err, failure.ErrDecode)
}
