package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/worker"
)

func TestFromPDF_DecodeFailureKeepsPlaceholder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Notes on Ice.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := FromPDF(path)
	if !IsDecodeFailure(err) {
		t.Fatalf("FromPDF() error = %v, want DECODE_FAILURE", err)
	}
	if doc == nil {
		t.Fatal("FromPDF() returned no placeholder document")
	}
	if doc.Title != "Notes on Ice" {
		t.Errorf("Title = %q, want file name", doc.Title)
	}
	if len(doc.Files) != 1 || doc.Files[0] != path {
		t.Errorf("Files = %v, want [%s]", doc.Files, path)
	}
	if doc.Confirmed.IsTrue() || doc.SourceType != SourcePDF {
		t.Errorf("doc = %+v, want unconfirmed pdf import", doc)
	}
}

func TestFromPDF_Missing(t *testing.T) {
	_, err := FromPDF(filepath.Join(t.TempDir(), "gone.pdf"))
	if !errors.Is(err, failure.ErrFileNotFound) {
		t.Errorf("FromPDF() error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestFromPDFs(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "b.pdf")
	if err := os.WriteFile(bad, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	paths := []string{filepath.Join(dir, "a.pdf"), bad}

	results, err := FromPDFs(context.Background(), worker.NewMaster(2, nil), paths)
	if err != nil {
		t.Fatalf("FromPDFs() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("FromPDFs() returned %d results", len(results))
	}
	if results[0].Path != paths[0] || !errors.Is(results[0].Err, failure.ErrFileNotFound) || results[0].Doc != nil {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Path != bad || !IsDecodeFailure(results[1].Err) || results[1].Doc.Title != "b" {
		t.Errorf("results[1] = %+v", results[1])
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := FromPDFs(ctx, worker.NewMaster(1, nil), paths); !failure.IsCancelled(err) {
		t.Errorf("cancelled FromPDFs() error = %v", err)
	}
}
