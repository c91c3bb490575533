// Package storage handles catalog persistence: the SQLite catalog database
// and JSONL interchange of document records.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/matsen/shelf/internal/reference"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// ReadAll reads all document records from a JSONL file.
func ReadAll(path string) ([]reference.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Empty file returns empty slice
		}
		return nil, fmt.Errorf("opening records file: %w", err)
	}
	defer f.Close()

	var docs []reference.Document
	scanner := bufio.NewScanner(f)

	// Increase buffer size for long lines
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}

		var doc reference.Document
		if err := json.Unmarshal(line, &doc); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		docs = append(docs, doc)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading records file: %w", err)
	}

	return docs, nil
}

// WriteAll writes all document records to a JSONL file, replacing existing content.
func WriteAll(path string, docs []reference.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating records file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encoding document %d: %w", i, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("writing document %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing records file: %w", err)
	}
	return nil
}

// FindByDOI searches for a document by DOI. DOIs compare case-insensitively.
func FindByDOI(docs []*reference.Document, doi string) (int, bool) {
	if doi == "" {
		return -1, false
	}
	for i, doc := range docs {
		if strings.EqualFold(doc.DOI, doi) {
			return i, true
		}
	}
	return -1, false
}

// FindBySourceID searches for a document by import source type and ID.
func FindBySourceID(docs []*reference.Document, sourceType, sourceID string) (int, bool) {
	if sourceID == "" {
		return -1, false
	}
	for i, doc := range docs {
		if doc.SourceType == sourceType && doc.SourceID == sourceID {
			return i, true
		}
	}
	return -1, false
}
