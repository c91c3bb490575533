package export

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/matsen/shelf/internal/reference"
)

var (
	entryStartRegex = regexp.MustCompile(`@\w+\s*\{\s*([^,\s]+)\s*,`)
	doiFieldRegex   = regexp.MustCompile(`(?i)^\s*doi\s*=\s*[\{"]([^\}"]+)[\}"]`)
)

// BibIndex records the entries of an existing .bib file so an append can
// skip documents that are already there.
type BibIndex struct {
	Keys map[string]bool
	DOIs map[string]string // Normalized DOI -> citation key
}

// NewBibIndex returns an empty index.
func NewBibIndex() *BibIndex {
	return &BibIndex{
		Keys: make(map[string]bool),
		DOIs: make(map[string]string),
	}
}

// Contains reports whether the document is already present. DOI is the
// primary match; the citation key is the fallback.
func (idx *BibIndex) Contains(doc *reference.Document) bool {
	if doc.DOI != "" {
		if _, ok := idx.DOIs[normalizeDOI(doc.DOI)]; ok {
			return true
		}
	}
	return idx.Keys[Key(doc)]
}

// Add records a document as present.
func (idx *BibIndex) Add(doc *reference.Document) {
	key := Key(doc)
	idx.Keys[key] = true
	if doc.DOI != "" {
		idx.DOIs[normalizeDOI(doc.DOI)] = key
	}
}

// ReadBibIndex indexes an existing .bib file. A missing file gives an empty
// index.
func ReadBibIndex(path string) (*BibIndex, error) {
	idx := NewBibIndex()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var currentKey string
	for scanner.Scan() {
		line := scanner.Text()
		if m := entryStartRegex.FindStringSubmatch(line); len(m) > 1 {
			currentKey = strings.TrimSpace(m[1])
			idx.Keys[currentKey] = true
		}
		if m := doiFieldRegex.FindStringSubmatch(line); len(m) > 1 {
			if doi := normalizeDOI(m[1]); doi != "" && currentKey != "" {
				idx.DOIs[doi] = currentKey
			}
		}
	}
	return idx, scanner.Err()
}

// normalizeDOI strips resolver prefixes and lowercases a DOI.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi.org/", "DOI:", "doi:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return strings.ToLower(strings.TrimSpace(doi))
}

// AppendResult counts what an append wrote.
type AppendResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// AppendBibTeX appends the documents missing from the .bib file at path,
// creating it when needed. Duplicates within docs are written once.
func AppendBibTeX(path string, docs []*reference.Document, opts Options) (AppendResult, error) {
	var res AppendResult
	idx, err := ReadBibIndex(path)
	if err != nil {
		return res, fmt.Errorf("reading %s: %w", path, err)
	}

	var fresh []*reference.Document
	for _, doc := range docs {
		if idx.Contains(doc) {
			res.Skipped++
			continue
		}
		idx.Add(doc)
		fresh = append(fresh, doc)
	}
	if len(fresh) == 0 {
		return res, nil
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return res, err
	}
	defer file.Close()
	if _, err := file.WriteString("\n" + ToBibTeXList(fresh, opts)); err != nil {
		return res, err
	}
	res.Added = len(fresh)
	return res, nil
}
