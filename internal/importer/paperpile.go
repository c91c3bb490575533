// Package importer turns external catalogs into library documents: Paperpile
// JSON exports, PDF files, and Mendeley databases.
package importer

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matsen/shelf/internal/reference"
)

// SourcePaperpile marks documents imported from a Paperpile export.
const SourcePaperpile = "paperpile"

// FlexibleString can unmarshal from either string or number JSON values.
type FlexibleString string

func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleString(n.String())
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleString", string(data))
}

func (f FlexibleString) String() string {
	return strings.TrimSpace(string(f))
}

// PaperpileEntry is one entry of a Paperpile JSON export.
type PaperpileEntry struct {
	ID        string   `json:"_id"`
	Citekey   string   `json:"citekey"`
	Kind      string   `json:"pubtype"`
	DOI       string   `json:"doi"`
	Title     string   `json:"title"`
	Abstract  string   `json:"abstract"`
	Journal   string   `json:"journal"`
	Volume    string   `json:"volume"`
	Issue     string   `json:"issue"`
	Pages     string   `json:"pages"`
	Publisher string   `json:"publisher"`
	Keywords  string   `json:"keywords"` // Comma separated
	Labels    []string `json:"labelsNamed"`
	URLs      []string `json:"url"`
	Published struct {
		Year  FlexibleString `json:"year"`
		Month FlexibleString `json:"month"`
		Day   FlexibleString `json:"day"`
	} `json:"published"`
	Author []struct {
		First string `json:"first"`
		Last  string `json:"last"`
	} `json:"author"`
	Attachments []struct {
		ID         string `json:"_id"`
		ArticlePDF int    `json:"article_pdf"` // 1 = main PDF, 0 = supplement
		Filename   string `json:"filename"`
	} `json:"attachments"`
}

// ParsePaperpile parses a Paperpile JSON export. Attachment file names are
// resolved against base, the folder the export's files were synced to; the
// returned documents carry them as absolute paths awaiting placement.
// Entries that fail to convert are reported and skipped.
func ParsePaperpile(data []byte, base string) ([]*reference.Document, []error) {
	var entries []PaperpileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, []error{fmt.Errorf("parsing Paperpile JSON: %w", err)}
	}
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}

	var docs []*reference.Document
	var errs []error
	for i, entry := range entries {
		doc, err := paperpileEntryToDocument(entry, base)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i+1, entry.Citekey, err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errs
}

func paperpileEntryToDocument(entry PaperpileEntry, base string) (*reference.Document, error) {
	if strings.TrimSpace(entry.Title) == "" {
		return nil, fmt.Errorf("missing required field 'title'")
	}

	doc := reference.New()
	doc.Title = strings.TrimSpace(entry.Title)
	if entry.Kind != "" {
		doc.Type = entry.Kind
	}
	doc.DOI = entry.DOI
	doc.Abstract = entry.Abstract
	doc.Publication = entry.Journal
	doc.Volume = entry.Volume
	doc.Issue = entry.Issue
	doc.Pages = entry.Pages
	doc.Publisher = entry.Publisher
	doc.CitationKey = entry.Citekey
	doc.URLs = entry.URLs
	doc.Tags = entry.Labels
	doc.SourceType = SourcePaperpile
	doc.SourceID = entry.ID
	doc.Confirmed = reference.FlagTrue

	for _, k := range strings.Split(entry.Keywords, ",") {
		if k = strings.TrimSpace(k); k != "" {
			doc.Keywords = append(doc.Keywords, k)
		}
	}

	authors := make([]reference.Author, 0, len(entry.Author))
	for _, a := range entry.Author {
		authors = append(authors, reference.Author{First: a.First, Last: a.Last})
	}
	doc.SetAuthors(authors)

	if y := entry.Published.Year.String(); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return nil, fmt.Errorf("invalid year: %s", y)
		}
		doc.Year = year
	}
	if month, err := strconv.Atoi(entry.Published.Month.String()); err == nil && month >= 1 && month <= 12 {
		doc.Month = month
	}
	if day, err := strconv.Atoi(entry.Published.Day.String()); err == nil && day >= 1 && day <= 31 {
		doc.Day = day
	}

	// The main PDF goes first so it gets position 1 when renamed.
	var supplements []string
	for _, att := range entry.Attachments {
		if att.Filename == "" {
			continue
		}
		path := att.Filename
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, filepath.FromSlash(path))
		}
		if att.ArticlePDF == 1 {
			doc.Files = append(doc.Files, path)
		} else {
			supplements = append(supplements, path)
		}
	}
	doc.Files = append(doc.Files, supplements...)

	return doc, nil
}
