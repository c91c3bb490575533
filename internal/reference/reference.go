// Package reference defines the core domain types for the reference catalog.
package reference

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultType is the document type used when none is given.
const DefaultType = "article"

// Document is one catalog entry: bibliographic record plus relationships.
type Document struct {
	// Identity
	ID int64 `json:"id"`

	// Bibliographic record
	Title       string `json:"title,omitempty"`
	Type        string `json:"type,omitempty"`
	Publication string `json:"publication,omitempty"` // Journal, proceedings, or preprint server
	Volume      string `json:"volume,omitempty"`
	Issue       string `json:"issue,omitempty"`
	Pages       string `json:"pages,omitempty"`
	Year        int    `json:"year,omitempty"`
	Month       int    `json:"month,omitempty"` // 1-12, 0 if unknown
	Day         int    `json:"day,omitempty"`   // 1-31, 0 if unknown
	DOI         string `json:"doi,omitempty"`
	Abstract    string `json:"abstract,omitempty"`
	ArxivID     string `json:"arxiv_id,omitempty"`
	PMID        string `json:"pmid,omitempty"`
	ISSN        string `json:"issn,omitempty"`
	ISBN        string `json:"isbn,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Institution string `json:"institution,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
	Edition     string `json:"edition,omitempty"`
	Series      string `json:"series,omitempty"`
	Chapter     string `json:"chapter,omitempty"`
	CitationKey string `json:"citation_key,omitempty"` // Explicit key; see CiteKey for the derived view
	Notes       string `json:"notes,omitempty"`
	Added       int64  `json:"added"` // Unix seconds

	// Catalog identifiers carried verbatim
	PMCID      string `json:"pmcid,omitempty"`
	S2ID       string `json:"s2_id,omitempty"`
	SourceType string `json:"source_type,omitempty"` // mendeley, pdf, records, manual, merge
	SourceID   string `json:"source_id,omitempty"`   // Original ID from source system

	// Status flags
	Read            Flag `json:"read"`
	Favourite       Flag `json:"favourite"`
	Confirmed       Flag `json:"confirmed"`
	DeletionPending Flag `json:"deletion_pending"`

	// Ordered sequences
	FirstNames []string `json:"first_names,omitempty"`
	LastNames  []string `json:"last_names,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	URLs       []string `json:"urls,omitempty"`
	Files      []string `json:"files,omitempty"` // Relative to the library folder; absolute = pending placement

	// Relationships
	Folders []string `json:"folders,omitempty"`

	// Notes bookkeeping mirrored from DocumentNotes
	NotesCreated  int64 `json:"notes_created,omitempty"`
	NotesModified int64 `json:"notes_modified,omitempty"`
}

// New returns a document with defaults applied: article type, added now,
// not read, not favourite, not confirmed, not pending deletion.
func New() *Document {
	return &Document{
		Type:            DefaultType,
		Added:           time.Now().Unix(),
		Read:            FlagFalse,
		Favourite:       FlagFalse,
		Confirmed:       FlagFalse,
		DeletionPending: FlagFalse,
	}
}

// AuthorList zips FirstNames and LastNames into authors.
func (d *Document) AuthorList() []Author {
	n := len(d.LastNames)
	if len(d.FirstNames) > n {
		n = len(d.FirstNames)
	}
	authors := make([]Author, n)
	for i := 0; i < n; i++ {
		if i < len(d.FirstNames) {
			authors[i].First = d.FirstNames[i]
		}
		if i < len(d.LastNames) {
			authors[i].Last = d.LastNames[i]
		}
	}
	return authors
}

// Authors returns the derived "Last, First" author strings.
func (d *Document) Authors() []string {
	list := d.AuthorList()
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.String()
	}
	return out
}

// SetAuthors replaces the author sequences, keeping them equal length.
func (d *Document) SetAuthors(authors []Author) {
	d.FirstNames = make([]string, len(authors))
	d.LastNames = make([]string, len(authors))
	for i, a := range authors {
		d.FirstNames[i] = a.First
		d.LastNames[i] = a.Last
	}
}

// FirstAuthorLast returns the last name of the first author, or "".
func (d *Document) FirstAuthorLast() string {
	if len(d.LastNames) == 0 {
		return ""
	}
	return d.LastNames[0]
}

// HasFile reports whether any attachment is recorded.
func (d *Document) HasFile() bool {
	return len(d.Files) > 0
}

// CiteKey returns the explicit citation key, or lastName+year when both
// are known. The synthesized key is never stored.
func (d *Document) CiteKey() string {
	if d.CitationKey != "" {
		return d.CitationKey
	}
	last := d.FirstAuthorLast()
	if last == "" || d.Year == 0 {
		return ""
	}
	return last + strconv.Itoa(d.Year)
}

// InFolder reports whether the document lists folderID among its folders.
func (d *Document) InFolder(folderID string) bool {
	for _, f := range d.Folders {
		if f == folderID {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of a record.
func (d *Document) Validate() error {
	if len(d.FirstNames) != len(d.LastNames) {
		return fmt.Errorf("document %d: %d first names but %d last names", d.ID, len(d.FirstNames), len(d.LastNames))
	}
	if d.Added == 0 {
		return fmt.Errorf("document %d: missing added time", d.ID)
	}
	if d.Month < 0 || d.Month > 12 {
		return fmt.Errorf("document %d: invalid month %d", d.ID, d.Month)
	}
	if d.Day < 0 || d.Day > 31 {
		return fmt.Errorf("document %d: invalid day %d", d.ID, d.Day)
	}
	return nil
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.FirstNames = cloneStrings(d.FirstNames)
	c.LastNames = cloneStrings(d.LastNames)
	c.Keywords = cloneStrings(d.Keywords)
	c.Tags = cloneStrings(d.Tags)
	c.URLs = cloneStrings(d.URLs)
	c.Files = cloneStrings(d.Files)
	c.Folders = cloneStrings(d.Folders)
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
