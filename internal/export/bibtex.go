// Package export renders documents as BibTeX and RIS.
package export

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matsen/shelf/internal/config"
	"github.com/matsen/shelf/internal/reference"
)

// Options controls how documents are rendered.
type Options struct {
	// OmitFields names BibTeX fields to leave out, e.g. "abstract" or "file".
	OmitFields []string
	// PathType is config.PathRelative or config.PathAbsolute.
	PathType string
	// LibraryFolder resolves relative attachment paths for absolute output.
	LibraryFolder string
}

// BibOptions returns the BibTeX export options of the settings for lib.
func BibOptions(s config.ExportSettings, lib config.Library) Options {
	return Options{OmitFields: s.Bib.OmitFields, PathType: s.Bib.PathType, LibraryFolder: lib.Folder}
}

// RISOptions returns the RIS export options of the settings for lib.
func RISOptions(s config.ExportSettings, lib config.Library) Options {
	return Options{PathType: s.RIS.PathType, LibraryFolder: lib.Folder}
}

func (o Options) omit(field string) bool {
	for _, f := range o.OmitFields {
		if strings.EqualFold(strings.TrimSpace(f), field) {
			return true
		}
	}
	return false
}

// paths returns the attachment paths in the configured form.
func (o Options) paths(files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		if o.PathType == config.PathAbsolute && !filepath.IsAbs(f) && o.LibraryFolder != "" {
			f = filepath.Join(o.LibraryFolder, filepath.FromSlash(f))
		}
		out[i] = f
	}
	return out
}

// Key returns the citation key used on export: the explicit or derived key,
// falling back to the document id.
func Key(doc *reference.Document) string {
	if k := doc.CiteKey(); k != "" {
		return strings.ReplaceAll(k, " ", "")
	}
	return "doc" + strconv.FormatInt(doc.ID, 10)
}

type bibField struct {
	name  string
	value string
	raw   bool // Written without LaTeX escaping
}

// ToBibTeX renders one document as a BibTeX entry.
func ToBibTeX(doc *reference.Document, opts Options) string {
	entryType := determineEntryType(doc)

	venue := "journal"
	if entryType == "inproceedings" || entryType == "inbook" {
		venue = "booktitle"
	}
	var year, month string
	if doc.Year > 0 {
		year = strconv.Itoa(doc.Year)
	}
	if doc.Month > 0 {
		month = strconv.Itoa(doc.Month)
	}
	var eprint, archive string
	if doc.ArxivID != "" {
		eprint, archive = doc.ArxivID, "arXiv"
	}
	var url string
	if len(doc.URLs) > 0 {
		url = doc.URLs[0]
	}

	fields := []bibField{
		{"author", formatAuthors(doc.AuthorList()), false},
		{"title", doc.Title, false},
		{venue, doc.Publication, false},
		{"volume", doc.Volume, false},
		{"number", doc.Issue, false},
		{"pages", doc.Pages, false},
		{"year", year, true},
		{"month", month, true},
		{"publisher", doc.Publisher, false},
		{"institution", doc.Institution, false},
		{"address", doc.City, false},
		{"edition", doc.Edition, false},
		{"series", doc.Series, false},
		{"chapter", doc.Chapter, false},
		{"isbn", doc.ISBN, true},
		{"issn", doc.ISSN, true},
		{"doi", doc.DOI, true},
		{"eprint", eprint, true},
		{"archiveprefix", archive, true},
		{"pmid", doc.PMID, true},
		{"url", url, true},
		{"keywords", strings.Join(doc.Keywords, ", "), false},
		{"abstract", doc.Abstract, false},
		{"note", doc.Notes, false},
		{"file", strings.Join(opts.paths(doc.Files), ";"), true},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", entryType, Key(doc))
	for _, f := range fields {
		if f.value == "" || opts.omit(f.name) {
			continue
		}
		v := f.value
		if !f.raw {
			v = escapeLatex(v)
		}
		fmt.Fprintf(&b, "  %s = {%s},\n", f.name, v)
	}
	b.WriteString("}\n")
	return b.String()
}

// ToBibTeXList renders documents as BibTeX entries separated by blank lines.
func ToBibTeXList(docs []*reference.Document, opts Options) string {
	entries := make([]string, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, ToBibTeX(doc, opts))
	}
	return strings.Join(entries, "\n")
}

// determineEntryType returns the BibTeX entry type. An explicit non-default
// type wins; articles in proceedings-like venues become inproceedings.
func determineEntryType(doc *reference.Document) string {
	t := strings.ToLower(strings.TrimSpace(doc.Type))
	if t != "" && t != reference.DefaultType {
		return t
	}

	venue := strings.ToLower(doc.Publication)
	if strings.Contains(venue, "arxiv") ||
		strings.Contains(venue, "biorxiv") ||
		strings.Contains(venue, "medrxiv") {
		return "article"
	}
	if strings.Contains(venue, "proceedings") ||
		strings.Contains(venue, "conference") ||
		strings.Contains(venue, "workshop") ||
		strings.Contains(venue, "symposium") {
		return "inproceedings"
	}
	return "article"
}

// formatAuthors formats authors in BibTeX style: "Last, First and Last, First"
func formatAuthors(authors []reference.Author) string {
	var formatted []string
	for _, a := range authors {
		if a.First != "" {
			formatted = append(formatted, fmt.Sprintf("%s, %s", a.Last, a.First))
		} else if a.Last != "" {
			formatted = append(formatted, a.Last)
		}
	}
	return strings.Join(formatted, " and ")
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
