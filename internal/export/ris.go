package export

import (
	"fmt"
	"strings"

	"github.com/matsen/shelf/internal/reference"
)

// risTypes maps document types onto RIS reference types.
var risTypes = map[string]string{
	"article":       "JOUR",
	"book":          "BOOK",
	"inbook":        "CHAP",
	"incollection":  "CHAP",
	"inproceedings": "CPAPER",
	"conference":    "CPAPER",
	"phdthesis":     "THES",
	"mastersthesis": "THES",
	"techreport":    "RPRT",
	"unpublished":   "UNPB",
}

// ToRIS renders one document as a RIS record.
func ToRIS(doc *reference.Document, opts Options) string {
	var b strings.Builder
	tag := func(name, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s  - %s\n", name, value)
		}
	}

	ty, ok := risTypes[determineEntryType(doc)]
	if !ok {
		ty = "GEN"
	}
	tag("TY", ty)
	tag("ID", Key(doc))
	for _, a := range doc.AuthorList() {
		if a.Last == "" && a.First == "" {
			continue
		}
		if a.First == "" {
			tag("AU", a.Last)
		} else {
			tag("AU", a.String())
		}
	}
	tag("TI", doc.Title)
	tag("T2", doc.Publication)
	tag("VL", doc.Volume)
	tag("IS", doc.Issue)
	start, end, _ := strings.Cut(doc.Pages, "-")
	tag("SP", start)
	tag("EP", strings.TrimLeft(end, "-"))
	if doc.Year > 0 {
		tag("PY", fmt.Sprintf("%d", doc.Year))
		date := fmt.Sprintf("%d/", doc.Year)
		if doc.Month > 0 {
			date += fmt.Sprintf("%02d/", doc.Month)
			if doc.Day > 0 {
				date += fmt.Sprintf("%02d/", doc.Day)
			}
		}
		tag("DA", date)
	}
	tag("DO", doc.DOI)
	tag("SN", doc.ISSN)
	tag("SN", doc.ISBN)
	tag("PB", doc.Publisher)
	tag("CY", doc.City)
	tag("ET", doc.Edition)
	tag("AB", doc.Abstract)
	for _, k := range doc.Keywords {
		tag("KW", k)
	}
	for _, u := range doc.URLs {
		tag("UR", u)
	}
	for _, f := range opts.paths(doc.Files) {
		tag("L1", f)
	}
	tag("N1", doc.Notes)
	b.WriteString("ER  - \n")
	return b.String()
}

// ToRISList renders documents as RIS records separated by blank lines.
func ToRISList(docs []*reference.Document, opts Options) string {
	records := make([]string, 0, len(docs))
	for _, doc := range docs {
		records = append(records, ToRIS(doc, opts))
	}
	return strings.Join(records, "\n")
}
