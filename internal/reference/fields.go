package reference

import (
	"fmt"
	"strconv"
	"strings"
)

// ScalarFields lists the named scalar fields in display order.
var ScalarFields = []string{
	"title", "type", "publication", "volume", "issue", "pages",
	"year", "month", "day", "doi", "abstract", "arxivId", "pmid", "pmcid",
	"issn", "isbn", "publisher", "institution", "city", "country",
	"edition", "series", "chapter", "citationkey", "notes",
}

// IsScalarField reports whether name is accepted by Field and SetField.
func IsScalarField(name string) bool {
	_, ok := scalarRef(&Document{}, name)
	return ok || isIntField(name)
}

func isIntField(name string) bool {
	return name == "year" || name == "month" || name == "day"
}

func scalarRef(d *Document, name string) (*string, bool) {
	switch name {
	case "title":
		return &d.Title, true
	case "type":
		return &d.Type, true
	case "publication":
		return &d.Publication, true
	case "volume":
		return &d.Volume, true
	case "issue":
		return &d.Issue, true
	case "pages":
		return &d.Pages, true
	case "doi":
		return &d.DOI, true
	case "abstract":
		return &d.Abstract, true
	case "arxivId":
		return &d.ArxivID, true
	case "pmid":
		return &d.PMID, true
	case "pmcid":
		return &d.PMCID, true
	case "issn":
		return &d.ISSN, true
	case "isbn":
		return &d.ISBN, true
	case "publisher":
		return &d.Publisher, true
	case "institution":
		return &d.Institution, true
	case "city":
		return &d.City, true
	case "country":
		return &d.Country, true
	case "edition":
		return &d.Edition, true
	case "series":
		return &d.Series, true
	case "chapter":
		return &d.Chapter, true
	case "citationkey":
		return &d.CitationKey, true
	case "notes":
		return &d.Notes, true
	}
	return nil, false
}

func intRef(d *Document, name string) *int {
	switch name {
	case "year":
		return &d.Year
	case "month":
		return &d.Month
	case "day":
		return &d.Day
	}
	return nil
}

// Field returns the string form of a named scalar field. Unset integers are "".
func (d *Document) Field(name string) string {
	if p, ok := scalarRef(d, name); ok {
		return *p
	}
	if p := intRef(d, name); p != nil {
		if *p == 0 {
			return ""
		}
		return strconv.Itoa(*p)
	}
	return ""
}

// SetField assigns a named scalar field from its string form.
func (d *Document) SetField(name, value string) error {
	if p, ok := scalarRef(d, name); ok {
		*p = value
		return nil
	}
	if p := intRef(d, name); p != nil {
		value = strings.TrimSpace(value)
		if value == "" {
			*p = 0
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		*p = n
		return nil
	}
	return fmt.Errorf("unknown field: %s", name)
}
