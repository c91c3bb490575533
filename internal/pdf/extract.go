package pdf

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/matsen/shelf/internal/failure"
)

// DOIPages is how many leading pages are searched for a DOI.
const DOIPages = 3

// 10.<registrant>/<suffix>
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// Text holds the plain text of a PDF, one entry per page read.
type Text struct {
	Pages     []string
	PageCount int
}

// Joined returns the page texts separated by newlines.
func (t *Text) Joined() string {
	return strings.Join(t.Pages, "\n")
}

// DOI returns the first DOI on the leading pages, or "".
func (t *Text) DOI() string {
	for i, page := range t.Pages {
		if i >= DOIPages {
			break
		}
		if doi := FindDOI(page); doi != "" {
			return doi
		}
	}
	return ""
}

// Title guesses the title from the first page: the first line longer than
// 20 characters that is not a running header.
func (t *Text) Title() string {
	if len(t.Pages) == 0 {
		return ""
	}
	for _, line := range strings.Split(t.Pages[0], "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !isHeaderLine(line) {
			return line
		}
	}
	return ""
}

// Extract reads the text of up to maxPages pages (all pages when maxPages
// is not positive). A missing file is FILE_NOT_FOUND; a file the PDF reader
// rejects is DECODE_FAILURE.
func Extract(path string, maxPages int) (text *Text, err error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", failure.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", failure.ErrIO, err)
	}

	// The reader panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			text, err = nil, fmt.Errorf("%w: %s: %v", failure.ErrDecode, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", failure.ErrDecode, path, err)
	}
	defer f.Close()

	n := r.NumPage()
	if maxPages <= 0 || maxPages > n {
		maxPages = n
	}
	text = &Text{PageCount: n}
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			text.Pages = append(text.Pages, "")
			continue
		}
		s, err := page.GetPlainText(nil)
		if err != nil {
			s = ""
		}
		text.Pages = append(text.Pages, s)
	}
	return text, nil
}

// FindDOI returns the first plausible DOI in s, without trailing punctuation.
func FindDOI(s string) string {
	for _, match := range doiPattern.FindAllString(s, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return match
		}
	}
	return ""
}

func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slash := strings.Index(doi, "/")
	return slash != -1 && slash < len(doi)-1
}

// isHeaderLine reports whether a line looks like a journal running header.
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "journal"), strings.Contains(lower, "copyright"):
		return true
	case strings.Contains(lower, "volume") && strings.Contains(lower, "issue"):
		return true
	case strings.Contains(lower, "article") && strings.Contains(lower, "published"):
		return true
	case strings.HasPrefix(lower, "doi:"), strings.HasPrefix(lower, "arxiv:"):
		return true
	}
	return false
}
