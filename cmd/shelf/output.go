package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/matsen/shelf/internal/reference"
)

// Constants for output formatting.
const (
	ListTitleMaxLen   = 60 // Used in list and search output
	DetailTitleMaxLen = 70 // Used in get command detail view
	TextWrapWidth     = 60 // Standard text wrap width
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string  `json:"status"`
	Path   string  `json:"path,omitempty"`
	IDs    []int64 `json:"ids,omitempty"`
}

// DocumentSummary is one line of a document listing.
type DocumentSummary struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Year      int      `json:"year,omitempty"`
	DOI       string   `json:"doi,omitempty"`
	Files     int      `json:"files"`
	Confirmed bool     `json:"confirmed"`
	Trashed   bool     `json:"trashed,omitempty"`
}

func summarize(doc *reference.Document) DocumentSummary {
	return DocumentSummary{
		ID:        doc.ID,
		Title:     doc.Title,
		Authors:   doc.Authors(),
		Year:      doc.Year,
		DOI:       doc.DOI,
		Files:     len(doc.Files),
		Confirmed: doc.Confirmed.IsTrue(),
		Trashed:   doc.DeletionPending.IsTrue(),
	}
}

// printSummary prints one document as an indented two-line entry.
func printSummary(doc *reference.Document) {
	year := ""
	if doc.Year > 0 {
		year = fmt.Sprintf(" (%d)", doc.Year)
	}
	fmt.Printf("%5d  %s\n", doc.ID, truncateString(doc.Title, ListTitleMaxLen))
	fmt.Printf("       %s%s\n", formatAuthorsShort(doc.AuthorList(), 3), year)
}

// parseIDs converts document id arguments.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid document id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// mustParseIDs parses document ids, exits on error.
func mustParseIDs(args []string) []int64 {
	ids, err := parseIDs(args)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	return ids
}

// truncateString truncates a string to maxLen runes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// wrapText wraps text to the specified width with indentation on subsequent lines.
func wrapText(text string, width int, indent string) string {
	if len(text) <= width {
		return text
	}

	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		switch {
		case current.Len() == 0:
			current.WriteString(word)
		case current.Len()+1+len(word) <= width:
			current.WriteString(" ")
			current.WriteString(word)
		default:
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
		}
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return strings.Join(lines, "\n"+indent)
}

// formatAuthorFull formats an author as "First Last".
func formatAuthorFull(a reference.Author) string {
	if a.First != "" {
		return a.First + " " + a.Last
	}
	return a.Last
}

// formatAuthorsShort formats authors as "Last F" with "et al." past maxCount.
func formatAuthorsShort(authors []reference.Author, maxCount int) string {
	var names []string
	for i, a := range authors {
		if i >= maxCount {
			names = append(names, "et al.")
			break
		}
		name := a.Last
		if r := []rune(a.First); len(r) > 0 {
			name += " " + string(r[0])
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// formatAdded renders a Unix timestamp relative to now ("3 days ago").
func formatAdded(unix int64) string {
	if unix == 0 {
		return "unknown"
	}
	return humanize.Time(time.Unix(unix, 0))
}
