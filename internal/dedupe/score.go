// Package dedupe finds likely duplicate documents by fuzzy comparison of
// their authors, titles and venues.
package dedupe

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/matsen/shelf/internal/reference"
)

// DefaultThreshold is the minimum score of a duplicate edge.
const DefaultThreshold = 60

// Candidate is the snapshot of a document that scoring needs. It is a value
// type so scoring jobs never touch the live catalog.
type Candidate struct {
	ID      int64
	Authors string // "Last, First" entries joined by "; "
	Title   string
	JY      string // "<publication> <year>"
}

// CandidateFrom snapshots doc for scoring.
func CandidateFrom(doc *reference.Document) Candidate {
	var year string
	if doc.Year != 0 {
		year = strconv.Itoa(doc.Year)
	}
	return Candidate{
		ID:      doc.ID,
		Authors: strings.Join(doc.Authors(), "; "),
		Title:   doc.Title,
		JY:      strings.TrimSpace(doc.Publication + " " + year),
	}
}

// Ratio returns the similarity of a and b from 0 to 100, based on the
// Levenshtein distance over runes. Comparison is case-sensitive. Two empty
// strings are identical.
func Ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// ratioBound is the best Ratio two strings of these lengths can reach: the
// distance is at least the length difference.
func ratioBound(la, lb int) float64 {
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	return 100 * (1 - float64(longest-min(la, lb))/float64(longest))
}

type field struct {
	a, b   string
	la, lb int
	weight float64 // Mean of the two lengths
}

func fields(x, y Candidate) [3]field {
	pairs := [3][2]string{{x.Authors, y.Authors}, {x.Title, y.Title}, {x.JY, y.JY}}
	var out [3]field
	for i, p := range pairs {
		la, lb := utf8.RuneCountInString(p[0]), utf8.RuneCountInString(p[1])
		out[i] = field{a: p[0], b: p[1], la: la, lb: lb, weight: float64(la+lb) / 2}
	}
	return out
}

// Score returns the length-weighted mean of the author, title and venue
// ratios. Two candidates with no text at all score 100.
func Score(x, y Candidate) float64 {
	fs := fields(x, y)
	var sum, total float64
	for _, f := range fs {
		sum += f.weight * Ratio(f.a, f.b)
		total += f.weight
	}
	if total == 0 {
		return 100
	}
	return sum / total
}

// Match reports whether x and y score at least threshold, with the score.
// Fields are scored in order, and the pair is rejected as soon as the score
// cannot reach threshold even if every remaining field reached its length
// bound. A field whose lengths differ by half the longer length or more is
// never computed in full unless the bound still allows a match.
func Match(x, y Candidate, threshold float64) (float64, bool) {
	fs := fields(x, y)
	var total float64
	ratios := [3]float64{}
	for i, f := range fs {
		total += f.weight
		ratios[i] = ratioBound(f.la, f.lb)
	}
	if total == 0 {
		return 100, threshold <= 100
	}

	upper := func() float64 {
		var sum float64
		for i, f := range fs {
			sum += f.weight * ratios[i]
		}
		return sum / total
	}

	if upper() < threshold {
		return 0, false
	}
	for i, f := range fs {
		if f.weight == 0 {
			continue
		}
		ratios[i] = Ratio(f.a, f.b)
		if upper() < threshold {
			return 0, false
		}
	}
	score := upper()
	return score, score >= threshold
}

// ClampThreshold limits a configured threshold to 1..100.
func ClampThreshold(t int) int {
	switch {
	case t < 1:
		return 1
	case t > 100:
		return 100
	}
	return t
}
