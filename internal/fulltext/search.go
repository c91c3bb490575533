package fulltext

import (
	"context"
	"fmt"
	"strings"

	"github.com/matsen/shelf/internal/failure"
)

// SnippetTokens bounds the length of a match snippet.
const SnippetTokens = 16

// Match is one attachment whose text matched a query.
type Match struct {
	DocID   int64  `json:"doc_id"`
	RelPath string `json:"relpath"`
	Snippet string `json:"snippet"` // Matched terms wrapped in <b>…</b>
}

// Query returns the files matching every term of q, best first. A limit of
// zero means no limit.
func (idx *Index) Query(ctx context.Context, q string, limit int) ([]Match, error) {
	expr := matchExpr(q)
	if expr == "" {
		return nil, nil
	}
	stmt := fmt.Sprintf(`SELECT docid, relpath, snippet(pages, 2, '<b>', '</b>', '…', %d)
		FROM pages WHERE pages MATCH ? ORDER BY rank`, SnippetTokens)
	args := []any{expr}
	if limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := idx.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", failure.ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: querying index: %v", failure.ErrIndex, err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.DocID, &m.RelPath, &m.Snippet); err != nil {
			return nil, fmt.Errorf("%w: %v", failure.ErrIndex, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrIndex, err)
	}
	return out, nil
}

// matchExpr turns free text into an FTS5 expression: every word becomes a
// quoted phrase and all of them must match. Quotes in the input are dropped.
func matchExpr(q string) string {
	var terms []string
	for _, w := range strings.Fields(strings.ReplaceAll(q, `"`, " ")) {
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " ")
}
