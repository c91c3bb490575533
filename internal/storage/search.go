package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matsen/shelf/internal/reference"
)

// Scope restricts a field search to part of the catalog.
type Scope struct {
	// System is "-1", "-2" or "-3" for the system folder of that id, or ""
	// for a user folder scope.
	System string
	// Folders lists real folder ids whose members are in scope, in addition
	// to the system folder's derived membership.
	Folders []string
}

// fieldConditions maps a search field name to a WHERE fragment over the
// Documents alias d. Every "?" receives the same LIKE pattern, already
// case-folded; columns go through fold so non-ASCII letters match too.
var fieldConditions = map[string]string{
	"Authors": `EXISTS (SELECT 1 FROM DocumentContributors c WHERE c.did = d.id AND c.contribution = '` + ContributionAuthor + `'
		AND (fold(IFNULL(c.lastName, '') || ', ' || IFNULL(c.firstNames, '')) LIKE ? ESCAPE '\'
		  OR fold(IFNULL(c.firstNames, '') || ' ' || IFNULL(c.lastName, '')) LIKE ? ESCAPE '\'))`,
	"Title":       `fold(d.title) LIKE ? ESCAPE '\'`,
	"Keywords":    `EXISTS (SELECT 1 FROM DocumentKeywords k WHERE k.did = d.id AND fold(k.text) LIKE ? ESCAPE '\')`,
	"Tags":        `EXISTS (SELECT 1 FROM DocumentTags t WHERE t.did = d.id AND fold(t.tag) LIKE ? ESCAPE '\')`,
	"Notes":       `EXISTS (SELECT 1 FROM DocumentNotes n WHERE n.did = d.id AND fold(n.note) LIKE ? ESCAPE '\')`,
	"Publication": `fold(d.publication) LIKE ? ESCAPE '\'`,
	"Abstract":    `fold(d.abstract) LIKE ? ESCAPE '\'`,
	// An unset key searches the synthesized lastName+year form.
	"Citationkey": `fold(IFNULL(d.citationkey,
		(SELECT c.lastName FROM DocumentContributors c WHERE c.did = d.id AND c.contribution = '` + ContributionAuthor + `'
		 ORDER BY c.rowid LIMIT 1) || d.year)) LIKE ? ESCAPE '\'`,
}

// IsRelationalField reports whether field is searched with SQL (every
// search field except PDF).
func IsRelationalField(field string) bool {
	_, ok := fieldConditions[field]
	return ok
}

// SearchField returns the ids of documents in scope whose field contains
// query, case-insensitively, in ascending id order.
func (d *DB) SearchField(field, query string, scope Scope) ([]int64, error) {
	cond, ok := fieldConditions[field]
	if !ok {
		return nil, fmt.Errorf("unknown search field: %s", field)
	}

	pattern := "%" + escapeLike(foldCase(query)) + "%"
	var args []interface{}
	for i := 0; i < strings.Count(cond, "?"); i++ {
		args = append(args, pattern)
	}

	scopeSQL, scopeArgs := scopeCondition(scope)
	args = append(args, scopeArgs...)

	rows, err := d.db.Query(`SELECT d.id FROM Documents d WHERE (`+cond+`) AND (`+scopeSQL+`) ORDER BY d.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", field, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scopeCondition(scope Scope) (string, []interface{}) {
	var parts []string
	var args []interface{}

	switch scope.System {
	case reference.AllFolderID:
		parts = append(parts, `IFNULL(d.deletionPending, 'false') != 'true'`)
	case reference.ReviewFolderID:
		parts = append(parts, `(d.confirmed IS NULL OR d.confirmed = 'false')`)
	case reference.TrashFolderID:
		parts = append(parts, `(d.deletionPending = 'true' AND NOT EXISTS (SELECT 1 FROM DocumentFolders df WHERE df.did = d.id))`)
	}

	if len(scope.Folders) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(scope.Folders)), ", ")
		parts = append(parts, `d.id IN (SELECT did FROM DocumentFolders WHERE folderid IN (`+placeholders+`))`)
		for _, f := range scope.Folders {
			fid, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				fid = 0 // Matches nothing
			}
			args = append(args, fid)
		}
	}

	if len(parts) == 0 {
		return "0", nil
	}
	return strings.Join(parts, " OR "), args
}

// escapeLike escapes the LIKE wildcards in s for use with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
