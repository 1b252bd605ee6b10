//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS headings_fts USING fts5(
			path UNINDEXED,
			line UNINDEXED,
			state UNINDEXED,
			title,
			tags,
			task_id,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, path string, h HeadingRow) error {
	_, err := tx.Exec(`INSERT INTO headings_fts (path, line, state, title, tags, task_id) VALUES (?, ?, ?, ?, ?, ?)`,
		path, h.Line, h.State, h.Title, strings.Join(h.Tags, " "), h.TaskID)
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) error {
	if _, err := tx.Exec(`DELETE FROM headings_fts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// ftsQuery quotes every term as a prefix phrase so that identifiers and
// punctuation in user input never reach the FTS5 query parser as syntax.
func ftsQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}
	return strings.Join(quoted, " ")
}

// Search performs an FTS5 full-text search over headings and returns
// matching results with snippets. All terms must match.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT path,
		       line,
		       state,
		       title,
		       snippet(headings_fts, 3, '<b>', '</b>', '...', 32)
		FROM headings_fts
		WHERE headings_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery(terms), limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Line, &r.State, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
