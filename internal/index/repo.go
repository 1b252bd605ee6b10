package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/tasklint/internal/apperr"
	"github.com/starford/tasklint/internal/models"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Ruleset   string    `json:"-"`
	Headings  int       `json:"headings"`
	Errors    int       `json:"errors"`
	Warnings  int       `json:"warnings"`
	Infos     int       `json:"infos"`
	Fixable   int       `json:"fixable"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HeadingRow represents a row in the headings table.
type HeadingRow struct {
	Path      string   `json:"path"`
	Line      int      `json:"line"`
	Level     int      `json:"level"`
	State     string   `json:"state,omitempty"`
	Priority  string   `json:"priority,omitempty"`
	Title     string   `json:"title"`
	Tags      []string `json:"tags"`
	TaskID    string   `json:"task_id,omitempty"`
	Scheduled string   `json:"scheduled,omitempty"`
	Deadline  string   `json:"deadline,omitempty"`
}

// TaskIDRow is one TASK_ID occurrence.
type TaskIDRow struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Line int    `json:"line"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	State   string `json:"state,omitempty"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// ListFilter narrows ListDocuments.
type ListFilter struct {
	// WithIssues keeps only documents that have findings.
	WithIssues bool
	// Prefix keeps only paths under this directory prefix.
	Prefix string
}

// HeadingFilter narrows Headings.
type HeadingFilter struct {
	State string
	Tag   string
	Limit int
}

// Totals aggregates the whole index.
type Totals struct {
	Documents int `json:"documents"`
	Headings  int `json:"headings"`
	Errors    int `json:"errors"`
	Warnings  int `json:"warnings"`
	Infos     int `json:"infos"`
	Fixable   int `json:"fixable"`
}

// UpsertDocument replaces a document with its headings and findings within a
// transaction.
func (db *DB) UpsertDocument(d DocumentRow, headings []HeadingRow, issues []models.Issue) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO documents (path, title, checksum, ruleset, headings, errors, warnings, infos, fixable, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			ruleset    = excluded.ruleset,
			headings   = excluded.headings,
			errors     = excluded.errors,
			warnings   = excluded.warnings,
			infos      = excluded.infos,
			fixable    = excluded.fixable,
			updated_at = excluded.updated_at
	`, d.Path, d.Title, d.Checksum, d.Ruleset, d.Headings, d.Errors, d.Warnings, d.Infos, d.Fixable, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	_, _ = tx.Exec(`DELETE FROM headings WHERE path = ?`, d.Path)
	_, _ = tx.Exec(`DELETE FROM issues WHERE path = ?`, d.Path)
	if err := ftsDelete(tx, d.Path); err != nil {
		return err
	}

	if len(headings) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO headings (path, line, level, state, priority, title, tags, task_id, scheduled, deadline)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare heading insert: %w", err)
		}
		defer stmt.Close()
		for _, h := range headings {
			tagsJSON, _ := json.Marshal(nonNil(h.Tags))
			if _, err := stmt.Exec(d.Path, h.Line, h.Level, h.State, h.Priority, h.Title, string(tagsJSON), h.TaskID, h.Scheduled, h.Deadline); err != nil {
				return fmt.Errorf("index: insert heading: %w", err)
			}
			// FTS insert (no-op when FTS5 tag is absent).
			if err := ftsInsert(tx, d.Path, h); err != nil {
				return err
			}
		}
	}

	if len(issues) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO issues (path, seq, line, severity, code, message, fixable, heading_line)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare issue insert: %w", err)
		}
		defer stmt.Close()
		for i, is := range issues {
			if _, err := stmt.Exec(d.Path, i, is.Line, is.Severity.String(), is.Code.String(), is.Message, is.Fixable, is.HeadingLine); err != nil {
				return fmt.Errorf("index: insert issue: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document with its headings, findings, and FTS rows.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	_, _ = tx.Exec(`DELETE FROM issues WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM headings WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM documents WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil // not found is fine
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums maps every indexed path to its checksum. Documents indexed
// under a ruleset other than the given one map to "" so that callers
// re-check them. An empty ruleset matches every document.
func (db *DB) AllChecksums(ruleset string) (map[string]string, error) {
	rows, err := db.conn.Query(`
		SELECT path, CASE WHEN ?1 = '' OR ruleset = ?1 THEN checksum ELSE '' END
		FROM documents`, ruleset)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

const documentColumns = `path, title, checksum, ruleset, headings, errors, warnings, infos, fixable, updated_at`

func scanDocument(s interface{ Scan(...any) error }) (DocumentRow, error) {
	var d DocumentRow
	err := s.Scan(&d.Path, &d.Title, &d.Checksum, &d.Ruleset, &d.Headings, &d.Errors, &d.Warnings, &d.Infos, &d.Fixable, &d.UpdatedAt)
	return d, err
}

// GetDocument returns one document row or apperr.ErrNotFound.
func (db *DB) GetDocument(path string) (*DocumentRow, error) {
	d, err := scanDocument(db.conn.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get document: %w", err)
	}
	return &d, nil
}

// ListDocuments returns a page of documents ordered by path and the total
// number of matches.
func (db *DB) ListDocuments(limit, offset int, filter ListFilter) ([]DocumentRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		where []string
		args  []any
	)
	if filter.WithIssues {
		where = append(where, `(errors + warnings + infos) > 0`)
	}
	if filter.Prefix != "" {
		where = append(where, `path LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(strings.TrimSuffix(filter.Prefix, "/"))+"/%")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+documentColumns+` FROM documents`+clause+` ORDER BY path LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// DocumentIssues returns the stored findings of a document in check order.
func (db *DB) DocumentIssues(path string) ([]models.Issue, error) {
	rows, err := db.conn.Query(`
		SELECT line, severity, code, message, fixable, heading_line
		FROM issues WHERE path = ? ORDER BY seq`, path)
	if err != nil {
		return nil, fmt.Errorf("index: document issues: %w", err)
	}
	defer rows.Close()

	var out []models.Issue
	for rows.Next() {
		var (
			is        models.Issue
			sev, code string
		)
		if err := rows.Scan(&is.Line, &sev, &code, &is.Message, &is.Fixable, &is.HeadingLine); err != nil {
			return nil, err
		}
		if err := is.Severity.UnmarshalText([]byte(sev)); err != nil {
			return nil, fmt.Errorf("index: document issues: %w", err)
		}
		if err := is.Code.UnmarshalText([]byte(code)); err != nil {
			return nil, fmt.Errorf("index: document issues: %w", err)
		}
		out = append(out, is)
	}
	return out, rows.Err()
}

// Headings lists indexed headings matching filter, ordered by path and line.
func (db *DB) Headings(filter HeadingFilter) ([]HeadingRow, error) {
	if filter.Limit <= 0 {
		filter.Limit = 200
	}
	var (
		where []string
		args  []any
	)
	if filter.State != "" {
		where = append(where, `state = ?`)
		args = append(args, filter.State)
	}
	if filter.Tag != "" {
		where = append(where, `tags LIKE ? ESCAPE '\'`)
		args = append(args, `%"`+escapeLike(filter.Tag)+`"%`)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := db.conn.Query(`
		SELECT path, line, level, state, priority, title, tags, task_id, scheduled, deadline
		FROM headings`+clause+` ORDER BY path, line LIMIT ?`, append(args, filter.Limit)...)
	if err != nil {
		return nil, fmt.Errorf("index: headings: %w", err)
	}
	defer rows.Close()

	var out []HeadingRow
	for rows.Next() {
		var (
			h    HeadingRow
			tags string
		)
		if err := rows.Scan(&h.Path, &h.Line, &h.Level, &h.State, &h.Priority, &h.Title, &tags, &h.TaskID, &h.Scheduled, &h.Deadline); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tags), &h.Tags)
		h.Tags = nonNil(h.Tags)
		out = append(out, h)
	}
	return out, rows.Err()
}

// TaskIDs returns every TASK_ID in the index.
func (db *DB) TaskIDs() ([]TaskIDRow, error) {
	rows, err := db.conn.Query(`SELECT task_id, path, line FROM headings WHERE task_id != '' ORDER BY path, line`)
	if err != nil {
		return nil, fmt.Errorf("index: task ids: %w", err)
	}
	defer rows.Close()

	var out []TaskIDRow
	for rows.Next() {
		var r TaskIDRow
		if err := rows.Scan(&r.ID, &r.Path, &r.Line); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Totals sums finding counts across all documents.
func (db *DB) Totals() (Totals, error) {
	var t Totals
	err := db.conn.QueryRow(`
		SELECT count(*), coalesce(sum(headings), 0), coalesce(sum(errors), 0),
		       coalesce(sum(warnings), 0), coalesce(sum(infos), 0), coalesce(sum(fixable), 0)
		FROM documents`).Scan(&t.Documents, &t.Headings, &t.Errors, &t.Warnings, &t.Infos, &t.Fixable)
	if err != nil {
		return Totals{}, fmt.Errorf("index: totals: %w", err)
	}
	return t, nil
}

// searchTerms splits a user query into whitespace-separated terms.
func searchTerms(query string) []string {
	return strings.Fields(query)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
