// Package index provides a SQLite-backed index of documents, headings, and
// findings, with optional FTS5 full-text search over headings.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path       TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	ruleset    TEXT NOT NULL DEFAULT '',
	headings   INTEGER NOT NULL DEFAULT 0,
	errors     INTEGER NOT NULL DEFAULT 0,
	warnings   INTEGER NOT NULL DEFAULT 0,
	infos      INTEGER NOT NULL DEFAULT 0,
	fixable    INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS headings (
	path      TEXT NOT NULL,
	line      INTEGER NOT NULL,
	level     INTEGER NOT NULL,
	state     TEXT NOT NULL DEFAULT '',
	priority  TEXT NOT NULL DEFAULT '',
	title     TEXT NOT NULL DEFAULT '',
	tags      TEXT NOT NULL DEFAULT '[]',
	task_id   TEXT NOT NULL DEFAULT '',
	scheduled TEXT NOT NULL DEFAULT '',
	deadline  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (path, line)
);

CREATE INDEX IF NOT EXISTS idx_headings_state   ON headings(state);
CREATE INDEX IF NOT EXISTS idx_headings_task_id ON headings(task_id);

CREATE TABLE IF NOT EXISTS issues (
	path         TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	line         INTEGER NOT NULL,
	severity     TEXT NOT NULL,
	code         TEXT NOT NULL,
	message      TEXT NOT NULL,
	fixable      INTEGER NOT NULL DEFAULT 0,
	heading_line INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (path, seq)
);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}
