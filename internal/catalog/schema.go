// Package catalog provides a SQLite-backed index of loaded contracts, their
// schemas and fields, with optional FTS5 full-text search.
package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS contracts (
	source      TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	version     TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL DEFAULT '',
	endpoints   INTEGER NOT NULL DEFAULT 0,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schemas (
	source   TEXT NOT NULL REFERENCES contracts(source) ON DELETE CASCADE,
	contract TEXT NOT NULL,
	name     TEXT NOT NULL,
	fields   INTEGER NOT NULL DEFAULT 0,
	UNIQUE(source, name)
);

CREATE TABLE IF NOT EXISTS fields (
	source      TEXT NOT NULL REFERENCES contracts(source) ON DELETE CASCADE,
	contract    TEXT NOT NULL,
	schema_name TEXT NOT NULL,
	path        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	format      TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	pattern     TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	required    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_contracts_category ON contracts(category);
CREATE INDEX IF NOT EXISTS idx_fields_source ON fields(source);
CREATE INDEX IF NOT EXISTS idx_fields_path ON fields(path);
`

// DB wraps a sql.DB with catalog operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema. An empty
// dsn opens a private in-memory database.
func Open(dsn string) (*DB, error) {
	memory := dsn == "" || dsn == ":memory:"
	if memory {
		dsn = ":memory:"
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if memory {
		// in-memory databases are private to one connection
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
