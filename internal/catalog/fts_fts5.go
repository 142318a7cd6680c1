//go:build sqlite_fts5

package catalog

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/ofmock/internal/schema"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS fields_fts USING fts5(
			source UNINDEXED,
			contract,
			schema_name,
			path,
			kind UNINDEXED,
			category UNINDEXED,
			terms,
			description,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, source, contract string, f fieldRow) error {
	// terms holds the split field name so "consent" finds "consentId".
	terms := strings.Join(schema.Tokens(f.path), " ")
	_, err := tx.Exec(`
		INSERT INTO fields_fts (source, contract, schema_name, path, kind, category, terms, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, source, contract, f.schema, f.path, f.kind, f.category, terms, f.description)
	if err != nil {
		return fmt.Errorf("catalog: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, source string) {
	_, _ = tx.Exec(`DELETE FROM fields_fts WHERE source = ?`, source)
}

// Search performs an FTS5 full-text search and returns matching fields with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT contract,
		       schema_name,
		       path,
		       kind,
		       category,
		       snippet(fields_fts, 7, '<b>', '</b>', '...', 32)
		FROM fields_fts
		WHERE fields_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Contract, &r.Schema, &r.Field, &r.Kind, &r.Category, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ftsQuery turns free text into a prefix query over its tokens.
func ftsQuery(q string) string {
	tokens := schema.Tokens(q)
	if len(tokens) == 0 {
		return `""`
	}
	for i, t := range tokens {
		tokens[i] = `"` + t + `"*`
	}
	return strings.Join(tokens, " ")
}
