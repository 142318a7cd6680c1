//go:build !sqlite_fts5

package catalog

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the fields table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _ string, _ fieldRow) error {
	// Fields are already stored in the fields table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search over field paths, schema names, contract
// names and descriptions (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT contract, schema_name, path, kind, category, substr(description, 1, 200)
		FROM fields
		WHERE path LIKE ? OR schema_name LIKE ? OR contract LIKE ? OR description LIKE ?
		ORDER BY contract, schema_name, path
		LIMIT ?
	`, like, like, like, like, limit)
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
