package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/ofmock/internal/schema"
)

// ContractRow represents a row in the contracts table.
type ContractRow struct {
	Source      string    `json:"source"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Checksum    string    `json:"checksum"`
	Endpoints   int       `json:"endpoints"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SearchResult represents one matching field or schema.
type SearchResult struct {
	Contract string `json:"contract"`
	Schema   string `json:"schema"`
	Field    string `json:"field,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Category string `json:"category,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// fieldRow is one flattened field of a schema tree.
type fieldRow struct {
	schema      string
	path        string
	kind        string
	format      string
	category    string
	pattern     string
	description string
	required    bool
}

// UpsertContract replaces the catalog entries of c's source document.
func (db *DB) UpsertContract(c *schema.Contract, checksum string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := deleteSource(tx, c.Source()); err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO contracts (source, name, version, category, description, checksum, endpoints, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Source(), c.Name(), c.Version(), c.Category(), c.Description(), checksum, len(c.Endpoints()), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("catalog: insert contract: %w", err)
	}

	schemaStmt, err := tx.Prepare(`INSERT INTO schemas (source, contract, name, fields) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("catalog: prepare schema insert: %w", err)
	}
	defer schemaStmt.Close()
	fieldStmt, err := tx.Prepare(`
		INSERT INTO fields (source, contract, schema_name, path, kind, format, category, pattern, description, required)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("catalog: prepare field insert: %w", err)
	}
	defer fieldStmt.Close()

	for _, name := range c.SchemaNames() {
		obj, _ := c.Schema(name)
		if _, err := schemaStmt.Exec(c.Source(), c.Name(), name, len(obj.Fields)); err != nil {
			return fmt.Errorf("catalog: insert schema: %w", err)
		}
		for _, f := range flatten(name, obj) {
			if _, err := fieldStmt.Exec(c.Source(), c.Name(), f.schema, f.path, f.kind, f.format,
				f.category, f.pattern, f.description, f.required); err != nil {
				return fmt.Errorf("catalog: insert field: %w", err)
			}
			if err := ftsUpsert(tx, c.Source(), c.Name(), f); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteSource removes the catalog entries of one source document.
func (db *DB) DeleteSource(source string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteSource(tx, source); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteSource(tx *sql.Tx, source string) error {
	ftsDelete(tx, source)
	for _, q := range []string{
		`DELETE FROM fields WHERE source = ?`,
		`DELETE FROM schemas WHERE source = ?`,
		`DELETE FROM contracts WHERE source = ?`,
	} {
		if _, err := tx.Exec(q, source); err != nil {
			return fmt.Errorf("catalog: delete %s: %w", source, err)
		}
	}
	return nil
}

// GetChecksum returns the stored checksum of a source, or empty string if not indexed.
func (db *DB) GetChecksum(source string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM contracts WHERE source = ?`, source).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("catalog: checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns source -> checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT source, checksum FROM contracts`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all checksums: %w", err)
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

// ListContracts returns indexed contracts ordered by name, optionally filtered by category.
func (db *DB) ListContracts(category string) ([]ContractRow, error) {
	q := `SELECT source, name, version, category, description, checksum, endpoints, updated_at FROM contracts`
	var args []any
	if category != "" {
		q += ` WHERE category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY name`

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list contracts: %w", err)
	}
	defer rows.Close()

	out := []ContractRow{}
	for rows.Next() {
		var r ContractRow
		if err := rows.Scan(&r.Source, &r.Name, &r.Version, &r.Category, &r.Description,
			&r.Checksum, &r.Endpoints, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Categories returns category -> number of indexed contracts.
func (db *DB) Categories() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT category, count(*) FROM contracts GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("catalog: categories: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var c string
		var n int
		if err := rows.Scan(&c, &n); err != nil {
			return nil, err
		}
		out[c] = n
	}
	return out, rows.Err()
}

// FieldCount returns the number of indexed fields of a source document.
func (db *DB) FieldCount(source string) (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM fields WHERE source = ?`, source).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: field count: %w", err)
	}
	return n, nil
}

// flatten lists every field of obj with dotted paths. Array items share the
// array's path; recursive objects are visited once per branch.
func flatten(schemaName string, obj *schema.Object) []fieldRow {
	var out []fieldRow
	var walk func(o *schema.Object, prefix string, seen map[*schema.Object]bool)
	walk = func(o *schema.Object, prefix string, seen map[*schema.Object]bool) {
		if seen[o] {
			return
		}
		seen[o] = true
		defer delete(seen, o)
		for _, f := range o.Fields {
			path := f.Name
			if prefix != "" {
				path = prefix + "." + f.Name
			}
			leaf := f
			for leaf.Kind == schema.KindArray && leaf.Items != nil {
				leaf = leaf.Items
			}
			out = append(out, fieldRow{
				schema:      schemaName,
				path:        path,
				kind:        f.Kind.String(),
				format:      firstNonEmpty(f.FormatName, leaf.FormatName),
				category:    categoryName(f.Category),
				pattern:     firstNonEmpty(f.Pattern, leaf.Pattern),
				description: strings.TrimSpace(f.Description),
				required:    o.IsRequired(f.Name),
			})
			if leaf.Kind == schema.KindObject && leaf.Object != nil {
				walk(leaf.Object, path, seen)
			}
		}
	}
	walk(obj, "", map[*schema.Object]bool{})
	return out
}

func categoryName(c schema.Category) string {
	if c == schema.CategoryNone {
		return ""
	}
	return c.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
