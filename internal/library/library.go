// Package library persists references in a SQLite database so a citation
// library outlives a single session. The default build uses the pure Go
// driver (modernc.org/sqlite); the cgo_sqlite build tag switches to
// mattn/go-sqlite3.
package library

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/citekit/citekit/core/errors"
	"github.com/citekit/citekit/core/reference"
)

const schema = `
CREATE TABLE IF NOT EXISTS refs (
	id     TEXT PRIMARY KEY,
	fields TEXT NOT NULL
);
`

// DriverType identifies the underlying SQLite implementation, "purego" or "cgo".
func DriverType() string {
	return driverType
}

// Library is a SQLite-backed reference store.
type Library struct {
	db *sql.DB
}

// Open opens (creating if needed) the library database at path.
// Use ":memory:" for an ephemeral library.
func Open(path string) (*Library, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init library schema: %w", err)
	}
	return &Library{db: db}, nil
}

// Close closes the underlying database.
func (l *Library) Close() error {
	return l.db.Close()
}

// Upsert validates and stores references. An existing id is overwritten.
// All references are validated before any row is written.
func (l *Library) Upsert(refs ...reference.Reference) error {
	for _, ref := range refs {
		if err := ref.Validate(); err != nil {
			return err
		}
	}

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO refs (id, fields) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET fields = excluded.fields`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, ref := range refs {
		fields, err := json.Marshal(ref.Fields)
		if err != nil {
			return fmt.Errorf("encode reference %s: %w", ref.ID, err)
		}
		if _, err := stmt.Exec(ref.ID, string(fields)); err != nil {
			return fmt.Errorf("upsert reference %s: %w", ref.ID, err)
		}
	}
	return tx.Commit()
}

// Get returns the reference with the given id.
func (l *Library) Get(id string) (reference.Reference, error) {
	var encoded string
	err := l.db.QueryRow(`SELECT fields FROM refs WHERE id = ?`, id).Scan(&encoded)
	if err == sql.ErrNoRows {
		return reference.Reference{}, errors.NewNotFound("reference", id)
	}
	if err != nil {
		return reference.Reference{}, fmt.Errorf("get reference %s: %w", id, err)
	}
	return decodeRow(id, encoded)
}

// Delete removes the reference with the given id.
func (l *Library) Delete(id string) error {
	res, err := l.db.Exec(`DELETE FROM refs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reference %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete reference %s: %w", id, err)
	}
	if n == 0 {
		return errors.NewNotFound("reference", id)
	}
	return nil
}

// List returns all references ordered by id.
func (l *Library) List() ([]reference.Reference, error) {
	rows, err := l.db.Query(`SELECT id, fields FROM refs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer rows.Close()

	var refs []reference.Reference
	for rows.Next() {
		var id, encoded string
		if err := rows.Scan(&id, &encoded); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		ref, err := decodeRow(id, encoded)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// IDs returns the sorted ids of all stored references.
func (l *Library) IDs() ([]string, error) {
	rows, err := l.db.Query(`SELECT id FROM refs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list reference ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reference id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Len returns the number of stored references.
func (l *Library) Len() (int, error) {
	var n int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM refs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count references: %w", err)
	}
	return n, nil
}

// Languages returns the sorted distinct language tags across all stored
// references, excluding references with no language field.
func (l *Library) Languages() ([]string, error) {
	refs, err := l.List()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, ref := range refs {
		if lang := ref.Language(); lang != "" {
			seen[lang] = true
		}
	}
	langs := make([]string, 0, len(seen))
	for lang := range seen {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs, nil
}

// LoadInto copies every stored reference into an in-memory session store.
func (l *Library) LoadInto(store *reference.Store) (int, error) {
	refs, err := l.List()
	if err != nil {
		return 0, err
	}
	if len(refs) == 0 {
		return 0, nil
	}
	if err := store.Insert(refs...); err != nil {
		return 0, err
	}
	return len(refs), nil
}

func decodeRow(id, encoded string) (reference.Reference, error) {
	var fields map[string]string
	if err := json.Unmarshal([]byte(encoded), &fields); err != nil {
		return reference.Reference{}, fmt.Errorf("decode reference %s: %w", id, err)
	}
	return reference.New(id, fields), nil
}
