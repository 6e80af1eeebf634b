// Package store implements the generic metadata store underlying both the
// experience store and the learning unit manager. Records are addressed by a
// (type, id) composite key; experiences and learning units are distinguished
// only by their type tag.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Record type tags used by the higher layers
const (
	TypeExperience = "experience"
	TypeUnit       = "learning_unit"
	TypeHierarchy  = "hierarchy"
)

// DB wraps the SQLite connection for the metadata store
type DB struct {
	db   *sql.DB
	path string
}

// Open opens or creates the metadata store database under statePath
func Open(statePath string) (*DB, error) {
	dbPath := filepath.Join(statePath, "system", "dream.db")

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &DB{db: db, path: dbPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *DB) Close() error {
	return s.db.Close()
}

// Path returns the backing database file path
func (s *DB) Path() string {
	return s.path
}

// migrate runs database migrations
func (s *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		type TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (type, id)
	);
	CREATE INDEX IF NOT EXISTS idx_records_type ON records(type);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Store writes (or overwrites) a record under the (type, id) composite key.
// The record is serialized as JSON.
func (s *DB) Store(id, typ string, record any) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record %s/%s: %w", typ, id, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO records (type, id, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(type, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`, typ, id, string(body), time.Now())
	if err != nil {
		return fmt.Errorf("store record %s/%s: %w", typ, id, err)
	}
	return nil
}

// Get loads a single record into out. Returns sql.ErrNoRows if absent.
func (s *DB) Get(typ, id string, out any) error {
	var body string
	err := s.db.QueryRow(`SELECT body FROM records WHERE type = ? AND id = ?`, typ, id).Scan(&body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("unmarshal record %s/%s: %w", typ, id, err)
	}
	return nil
}

// Exists reports whether a record is present under (type, id)
func (s *DB) Exists(typ, id string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM records WHERE type = ? AND id = ?`, typ, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check record %s/%s: %w", typ, id, err)
	}
	return n > 0, nil
}

// Query returns the raw bodies of all records of the given type whose
// top-level JSON fields match the filter exactly. A nil filter matches all
// records of the type. Results are ordered by creation time.
func (s *DB) Query(typ string, filter map[string]any) ([]json.RawMessage, error) {
	query := `SELECT body FROM records WHERE type = ?`
	args := []any{typ}

	for field, want := range filter {
		query += ` AND json_extract(body, '$.' || ?) = ?`
		args = append(args, field, normalizeFilterValue(want))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s records: %w", typ, err)
	}
	defer rows.Close()

	var results []json.RawMessage
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %s record: %w", typ, err)
		}
		results = append(results, json.RawMessage(body))
	}
	return results, rows.Err()
}

// normalizeFilterValue maps Go values onto SQLite's json_extract results
// (booleans come back as 0/1 integers).
func normalizeFilterValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

// IDs returns the ids of all records of the given type
func (s *DB) IDs(typ string) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM records WHERE type = ? ORDER BY created_at, id`, typ)
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", typ, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a record, reporting whether it existed
func (s *DB) Delete(typ, id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM records WHERE type = ? AND id = ?`, typ, id)
	if err != nil {
		return false, fmt.Errorf("delete record %s/%s: %w", typ, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Stats returns record counts per type
func (s *DB) Stats() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT type, COUNT(*) FROM records GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		stats[typ] = n
	}
	return stats, rows.Err()
}
