package settings

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Schema for the settings table: one JSON value per key.
const Schema = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Open opens the settings database at path with the production pragmas
// (WAL, busy_timeout, NORMAL sync) and applies the schema. The caller
// must blank-import a driver registered as "sqlite":
//
//	import _ "modernc.org/sqlite"
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("settings: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("settings: open: %w", err)
	}
	if path == ":memory:" {
		// Each in-memory connection is its own database; the schema must
		// live on the single connection every query uses.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("settings: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("settings: schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("settings: ping: %w", err)
	}
	return db, nil
}

// OpenMemory opens an in-memory settings database for testing and
// registers cleanup.
func OpenMemory(t testing.TB) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("settings.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
