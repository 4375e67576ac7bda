// Package sqlite implements the repository interfaces and the snapshot
// cache store using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. The dashboard only
// keeps one token and two snapshots per profile, so a local file is plenty, and the
// terminal client can share the exact same code as the server.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere Go works.
//
// TABLES:
//   - tokens    — one sealed GitHub token per profile       → TokenDB
//   - snapshots — cached dashboard / commit-list payloads   → SnapshotDB
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool. Use Tokens() and Snapshots() to get
// the typed views over each table.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "/home/me/.local/share/ghdash/ghdash.db" → file-based database (persistent)
//   - ":memory:"                               → in-memory database (tests)
//
// The parent directory of a file path is created if missing.
func New(dbPath string) (*DB, error) {
	inMemory := dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: creating data directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is its own empty database, so the
	// pool must never open a second one.
	if inMemory {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL (Write-Ahead Logging) mode lets the dashboard refresh loop read
	// snapshots while a handler is writing one.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
//
//	db, err := sqlite.New(path)
//	if err != nil { ... }
//	defer db.Close()
func (db *DB) Close() error {
	return db.conn.Close()
}

// Tokens returns the token table view.
func (db *DB) Tokens() *TokenDB {
	return &TokenDB{conn: db.conn}
}

// Snapshots returns the snapshot table view, a cache.Store.
func (db *DB) Snapshots() *SnapshotDB {
	return &SnapshotDB{conn: db.conn}
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS is safe to run on every start — it won't error
// if the table exists.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS tokens (
			profile      TEXT PRIMARY KEY,
			token_sealed BLOB NOT NULL,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating tokens table: %w", err)
	}

	// login was added after the first release of the tokens table.
	if err := db.addColumnIfNotExists("tokens", "login", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding login to tokens: %w", err)
	}

	// Snapshot timestamps are epoch milliseconds so every store (SQLite,
	// Redis) agrees on precision.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			key          TEXT PRIMARY KEY,
			payload      BLOB NOT NULL,
			timestamp_ms INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating snapshots table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent — safe to run multiple times.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
