// Package sqlite implements the repository interfaces on top of SQLite.
//
// The schema is deliberately tiny: a single key-value table that plays the
// part of browser local storage. The entire wishlist collection lives under
// one key as one JSON document, and session users live under per-session
// keys. Every operation reads the whole document, scans it, and (for writes)
// puts the whole document back.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C toolchain is
// needed to build or cross-compile the server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so the key-value helpers
// work inside and outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and creates the key-value table.
//
// dbPath examples:
//   - "data/wishlist.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests; lost on close)
//
// The pool is capped at one connection. With ":memory:" every connection is
// its own private database, and for the file case a single writer keeps the
// read-modify-write of the shared document serialised inside this process.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while the single writer commits.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db, err := newFromConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// newFromConn wraps an already-open pool. Tests use it to inject sqlmock.
func newFromConn(conn *sql.DB) (*DB, error) {
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the key-value table. CREATE TABLE IF NOT EXISTS is safe to
// run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating kv table: %w", err)
	}
	return nil
}

// getValue reads one key. A missing key is reported as ok=false, not as an
// error.
func getValue(ctx context.Context, q querier, key string) (value string, ok bool, err error) {
	err = q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: reading key %s: %w", key, err)
	}
	return value, true, nil
}

// putValue writes one key, replacing whatever was there.
func putValue(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("sqlite: writing key %s: %w", key, err)
	}
	return nil
}

// deleteValue removes one key. Removing a missing key is not an error.
func deleteValue(ctx context.Context, q querier, key string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite: deleting key %s: %w", key, err)
	}
	return nil
}
