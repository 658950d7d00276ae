// Package sqlite provides the persistent storage.Backend on a local SQLite
// database with a fixed total byte capacity.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/propiq/propiq/internal/storage"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// DefaultCapacity mirrors the ~5MB ceiling of the environment the original
// store ran in.
const DefaultCapacity = 5 << 20

// Backend implements storage.Backend over a kv_items table. SetItem enforces
// the configured total capacity and reports storage.ErrQuotaExceeded when a
// write would exceed it.
type Backend struct {
	db       *sql.DB
	capacity int64
}

// Compile-time check: Backend implements storage.Backend.
var _ storage.Backend = (*Backend)(nil)

// New opens a SQLite database, runs migrations, and returns a ready backend.
// A capacity of zero or less takes DefaultCapacity.
func New(dataSourceName string, capacity int64) (*Backend, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	return NewFromDB(db, capacity)
}

// NewFromDB wraps an existing database connection, runs migrations, and
// returns a ready backend. Use this when the *sql.DB has been pre-configured
// (e.g., with otelsql instrumentation, or shared with the River queue).
func NewFromDB(db *sql.DB, capacity int64) (*Backend, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &Backend{db: db, capacity: capacity}, nil
}

// Close closes the underlying database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

// DB returns the underlying database connection for use by other adapters
// (e.g., river).
func (b *Backend) DB() *sql.DB {
	return b.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

func (b *Backend) GetItem(key string) (string, bool, error) {
	var value string
	err := b.db.QueryRow(`SELECT value FROM kv_items WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading item: %w", err)
	}
	return value, true, nil
}

func (b *Backend) SetItem(key, value string) error {
	// Capacity check counts every byte except the row being replaced.
	var used int64
	err := b.db.QueryRow(
		`SELECT COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM kv_items WHERE key != ?`, key,
	).Scan(&used)
	if err != nil {
		return fmt.Errorf("checking capacity: %w", err)
	}
	if used+int64(len(key)+len(value)) > b.capacity {
		return storage.ErrQuotaExceeded
	}

	_, err = b.db.Exec(
		`INSERT INTO kv_items (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing item: %w", err)
	}
	return nil
}

func (b *Backend) RemoveItem(key string) error {
	if _, err := b.db.Exec(`DELETE FROM kv_items WHERE key = ?`, key); err != nil {
		return fmt.Errorf("removing item: %w", err)
	}
	return nil
}

func (b *Backend) Keys(prefix string) ([]string, error) {
	rows, err := b.db.Query(
		`SELECT key FROM kv_items WHERE substr(key, 1, length(?1)) = ?1 ORDER BY key`, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
