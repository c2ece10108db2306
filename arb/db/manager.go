// Package db manages the embedded results database: connection, goose
// migrations, pooling.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "github.com/tursodatabase/go-libsql"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Manager owns the results database handle. The connection is opened and
// migrated lazily on first use.
type Manager struct {
	dsn string
	mu  sync.RWMutex
	db  *sql.DB
}

// NewManager creates a manager for the given DSN. Only file: DSNs are
// supported; the backing file is created on first connect.
func NewManager(dsn string) *Manager {
	return &Manager{dsn: dsn}
}

// Handle returns the open database, connecting and migrating on first use.
func (m *Manager) Handle(ctx context.Context) (*sql.DB, error) {
	m.mu.RLock()
	db := m.db
	m.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		return m.db, nil
	}

	db, err := Connect(pathFromDSN(m.dsn))
	if err != nil {
		return nil, err
	}
	if err := runGooseMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	configureConnectionPooling(db)

	m.db = db
	return db, nil
}

// Close closes the database connection if one was opened.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// pathFromDSN strips the file: scheme and query parameters so the
// connection helper can manage the backing file itself.
func pathFromDSN(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// runGooseMigrations brings the schema up to date from the embedded
// migration files.
func runGooseMigrations(db *sql.DB) error {
	goose.SetBaseFS(embeddedMigrations)

	// Set goose dialect to SQLite (required for proper migration execution)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	return nil
}

// configureConnectionPooling sets up connection pooling parameters.
func configureConnectionPooling(db *sql.DB) {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(time.Hour)

	slog.Debug("Connection pool configured",
		"max_open", 25, "max_idle", 25, "max_idle_time", 5*time.Minute, "max_lifetime", time.Hour)
}
