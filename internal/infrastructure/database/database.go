package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// dirMode restricts the database directory to the service account.
	dirMode = 0750

	// fileMode keeps the database file owner read/write only; it holds
	// everything the station has ever recorded.
	fileMode = 0600

	// pingTimeout bounds the connectivity probe during Open.
	pingTimeout = 5 * time.Second

	// idleConnTimeout is how long the single pooled connection may sit idle
	// before it is recycled. The batch writer commits every second under
	// normal load, so this only matters for an idle station.
	idleConnTimeout = 30 * time.Minute
)

// DB wraps the sql.DB pool for the station's SQLite file and adds schema
// migration, health checking and lifecycle helpers on top.
type DB struct {
	*sql.DB
	path string
}

// Config contains database settings, mapped from the database section of
// config.yaml.
type Config struct {
	// Path is the SQLite file location. Its directory is created on first
	// open.
	Path string

	// WALMode enables write-ahead logging so browse and export queries can
	// read while the batch writer is inside a commit.
	WALMode bool

	// BusyTimeout is how long a statement waits on a locked database, in
	// seconds, before failing with SQLITE_BUSY.
	BusyTimeout int
}

// dsn builds the go-sqlite3 connection string for cfg. Pragmas ride in the
// DSN so every pooled connection gets them.
func dsn(cfg Config) string {
	s := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout*1000)
	if cfg.WALMode {
		s += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return s
}

// Open connects to the station database, creating the file and its parent
// directory when missing, and pings before handing the pool back.
//
// The pool is pinned to a single connection. SQLite permits one writer at
// a time and the batch writer is the only component that writes, so one
// shared connection serves both it and the read paths without lock churn.
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirMode); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(idleConnTimeout)

	db := &DB{DB: sqlDB, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // already on the error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// The file may not exist until the first write; tightening permissions
	// is best effort on a fresh station.
	_ = os.Chmod(cfg.Path, fileMode) //nolint:errcheck

	return db, nil
}

// Close releases the pool. Call it after the pipeline has flushed so the
// final batch is durable first.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query to prove the database still answers.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats returns connection pool statistics for the metrics endpoint.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// ExecContext runs a statement that returns no rows, wrapping any error.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return result, nil
}

// QueryRowContext runs a query expected to return at most one row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, query, args...)
}

// BeginTx opens a transaction. Multi-row writes go through one so a
// drained batch lands atomically; pair it with a deferred Rollback, which
// is a no-op once the commit has happened.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
