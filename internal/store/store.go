// Package store owns the relational schema of the sales warehouse: the
// category dimension, products, sales, and the bookkeeping tables used by
// the pipeline (run ledger, file ledger and run lease).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps a database handle with its dialect.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to the database named by driver and dsn and verifies the
// connection.
func Open(ctx context.Context, driver, dsn string, maxOpenConns int) (*Store, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if d.Name == SQLite.Name {
		dsn = sqliteDSN(dsn)
		// One writer; avoids SQLITE_BUSY between pooled connections.
		maxOpenConns = 1
	}

	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	return New(db, d), nil
}

// New wraps an existing handle.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d, now: time.Now}
}

// sqliteDSN enables foreign keys and a busy timeout unless the caller
// already set pragmas.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the store's dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// SetClock overrides the time source used for ledger and lease timestamps.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Close closes the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) rebind(q string) string { return s.dialect.Rebind(q) }

// CountRows returns the number of rows in table. table must be one of
// the warehouse tables.
func (s *Store) CountRows(ctx context.Context, table string) (int, error) {
	switch table {
	case "categories", "products", "sales", "pipeline_runs", "file_loads":
	default:
		return 0, fmt.Errorf("count rows: unknown table %q", table)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
