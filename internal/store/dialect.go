package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownDialect is returned for a driver name with no registered dialect.
var ErrUnknownDialect = errors.New("store: unknown dialect")

// Dialect captures the SQL differences between the supported backends.
// Statements are written with '?' placeholders and rebound per dialect.
type Dialect struct {
	// Name is the canonical dialect name, also used to select migrations.
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// MaxParams is the bind parameter limit of a single statement.
	MaxParams int

	numbered   bool
	indexQuery string
}

var (
	Postgres = Dialect{
		Name:       "postgres",
		Driver:     "postgres",
		MaxParams:  65535,
		numbered:   true,
		indexQuery: `SELECT COUNT(*) FROM pg_indexes WHERE indexname = ?`,
	}
	SQLite = Dialect{
		Name:       "sqlite",
		Driver:     "sqlite",
		MaxParams:  32766,
		indexQuery: `SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`,
	}
)

// DialectFor resolves a configured driver name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

// Rebind rewrites '?' placeholders into the dialect's bind syntax.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

// rowsPerStatement is how many rows of width cols fit under MaxParams,
// capped at want.
func (d Dialect) rowsPerStatement(cols, want int) int {
	limit := d.MaxParams / cols
	if want > 0 && want < limit {
		return want
	}
	return limit
}

// valuesList returns "(?,?),(?,?)" for rows tuples of cols placeholders.
func valuesList(rows, cols int) string {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", cols), ",") + ")"
	return strings.TrimSuffix(strings.Repeat(tuple+",", rows), ",")
}

// placeholders returns "?,?,?" with n entries.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
