package platform

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// AutoMigrate runs all pending migrations for the named dialect
// ("postgres" or "sqlite") and returns the resulting schema version.
func AutoMigrate(db *sql.DB, dialect string) (uint, error) {
	source, err := iofs.New(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return 0, fmt.Errorf("create migration source: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case "postgres":
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case "sqlite":
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return 0, fmt.Errorf("no migrations for dialect %q", dialect)
	}
	if err != nil {
		return 0, fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dialect, driver)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("migration %d left the schema dirty", version)
	}
	return version, nil
}
