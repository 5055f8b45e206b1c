package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migration files are forward-only in production; the down files exist for
// local resets. Statements must run on both SQLite and PostgreSQL.
//
//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrateUp applies pending migrations over a dedicated connection pool, which
// the migrator closes when done.
func migrateUp(driverName, dsn string) (uint, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return 0, err
	}

	var drv database.Driver
	switch driverName {
	case "sqlite":
		drv, err = sqlite.WithInstance(db, &sqlite.Config{})
	case "postgres":
		drv, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		err = fmt.Errorf("unsupported driver: %s", driverName)
	}
	if err != nil {
		db.Close()
		return 0, fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		drv.Close()
		return 0, fmt.Errorf("failed to read migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, drv)
	if err != nil {
		src.Close()
		drv.Close()
		return 0, fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	slog.Debug("schema up to date", "driver", driverName, "version", version)
	return version, nil
}
