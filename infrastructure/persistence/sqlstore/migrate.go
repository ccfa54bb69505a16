package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// MigrationsFS returns the embedded migrations for d.
func MigrationsFS(d Dialect) (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations/"+d.Name)
}

// Migrate applies every pending up migration. An up-to-date schema is not
// an error.
func Migrate(db *sql.DB, d Dialect, logger *zap.Logger) error {
	m, err := newMigrate(db, d)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("Schema already up to date", zap.String("dialect", d.Name))
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logger.Info("Applied migrations",
		zap.String("dialect", d.Name),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// MigrateDown rolls back every migration.
func MigrateDown(db *sql.DB, d Dialect) error {
	m, err := newMigrate(db, d)
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}

func newMigrate(db *sql.DB, d Dialect) (*migrate.Migrate, error) {
	sub, err := MigrationsFS(d)
	if err != nil {
		return nil, err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}

	var driver database.Driver
	switch d.Name {
	case Postgres.Name:
		driver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	case SQLite.Name:
		driver, err = sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	default:
		return nil, fmt.Errorf("no migration driver for %q", d.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("open migration driver: %w", err)
	}

	return migrate.NewWithInstance("iofs", source, d.Name, driver)
}
