package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tasklane/apiserver/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending up migrations. It is a no-op when the schema is current.
func Migrate(cfg config.DatabaseConfig) error {
	return runMigrations(cfg, func(m *migrate.Migrate) error { return m.Up() })
}

// Rollback reverts the most recently applied migration.
func Rollback(cfg config.DatabaseConfig) error {
	return runMigrations(cfg, func(m *migrate.Migrate) error { return m.Steps(-1) })
}

func runMigrations(cfg config.DatabaseConfig, step func(*migrate.Migrate) error) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", source, DSN(cfg))
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := step(migrator); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate failed: %w", err)
	}
	return nil
}
