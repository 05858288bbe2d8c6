package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies all pending up migrations. The migrator takes ownership of
// conn and closes it when done.
func Migrate(conn *sql.DB) error {
	return withMigrator(conn, func(m *migrate.Migrate) error {
		return ignoreNoChange(m.Up())
	})
}

// Rollback applies all down migrations. It takes ownership of conn.
func Rollback(conn *sql.DB) error {
	return withMigrator(conn, func(m *migrate.Migrate) error {
		return ignoreNoChange(m.Down())
	})
}

// InitSchema drops the journal tables and recreates them empty. It takes
// ownership of conn.
func InitSchema(conn *sql.DB) error {
	return withMigrator(conn, func(m *migrate.Migrate) error {
		if err := ignoreNoChange(m.Down()); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		if err := ignoreNoChange(m.Up()); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		return nil
	})
}

func withMigrator(conn *sql.DB, fn func(m *migrate.Migrate) error) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open migration source: %w", err)
	}

	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("init migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	return fn(migrator)
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
