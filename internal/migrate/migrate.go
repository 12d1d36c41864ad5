// Package migrate applies golang-migrate SQL migrations to a Postgres DB.
package migrate

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate migrates the DB up with the migrations files found at the
// migrations source URL, e.g. "file://db/migrations". A DB that is already up
// to date is not an error.
func Migrate(dbconn *sql.DB, migrations string, options ...Option) error {
	cfg := &postgres.Config{
		MigrationsTable: "migrations",
	}
	for _, option := range options {
		option(cfg)
	}

	driver, err := postgres.WithInstance(dbconn, cfg)
	if err != nil {
		return fmt.Errorf("while creating migrate driver: %w", err)
	}

	migration, err := migrate.NewWithDatabaseInstance(migrations, "postgres", driver)
	if err != nil {
		return fmt.Errorf("while reading migrations; source: %s, error: %w", migrations, err)
	}

	if err := migration.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("while migrating up: %w", err)
	}

	return nil
}

// Option configures the golang-migrate Postgres driver.
type Option func(*postgres.Config)

// WithMigrationsTable stores the migration version in the table name.
func WithMigrationsTable(name string) Option {
	return func(c *postgres.Config) {
		c.MigrationsTable = name
	}
}

// WithSchema stores the migration version table in the schema name.
func WithSchema(name string) Option {
	return func(c *postgres.Config) {
		c.SchemaName = name
	}
}
