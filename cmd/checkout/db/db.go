package db

import (
	igorm "github.com/whatsagent/landing/internal/gorm"
	"github.com/whatsagent/landing/internal/migrate"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Open opens a connection with the checkout Postgres DB.
func Open(logger *zap.Logger, dsn string) (*gorm.DB, error) {
	return igorm.Open(
		dsn,
		igorm.WithTablePrefix("checkout."),
		igorm.WithLogger(logger),
	)
}

// Migrate migrates the db as the migrations specify.
func Migrate(db *gorm.DB, migrations string) error {
	dbconn, err := db.DB()
	if err != nil {
		return err
	}

	return migrate.Migrate(
		dbconn,
		migrations,
		migrate.WithMigrationsTable("checkout_migrations"),
	)
}
