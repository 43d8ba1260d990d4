package postgres

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed all:migrations
var migrationFS embed.FS

const migrationsDir = "migrations"

// Migrator applies the coordinator_control schema, generalizing the
// teacher's struct-holding-*sql.DB Migrator shape onto goose instead of a
// hand-rolled statement splitter.
type Migrator struct {
	db *sql.DB
}

// NewMigrator builds a Migrator over db.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Migrate brings the schema up to the latest embedded migration.
func (m *Migrator) Migrate() error {
	goose.SetBaseFS(migrationFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(m.db, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
