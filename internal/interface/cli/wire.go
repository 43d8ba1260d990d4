package cli

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/coordinatorsvc/coordinator/internal/infra/config"
)

// newLogger builds a zap logger matching the settings' environment:
// development encoding (human-readable, debug level) for ENV=local,
// production JSON encoding otherwise.
func newLogger(settings config.Settings) (*zap.Logger, error) {
	if settings.IsLocal() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openDB opens a pgx-backed *sql.DB against settings.DatabaseURL. The
// caller owns the returned pool and must close it.
func openDB(settings config.Settings) (*sql.DB, error) {
	db, err := sql.Open("pgx", settings.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
