package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coordinatorsvc/coordinator/internal/domain/control"
)

// Repository implements control.Repository over coordinator_control.
type Repository struct {
	db *sql.DB
}

// NewRepository builds a Repository over db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) getDB(ctx context.Context) dbExecutor {
	if tx, ok := getTxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// TryClaim inserts the claim row for fileName. ON CONFLICT DO NOTHING means
// a file another run already claimed inserts zero rows rather than
// aborting the transaction, so claimed is false and err is nil without
// poisoning the enclosing transaction.
func (r *Repository) TryClaim(ctx context.Context, fileName string) (control.Row, bool, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return control.Row{}, false, fmt.Errorf("generate record id: %w", err)
	}
	now := time.Now().UTC()
	row := control.NewClaim(id.String(), fileName, now)

	const insertQuery = `
		INSERT INTO coordinator_control (record_id, file_name, status, message, attempt_no, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (file_name) DO NOTHING
	`
	result, err := r.getDB(ctx).ExecContext(ctx, insertQuery,
		row.RecordID(), row.FileName(), string(row.Status()), row.Message(),
		row.AttemptNo(), row.CreatedAt(), row.UpdatedAt(),
	)
	if err != nil {
		return control.Row{}, false, fmt.Errorf("insert claim for %s: %w", fileName, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return control.Row{}, false, fmt.Errorf("claim %s: rows affected: %w", fileName, err)
	}
	if rows == 0 {
		return control.Row{}, false, nil
	}

	return row, true, nil
}

// Finalize transitions the row for fileName to a terminal status.
func (r *Repository) Finalize(ctx context.Context, fileName string, status control.Status, message string) error {
	const updateQuery = `
		UPDATE coordinator_control
		SET status = $1, message = $2, updated_at = $3
		WHERE file_name = $4
	`
	now := time.Now().UTC()
	result, err := r.getDB(ctx).ExecContext(ctx, updateQuery, string(status), message, now, fileName)
	if err != nil {
		return fmt.Errorf("finalize %s: %w", fileName, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize %s: rows affected: %w", fileName, err)
	}
	if rows == 0 {
		return fmt.Errorf("finalize %s: no claimed row found", fileName)
	}
	return nil
}

// Exists is a pre-check optimisation only; TryClaim's ON CONFLICT clause
// remains the authoritative guard.
func (r *Repository) Exists(ctx context.Context, fileName string) (bool, error) {
	const existsQuery = `SELECT EXISTS(SELECT 1 FROM coordinator_control WHERE file_name = $1)`

	var exists bool
	err := r.getDB(ctx).QueryRowContext(ctx, existsQuery, fileName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check existence of %s: %w", fileName, err)
	}
	return exists, nil
}
