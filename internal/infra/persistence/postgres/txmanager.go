// Package postgres is the control-store adapter: a PostgreSQL-backed
// implementation of control.Repository and control.TxManager, built over
// jackc/pgx's database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

type txKey struct{}

// dbExecutor is the subset of *sql.DB / *sql.Tx the repository needs.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// TxManager runs the coordinator's per-file work inside a single outer
// Postgres transaction, propagated to callers via context.
type TxManager struct {
	db *sql.DB
}

// NewTxManager builds a TxManager over db.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// InTransaction begins a transaction, stashes it in ctx under txKey, and
// runs fn. fn's error rolls the transaction back; a nil error commits it.
func (m *TxManager) InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("run in transaction: %w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func getTxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}
