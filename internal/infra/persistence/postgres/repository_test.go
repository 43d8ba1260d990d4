package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coordinatorsvc/coordinator/internal/domain/control"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// sqlx.NewDb wraps the sqlmock *sql.DB the same way the corpus's test
	// suites bind sqlmock to a *sqlx.DB before handing it to a repository.
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewRepository(sqlxDB.DB), mock
}

func TestRepository_TryClaim_Success(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("INSERT INTO coordinator_control").
		WillReturnResult(sqlmock.NewResult(1, 1))

	row, claimed, err := repo.TryClaim(context.Background(), "REPORT.xlsx")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, "REPORT.xlsx", row.FileName())
	assert.Equal(t, control.StatusProcessing, row.Status())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_TryClaim_AlreadyClaimedIsNotError(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("INSERT INTO coordinator_control").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, claimed, err := repo.TryClaim(context.Background(), "REPORT.xlsx")
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_TryClaim_OtherDBErrorPropagates(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("INSERT INTO coordinator_control").
		WillReturnError(errors.New("connection reset by peer"))

	_, claimed, err := repo.TryClaim(context.Background(), "REPORT.xlsx")
	require.Error(t, err)
	assert.False(t, claimed)
}

func TestRepository_Finalize_NoRowsIsError(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("UPDATE coordinator_control").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Finalize(context.Background(), "missing.xlsx", control.StatusSuccess, "")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Finalize_Success(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec("UPDATE coordinator_control").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Finalize(context.Background(), "REPORT.xlsx", control.StatusSuccess, "")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Exists(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "REPORT.xlsx")
	require.NoError(t, err)
	assert.True(t, exists)
}
