package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classbank-api/internal/models"
)

func newSavingsRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSavingsRepositoryCloseAccountIdempotent(t *testing.T) {
	db, mock, cleanup := newSavingsRepoMock(t)
	defer cleanup()

	repo := NewSavingsRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE savings_accounts SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.CloseAccount(context.Background(), "acct-1", models.SavingsCompleted, 1290, now))

	// a concurrent sweep already closed it
	mock.ExpectExec(regexp.QuoteMeta("UPDATE savings_accounts SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.CloseAccount(context.Background(), "acct-1", models.SavingsCompleted, 1290, now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavingsRepositoryListMatured(t *testing.T) {
	db, mock, cleanup := newSavingsRepoMock(t)
	defer cleanup()

	repo := NewSavingsRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "classroom_id", "student_id", "wallet_id", "rate_id", "amount", "lock_days", "interest_rate", "projected_interest", "status", "start_date", "end_date", "final_amount", "closed_at", "created_at"}).
		AddRow("acct-1", "class-1", "student-1", "wallet-1", "rate-1", 1000, 90, 29.0, 290, "ACTIVE", now.AddDate(0, 0, -91), now.AddDate(0, 0, -1), nil, nil, now.AddDate(0, 0, -91))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, classroom_id, student_id, wallet_id, rate_id")).
		WithArgs(models.SavingsActive, now).
		WillReturnRows(rows)

	matured, err := repo.ListMatured(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, matured, 1)
	require.Equal(t, int64(290), matured[0].ProjectedInterest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavingsRepositoryHasActiveForRate(t *testing.T) {
	db, mock, cleanup := newSavingsRepoMock(t)
	defer cleanup()

	repo := NewSavingsRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM savings_accounts")).
		WithArgs("student-1", "rate-1", models.SavingsActive).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	active, err := repo.HasActiveForRate(context.Background(), "student-1", "rate-1")
	require.NoError(t, err)
	require.True(t, active)
	require.NoError(t, mock.ExpectationsWereMet())
}
