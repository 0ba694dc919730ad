package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classbank-api/internal/models"
)

func newLedgerRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLedgerRepositoryMint(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	walletID := "wallet-1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE classrooms SET treasury_remaining = treasury_remaining - $2")).
		WithArgs("class-1", int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance = balance + $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record, err := repo.Mint(context.Background(), LedgerEntry{
		ClassroomID: "class-1",
		ToWalletID:  &walletID,
		Amount:      100,
		Type:        models.TransactionEmission,
		Reason:      "participation award",
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), record.Amount)
	require.Equal(t, models.TransactionEmission, record.Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryMintTreasuryShort(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	walletID := "wallet-1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE classrooms SET treasury_remaining = treasury_remaining - $2")).
		WithArgs("class-1", int64(99999)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Mint(context.Background(), LedgerEntry{
		ClassroomID: "class-1",
		ToWalletID:  &walletID,
		Amount:      99999,
		Type:        models.TransactionEmission,
		Reason:      "too much",
	})
	require.ErrorIs(t, err, ErrInsufficientTreasury)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryTransferInsufficientBalance(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	from := "wallet-1"
	to := "wallet-2"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance = balance - $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Transfer(context.Background(), LedgerEntry{
		ClassroomID:  "class-1",
		FromWalletID: &from,
		ToWalletID:   &to,
		Amount:       500,
		Type:         models.TransactionTransfer,
		Reason:       "gift",
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositorySpendLeavesTreasuryAlone(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	from := "wallet-1"
	itemID := "item-1"

	// exactly one wallet debit and one ledger row; any classrooms update
	// would trip the mock as an unexpected statement
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance = balance - $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record, err := repo.Spend(context.Background(), LedgerEntry{
		ClassroomID:  "class-1",
		FromWalletID: &from,
		Amount:       40,
		Type:         models.TransactionPurchase,
		Reason:       "homework pass",
		ItemID:       &itemID,
	})
	require.NoError(t, err)
	require.Equal(t, models.TransactionPurchase, record.Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryCreditLeavesTreasuryAlone(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	to := "wallet-1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance = balance + $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record, err := repo.Credit(context.Background(), LedgerEntry{
		ClassroomID: "class-1",
		ToWalletID:  &to,
		Amount:      40,
		Type:        models.TransactionRefund,
		Reason:      "undelivered reward",
	})
	require.NoError(t, err)
	require.Equal(t, models.TransactionRefund, record.Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryBatchMintSingleTreasuryDebit(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE classrooms SET treasury_remaining = treasury_remaining - $2")).
		WithArgs("class-1", int64(30)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	for i := 0; i < 2; i++ {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance = balance + $2")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	records, err := repo.BatchMint(context.Background(), "class-1", []WalletCredit{
		{WalletID: "wallet-1", Amount: 10},
		{WalletID: "wallet-2", Amount: 20},
	}, "quiz winners", nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryPayoutWithInterest(t *testing.T) {
	db, mock, cleanup := newLedgerRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	to := "wallet-1"

	// principal and interest arrive as one wallet credit; the treasury is
	// not debited for the interest
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance = balance + $2")).
		WithArgs("wallet-1", int64(1290), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record, err := repo.Payout(context.Background(), LedgerEntry{
		ClassroomID: "class-1",
		ToWalletID:  &to,
		Amount:      1000,
		Type:        models.TransactionSavingsOut,
		Reason:      "matured deposit",
	}, 290)
	require.NoError(t, err)
	require.Equal(t, int64(1290), record.Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}
