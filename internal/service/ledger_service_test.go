package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	"github.com/noah-isme/classbank-api/internal/repository"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
)

type ledgerStoreStub struct {
	batchCredits  []repository.WalletCredit
	batchReason   string
	creditEntries []repository.LedgerEntry
	failWith      error
}

func (l *ledgerStoreStub) Credit(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error) {
	if l.failWith != nil {
		return nil, l.failWith
	}
	l.creditEntries = append(l.creditEntries, entry)
	return &models.Transaction{ClassroomID: entry.ClassroomID, Amount: entry.Amount, Type: entry.Type}, nil
}

func (l *ledgerStoreStub) BatchMint(ctx context.Context, classroomID string, credits []repository.WalletCredit, reason string, createdBy *string) ([]models.Transaction, error) {
	if l.failWith != nil {
		return nil, l.failWith
	}
	l.batchCredits = credits
	l.batchReason = reason
	records := make([]models.Transaction, len(credits))
	for i, credit := range credits {
		records[i] = models.Transaction{ClassroomID: classroomID, Amount: credit.Amount, Type: models.TransactionEmission}
	}
	return records, nil
}

func (l *ledgerStoreStub) Transfer(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error) {
	return &models.Transaction{Amount: entry.Amount, Type: entry.Type}, nil
}

func (l *ledgerStoreStub) Spend(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error) {
	return &models.Transaction{Amount: entry.Amount, Type: entry.Type}, nil
}

type walletReaderStub struct {
	wallets map[string]*models.Wallet
}

func (w *walletReaderStub) GetByID(ctx context.Context, id string) (*models.Wallet, error) {
	for _, wallet := range w.wallets {
		if wallet.ID == id {
			return wallet, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (w *walletReaderStub) GetByStudent(ctx context.Context, studentID string) (*models.Wallet, error) {
	if wallet, ok := w.wallets[studentID]; ok {
		return wallet, nil
	}
	return nil, sql.ErrNoRows
}

func (w *walletReaderStub) Leaderboard(ctx context.Context, classroomID string, limit int) ([]models.LeaderboardEntry, error) {
	return nil, nil
}

func appErrorCode(t *testing.T, err error) string {
	t.Helper()
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	return appErr.Code
}

func TestLedgerServiceAwardDeduplicatesRecipients(t *testing.T) {
	ledger := &ledgerStoreStub{}
	wallets := &walletReaderStub{wallets: map[string]*models.Wallet{
		"student-1": {ID: "wallet-1", StudentID: "student-1", ClassroomID: "class-1", Balance: 0},
		"student-2": {ID: "wallet-2", StudentID: "student-2", ClassroomID: "class-1", Balance: 0},
	}}
	svc := NewLedgerService(ledger, wallets, nil, nil, nil)

	records, err := svc.Award(context.Background(), "class-1", "teacher-1", dto.AwardRequest{
		StudentIDs: []string{"student-1", "student-1", "student-2"},
		Amount:     25,
		Reason:     "quiz winners",
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, ledger.batchCredits, 2)
	require.Equal(t, "quiz winners", ledger.batchReason)
}

func TestLedgerServiceAwardTreasuryExhausted(t *testing.T) {
	ledger := &ledgerStoreStub{failWith: repository.ErrInsufficientTreasury}
	wallets := &walletReaderStub{wallets: map[string]*models.Wallet{
		"student-1": {ID: "wallet-1", StudentID: "student-1", ClassroomID: "class-1"},
	}}
	svc := NewLedgerService(ledger, wallets, nil, nil, nil)

	_, err := svc.Award(context.Background(), "class-1", "teacher-1", dto.AwardRequest{
		StudentIDs: []string{"student-1"},
		Amount:     500,
		Reason:     "bonus",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInsufficientTreasury.Code, appErrorCode(t, err))
}

func TestLedgerServiceAwardRejectsForeignStudent(t *testing.T) {
	ledger := &ledgerStoreStub{}
	wallets := &walletReaderStub{wallets: map[string]*models.Wallet{
		"student-1": {ID: "wallet-1", StudentID: "student-1", ClassroomID: "class-other"},
	}}
	svc := NewLedgerService(ledger, wallets, nil, nil, nil)

	_, err := svc.Award(context.Background(), "class-1", "teacher-1", dto.AwardRequest{
		StudentIDs: []string{"student-1"},
		Amount:     10,
		Reason:     "oops",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrorCode(t, err))
	require.Empty(t, ledger.batchCredits)
}

func TestLedgerServiceAwardValidatesAmount(t *testing.T) {
	svc := NewLedgerService(&ledgerStoreStub{}, &walletReaderStub{}, nil, nil, nil)

	_, err := svc.Award(context.Background(), "class-1", "teacher-1", dto.AwardRequest{
		StudentIDs: []string{"student-1"},
		Amount:     0,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidAmount.Code, appErrorCode(t, err))
}

func TestLedgerServiceRefundCreditsOutsideTreasury(t *testing.T) {
	ledger := &ledgerStoreStub{}
	wallets := &walletReaderStub{wallets: map[string]*models.Wallet{
		"student-1": {ID: "wallet-1", StudentID: "student-1", ClassroomID: "class-1"},
	}}
	svc := NewLedgerService(ledger, wallets, nil, nil, nil)

	record, err := svc.Refund(context.Background(), "class-1", "teacher-1", dto.RefundRequest{
		StudentID: "student-1",
		Amount:    40,
		Reason:    "undelivered reward",
	})
	require.NoError(t, err)
	require.Equal(t, models.TransactionRefund, record.Type)
	require.Len(t, ledger.creditEntries, 1)
	require.Equal(t, int64(40), ledger.creditEntries[0].Amount)
}

type streakRecorderStub struct {
	recorded []dto.RecordActivityRequest
}

func (s *streakRecorderStub) RecordActivity(ctx context.Context, classroomID string, req dto.RecordActivityRequest) (*models.StreakResult, error) {
	s.recorded = append(s.recorded, req)
	return &models.StreakResult{StreakType: req.StreakType, CurrentStreak: 1, Updated: true}, nil
}

func TestLedgerServiceAwardAdvancesMatchingStreaks(t *testing.T) {
	ledger := &ledgerStoreStub{}
	wallets := &walletReaderStub{wallets: map[string]*models.Wallet{
		"student-1": {ID: "wallet-1", StudentID: "student-1", ClassroomID: "class-1"},
		"student-2": {ID: "wallet-2", StudentID: "student-2", ClassroomID: "class-1"},
	}}
	streaks := &streakRecorderStub{}
	svc := NewLedgerService(ledger, wallets, nil, nil, nil, WithStreakRecorder(streaks))

	_, err := svc.Award(context.Background(), "class-1", "teacher-1", dto.AwardRequest{
		StudentIDs: []string{"student-1", "student-2"},
		Amount:     15,
		Reason:     "homework week 12",
	})
	require.NoError(t, err)
	require.Len(t, streaks.recorded, 2)
	require.Equal(t, models.StreakHomework, streaks.recorded[0].StreakType)
	require.Equal(t, "student-1", streaks.recorded[0].StudentID)

	// a reason outside the streak vocabulary leaves streaks alone
	streaks.recorded = nil
	_, err = svc.Award(context.Background(), "class-1", "teacher-1", dto.AwardRequest{
		StudentIDs: []string{"student-1"},
		Amount:     15,
		Reason:     "helped tidy the library",
	})
	require.NoError(t, err)
	require.Empty(t, streaks.recorded)
}
