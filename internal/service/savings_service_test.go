package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	"github.com/noah-isme/classbank-api/internal/repository"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
)

type savingsStoreStub struct {
	rates    map[string]*models.SavingsRate
	accounts map[string]*models.SavingsAccount
	nextID   int

	failCreateAccount error
}

func newSavingsStoreStub() *savingsStoreStub {
	return &savingsStoreStub{
		rates:    make(map[string]*models.SavingsRate),
		accounts: make(map[string]*models.SavingsAccount),
	}
}

func (s *savingsStoreStub) CreateRate(ctx context.Context, rate *models.SavingsRate) error {
	s.nextID++
	rate.ID = fmt.Sprintf("rate-%d", s.nextID)
	rate.Active = true
	s.rates[rate.ID] = rate
	return nil
}

func (s *savingsStoreStub) GetRate(ctx context.Context, id string) (*models.SavingsRate, error) {
	if rate, ok := s.rates[id]; ok {
		return rate, nil
	}
	return nil, sql.ErrNoRows
}

func (s *savingsStoreStub) ListRates(ctx context.Context, classroomID string) ([]models.SavingsRate, error) {
	result := make([]models.SavingsRate, 0, len(s.rates))
	for _, rate := range s.rates {
		result = append(result, *rate)
	}
	return result, nil
}

func (s *savingsStoreStub) DeactivateRate(ctx context.Context, id string) error {
	rate, ok := s.rates[id]
	if !ok {
		return sql.ErrNoRows
	}
	rate.Active = false
	return nil
}

func (s *savingsStoreStub) CreateAccount(ctx context.Context, account *models.SavingsAccount) error {
	if s.failCreateAccount != nil {
		return s.failCreateAccount
	}
	s.nextID++
	account.ID = fmt.Sprintf("acct-%d", s.nextID)
	account.Status = models.SavingsActive
	copy := *account
	s.accounts[account.ID] = &copy
	return nil
}

func (s *savingsStoreStub) GetAccount(ctx context.Context, id string) (*models.SavingsAccount, error) {
	if account, ok := s.accounts[id]; ok {
		copy := *account
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *savingsStoreStub) ListByStudent(ctx context.Context, studentID string) ([]models.SavingsAccount, error) {
	result := make([]models.SavingsAccount, 0)
	for _, account := range s.accounts {
		if account.StudentID == studentID {
			result = append(result, *account)
		}
	}
	return result, nil
}

func (s *savingsStoreStub) HasActiveForRate(ctx context.Context, studentID, rateID string) (bool, error) {
	for _, account := range s.accounts {
		if account.StudentID == studentID && account.RateID == rateID && account.Status == models.SavingsActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *savingsStoreStub) ListMatured(ctx context.Context, asOf time.Time) ([]models.SavingsAccount, error) {
	result := make([]models.SavingsAccount, 0)
	for _, account := range s.accounts {
		if account.Status == models.SavingsActive && account.Matured(asOf) {
			result = append(result, *account)
		}
	}
	return result, nil
}

func (s *savingsStoreStub) CloseAccount(ctx context.Context, id string, status models.SavingsStatus, finalAmount int64, at time.Time) error {
	account, ok := s.accounts[id]
	if !ok || account.Status != models.SavingsActive {
		return sql.ErrNoRows
	}
	account.Status = status
	account.FinalAmount = &finalAmount
	account.ClosedAt = &at
	return nil
}

func (s *savingsStoreStub) ReopenAccount(ctx context.Context, id string) error {
	account, ok := s.accounts[id]
	if !ok {
		return sql.ErrNoRows
	}
	account.Status = models.SavingsActive
	account.FinalAmount = nil
	account.ClosedAt = nil
	return nil
}

type savingsLedgerStub struct {
	locks     []repository.LedgerEntry
	payouts   []repository.LedgerEntry
	interests []int64

	failLock   error
	failPayout error
}

func (l *savingsLedgerStub) Lock(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error) {
	if l.failLock != nil {
		return nil, l.failLock
	}
	l.locks = append(l.locks, entry)
	return &models.Transaction{Amount: entry.Amount, Type: entry.Type}, nil
}

func (l *savingsLedgerStub) Payout(ctx context.Context, entry repository.LedgerEntry, interest int64) (*models.Transaction, error) {
	if l.failPayout != nil {
		return nil, l.failPayout
	}
	l.payouts = append(l.payouts, entry)
	l.interests = append(l.interests, interest)
	return &models.Transaction{Amount: entry.Amount + interest, Type: entry.Type}, nil
}

func newSavingsFixture(now time.Time) (*SavingsService, *savingsStoreStub, *savingsLedgerStub) {
	savings := newSavingsStoreStub()
	ledger := &savingsLedgerStub{}
	wallets := &walletReaderStub{wallets: map[string]*models.Wallet{
		"student-1": {ID: "wallet-1", StudentID: "student-1", ClassroomID: "class-1", Balance: 5000},
	}}
	svc := NewSavingsService(savings, ledger, wallets, nil, WithSavingsClock(fixedClock(now)))
	return svc, savings, ledger
}

func seedRate(savings *savingsStoreStub) *models.SavingsRate {
	threshold := int64(1000)
	rate := &models.SavingsRate{
		ClassroomID:    "class-1",
		LockDays:       90,
		InterestRate:   25,
		MinAmount:      200,
		BonusThreshold: &threshold,
		BonusRate:      4,
	}
	_ = savings.CreateRate(context.Background(), rate)
	return rate
}

func TestSavingsServiceOpenAccountFixesInterest(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc, savings, ledger := newSavingsFixture(now)
	rate := seedRate(savings)

	account, err := svc.OpenAccount(context.Background(), "class-1", "student-1", dto.OpenAccountRequest{
		RateID: rate.ID,
		Amount: 1000,
	})
	require.NoError(t, err)
	// 25% base plus the 4% large-deposit bonus: floor(1000 * 29 / 100)
	require.Equal(t, float64(29), account.InterestRate)
	require.Equal(t, int64(290), account.ProjectedInterest)
	require.Equal(t, now.AddDate(0, 0, 90), account.EndDate)
	require.Len(t, ledger.locks, 1)
	require.Equal(t, int64(1000), ledger.locks[0].Amount)
}

func TestSavingsServiceOpenAccountBelowBonusThreshold(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc, savings, _ := newSavingsFixture(now)
	rate := seedRate(savings)

	account, err := svc.OpenAccount(context.Background(), "class-1", "student-1", dto.OpenAccountRequest{
		RateID: rate.ID,
		Amount: 999,
	})
	require.NoError(t, err)
	require.Equal(t, float64(25), account.InterestRate)
	require.Equal(t, int64(249), account.ProjectedInterest)
}

func TestSavingsServiceOpenAccountBelowMinimum(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc, savings, ledger := newSavingsFixture(now)
	rate := seedRate(savings)

	_, err := svc.OpenAccount(context.Background(), "class-1", "student-1", dto.OpenAccountRequest{
		RateID: rate.ID,
		Amount: 100,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidAmount.Code, appErrorCode(t, err))
	require.Empty(t, ledger.locks)
}

func TestSavingsServiceOpenAccountDuplicateTier(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc, savings, _ := newSavingsFixture(now)
	rate := seedRate(savings)

	_, err := svc.OpenAccount(context.Background(), "class-1", "student-1", dto.OpenAccountRequest{RateID: rate.ID, Amount: 300})
	require.NoError(t, err)
	_, err = svc.OpenAccount(context.Background(), "class-1", "student-1", dto.OpenAccountRequest{RateID: rate.ID, Amount: 300})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrDuplicateRequest.Code, appErrorCode(t, err))
}

func TestSavingsServiceFailedInsertRevertsLock(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc, savings, ledger := newSavingsFixture(now)
	rate := seedRate(savings)
	savings.failCreateAccount = fmt.Errorf("constraint violation")

	_, err := svc.OpenAccount(context.Background(), "class-1", "student-1", dto.OpenAccountRequest{
		RateID: rate.ID,
		Amount: 500,
	})
	require.Error(t, err)
	require.Len(t, ledger.locks, 1)
	require.Len(t, ledger.payouts, 1)
	require.Equal(t, int64(500), ledger.payouts[0].Amount)
	require.Equal(t, int64(0), ledger.interests[0])
}

func TestSavingsServiceWithdrawBeforeMaturityForfeitsInterest(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc, savings, ledger := newSavingsFixture(now)
	rate := seedRate(savings)

	account, err := svc.OpenAccount(context.Background(), "class-1", "student-1", dto.OpenAccountRequest{
		RateID: rate.ID,
		Amount: 1000,
	})
	require.NoError(t, err)

	svc.clock = fixedClock(now.AddDate(0, 0, 30))
	withdrawn, err := svc.Withdraw(context.Background(), "student-1", account.ID)
	require.NoError(t, err)
	require.Equal(t, models.SavingsCancelled, withdrawn.Status)
	require.Equal(t, int64(1000), *withdrawn.FinalAmount)

	last := len(ledger.payouts) - 1
	require.Equal(t, int64(1000), ledger.payouts[last].Amount)
	require.Equal(t, int64(0), ledger.interests[last])
}

func TestSavingsServiceWithdrawAfterMaturityPaysInterest(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc, savings, ledger := newSavingsFixture(now)
	rate := seedRate(savings)

	account, err := svc.OpenAccount(context.Background(), "class-1", "student-1", dto.OpenAccountRequest{
		RateID: rate.ID,
		Amount: 1000,
	})
	require.NoError(t, err)

	// past maturity the student collects the same settlement the sweep pays
	svc.clock = fixedClock(now.AddDate(0, 0, 91))
	withdrawn, err := svc.Withdraw(context.Background(), "student-1", account.ID)
	require.NoError(t, err)
	require.Equal(t, models.SavingsCompleted, withdrawn.Status)
	require.Equal(t, int64(1290), *withdrawn.FinalAmount)

	last := len(ledger.payouts) - 1
	require.Equal(t, int64(1000), ledger.payouts[last].Amount)
	require.Equal(t, int64(290), ledger.interests[last])
}

func TestSavingsServiceMatureSweepPaysPrincipalPlusInterest(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc, savings, ledger := newSavingsFixture(now)
	rate := seedRate(savings)

	account, err := svc.OpenAccount(context.Background(), "class-1", "student-1", dto.OpenAccountRequest{
		RateID: rate.ID,
		Amount: 1000,
	})
	require.NoError(t, err)

	svc.clock = fixedClock(now.AddDate(0, 0, 90))
	completed, err := svc.MatureSweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, completed)

	stored := savings.accounts[account.ID]
	require.Equal(t, models.SavingsCompleted, stored.Status)
	require.Equal(t, int64(1290), *stored.FinalAmount)

	last := len(ledger.payouts) - 1
	require.Equal(t, int64(1000), ledger.payouts[last].Amount)
	require.Equal(t, int64(290), ledger.interests[last])

	// a second sweep finds nothing to do
	completed, err = svc.MatureSweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, completed)
}

func TestSavingsServiceSweepReopensOnPayoutFailure(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc, savings, ledger := newSavingsFixture(now)
	rate := seedRate(savings)

	account, err := svc.OpenAccount(context.Background(), "class-1", "student-1", dto.OpenAccountRequest{
		RateID: rate.ID,
		Amount: 1000,
	})
	require.NoError(t, err)

	ledger.failPayout = repository.ErrInsufficientTreasury
	svc.clock = fixedClock(now.AddDate(0, 0, 90))
	completed, err := svc.MatureSweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, completed)
	require.Equal(t, models.SavingsActive, savings.accounts[account.ID].Status)
}
