package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	"github.com/noah-isme/classbank-api/internal/repository"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
)

type savingsStore interface {
	CreateRate(ctx context.Context, rate *models.SavingsRate) error
	GetRate(ctx context.Context, id string) (*models.SavingsRate, error)
	ListRates(ctx context.Context, classroomID string) ([]models.SavingsRate, error)
	DeactivateRate(ctx context.Context, id string) error
	CreateAccount(ctx context.Context, account *models.SavingsAccount) error
	GetAccount(ctx context.Context, id string) (*models.SavingsAccount, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.SavingsAccount, error)
	HasActiveForRate(ctx context.Context, studentID, rateID string) (bool, error)
	ListMatured(ctx context.Context, asOf time.Time) ([]models.SavingsAccount, error)
	CloseAccount(ctx context.Context, id string, status models.SavingsStatus, finalAmount int64, at time.Time) error
	ReopenAccount(ctx context.Context, id string) error
}

type savingsLedger interface {
	Lock(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error)
	Payout(ctx context.Context, entry repository.LedgerEntry, interest int64) (*models.Transaction, error)
}

// SavingsService runs the fixed-term deposit engine. Interest is fixed at
// opening time as floor(amount x rate / 100), paid from the treasury at
// maturity. Withdrawing before maturity returns the principal only.
type SavingsService struct {
	savings savingsStore
	ledger  savingsLedger
	wallets approvalWallets
	logger  *zap.Logger
	clock   Clock
}

// SavingsServiceOption configures the service.
type SavingsServiceOption func(*SavingsService)

// WithSavingsClock overrides the time source.
func WithSavingsClock(clock Clock) SavingsServiceOption {
	return func(s *SavingsService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewSavingsService constructs a SavingsService.
func NewSavingsService(savings savingsStore, ledger savingsLedger, wallets approvalWallets, logger *zap.Logger, opts ...SavingsServiceOption) *SavingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SavingsService{
		savings: savings,
		ledger:  ledger,
		wallets: wallets,
		logger:  logger,
		clock:   systemClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateRate offers a new savings tier.
func (s *SavingsService) CreateRate(ctx context.Context, classroomID string, req dto.CreateRateRequest) (*models.SavingsRate, error) {
	if req.LockDays <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lock days must be positive")
	}
	if req.InterestRate <= 0 || req.InterestRate > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "interest rate must be between 0 and 100 percent")
	}
	if req.MaxAmount != nil && *req.MaxAmount < req.MinAmount {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max amount cannot be below min amount")
	}
	rate := &models.SavingsRate{
		ClassroomID:    classroomID,
		LockDays:       req.LockDays,
		InterestRate:   req.InterestRate,
		MinAmount:      req.MinAmount,
		MaxAmount:      req.MaxAmount,
		BonusThreshold: req.BonusThreshold,
		BonusRate:      req.BonusRate,
	}
	if err := s.savings.CreateRate(ctx, rate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create savings rate")
	}
	return rate, nil
}

// ListRates returns the classroom's active tiers.
func (s *SavingsService) ListRates(ctx context.Context, classroomID string) ([]models.SavingsRate, error) {
	rates, err := s.savings.ListRates(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list savings rates")
	}
	return rates, nil
}

// DeactivateRate retires a tier. Accounts already open keep their terms.
func (s *SavingsService) DeactivateRate(ctx context.Context, classroomID, rateID string) error {
	rate, err := s.savings.GetRate(ctx, rateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "savings rate not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load savings rate")
	}
	if rate.ClassroomID != classroomID {
		return appErrors.Clone(appErrors.ErrForbidden, "rate belongs to another classroom")
	}
	if err := s.savings.DeactivateRate(ctx, rateID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate savings rate")
	}
	return nil
}

// OpenAccount locks a deposit on a tier. The wallet is debited first with
// a guarded update; the account row is created only after the coins are
// held, and a failed insert returns them.
func (s *SavingsService) OpenAccount(ctx context.Context, classroomID, studentID string, req dto.OpenAccountRequest) (*models.SavingsAccount, error) {
	if req.Amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "deposit amount must be positive")
	}

	rate, err := s.savings.GetRate(ctx, req.RateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "savings rate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load savings rate")
	}
	if rate.ClassroomID != classroomID || !rate.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "savings rate not available")
	}
	if req.Amount < rate.MinAmount {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, fmt.Sprintf("deposit must be at least %d", rate.MinAmount))
	}
	if rate.MaxAmount != nil && req.Amount > *rate.MaxAmount {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, fmt.Sprintf("deposit is capped at %d", *rate.MaxAmount))
	}

	open, err := s.savings.HasActiveForRate(ctx, studentID, rate.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open accounts")
	}
	if open {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "an active deposit on this tier already exists")
	}

	wallet, err := s.wallets.GetByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load wallet")
	}

	totalRate := rate.TotalRate(req.Amount)
	interest := int64(math.Floor(float64(req.Amount) * totalRate / 100))
	now := s.clock()

	_, err = s.ledger.Lock(ctx, repository.LedgerEntry{
		ClassroomID:  classroomID,
		FromWalletID: &wallet.ID,
		Amount:       req.Amount,
		Type:         models.TransactionSavingsLock,
		Reason:       fmt.Sprintf("savings deposit, %d days", rate.LockDays),
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, appErrors.Clone(appErrors.ErrInsufficientBalance, "balance does not cover the deposit")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock deposit")
	}

	account := &models.SavingsAccount{
		ClassroomID:       classroomID,
		StudentID:         studentID,
		WalletID:          wallet.ID,
		RateID:            rate.ID,
		Amount:            req.Amount,
		LockDays:          rate.LockDays,
		InterestRate:      totalRate,
		ProjectedInterest: interest,
		StartDate:         now,
		EndDate:           now.AddDate(0, 0, rate.LockDays),
	}
	if err := s.savings.CreateAccount(ctx, account); err != nil {
		// return the held coins so the failed open is invisible
		if _, payoutErr := s.ledger.Payout(ctx, repository.LedgerEntry{
			ClassroomID: classroomID,
			ToWalletID:  &wallet.ID,
			Amount:      req.Amount,
			Type:        models.TransactionSavingsOut,
			Reason:      "deposit reverted",
		}, 0); payoutErr != nil {
			s.logger.Error("failed to revert held deposit",
				zap.String("wallet_id", wallet.ID), zap.Error(payoutErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open savings account")
	}
	return account, nil
}

// Withdraw closes an ACTIVE account at the student's request. Past maturity
// the deposit completes with principal plus interest, exactly as the sweep
// would settle it; before maturity the account is cancelled and the
// projected interest is forfeited.
func (s *SavingsService) Withdraw(ctx context.Context, studentID, accountID string) (*models.SavingsAccount, error) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "account belongs to another student")
	}
	if account.Status != models.SavingsActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "account is already closed")
	}

	now := s.clock()
	status := models.SavingsCancelled
	interest := int64(0)
	reason := "early withdrawal, interest forfeited"
	if account.Matured(now) {
		status = models.SavingsCompleted
		interest = account.ProjectedInterest
		reason = fmt.Sprintf("matured deposit, %d days at %.1f%%", account.LockDays, account.InterestRate)
	}

	if err := s.savings.CloseAccount(ctx, accountID, status, account.Amount+interest, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "account is already closed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close account")
	}

	if _, err := s.ledger.Payout(ctx, repository.LedgerEntry{
		ClassroomID: account.ClassroomID,
		ToWalletID:  &account.WalletID,
		Amount:      account.Amount,
		Type:        models.TransactionSavingsOut,
		Reason:      reason,
	}, interest); err != nil {
		if reopenErr := s.savings.ReopenAccount(ctx, accountID); reopenErr != nil {
			s.logger.Error("failed to reopen account after payout failure",
				zap.String("account_id", accountID), zap.Error(reopenErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to pay out deposit")
	}
	return s.loadAccount(ctx, accountID)
}

// StudentAccounts returns a student's savings accounts.
func (s *SavingsService) StudentAccounts(ctx context.Context, studentID string) ([]models.SavingsAccount, error) {
	accounts, err := s.savings.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list savings accounts")
	}
	return accounts, nil
}

// MatureSweep pays out every ACTIVE account whose lock period has elapsed.
// The conditional close makes the sweep idempotent: overlapping runs and
// concurrent withdrawals race on the ACTIVE guard and exactly one wins per
// account. Returns the number of accounts completed.
func (s *SavingsService) MatureSweep(ctx context.Context) (int, error) {
	now := s.clock()
	matured, err := s.savings.ListMatured(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list matured accounts: %w", err)
	}

	completed := 0
	for i := range matured {
		account := &matured[i]
		final := account.Amount + account.ProjectedInterest
		if err := s.savings.CloseAccount(ctx, account.ID, models.SavingsCompleted, final, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			s.logger.Error("failed to close matured account",
				zap.String("account_id", account.ID), zap.Error(err))
			continue
		}
		if _, err := s.ledger.Payout(ctx, repository.LedgerEntry{
			ClassroomID: account.ClassroomID,
			ToWalletID:  &account.WalletID,
			Amount:      account.Amount,
			Type:        models.TransactionSavingsOut,
			Reason:      fmt.Sprintf("matured deposit, %d days at %.1f%%", account.LockDays, account.InterestRate),
		}, account.ProjectedInterest); err != nil {
			s.logger.Error("matured payout failed, reopening account",
				zap.String("account_id", account.ID), zap.Error(err))
			if reopenErr := s.savings.ReopenAccount(ctx, account.ID); reopenErr != nil {
				s.logger.Error("failed to reopen account after payout failure",
					zap.String("account_id", account.ID), zap.Error(reopenErr))
			}
			continue
		}
		completed++
	}
	if completed > 0 {
		s.logger.Info("savings sweep finished", zap.Int("completed", completed))
	}
	return completed, nil
}

func (s *SavingsService) loadAccount(ctx context.Context, id string) (*models.SavingsAccount, error) {
	account, err := s.savings.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "savings account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load savings account")
	}
	return account, nil
}
