package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	"github.com/noah-isme/classbank-api/internal/repository"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
)

type ledgerStore interface {
	BatchMint(ctx context.Context, classroomID string, credits []repository.WalletCredit, reason string, createdBy *string) ([]models.Transaction, error)
	Credit(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error)
	Transfer(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error)
	Spend(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error)
}

type streakRecorder interface {
	RecordActivity(ctx context.Context, classroomID string, req dto.RecordActivityRequest) (*models.StreakResult, error)
}

type walletReader interface {
	GetByID(ctx context.Context, id string) (*models.Wallet, error)
	GetByStudent(ctx context.Context, studentID string) (*models.Wallet, error)
	Leaderboard(ctx context.Context, classroomID string, limit int) ([]models.LeaderboardEntry, error)
}

type transactionReader interface {
	List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int64, error)
}

type ledgerCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// LedgerService handles teacher-initiated settlements and ledger reads.
// Student-initiated movements go through the approval workflow instead.
type LedgerService struct {
	ledger       ledgerStore
	wallets      walletReader
	transactions transactionReader
	cache        ledgerCache
	streaks      streakRecorder
	logger       *zap.Logger
	maxBatchSize int

	leaderboardTTL time.Duration
}

// LedgerServiceOption configures the service.
type LedgerServiceOption func(*LedgerService)

// WithMaxBatchSize caps the number of recipients per batch award.
func WithMaxBatchSize(size int) LedgerServiceOption {
	return func(s *LedgerService) {
		if size > 0 {
			s.maxBatchSize = size
		}
	}
}

// WithStreakRecorder advances activity streaks after awards whose reason
// names a streak category.
func WithStreakRecorder(streaks streakRecorder) LedgerServiceOption {
	return func(s *LedgerService) {
		s.streaks = streaks
	}
}

// WithLeaderboardTTL overrides how long leaderboard snapshots are cached.
func WithLeaderboardTTL(ttl time.Duration) LedgerServiceOption {
	return func(s *LedgerService) {
		if ttl > 0 {
			s.leaderboardTTL = ttl
		}
	}
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(ledger ledgerStore, wallets walletReader, transactions transactionReader, cache ledgerCache, logger *zap.Logger, opts ...LedgerServiceOption) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LedgerService{
		ledger:       ledger,
		wallets:      wallets,
		transactions: transactions,
		cache:        cache,
		logger:       logger,
		maxBatchSize: 50,

		leaderboardTTL: time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Award emits treasury coins to one or more students in a single atomic
// batch. Either every recipient is paid or none is.
func (s *LedgerService) Award(ctx context.Context, classroomID, teacherID string, req dto.AwardRequest) ([]models.Transaction, error) {
	if req.Amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "award amount must be positive")
	}
	if len(req.StudentIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one student is required")
	}
	if len(req.StudentIDs) > s.maxBatchSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d students per award", s.maxBatchSize))
	}

	credits := make([]repository.WalletCredit, 0, len(req.StudentIDs))
	recipients := make([]string, 0, len(req.StudentIDs))
	seen := make(map[string]bool, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		if seen[studentID] {
			continue
		}
		seen[studentID] = true
		recipients = append(recipients, studentID)
		wallet, err := s.wallets.GetByStudent(ctx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s has no wallet", studentID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load wallet")
		}
		if wallet.ClassroomID != classroomID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "student belongs to another classroom")
		}
		credits = append(credits, repository.WalletCredit{WalletID: wallet.ID, Amount: req.Amount})
	}

	records, err := s.ledger.BatchMint(ctx, classroomID, credits, req.Reason, &teacherID)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientTreasury) {
			return nil, appErrors.Clone(appErrors.ErrInsufficientTreasury, "treasury cannot cover this award")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle award")
	}

	s.invalidate(ctx, classroomID)
	s.recordStreaks(ctx, classroomID, recipients, req.Reason)
	s.logger.Info("award settled",
		zap.String("classroom_id", classroomID),
		zap.Int("recipients", len(credits)),
		zap.Int64("amount", req.Amount))
	return records, nil
}

// recordStreaks advances each recipient's streak when the award reason maps
// onto a streak category. The coins are already settled at this point, so a
// failed streak update is logged rather than surfaced.
func (s *LedgerService) recordStreaks(ctx context.Context, classroomID string, studentIDs []string, reason string) {
	if s.streaks == nil {
		return
	}
	streakType, ok := models.StreakTypeForReason(reason)
	if !ok {
		return
	}
	for _, studentID := range studentIDs {
		if _, err := s.streaks.RecordActivity(ctx, classroomID, dto.RecordActivityRequest{
			StudentID:  studentID,
			StreakType: streakType,
		}); err != nil {
			s.logger.Warn("streak not advanced after award",
				zap.String("student_id", studentID),
				zap.String("streak_type", string(streakType)),
				zap.Error(err))
		}
	}
}

// Refund returns previously spent coins to a single student, e.g. after a
// reward could not be delivered. The coins re-enter circulation the way the
// purchase removed them, so the treasury stays out of the round trip.
func (s *LedgerService) Refund(ctx context.Context, classroomID, teacherID string, req dto.RefundRequest) (*models.Transaction, error) {
	if req.Amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "refund amount must be positive")
	}
	wallet, err := s.wallets.GetByStudent(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no wallet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load wallet")
	}
	if wallet.ClassroomID != classroomID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student belongs to another classroom")
	}

	record, err := s.ledger.Credit(ctx, repository.LedgerEntry{
		ClassroomID: classroomID,
		ToWalletID:  &wallet.ID,
		Amount:      req.Amount,
		Type:        models.TransactionRefund,
		Reason:      req.Reason,
		CreatedBy:   &teacherID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle refund")
	}

	s.invalidate(ctx, classroomID)
	return record, nil
}

// Wallet returns a student's wallet.
func (s *LedgerService) Wallet(ctx context.Context, studentID string) (*models.Wallet, error) {
	wallet, err := s.wallets.GetByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "wallet not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load wallet")
	}
	return wallet, nil
}

// History lists ledger entries for a classroom or single wallet.
func (s *LedgerService) History(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, *models.Pagination, error) {
	filter.Normalize()
	transactions, total, err := s.transactions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	return transactions, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Leaderboard returns the classroom's top balances. Snapshots are cached
// briefly; settlements invalidate the classroom keyspace.
func (s *LedgerService) Leaderboard(ctx context.Context, classroomID string, limit int) ([]models.LeaderboardEntry, error) {
	key := fmt.Sprintf("classroom:%s:leaderboard:%d", classroomID, limit)
	if s.cache != nil {
		var cached []models.LeaderboardEntry
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}
	entries, err := s.wallets.Leaderboard(ctx, classroomID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build leaderboard")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, entries, s.leaderboardTTL); err != nil {
			s.logger.Warn("failed to cache leaderboard", zap.Error(err))
		}
	}
	return entries, nil
}

func (s *LedgerService) invalidate(ctx context.Context, classroomID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("classroom:%s:*", classroomID)); err != nil {
		s.logger.Warn("failed to invalidate classroom cache", zap.Error(err))
	}
}
