package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	"github.com/noah-isme/classbank-api/internal/repository"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
)

type badgeStore interface {
	Create(ctx context.Context, badge *models.Badge) error
	ListForClassroom(ctx context.Context, classroomID string) ([]models.Badge, error)
	ListUnlocked(ctx context.Context, studentID string) ([]models.StudentBadge, error)
	UnlockedIDs(ctx context.Context, studentID string) (map[string]bool, error)
	Unlock(ctx context.Context, grant *models.StudentBadge) (bool, error)
}

type badgeStreakReader interface {
	BestStreak(ctx context.Context, studentID string, streakType models.StreakType) (int, error)
}

type badgeActivityReader interface {
	CountByWallet(ctx context.Context, walletID string) (int64, error)
}

type badgeSavingsReader interface {
	CompletedCountByStudent(ctx context.Context, studentID string) (int64, error)
}

// BadgeService evaluates achievement criteria and records unlocks. Unlocks
// are idempotent: the (student, badge) pair is unique at the store level,
// so re-evaluation after every activity is safe.
type BadgeService struct {
	badges  badgeStore
	streaks badgeStreakReader
	wallets approvalWallets
	ledger  streakLedger
	txs     badgeActivityReader
	savings badgeSavingsReader
	logger  *zap.Logger
}

// NewBadgeService constructs a BadgeService.
func NewBadgeService(badges badgeStore, streaks badgeStreakReader, wallets approvalWallets, txs badgeActivityReader, savings badgeSavingsReader, ledger streakLedger, logger *zap.Logger) *BadgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgeService{
		badges:  badges,
		streaks: streaks,
		wallets: wallets,
		ledger:  ledger,
		txs:     txs,
		savings: savings,
		logger:  logger,
	}
}

// CreateBadge defines a classroom badge.
func (s *BadgeService) CreateBadge(ctx context.Context, classroomID string, req dto.CreateBadgeRequest) (*models.Badge, error) {
	if req.Criteria == models.CriteriaStreak && (req.StreakType == nil || !req.StreakType.Valid()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "streak badges need a streak type")
	}
	if req.Criteria != models.CriteriaManual && req.Threshold <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "criteria threshold must be positive")
	}
	badge := &models.Badge{
		ClassroomID:  &classroomID,
		Code:         req.Code,
		Name:         req.Name,
		Description:  req.Description,
		Icon:         req.Icon,
		Criteria:     req.Criteria,
		Threshold:    req.Threshold,
		StreakType:   req.StreakType,
		Rarity:       req.Rarity,
		RewardAmount: req.RewardAmount,
	}
	if err := s.badges.Create(ctx, badge); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create badge")
	}
	return badge, nil
}

// ListBadges returns badges available to a classroom.
func (s *BadgeService) ListBadges(ctx context.Context, classroomID string) ([]models.Badge, error) {
	badges, err := s.badges.ListForClassroom(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list badges")
	}
	return badges, nil
}

// StudentBadges returns a student's unlocked badges.
func (s *BadgeService) StudentBadges(ctx context.Context, studentID string) ([]models.StudentBadge, error) {
	unlocked, err := s.badges.ListUnlocked(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student badges")
	}
	return unlocked, nil
}

// AwardManual grants a MANUAL badge directly.
func (s *BadgeService) AwardManual(ctx context.Context, classroomID, studentID, badgeID string) (*models.StudentBadge, error) {
	badges, err := s.badges.ListForClassroom(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list badges")
	}
	var badge *models.Badge
	for i := range badges {
		if badges[i].ID == badgeID {
			badge = &badges[i]
			break
		}
	}
	if badge == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "badge not found")
	}
	grant, granted, err := s.unlock(ctx, classroomID, studentID, badge)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "student already holds this badge")
	}
	return grant, nil
}

// EvaluateStudent checks every automatic badge criterion against the
// student's current metrics and unlocks whatever newly qualifies.
func (s *BadgeService) EvaluateStudent(ctx context.Context, classroomID, studentID string) ([]models.StudentBadge, error) {
	badges, err := s.badges.ListForClassroom(ctx, classroomID)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	held, err := s.badges.UnlockedIDs(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list held badges: %w", err)
	}

	var earned []models.StudentBadge
	for i := range badges {
		badge := &badges[i]
		if badge.Criteria == models.CriteriaManual || held[badge.ID] {
			continue
		}
		qualifies, err := s.qualifies(ctx, studentID, badge)
		if err != nil {
			s.logger.Warn("badge criterion check failed",
				zap.String("badge_code", badge.Code), zap.Error(err))
			continue
		}
		if !qualifies {
			continue
		}
		grant, granted, err := s.unlock(ctx, classroomID, studentID, badge)
		if err != nil {
			s.logger.Warn("badge unlock failed", zap.String("badge_code", badge.Code), zap.Error(err))
			continue
		}
		if granted {
			earned = append(earned, *grant)
		}
	}
	return earned, nil
}

func (s *BadgeService) qualifies(ctx context.Context, studentID string, badge *models.Badge) (bool, error) {
	switch badge.Criteria {
	case models.CriteriaStreak:
		if badge.StreakType == nil {
			return false, nil
		}
		best, err := s.streaks.BestStreak(ctx, studentID, *badge.StreakType)
		if err != nil {
			return false, err
		}
		return int64(best) >= badge.Threshold, nil
	case models.CriteriaBalance:
		wallet, err := s.wallets.GetByStudent(ctx, studentID)
		if err != nil {
			return false, err
		}
		return wallet.Balance >= badge.Threshold, nil
	case models.CriteriaTransactions:
		wallet, err := s.wallets.GetByStudent(ctx, studentID)
		if err != nil {
			return false, err
		}
		count, err := s.txs.CountByWallet(ctx, wallet.ID)
		if err != nil {
			return false, err
		}
		return count >= badge.Threshold, nil
	case models.CriteriaSavings:
		count, err := s.savings.CompletedCountByStudent(ctx, studentID)
		if err != nil {
			return false, err
		}
		return count >= badge.Threshold, nil
	}
	return false, nil
}

func (s *BadgeService) unlock(ctx context.Context, classroomID, studentID string, badge *models.Badge) (*models.StudentBadge, bool, error) {
	grant := &models.StudentBadge{
		StudentID:   studentID,
		BadgeID:     badge.ID,
		ClassroomID: classroomID,
		BadgeCode:   badge.Code,
		BadgeName:   badge.Name,
	}
	granted, err := s.badges.Unlock(ctx, grant)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlock badge")
	}
	if granted && badge.RewardAmount > 0 {
		wallet, err := s.wallets.GetByStudent(ctx, studentID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("badge reward wallet lookup failed", zap.Error(err))
		} else if err == nil {
			if _, err := s.ledger.Mint(ctx, repository.LedgerEntry{
				ClassroomID: classroomID,
				ToWalletID:  &wallet.ID,
				Amount:      badge.RewardAmount,
				Type:        models.TransactionEmission,
				Reason:      fmt.Sprintf("badge unlocked: %s", badge.Name),
			}); err != nil {
				s.logger.Warn("badge reward not paid", zap.String("badge_code", badge.Code), zap.Error(err))
			}
		}
	}
	return grant, granted, nil
}
