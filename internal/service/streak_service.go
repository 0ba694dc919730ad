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

type streakStore interface {
	Get(ctx context.Context, studentID string, streakType models.StreakType) (*models.StudentStreak, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.StudentStreak, error)
	Upsert(ctx context.Context, streak *models.StudentStreak) error
	GetReward(ctx context.Context, classroomID string, streakType models.StreakType, milestone int) (*models.StreakReward, error)
	ListRewards(ctx context.Context, classroomID string) ([]models.StreakReward, error)
}

type streakLedger interface {
	Mint(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error)
}

type badgeEvaluator interface {
	EvaluateStudent(ctx context.Context, classroomID, studentID string) ([]models.StudentBadge, error)
}

type treasuryReader interface {
	GetByID(ctx context.Context, id string) (*models.Classroom, error)
}

// StreakService tracks consecutive-day activity runs and pays milestone
// bonuses. Streak arithmetic works on calendar days: a second recording on
// the same day is a no-op, yesterday extends the run, anything older
// resets it to one.
type StreakService struct {
	streaks    streakStore
	wallets    approvalWallets
	ledger     streakLedger
	badges     badgeEvaluator
	classrooms treasuryReader
	logger     *zap.Logger
	clock      Clock
}

// StreakServiceOption configures the service.
type StreakServiceOption func(*StreakService)

// WithStreakClock overrides the time source.
func WithStreakClock(clock Clock) StreakServiceOption {
	return func(s *StreakService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithBadgeEvaluator wires post-activity badge checks.
func WithBadgeEvaluator(badges badgeEvaluator) StreakServiceOption {
	return func(s *StreakService) {
		s.badges = badges
	}
}

// WithStreakClassrooms wires the treasury lookup that caps milestone
// bonuses at what the treasury can still pay.
func WithStreakClassrooms(classrooms treasuryReader) StreakServiceOption {
	return func(s *StreakService) {
		s.classrooms = classrooms
	}
}

// NewStreakService constructs a StreakService.
func NewStreakService(streaks streakStore, wallets approvalWallets, ledger streakLedger, logger *zap.Logger, opts ...StreakServiceOption) *StreakService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &StreakService{
		streaks: streaks,
		wallets: wallets,
		ledger:  ledger,
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

// RecordActivity advances a student's streak for one activity type and
// pays the milestone bonus when the new length exactly matches a reward.
// Bonuses fire on exact matches only, so a streak that resets and climbs
// back through a milestone earns it again by design of the reward table.
func (s *StreakService) RecordActivity(ctx context.Context, classroomID string, req dto.RecordActivityRequest) (*models.StreakResult, error) {
	if !req.StreakType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown streak type")
	}

	now := s.clock()
	today := truncateToDay(now)

	streak, err := s.streaks.Get(ctx, req.StudentID, req.StreakType)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load streak")
	}
	if streak == nil {
		streak = &models.StudentStreak{
			ClassroomID: classroomID,
			StudentID:   req.StudentID,
			StreakType:  req.StreakType,
		}
	}

	if streak.LastActivityDate != nil {
		last := truncateToDay(*streak.LastActivityDate)
		switch {
		case last.Equal(today):
			// already counted today; Updated stays false so callers can
			// tell this apart from a real advance
			return &models.StreakResult{
				StreakType:    streak.StreakType,
				CurrentStreak: streak.CurrentStreak,
				BestStreak:    streak.BestStreak,
			}, nil
		case last.Equal(today.AddDate(0, 0, -1)):
			streak.CurrentStreak++
		default:
			streak.CurrentStreak = 1
		}
	} else {
		streak.CurrentStreak = 1
	}

	isNewBest := streak.CurrentStreak > streak.BestStreak
	if isNewBest {
		streak.BestStreak = streak.CurrentStreak
	}
	streak.TotalCount++
	streak.LastActivityDate = &today

	if err := s.streaks.Upsert(ctx, streak); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save streak")
	}

	result := &models.StreakResult{
		StreakType:    streak.StreakType,
		CurrentStreak: streak.CurrentStreak,
		BestStreak:    streak.BestStreak,
		Updated:       true,
		IsNewBest:     isNewBest,
	}

	reward, err := s.streaks.GetReward(ctx, classroomID, req.StreakType, streak.CurrentStreak)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check milestone rewards")
	}
	if reward != nil {
		paid, err := s.payBonus(ctx, classroomID, req.StudentID, reward)
		if err != nil {
			// the streak itself advanced; the bonus failing to settle is logged
			// rather than rolling the activity back
			s.logger.Warn("milestone bonus not paid",
				zap.String("student_id", req.StudentID),
				zap.Int("milestone", reward.Milestone),
				zap.Error(err))
		} else {
			result.Milestone = reward
			result.BonusPaid = paid
		}
	}

	if s.badges != nil {
		earned, err := s.badges.EvaluateStudent(ctx, classroomID, req.StudentID)
		if err != nil {
			s.logger.Warn("badge evaluation failed", zap.String("student_id", req.StudentID), zap.Error(err))
		} else {
			result.BadgesEarned = earned
		}
	}
	return result, nil
}

// StudentStreaks returns all streaks for a student.
func (s *StreakService) StudentStreaks(ctx context.Context, studentID string) ([]models.StudentStreak, error) {
	streaks, err := s.streaks.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list streaks")
	}
	return streaks, nil
}

// Rewards returns the classroom's milestone table.
func (s *StreakService) Rewards(ctx context.Context, classroomID string) ([]models.StreakReward, error) {
	rewards, err := s.streaks.ListRewards(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list streak rewards")
	}
	return rewards, nil
}

// payBonus mints the milestone reward, truncated to whatever the treasury
// still holds so a nearly empty treasury pays a partial bonus instead of
// none at all. Returns the amount actually paid.
func (s *StreakService) payBonus(ctx context.Context, classroomID, studentID string, reward *models.StreakReward) (int64, error) {
	wallet, err := s.wallets.GetByStudent(ctx, studentID)
	if err != nil {
		return 0, fmt.Errorf("load wallet: %w", err)
	}
	amount := reward.RewardAmount
	if s.classrooms != nil {
		classroom, err := s.classrooms.GetByID(ctx, classroomID)
		if err != nil {
			return 0, fmt.Errorf("load classroom: %w", err)
		}
		if classroom.TreasuryRemaining < amount {
			amount = classroom.TreasuryRemaining
		}
		if amount <= 0 {
			return 0, repository.ErrInsufficientTreasury
		}
	}
	_, err = s.ledger.Mint(ctx, repository.LedgerEntry{
		ClassroomID: classroomID,
		ToWalletID:  &wallet.ID,
		Amount:      amount,
		Type:        models.TransactionEmission,
		Reason:      fmt.Sprintf("streak bonus: %s", reward.RewardName),
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
