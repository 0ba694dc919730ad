package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	"github.com/noah-isme/classbank-api/internal/repository"
)

type streakStoreStub struct {
	streaks map[string]*models.StudentStreak
	rewards map[int]*models.StreakReward
	upserts int
}

func newStreakStoreStub() *streakStoreStub {
	return &streakStoreStub{
		streaks: make(map[string]*models.StudentStreak),
		rewards: make(map[int]*models.StreakReward),
	}
}

func streakKey(studentID string, streakType models.StreakType) string {
	return studentID + "/" + string(streakType)
}

func (s *streakStoreStub) Get(ctx context.Context, studentID string, streakType models.StreakType) (*models.StudentStreak, error) {
	if streak, ok := s.streaks[streakKey(studentID, streakType)]; ok {
		copy := *streak
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *streakStoreStub) ListByStudent(ctx context.Context, studentID string) ([]models.StudentStreak, error) {
	result := make([]models.StudentStreak, 0)
	for _, streak := range s.streaks {
		if streak.StudentID == studentID {
			result = append(result, *streak)
		}
	}
	return result, nil
}

func (s *streakStoreStub) Upsert(ctx context.Context, streak *models.StudentStreak) error {
	s.upserts++
	copy := *streak
	s.streaks[streakKey(streak.StudentID, streak.StreakType)] = &copy
	return nil
}

func (s *streakStoreStub) GetReward(ctx context.Context, classroomID string, streakType models.StreakType, milestone int) (*models.StreakReward, error) {
	if reward, ok := s.rewards[milestone]; ok {
		return reward, nil
	}
	return nil, sql.ErrNoRows
}

func (s *streakStoreStub) ListRewards(ctx context.Context, classroomID string) ([]models.StreakReward, error) {
	result := make([]models.StreakReward, 0, len(s.rewards))
	for _, reward := range s.rewards {
		result = append(result, *reward)
	}
	return result, nil
}

type streakLedgerStub struct {
	mints []repository.LedgerEntry
}

func (l *streakLedgerStub) Mint(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error) {
	l.mints = append(l.mints, entry)
	return &models.Transaction{Amount: entry.Amount, Type: entry.Type}, nil
}

func newStreakFixture(now time.Time) (*StreakService, *streakStoreStub, *streakLedgerStub) {
	streaks := newStreakStoreStub()
	ledger := &streakLedgerStub{}
	wallets := &walletReaderStub{wallets: map[string]*models.Wallet{
		"student-1": {ID: "wallet-1", StudentID: "student-1", ClassroomID: "class-1"},
	}}
	svc := NewStreakService(streaks, wallets, ledger, nil, WithStreakClock(fixedClock(now)))
	return svc, streaks, ledger
}

func TestStreakServiceFirstActivity(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	svc, _, _ := newStreakFixture(now)

	result, err := svc.RecordActivity(context.Background(), "class-1", dto.RecordActivityRequest{
		StudentID:  "student-1",
		StreakType: models.StreakAttendance,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.CurrentStreak)
	require.Equal(t, 1, result.BestStreak)
	require.True(t, result.Updated)
	require.True(t, result.IsNewBest)
}

func TestStreakServiceSameDayIsNoOp(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	svc, streaks, _ := newStreakFixture(now)

	today := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	streaks.streaks[streakKey("student-1", models.StreakAttendance)] = &models.StudentStreak{
		ClassroomID:      "class-1",
		StudentID:        "student-1",
		StreakType:       models.StreakAttendance,
		CurrentStreak:    4,
		BestStreak:       6,
		TotalCount:       10,
		LastActivityDate: &today,
	}

	result, err := svc.RecordActivity(context.Background(), "class-1", dto.RecordActivityRequest{
		StudentID:  "student-1",
		StreakType: models.StreakAttendance,
	})
	require.NoError(t, err)
	// the no-op is distinguishable from a real advance
	require.False(t, result.Updated)
	require.Equal(t, 4, result.CurrentStreak)
	require.Equal(t, 6, result.BestStreak)
	require.Zero(t, streaks.upserts)
}

func TestStreakServiceYesterdayExtendsAndPaysMilestone(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	svc, streaks, ledger := newStreakFixture(now)

	yesterday := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	streaks.streaks[streakKey("student-1", models.StreakHomework)] = &models.StudentStreak{
		ClassroomID:      "class-1",
		StudentID:        "student-1",
		StreakType:       models.StreakHomework,
		CurrentStreak:    2,
		BestStreak:       2,
		TotalCount:       2,
		LastActivityDate: &yesterday,
	}
	streaks.rewards[3] = &models.StreakReward{
		ClassroomID: "class-1", StreakType: models.StreakHomework,
		Milestone: 3, RewardAmount: 10, RewardName: "3-day HOMEWORK streak", Active: true,
	}

	result, err := svc.RecordActivity(context.Background(), "class-1", dto.RecordActivityRequest{
		StudentID:  "student-1",
		StreakType: models.StreakHomework,
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.CurrentStreak)
	require.True(t, result.IsNewBest)
	require.Equal(t, int64(10), result.BonusPaid)
	require.NotNil(t, result.Milestone)
	require.Len(t, ledger.mints, 1)
	require.Equal(t, int64(10), ledger.mints[0].Amount)
}

func TestStreakServiceGapResetsButKeepsBest(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	svc, streaks, ledger := newStreakFixture(now)

	threeDaysAgo := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	streaks.streaks[streakKey("student-1", models.StreakQuiz)] = &models.StudentStreak{
		ClassroomID:      "class-1",
		StudentID:        "student-1",
		StreakType:       models.StreakQuiz,
		CurrentStreak:    5,
		BestStreak:       5,
		TotalCount:       5,
		LastActivityDate: &threeDaysAgo,
	}
	streaks.rewards[5] = &models.StreakReward{Milestone: 5, RewardAmount: 20, Active: true}

	result, err := svc.RecordActivity(context.Background(), "class-1", dto.RecordActivityRequest{
		StudentID:  "student-1",
		StreakType: models.StreakQuiz,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.CurrentStreak)
	require.Equal(t, 5, result.BestStreak)
	require.False(t, result.IsNewBest)
	// no milestone bonus on a reset to one
	require.Empty(t, ledger.mints)
}

func TestStreakServiceNoBonusBetweenMilestones(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	svc, streaks, ledger := newStreakFixture(now)

	yesterday := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	streaks.streaks[streakKey("student-1", models.StreakAttendance)] = &models.StudentStreak{
		ClassroomID:      "class-1",
		StudentID:        "student-1",
		StreakType:       models.StreakAttendance,
		CurrentStreak:    3,
		BestStreak:       3,
		TotalCount:       3,
		LastActivityDate: &yesterday,
	}
	streaks.rewards[3] = &models.StreakReward{Milestone: 3, RewardAmount: 10, Active: true}
	streaks.rewards[5] = &models.StreakReward{Milestone: 5, RewardAmount: 20, Active: true}

	result, err := svc.RecordActivity(context.Background(), "class-1", dto.RecordActivityRequest{
		StudentID:  "student-1",
		StreakType: models.StreakAttendance,
	})
	require.NoError(t, err)
	require.Equal(t, 4, result.CurrentStreak)
	require.Zero(t, result.BonusPaid)
	require.Empty(t, ledger.mints)
}

func TestStreakServiceBonusTruncatedToTreasury(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	streaks := newStreakStoreStub()
	ledger := &streakLedgerStub{}
	wallets := &walletReaderStub{wallets: map[string]*models.Wallet{
		"student-1": {ID: "wallet-1", StudentID: "student-1", ClassroomID: "class-1"},
	}}
	classrooms := &approvalClassroomsStub{classroom: &models.Classroom{
		ID: "class-1", TreasuryTotal: 1000, TreasuryRemaining: 4,
	}}
	svc := NewStreakService(streaks, wallets, ledger, nil,
		WithStreakClock(fixedClock(now)),
		WithStreakClassrooms(classrooms))

	yesterday := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	streaks.streaks[streakKey("student-1", models.StreakAttendance)] = &models.StudentStreak{
		ClassroomID:      "class-1",
		StudentID:        "student-1",
		StreakType:       models.StreakAttendance,
		CurrentStreak:    2,
		BestStreak:       2,
		TotalCount:       2,
		LastActivityDate: &yesterday,
	}
	streaks.rewards[3] = &models.StreakReward{Milestone: 3, RewardAmount: 10, RewardName: "3-day streak", Active: true}

	result, err := svc.RecordActivity(context.Background(), "class-1", dto.RecordActivityRequest{
		StudentID:  "student-1",
		StreakType: models.StreakAttendance,
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.CurrentStreak)
	// the bonus shrinks to the last 4 coins instead of being dropped
	require.Equal(t, int64(4), result.BonusPaid)
	require.Len(t, ledger.mints, 1)
	require.Equal(t, int64(4), ledger.mints[0].Amount)

	// with the treasury empty the streak still advances, just unpaid
	classrooms.classroom.TreasuryRemaining = 0
	wallets.wallets["student-2"] = &models.Wallet{ID: "wallet-2", StudentID: "student-2", ClassroomID: "class-1"}
	streaks.rewards[1] = &models.StreakReward{Milestone: 1, RewardAmount: 10, Active: true}
	result, err = svc.RecordActivity(context.Background(), "class-1", dto.RecordActivityRequest{
		StudentID:  "student-2",
		StreakType: models.StreakAttendance,
	})
	require.NoError(t, err)
	require.True(t, result.Updated)
	require.Zero(t, result.BonusPaid)
	require.Len(t, ledger.mints, 1)
}

func TestStreakServiceUnknownType(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	svc, _, _ := newStreakFixture(now)

	_, err := svc.RecordActivity(context.Background(), "class-1", dto.RecordActivityRequest{
		StudentID:  "student-1",
		StreakType: models.StreakType("NAPPING"),
	})
	require.Error(t, err)
}
