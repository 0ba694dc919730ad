package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classbank-api/internal/models"
)

// StreakRepository persists per-student activity streaks and the milestone
// reward table.
type StreakRepository struct {
	db *sqlx.DB
}

// NewStreakRepository constructs a StreakRepository.
func NewStreakRepository(db *sqlx.DB) *StreakRepository {
	return &StreakRepository{db: db}
}

const streakColumns = `id, classroom_id, student_id, streak_type, current_streak, best_streak, total_count, last_activity_date, updated_at`

// Get fetches one streak row, or sql.ErrNoRows when the student has never
// recorded this activity type.
func (r *StreakRepository) Get(ctx context.Context, studentID string, streakType models.StreakType) (*models.StudentStreak, error) {
	query := fmt.Sprintf("SELECT %s FROM student_streaks WHERE student_id = $1 AND streak_type = $2", streakColumns)
	var streak models.StudentStreak
	if err := r.db.GetContext(ctx, &streak, query, studentID, streakType); err != nil {
		return nil, err
	}
	return &streak, nil
}

// ListByStudent returns all of a student's streaks.
func (r *StreakRepository) ListByStudent(ctx context.Context, studentID string) ([]models.StudentStreak, error) {
	query := fmt.Sprintf("SELECT %s FROM student_streaks WHERE student_id = $1 ORDER BY streak_type", streakColumns)
	var streaks []models.StudentStreak
	if err := r.db.SelectContext(ctx, &streaks, query, studentID); err != nil {
		return nil, fmt.Errorf("list streaks: %w", err)
	}
	return streaks, nil
}

// Upsert writes a streak row keyed on (student, streak_type).
func (r *StreakRepository) Upsert(ctx context.Context, streak *models.StudentStreak) error {
	if streak.ID == "" {
		streak.ID = uuid.NewString()
	}
	streak.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO student_streaks (id, classroom_id, student_id, streak_type, current_streak, best_streak, total_count, last_activity_date, updated_at)
        VALUES (:id, :classroom_id, :student_id, :streak_type, :current_streak, :best_streak, :total_count, :last_activity_date, :updated_at)
        ON CONFLICT (student_id, streak_type) DO UPDATE SET
        current_streak = EXCLUDED.current_streak,
        best_streak = EXCLUDED.best_streak,
        total_count = EXCLUDED.total_count,
        last_activity_date = EXCLUDED.last_activity_date,
        updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, streak); err != nil {
		return fmt.Errorf("upsert streak: %w", err)
	}
	return nil
}

// GetReward fetches the active reward for an exact milestone, or
// sql.ErrNoRows when the streak length carries no bonus.
func (r *StreakRepository) GetReward(ctx context.Context, classroomID string, streakType models.StreakType, milestone int) (*models.StreakReward, error) {
	const query = `SELECT id, classroom_id, streak_type, milestone, reward_amount, reward_name, active
        FROM streak_rewards
        WHERE classroom_id = $1 AND streak_type = $2 AND milestone = $3 AND active = true`
	var reward models.StreakReward
	if err := r.db.GetContext(ctx, &reward, query, classroomID, streakType, milestone); err != nil {
		return nil, err
	}
	return &reward, nil
}

// ListRewards returns a classroom's reward table ordered by milestone.
func (r *StreakRepository) ListRewards(ctx context.Context, classroomID string) ([]models.StreakReward, error) {
	const query = `SELECT id, classroom_id, streak_type, milestone, reward_amount, reward_name, active
        FROM streak_rewards WHERE classroom_id = $1 ORDER BY streak_type, milestone`
	var rewards []models.StreakReward
	if err := r.db.SelectContext(ctx, &rewards, query, classroomID); err != nil {
		return nil, fmt.Errorf("list streak rewards: %w", err)
	}
	return rewards, nil
}

// SeedRewards installs the default milestone table for every streak type
// in one transaction. Called once at classroom creation.
func (r *StreakRepository) SeedRewards(ctx context.Context, classroomID string, types []models.StreakType) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed rewards: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO streak_rewards (id, classroom_id, streak_type, milestone, reward_amount, reward_name, active)
        VALUES ($1, $2, $3, $4, $5, $6, true)`
	for _, streakType := range types {
		for _, m := range models.DefaultStreakMilestones {
			name := fmt.Sprintf("%d-day %s streak", m.Milestone, streakType)
			if _, err := tx.ExecContext(ctx, query, uuid.NewString(), classroomID, streakType, m.Milestone, m.Reward, name); err != nil {
				return fmt.Errorf("seed streak reward: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed rewards: %w", err)
	}
	return nil
}

// BestStreak returns the student's best run for a type, 0 when absent.
func (r *StreakRepository) BestStreak(ctx context.Context, studentID string, streakType models.StreakType) (int, error) {
	const query = `SELECT best_streak FROM student_streaks WHERE student_id = $1 AND streak_type = $2`
	var best int
	if err := r.db.GetContext(ctx, &best, query, studentID, streakType); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("best streak: %w", err)
	}
	return best, nil
}
