package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classbank-api/internal/models"
)

// BadgeRepository persists badge definitions and unlocks.
type BadgeRepository struct {
	db *sqlx.DB
}

// NewBadgeRepository constructs a BadgeRepository.
func NewBadgeRepository(db *sqlx.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

const badgeColumns = `id, classroom_id, code, name, description, icon, criteria, threshold, streak_type, rarity, reward_amount, active, created_at`

// Create inserts a badge definition.
func (r *BadgeRepository) Create(ctx context.Context, badge *models.Badge) error {
	if badge.ID == "" {
		badge.ID = uuid.NewString()
	}
	if badge.CreatedAt.IsZero() {
		badge.CreatedAt = time.Now().UTC()
	}
	badge.Active = true
	const query = `INSERT INTO badges (id, classroom_id, code, name, description, icon, criteria, threshold, streak_type, rarity, reward_amount, active, created_at)
        VALUES (:id, :classroom_id, :code, :name, :description, :icon, :criteria, :threshold, :streak_type, :rarity, :reward_amount, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, badge); err != nil {
		return fmt.Errorf("create badge: %w", err)
	}
	return nil
}

// ListForClassroom returns active badges available to a classroom: its own
// plus the built-in set with no classroom binding.
func (r *BadgeRepository) ListForClassroom(ctx context.Context, classroomID string) ([]models.Badge, error) {
	query := fmt.Sprintf(`SELECT %s FROM badges
        WHERE active = true AND (classroom_id = $1 OR classroom_id IS NULL)
        ORDER BY rarity, name`, badgeColumns)
	var badges []models.Badge
	if err := r.db.SelectContext(ctx, &badges, query, classroomID); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return badges, nil
}

// ListUnlocked returns a student's earned badges, newest first.
func (r *BadgeRepository) ListUnlocked(ctx context.Context, studentID string) ([]models.StudentBadge, error) {
	const query = `SELECT sb.id, sb.student_id, sb.badge_id, sb.classroom_id, b.code AS badge_code, b.name AS badge_name, sb.unlocked_at
        FROM student_badges sb JOIN badges b ON b.id = sb.badge_id
        WHERE sb.student_id = $1 ORDER BY sb.unlocked_at DESC`
	var unlocked []models.StudentBadge
	if err := r.db.SelectContext(ctx, &unlocked, query, studentID); err != nil {
		return nil, fmt.Errorf("list unlocked badges: %w", err)
	}
	return unlocked, nil
}

// UnlockedIDs returns the set of badge IDs a student already holds.
func (r *BadgeRepository) UnlockedIDs(ctx context.Context, studentID string) (map[string]bool, error) {
	var ids []string
	const query = `SELECT badge_id FROM student_badges WHERE student_id = $1`
	if err := r.db.SelectContext(ctx, &ids, query, studentID); err != nil {
		return nil, fmt.Errorf("unlocked badge ids: %w", err)
	}
	held := make(map[string]bool, len(ids))
	for _, id := range ids {
		held[id] = true
	}
	return held, nil
}

// Unlock records a badge grant. The (student, badge) unique constraint
// makes the grant idempotent; the bool result reports whether this call
// actually inserted the row.
func (r *BadgeRepository) Unlock(ctx context.Context, grant *models.StudentBadge) (bool, error) {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.UnlockedAt.IsZero() {
		grant.UnlockedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_badges (id, student_id, badge_id, classroom_id, unlocked_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (student_id, badge_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, grant.ID, grant.StudentID, grant.BadgeID, grant.ClassroomID, grant.UnlockedAt)
	if err != nil {
		return false, fmt.Errorf("unlock badge: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unlock badge rows: %w", err)
	}
	return rows > 0, nil
}
