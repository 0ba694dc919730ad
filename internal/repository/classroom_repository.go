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

// ClassroomRepository manages persistence for classroom economies.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs a ClassroomRepository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// Create inserts a classroom row.
func (r *ClassroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	if classroom.ID == "" {
		classroom.ID = uuid.NewString()
	}
	if classroom.CreatedAt.IsZero() {
		classroom.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO classrooms (id, teacher_id, name, code, currency_name, currency_symbol, treasury_total, treasury_remaining, settings, created_at)
        VALUES (:id, :teacher_id, :name, :code, :currency_name, :currency_symbol, :treasury_total, :treasury_remaining, :settings, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// GetByID fetches a classroom by identifier.
func (r *ClassroomRepository) GetByID(ctx context.Context, id string) (*models.Classroom, error) {
	const query = `SELECT id, teacher_id, name, code, currency_name, currency_symbol, treasury_total, treasury_remaining, settings, last_price_update, created_at
        FROM classrooms WHERE id = $1`
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, query, id); err != nil {
		return nil, err
	}
	return &classroom, nil
}

// GetByCode fetches a classroom by its join code.
func (r *ClassroomRepository) GetByCode(ctx context.Context, code string) (*models.Classroom, error) {
	const query = `SELECT id, teacher_id, name, code, currency_name, currency_symbol, treasury_total, treasury_remaining, settings, last_price_update, created_at
        FROM classrooms WHERE code = $1`
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, query, code); err != nil {
		return nil, err
	}
	return &classroom, nil
}

// ListByTeacher returns every classroom owned by the teacher, newest first.
func (r *ClassroomRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Classroom, error) {
	const query = `SELECT id, teacher_id, name, code, currency_name, currency_symbol, treasury_total, treasury_remaining, settings, last_price_update, created_at
        FROM classrooms WHERE teacher_id = $1 ORDER BY created_at DESC`
	var classrooms []models.Classroom
	if err := r.db.SelectContext(ctx, &classrooms, query, teacherID); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return classrooms, nil
}

// CodeExists reports whether a join code is already taken.
func (r *ClassroomRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM classrooms WHERE code = $1 LIMIT 1", code)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check classroom code: %w", err)
	}
	return true, nil
}

// UpdateSettings replaces the settings document.
func (r *ClassroomRepository) UpdateSettings(ctx context.Context, id string, settings models.ClassroomSettings) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE classrooms SET settings = $2 WHERE id = $1`, id, settings); err != nil {
		return fmt.Errorf("update classroom settings: %w", err)
	}
	return nil
}

// SetLastPriceUpdate stamps the most recent pricing pass.
func (r *ClassroomRepository) SetLastPriceUpdate(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE classrooms SET last_price_update = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("set last price update: %w", err)
	}
	return nil
}

// ListIDs returns every classroom identifier, for sweep scheduling.
func (r *ClassroomRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, "SELECT id FROM classrooms ORDER BY created_at"); err != nil {
		return nil, fmt.Errorf("list classroom ids: %w", err)
	}
	return ids, nil
}
