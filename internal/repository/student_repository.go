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

// StudentRepository manages persistence for classroom members.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// CreateWithWallet inserts a student and its wallet in one transaction so a
// member can never exist without a wallet.
func (r *StudentRepository) CreateWithWallet(ctx context.Context, student *models.Student) (*models.Wallet, error) {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.JoinedAt.IsZero() {
		student.JoinedAt = time.Now().UTC()
	}
	student.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create student: %w", err)
	}
	defer tx.Rollback()

	const insertStudent = `INSERT INTO students (id, classroom_id, name, pin_hash, active, joined_at)
        VALUES (:id, :classroom_id, :name, :pin_hash, :active, :joined_at)`
	if _, err := tx.NamedExecContext(ctx, insertStudent, student); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}

	wallet := &models.Wallet{
		ID:          uuid.NewString(),
		StudentID:   student.ID,
		ClassroomID: student.ClassroomID,
		Balance:     0,
		CreatedAt:   student.JoinedAt,
		UpdatedAt:   student.JoinedAt,
	}
	const insertWallet = `INSERT INTO wallets (id, student_id, classroom_id, balance, created_at, updated_at)
        VALUES (:id, :student_id, :classroom_id, :balance, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertWallet, wallet); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create student: %w", err)
	}
	return wallet, nil
}

// GetByID fetches a student by identifier.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, classroom_id, name, pin_hash, active, joined_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// GetByName fetches a student by display name within a classroom.
func (r *StudentRepository) GetByName(ctx context.Context, classroomID, name string) (*models.Student, error) {
	const query = `SELECT id, classroom_id, name, pin_hash, active, joined_at
        FROM students WHERE classroom_id = $1 AND LOWER(name) = LOWER($2)`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, classroomID, name); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListByClassroom returns active members with their wallet balances.
func (r *StudentRepository) ListByClassroom(ctx context.Context, classroomID string) ([]models.StudentWithBalance, error) {
	const query = `SELECT s.id, s.classroom_id, s.name, s.pin_hash, s.active, s.joined_at,
        w.id AS wallet_id, w.balance
        FROM students s JOIN wallets w ON w.student_id = s.id
        WHERE s.classroom_id = $1 AND s.active = true
        ORDER BY s.name`
	var students []models.StudentWithBalance
	if err := r.db.SelectContext(ctx, &students, query, classroomID); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// CountActive returns the number of active members in a classroom.
func (r *StudentRepository) CountActive(ctx context.Context, classroomID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM students WHERE classroom_id = $1 AND active = true`
	if err := r.db.GetContext(ctx, &count, query, classroomID); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// NameExists reports whether a display name is taken within a classroom.
func (r *StudentRepository) NameExists(ctx context.Context, classroomID, name string) (bool, error) {
	var exists int
	const query = `SELECT 1 FROM students WHERE classroom_id = $1 AND LOWER(name) = LOWER($2) LIMIT 1`
	if err := r.db.GetContext(ctx, &exists, query, classroomID, name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student name: %w", err)
	}
	return true, nil
}

// Deactivate marks a student as inactive without removing ledger history.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE students SET active = false WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}
