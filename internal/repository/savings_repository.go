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

// SavingsRepository persists rate tiers and fixed-term savings accounts.
// Account closure uses a conditional update guarded on ACTIVE, which makes
// the maturity sweep idempotent even when runs overlap.
type SavingsRepository struct {
	db *sqlx.DB
}

// NewSavingsRepository constructs a SavingsRepository.
func NewSavingsRepository(db *sqlx.DB) *SavingsRepository {
	return &SavingsRepository{db: db}
}

const rateColumns = `id, classroom_id, lock_days, interest_rate, min_amount, max_amount, bonus_threshold, bonus_rate, active, created_at`
const accountColumns = `id, classroom_id, student_id, wallet_id, rate_id, amount, lock_days, interest_rate, projected_interest, status, start_date, end_date, final_amount, closed_at, created_at`

// CreateRate inserts a savings tier.
func (r *SavingsRepository) CreateRate(ctx context.Context, rate *models.SavingsRate) error {
	if rate.ID == "" {
		rate.ID = uuid.NewString()
	}
	if rate.CreatedAt.IsZero() {
		rate.CreatedAt = time.Now().UTC()
	}
	rate.Active = true
	const query = `INSERT INTO savings_rates (id, classroom_id, lock_days, interest_rate, min_amount, max_amount, bonus_threshold, bonus_rate, active, created_at)
        VALUES (:id, :classroom_id, :lock_days, :interest_rate, :min_amount, :max_amount, :bonus_threshold, :bonus_rate, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rate); err != nil {
		return fmt.Errorf("create savings rate: %w", err)
	}
	return nil
}

// GetRate fetches a savings tier by identifier.
func (r *SavingsRepository) GetRate(ctx context.Context, id string) (*models.SavingsRate, error) {
	query := fmt.Sprintf("SELECT %s FROM savings_rates WHERE id = $1", rateColumns)
	var rate models.SavingsRate
	if err := r.db.GetContext(ctx, &rate, query, id); err != nil {
		return nil, err
	}
	return &rate, nil
}

// ListRates returns a classroom's active tiers ordered by lock duration.
func (r *SavingsRepository) ListRates(ctx context.Context, classroomID string) ([]models.SavingsRate, error) {
	query := fmt.Sprintf("SELECT %s FROM savings_rates WHERE classroom_id = $1 AND active = true ORDER BY lock_days", rateColumns)
	var rates []models.SavingsRate
	if err := r.db.SelectContext(ctx, &rates, query, classroomID); err != nil {
		return nil, fmt.Errorf("list savings rates: %w", err)
	}
	return rates, nil
}

// DeactivateRate retires a tier; open accounts keep their frozen terms.
func (r *SavingsRepository) DeactivateRate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE savings_rates SET active = false WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deactivate savings rate: %w", err)
	}
	return nil
}

// CreateAccount inserts an ACTIVE savings account.
func (r *SavingsRepository) CreateAccount(ctx context.Context, account *models.SavingsAccount) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.Status = models.SavingsActive
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO savings_accounts (id, classroom_id, student_id, wallet_id, rate_id, amount, lock_days, interest_rate, projected_interest, status, start_date, end_date, created_at)
        VALUES (:id, :classroom_id, :student_id, :wallet_id, :rate_id, :amount, :lock_days, :interest_rate, :projected_interest, :status, :start_date, :end_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("create savings account: %w", err)
	}
	return nil
}

// GetAccount fetches a savings account by identifier.
func (r *SavingsRepository) GetAccount(ctx context.Context, id string) (*models.SavingsAccount, error) {
	query := fmt.Sprintf("SELECT %s FROM savings_accounts WHERE id = $1", accountColumns)
	var account models.SavingsAccount
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		return nil, err
	}
	return &account, nil
}

// ListByStudent returns a student's accounts, newest first.
func (r *SavingsRepository) ListByStudent(ctx context.Context, studentID string) ([]models.SavingsAccount, error) {
	query := fmt.Sprintf("SELECT %s FROM savings_accounts WHERE student_id = $1 ORDER BY created_at DESC", accountColumns)
	var accounts []models.SavingsAccount
	if err := r.db.SelectContext(ctx, &accounts, query, studentID); err != nil {
		return nil, fmt.Errorf("list savings accounts: %w", err)
	}
	return accounts, nil
}

// HasActiveForRate reports whether the student already holds an ACTIVE
// account on the given tier.
func (r *SavingsRepository) HasActiveForRate(ctx context.Context, studentID, rateID string) (bool, error) {
	const query = `SELECT 1 FROM savings_accounts WHERE student_id = $1 AND rate_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, rateID, models.SavingsActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active savings: %w", err)
	}
	return true, nil
}

// ListMatured returns ACTIVE accounts whose lock period elapsed at the
// given instant. Fed to the maturity sweep.
func (r *SavingsRepository) ListMatured(ctx context.Context, asOf time.Time) ([]models.SavingsAccount, error) {
	query := fmt.Sprintf("SELECT %s FROM savings_accounts WHERE status = $1 AND end_date <= $2 ORDER BY end_date", accountColumns)
	var accounts []models.SavingsAccount
	if err := r.db.SelectContext(ctx, &accounts, query, models.SavingsActive, asOf); err != nil {
		return nil, fmt.Errorf("list matured savings: %w", err)
	}
	return accounts, nil
}

// CloseAccount moves an ACTIVE account into a terminal state. Returns
// sql.ErrNoRows when the account was already closed, so a concurrent
// sweep or withdrawal loses cleanly.
func (r *SavingsRepository) CloseAccount(ctx context.Context, id string, status models.SavingsStatus, finalAmount int64, at time.Time) error {
	const query = `UPDATE savings_accounts SET status = $2, final_amount = $3, closed_at = $4
        WHERE id = $1 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, id, status, finalAmount, at, models.SavingsActive)
	if err != nil {
		return fmt.Errorf("close savings account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("close savings rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReopenAccount reverts a closure when the payout transaction failed.
func (r *SavingsRepository) ReopenAccount(ctx context.Context, id string) error {
	const query = `UPDATE savings_accounts SET status = $2, final_amount = NULL, closed_at = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.SavingsActive); err != nil {
		return fmt.Errorf("reopen savings account: %w", err)
	}
	return nil
}

// TotalLocked sums principal held in ACTIVE accounts for a classroom.
func (r *SavingsRepository) TotalLocked(ctx context.Context, classroomID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM savings_accounts WHERE classroom_id = $1 AND status = $2`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, classroomID, models.SavingsActive); err != nil {
		return 0, fmt.Errorf("total locked savings: %w", err)
	}
	return total, nil
}

// CompletedCountByStudent counts COMPLETED accounts, for badge criteria.
func (r *SavingsRepository) CompletedCountByStudent(ctx context.Context, studentID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM savings_accounts WHERE student_id = $1 AND status = $2`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, studentID, models.SavingsCompleted); err != nil {
		return 0, fmt.Errorf("count completed savings: %w", err)
	}
	return count, nil
}
