package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classbank-api/internal/models"
)

// WalletRepository reads wallet state. All balance mutations go through the
// ledger repository so that every movement leaves a transaction row.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository constructs a WalletRepository.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetByID fetches a wallet by identifier.
func (r *WalletRepository) GetByID(ctx context.Context, id string) (*models.Wallet, error) {
	const query = `SELECT id, student_id, classroom_id, balance, created_at, updated_at FROM wallets WHERE id = $1`
	var wallet models.Wallet
	if err := r.db.GetContext(ctx, &wallet, query, id); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetByStudent fetches the wallet owned by a student.
func (r *WalletRepository) GetByStudent(ctx context.Context, studentID string) (*models.Wallet, error) {
	const query = `SELECT id, student_id, classroom_id, balance, created_at, updated_at FROM wallets WHERE student_id = $1`
	var wallet models.Wallet
	if err := r.db.GetContext(ctx, &wallet, query, studentID); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Balances returns every active member's balance in a classroom. Used by
// the indicator engine, which needs the full distribution.
func (r *WalletRepository) Balances(ctx context.Context, classroomID string) ([]int64, error) {
	const query = `SELECT w.balance FROM wallets w
        JOIN students s ON s.id = w.student_id
        WHERE w.classroom_id = $1 AND s.active = true`
	var balances []int64
	if err := r.db.SelectContext(ctx, &balances, query, classroomID); err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return balances, nil
}

// Leaderboard returns the top balances in a classroom, highest first.
func (r *WalletRepository) Leaderboard(ctx context.Context, classroomID string, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT s.id AS student_id, s.name AS student_name, w.balance
        FROM wallets w JOIN students s ON s.id = w.student_id
        WHERE w.classroom_id = $1 AND s.active = true
        ORDER BY w.balance DESC, s.name ASC LIMIT %d`, limit)
	var entries []models.LeaderboardEntry
	if err := r.db.SelectContext(ctx, &entries, query, classroomID); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
