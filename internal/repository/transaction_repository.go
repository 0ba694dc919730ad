package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classbank-api/internal/models"
)

// TransactionRepository reads the immutable ledger.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository constructs a TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, classroom_id, from_wallet_id, to_wallet_id, amount, type, reason, item_id, created_by, created_at`

// List returns ledger entries matching the filter, newest first, plus the
// total match count for pagination.
func (r *TransactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int64, error) {
	filter.Normalize()

	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 4)

	args = append(args, filter.ClassroomID)
	conditions = append(conditions, fmt.Sprintf("classroom_id = $%d", len(args)))

	if filter.WalletID != "" {
		args = append(args, filter.WalletID)
		conditions = append(conditions, fmt.Sprintf("(from_wallet_id = $%d OR to_wallet_id = $%d)", len(args), len(args)))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			args = append(args, t)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}

	where := strings.Join(conditions, " AND ")
	offset := (filter.Page - 1) * filter.PageSize
	query := fmt.Sprintf("SELECT %s FROM transactions WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		transactionColumns, where, filter.PageSize, offset)

	var transactions []models.Transaction
	if err := r.db.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions WHERE %s", where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	return transactions, total, nil
}

// VolumeSince sums spending-side flow for the velocity indicator. Only
// purchases, transfers and contributions count as circulation.
func (r *TransactionRepository) VolumeSince(ctx context.Context, classroomID string, since time.Time) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM transactions
        WHERE classroom_id = $1 AND created_at >= $2 AND type IN ($3, $4, $5)`
	var volume int64
	err := r.db.GetContext(ctx, &volume, query, classroomID, since,
		models.TransactionPurchase, models.TransactionTransfer, models.TransactionContribution)
	if err != nil {
		return 0, fmt.Errorf("transaction volume: %w", err)
	}
	return volume, nil
}

// CountByWallet returns how many ledger entries touch a wallet. Used by
// badge criteria on transaction activity.
func (r *TransactionRepository) CountByWallet(ctx context.Context, walletID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM transactions WHERE from_wallet_id = $1 OR to_wallet_id = $1`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, walletID); err != nil {
		return 0, fmt.Errorf("count wallet transactions: %w", err)
	}
	return count, nil
}

// ActiveWalletsSince counts distinct wallets that moved coins in a window.
// Feeds the participation rate indicator.
func (r *TransactionRepository) ActiveWalletsSince(ctx context.Context, classroomID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(DISTINCT wallet_id) FROM (
        SELECT from_wallet_id AS wallet_id FROM transactions WHERE classroom_id = $1 AND created_at >= $2 AND from_wallet_id IS NOT NULL
        UNION
        SELECT to_wallet_id FROM transactions WHERE classroom_id = $1 AND created_at >= $2 AND to_wallet_id IS NOT NULL
        ) moved`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classroomID, since); err != nil {
		return 0, fmt.Errorf("active wallets: %w", err)
	}
	return count, nil
}

// ListForStatement returns every entry touching a wallet in a date range,
// oldest first, for CSV and PDF statement exports.
func (r *TransactionRepository) ListForStatement(ctx context.Context, walletID string, since, until time.Time) ([]models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions
        WHERE (from_wallet_id = $1 OR to_wallet_id = $1) AND created_at >= $2 AND created_at < $3
        ORDER BY created_at ASC`, transactionColumns)
	var transactions []models.Transaction
	if err := r.db.SelectContext(ctx, &transactions, query, walletID, since, until); err != nil {
		return nil, fmt.Errorf("list statement transactions: %w", err)
	}
	return transactions, nil
}
