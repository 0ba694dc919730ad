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

// MarketRepository manages market items and daily economic snapshots.
type MarketRepository struct {
	db *sqlx.DB
}

// NewMarketRepository constructs a MarketRepository.
func NewMarketRepository(db *sqlx.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

const itemColumns = `id, classroom_id, name, description, category, type, base_price, current_price, stock, goal_amount, funded_amount, active, price_updated_at, created_at`

// CreateItem inserts a market item. CurrentPrice starts at BasePrice.
func (r *MarketRepository) CreateItem(ctx context.Context, item *models.MarketItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CurrentPrice == 0 {
		item.CurrentPrice = item.BasePrice
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.Active = true
	const query = `INSERT INTO market_items (id, classroom_id, name, description, category, type, base_price, current_price, stock, goal_amount, funded_amount, active, created_at)
        VALUES (:id, :classroom_id, :name, :description, :category, :type, :base_price, :current_price, :stock, :goal_amount, :funded_amount, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create market item: %w", err)
	}
	return nil
}

// GetItem fetches a market item by identifier.
func (r *MarketRepository) GetItem(ctx context.Context, id string) (*models.MarketItem, error) {
	query := fmt.Sprintf("SELECT %s FROM market_items WHERE id = $1", itemColumns)
	var item models.MarketItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems returns a classroom's items, optionally only active ones.
func (r *MarketRepository) ListItems(ctx context.Context, classroomID string, activeOnly bool) ([]models.MarketItem, error) {
	query := fmt.Sprintf("SELECT %s FROM market_items WHERE classroom_id = $1", itemColumns)
	if activeOnly {
		query += " AND active = true"
	}
	query += " ORDER BY category, name"
	var items []models.MarketItem
	if err := r.db.SelectContext(ctx, &items, query, classroomID); err != nil {
		return nil, fmt.Errorf("list market items: %w", err)
	}
	return items, nil
}

// UpdateItem modifies the teacher-editable fields of an item.
func (r *MarketRepository) UpdateItem(ctx context.Context, item *models.MarketItem) error {
	const query = `UPDATE market_items SET name = :name, description = :description, category = :category,
        base_price = :base_price, stock = :stock, goal_amount = :goal_amount, active = :active
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("update market item: %w", err)
	}
	return nil
}

// DecrementStock atomically consumes one unit. A nil stock column means
// unlimited supply and always succeeds. Returns sql.ErrNoRows when the
// item is sold out.
func (r *MarketRepository) DecrementStock(ctx context.Context, id string) error {
	const query = `UPDATE market_items SET stock = stock - 1 WHERE id = $1 AND (stock IS NULL OR stock > 0)`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementStock restores one unit, compensating a failed settlement.
func (r *MarketRepository) IncrementStock(ctx context.Context, id string) error {
	const query = `UPDATE market_items SET stock = stock + 1 WHERE id = $1 AND stock IS NOT NULL`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	return nil
}

// AddFunding accumulates a collective contribution on an item.
func (r *MarketRepository) AddFunding(ctx context.Context, id string, amount int64) (int64, error) {
	const query = `UPDATE market_items SET funded_amount = funded_amount + $2 WHERE id = $1 RETURNING funded_amount`
	var funded int64
	if err := r.db.GetContext(ctx, &funded, query, id, amount); err != nil {
		return 0, fmt.Errorf("add funding: %w", err)
	}
	return funded, nil
}

// UpdatePrice stamps a new dynamic price on an item.
func (r *MarketRepository) UpdatePrice(ctx context.Context, id string, price int64, at time.Time) error {
	const query = `UPDATE market_items SET current_price = $2, price_updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, price, at); err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	return nil
}

// AveragePriceRatio returns the mean current/base price ratio over active
// items, the classroom's price index. Returns 1 when there are no items.
func (r *MarketRepository) AveragePriceRatio(ctx context.Context, classroomID string) (float64, error) {
	const query = `SELECT COALESCE(AVG(current_price::float / NULLIF(base_price, 0)), 1)
        FROM market_items WHERE classroom_id = $1 AND active = true`
	var ratio float64
	if err := r.db.GetContext(ctx, &ratio, query, classroomID); err != nil {
		return 0, fmt.Errorf("average price ratio: %w", err)
	}
	return ratio, nil
}

// AverageCurrentPrice returns the mean current price of active individual
// items, 0 when the market is empty.
func (r *MarketRepository) AverageCurrentPrice(ctx context.Context, classroomID string) (float64, error) {
	const query = `SELECT COALESCE(AVG(current_price), 0) FROM market_items
        WHERE classroom_id = $1 AND active = true AND type = $2`
	var avg float64
	if err := r.db.GetContext(ctx, &avg, query, classroomID, models.ItemIndividual); err != nil {
		return 0, fmt.Errorf("average current price: %w", err)
	}
	return avg, nil
}

// SaveSnapshot upserts the daily economic snapshot for a classroom. A
// second run on the same day overwrites rather than duplicates.
func (r *MarketRepository) SaveSnapshot(ctx context.Context, snapshot *models.EconomicSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO economic_snapshots (id, classroom_id, snapshot_date, circulating_supply, treasury_remaining, avg_price_index, avg_balance, active_students, created_at)
        VALUES (:id, :classroom_id, :snapshot_date, :circulating_supply, :treasury_remaining, :avg_price_index, :avg_balance, :active_students, :created_at)
        ON CONFLICT (classroom_id, snapshot_date) DO UPDATE SET
        circulating_supply = EXCLUDED.circulating_supply,
        treasury_remaining = EXCLUDED.treasury_remaining,
        avg_price_index = EXCLUDED.avg_price_index,
        avg_balance = EXCLUDED.avg_balance,
        active_students = EXCLUDED.active_students`
	if _, err := r.db.NamedExecContext(ctx, query, snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// SnapshotBefore returns the most recent snapshot taken on or before the
// given date, for inflation comparisons against a past baseline.
func (r *MarketRepository) SnapshotBefore(ctx context.Context, classroomID string, date time.Time) (*models.EconomicSnapshot, error) {
	const query = `SELECT id, classroom_id, snapshot_date, circulating_supply, treasury_remaining, avg_price_index, avg_balance, active_students, created_at
        FROM economic_snapshots WHERE classroom_id = $1 AND snapshot_date <= $2
        ORDER BY snapshot_date DESC LIMIT 1`
	var snapshot models.EconomicSnapshot
	if err := r.db.GetContext(ctx, &snapshot, query, classroomID, date); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
