package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classbank-api/internal/models"
)

// RequestRepository persists purchase and transfer requests. Status changes
// use conditional updates guarded on PENDING so two concurrent reviews of
// the same request cannot both succeed.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs a RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const purchaseColumns = `id, classroom_id, student_id, wallet_id, item_id, item_name, price, message, status, rejection_reason, reviewed_by, reviewed_at, created_at`
const transferColumns = `id, classroom_id, from_student_id, from_wallet_id, to_student_id, to_wallet_id, amount, message, status, rejection_reason, reviewed_by, reviewed_at, created_at`

// CreatePurchase inserts a pending purchase request.
func (r *RequestRepository) CreatePurchase(ctx context.Context, request *models.PurchaseRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.Status = models.RequestPending
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO purchase_requests (id, classroom_id, student_id, wallet_id, item_id, item_name, price, message, status, created_at)
        VALUES (:id, :classroom_id, :student_id, :wallet_id, :item_id, :item_name, :price, :message, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create purchase request: %w", err)
	}
	return nil
}

// GetPurchase fetches a purchase request by identifier.
func (r *RequestRepository) GetPurchase(ctx context.Context, id string) (*models.PurchaseRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM purchase_requests WHERE id = $1", purchaseColumns)
	var request models.PurchaseRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// ListPurchases returns purchase requests matching the filter, newest first.
func (r *RequestRepository) ListPurchases(ctx context.Context, filter models.RequestFilter) ([]models.PurchaseRequest, error) {
	query, args := buildRequestQuery("purchase_requests", purchaseColumns, "student_id", filter)
	var requests []models.PurchaseRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list purchase requests: %w", err)
	}
	return requests, nil
}

// HasPendingPurchase reports whether the student already has a pending
// request for the same item.
func (r *RequestRepository) HasPendingPurchase(ctx context.Context, studentID, itemID string) (bool, error) {
	const query = `SELECT 1 FROM purchase_requests WHERE student_id = $1 AND item_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, itemID, models.RequestPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending purchase: %w", err)
	}
	return true, nil
}

// ResolvePurchase moves a pending purchase request into a terminal state.
// Returns sql.ErrNoRows when the request is not PENDING anymore.
func (r *RequestRepository) ResolvePurchase(ctx context.Context, id string, status models.RequestStatus, reviewedBy *string, reason *string, at time.Time) error {
	const query = `UPDATE purchase_requests
        SET status = $2, reviewed_by = $3, rejection_reason = $4, reviewed_at = $5
        WHERE id = $1 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, id, status, reviewedBy, reason, at, models.RequestPending)
	if err != nil {
		return fmt.Errorf("resolve purchase request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve purchase rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DowngradeApprovedPurchase flips an APPROVED purchase back to REJECTED
// after its settlement failed, recording why.
func (r *RequestRepository) DowngradeApprovedPurchase(ctx context.Context, id, reason string) error {
	const query = `UPDATE purchase_requests SET status = $2, rejection_reason = $3 WHERE id = $1 AND status = $4`
	if _, err := r.db.ExecContext(ctx, query, id, models.RequestRejected, reason, models.RequestApproved); err != nil {
		return fmt.Errorf("downgrade purchase request: %w", err)
	}
	return nil
}

// CreateTransfer inserts a pending transfer request.
func (r *RequestRepository) CreateTransfer(ctx context.Context, request *models.TransferRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.Status = models.RequestPending
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO transfer_requests (id, classroom_id, from_student_id, from_wallet_id, to_student_id, to_wallet_id, amount, message, status, created_at)
        VALUES (:id, :classroom_id, :from_student_id, :from_wallet_id, :to_student_id, :to_wallet_id, :amount, :message, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create transfer request: %w", err)
	}
	return nil
}

// GetTransfer fetches a transfer request by identifier.
func (r *RequestRepository) GetTransfer(ctx context.Context, id string) (*models.TransferRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM transfer_requests WHERE id = $1", transferColumns)
	var request models.TransferRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// ListTransfers returns transfer requests matching the filter, newest first.
func (r *RequestRepository) ListTransfers(ctx context.Context, filter models.RequestFilter) ([]models.TransferRequest, error) {
	query, args := buildRequestQuery("transfer_requests", transferColumns, "from_student_id", filter)
	var requests []models.TransferRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list transfer requests: %w", err)
	}
	return requests, nil
}

// HasPendingTransfer reports whether the student already has a pending
// transfer to the same recipient.
func (r *RequestRepository) HasPendingTransfer(ctx context.Context, fromStudentID, toStudentID string) (bool, error) {
	const query = `SELECT 1 FROM transfer_requests WHERE from_student_id = $1 AND to_student_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, fromStudentID, toStudentID, models.RequestPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending transfer: %w", err)
	}
	return true, nil
}

// ResolveTransfer moves a pending transfer request into a terminal state.
// Returns sql.ErrNoRows when the request is not PENDING anymore.
func (r *RequestRepository) ResolveTransfer(ctx context.Context, id string, status models.RequestStatus, reviewedBy *string, reason *string, at time.Time) error {
	const query = `UPDATE transfer_requests
        SET status = $2, reviewed_by = $3, rejection_reason = $4, reviewed_at = $5
        WHERE id = $1 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, id, status, reviewedBy, reason, at, models.RequestPending)
	if err != nil {
		return fmt.Errorf("resolve transfer request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve transfer rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DowngradeApprovedTransfer flips an APPROVED transfer back to REJECTED
// after its settlement failed, recording why.
func (r *RequestRepository) DowngradeApprovedTransfer(ctx context.Context, id, reason string) error {
	const query = `UPDATE transfer_requests SET status = $2, rejection_reason = $3 WHERE id = $1 AND status = $4`
	if _, err := r.db.ExecContext(ctx, query, id, models.RequestRejected, reason, models.RequestApproved); err != nil {
		return fmt.Errorf("downgrade transfer request: %w", err)
	}
	return nil
}

// CountPending returns the number of pending requests of both kinds for a
// classroom. Used by the pricing engine's pending-demand factor.
func (r *RequestRepository) CountPending(ctx context.Context, classroomID string) (int, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM purchase_requests WHERE classroom_id = $1 AND status = $2) +
        (SELECT COUNT(*) FROM transfer_requests WHERE classroom_id = $1 AND status = $2)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classroomID, models.RequestPending); err != nil {
		return 0, fmt.Errorf("count pending requests: %w", err)
	}
	return count, nil
}

// DemandByItem aggregates approved and pending purchase counts per item
// over the half-open window [since, until). Demand is read from explicit
// request rows, never inferred from transaction descriptions. Pending
// requests are counted regardless of window; they have no review time yet.
func (r *RequestRepository) DemandByItem(ctx context.Context, classroomID string, since, until time.Time) (map[string]models.ItemDemand, error) {
	const query = `SELECT item_id,
        COUNT(*) FILTER (WHERE status = 'APPROVED' AND reviewed_at >= $2 AND reviewed_at < $3) AS approved_count,
        COUNT(*) FILTER (WHERE status = 'PENDING') AS pending_count
        FROM purchase_requests
        WHERE classroom_id = $1 AND (status = 'PENDING' OR (reviewed_at >= $2 AND reviewed_at < $3))
        GROUP BY item_id`
	var rows []models.ItemDemand
	if err := r.db.SelectContext(ctx, &rows, query, classroomID, since, until); err != nil {
		return nil, fmt.Errorf("demand by item: %w", err)
	}
	demand := make(map[string]models.ItemDemand, len(rows))
	for _, row := range rows {
		demand[row.ItemID] = row
	}
	return demand, nil
}

func buildRequestQuery(table, columns, studentColumn string, filter models.RequestFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)

	args = append(args, filter.ClassroomID)
	conditions = append(conditions, fmt.Sprintf("classroom_id = $%d", len(args)))
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", studentColumn, len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		columns, table, strings.Join(conditions, " AND "), size, (page-1)*size)
	return query, args
}
