package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	"github.com/noah-isme/classbank-api/internal/repository"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
)

type requestStore interface {
	CreatePurchase(ctx context.Context, request *models.PurchaseRequest) error
	GetPurchase(ctx context.Context, id string) (*models.PurchaseRequest, error)
	ListPurchases(ctx context.Context, filter models.RequestFilter) ([]models.PurchaseRequest, error)
	HasPendingPurchase(ctx context.Context, studentID, itemID string) (bool, error)
	ResolvePurchase(ctx context.Context, id string, status models.RequestStatus, reviewedBy *string, reason *string, at time.Time) error
	DowngradeApprovedPurchase(ctx context.Context, id, reason string) error
	CreateTransfer(ctx context.Context, request *models.TransferRequest) error
	GetTransfer(ctx context.Context, id string) (*models.TransferRequest, error)
	ListTransfers(ctx context.Context, filter models.RequestFilter) ([]models.TransferRequest, error)
	HasPendingTransfer(ctx context.Context, fromStudentID, toStudentID string) (bool, error)
	ResolveTransfer(ctx context.Context, id string, status models.RequestStatus, reviewedBy *string, reason *string, at time.Time) error
	DowngradeApprovedTransfer(ctx context.Context, id, reason string) error
}

type approvalLedger interface {
	Transfer(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error)
	Spend(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error)
}

type approvalMarket interface {
	GetItem(ctx context.Context, id string) (*models.MarketItem, error)
	DecrementStock(ctx context.Context, id string) error
	IncrementStock(ctx context.Context, id string) error
}

type approvalWallets interface {
	GetByStudent(ctx context.Context, studentID string) (*models.Wallet, error)
}

type approvalStudents interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
}

type approvalClassrooms interface {
	GetByID(ctx context.Context, id string) (*models.Classroom, error)
}

// ApprovalService runs the request workflow: students submit purchase and
// transfer requests, teachers resolve them, and settlement happens only at
// approval time against the balances of that moment. Submission-time checks
// are advisory; the ledger's guarded updates are the source of truth.
type ApprovalService struct {
	requests   requestStore
	ledger     approvalLedger
	market     approvalMarket
	wallets    approvalWallets
	students   approvalStudents
	classrooms approvalClassrooms
	cache      ledgerCache
	logger     *zap.Logger

	clock        Clock
	cancelWindow time.Duration
}

// ApprovalServiceOption configures the service.
type ApprovalServiceOption func(*ApprovalService)

// WithApprovalClock overrides the time source.
func WithApprovalClock(clock Clock) ApprovalServiceOption {
	return func(s *ApprovalService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithCancelWindow overrides how long students may cancel a pending request.
func WithCancelWindow(window time.Duration) ApprovalServiceOption {
	return func(s *ApprovalService) {
		if window > 0 {
			s.cancelWindow = window
		}
	}
}

// NewApprovalService constructs an ApprovalService.
func NewApprovalService(requests requestStore, ledger approvalLedger, market approvalMarket, wallets approvalWallets, students approvalStudents, classrooms approvalClassrooms, cache ledgerCache, logger *zap.Logger, opts ...ApprovalServiceOption) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ApprovalService{
		requests:     requests,
		ledger:       ledger,
		market:       market,
		wallets:      wallets,
		students:     students,
		classrooms:   classrooms,
		cache:        cache,
		logger:       logger,
		clock:        systemClock,
		cancelWindow: time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// SubmitPurchase creates a pending purchase request with the item's price
// frozen at submission time.
func (s *ApprovalService) SubmitPurchase(ctx context.Context, classroomID, studentID string, req dto.SubmitPurchaseRequest) (*models.PurchaseRequest, error) {
	item, err := s.market.GetItem(ctx, req.ItemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load item")
	}
	if item.ClassroomID != classroomID || !item.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "item not available")
	}
	if item.Type != models.ItemIndividual {
		return nil, appErrors.Clone(appErrors.ErrValidation, "collective goals are funded with contributions, not purchases")
	}
	if !item.InStock() {
		return nil, appErrors.Clone(appErrors.ErrOutOfStock, "item is sold out")
	}

	wallet, err := s.wallets.GetByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load wallet")
	}
	if wallet.Balance < item.CurrentPrice {
		return nil, appErrors.Clone(appErrors.ErrInsufficientBalance, "balance does not cover the current price")
	}

	pending, err := s.requests.HasPendingPurchase(ctx, studentID, item.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "a pending request for this item already exists")
	}

	request := &models.PurchaseRequest{
		ClassroomID: classroomID,
		StudentID:   studentID,
		WalletID:    wallet.ID,
		ItemID:      item.ID,
		ItemName:    item.Name,
		Price:       item.CurrentPrice,
		Message:     req.Message,
		CreatedAt:   s.clock(),
	}
	if err := s.requests.CreatePurchase(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create purchase request")
	}
	return request, nil
}

// ApprovePurchase resolves a pending purchase and settles it. The request
// is claimed first so a second reviewer loses cleanly; stock and balance
// failures downgrade the claim to a rejection with a recorded reason.
func (s *ApprovalService) ApprovePurchase(ctx context.Context, teacherID, requestID string) (*models.PurchaseRequest, error) {
	request, err := s.loadPurchase(ctx, requestID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if err := s.requests.ResolvePurchase(ctx, requestID, models.RequestApproved, &teacherID, nil, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "request is no longer pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve request")
	}

	if err := s.market.DecrementStock(ctx, request.ItemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.downgradePurchase(ctx, requestID, "item sold out before approval")
			return nil, appErrors.Clone(appErrors.ErrOutOfStock, "item sold out before approval")
		}
		s.downgradePurchase(ctx, requestID, "stock update failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve stock")
	}

	_, err = s.ledger.Spend(ctx, repository.LedgerEntry{
		ClassroomID:  request.ClassroomID,
		FromWalletID: &request.WalletID,
		Amount:       request.Price,
		Type:         models.TransactionPurchase,
		Reason:       fmt.Sprintf("purchase: %s", request.ItemName),
		ItemID:       &request.ItemID,
		CreatedBy:    &teacherID,
	})
	if err != nil {
		if restoreErr := s.market.IncrementStock(ctx, request.ItemID); restoreErr != nil {
			s.logger.Error("failed to restore stock after settlement failure",
				zap.String("item_id", request.ItemID), zap.Error(restoreErr))
		}
		if errors.Is(err, repository.ErrInsufficientBalance) {
			s.downgradePurchase(ctx, requestID, "insufficient balance at approval")
			return nil, appErrors.Clone(appErrors.ErrInsufficientBalance, "student balance no longer covers the price")
		}
		s.downgradePurchase(ctx, requestID, "settlement failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle purchase")
	}

	s.invalidate(ctx, request.ClassroomID)
	s.logger.Info("purchase approved",
		zap.String("request_id", requestID),
		zap.String("item_id", request.ItemID),
		zap.Int64("price", request.Price))
	return s.loadPurchase(ctx, requestID)
}

// RejectPurchase resolves a pending purchase without settlement.
func (s *ApprovalService) RejectPurchase(ctx context.Context, teacherID, requestID string, req dto.RejectRequest) (*models.PurchaseRequest, error) {
	if err := s.requests.ResolvePurchase(ctx, requestID, models.RequestRejected, &teacherID, &req.Reason, s.clock()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "request is no longer pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject request")
	}
	return s.loadPurchase(ctx, requestID)
}

// CancelPurchase lets the requesting student withdraw a pending purchase
// within the cancellation window.
func (s *ApprovalService) CancelPurchase(ctx context.Context, studentID, requestID string) (*models.PurchaseRequest, error) {
	request, err := s.loadPurchase(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}
	now := s.clock()
	if now.Sub(request.CreatedAt) > s.cancelWindow {
		return nil, appErrors.Clone(appErrors.ErrWindowExpired, "the cancellation window has closed")
	}
	if err := s.requests.ResolvePurchase(ctx, requestID, models.RequestCancelled, nil, nil, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "request is no longer pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}
	return s.loadPurchase(ctx, requestID)
}

// SubmitTransfer creates a pending peer transfer request.
func (s *ApprovalService) SubmitTransfer(ctx context.Context, classroomID, studentID string, req dto.SubmitTransferRequest) (*models.TransferRequest, error) {
	if req.Amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "transfer amount must be positive")
	}
	if req.ToStudentID == studentID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot transfer to yourself")
	}

	classroom, err := s.classrooms.GetByID(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	if !classroom.Settings.AllowP2PTransfers {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "peer transfers are disabled in this classroom")
	}
	if max := classroom.Settings.MaxTransferAmount; max != nil && req.Amount > *max {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, fmt.Sprintf("transfers are capped at %d", *max))
	}

	recipient, err := s.students.GetByID(ctx, req.ToStudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}
	if recipient.ClassroomID != classroomID || !recipient.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient is not an active member of this classroom")
	}

	fromWallet, err := s.wallets.GetByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load wallet")
	}
	if fromWallet.Balance < req.Amount {
		return nil, appErrors.Clone(appErrors.ErrInsufficientBalance, "balance does not cover the transfer")
	}
	toWallet, err := s.wallets.GetByStudent(ctx, req.ToStudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient wallet")
	}

	pending, err := s.requests.HasPendingTransfer(ctx, studentID, req.ToStudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "a pending transfer to this student already exists")
	}

	request := &models.TransferRequest{
		ClassroomID:   classroomID,
		FromStudentID: studentID,
		FromWalletID:  fromWallet.ID,
		ToStudentID:   req.ToStudentID,
		ToWalletID:    toWallet.ID,
		Amount:        req.Amount,
		Message:       req.Message,
		CreatedAt:     s.clock(),
	}
	if err := s.requests.CreateTransfer(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create transfer request")
	}
	return request, nil
}

// ApproveTransfer resolves a pending transfer and settles it wallet to
// wallet. A sender whose balance dropped below the amount since submission
// gets the request rejected instead.
func (s *ApprovalService) ApproveTransfer(ctx context.Context, teacherID, requestID string) (*models.TransferRequest, error) {
	request, err := s.loadTransfer(ctx, requestID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if err := s.requests.ResolveTransfer(ctx, requestID, models.RequestApproved, &teacherID, nil, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "request is no longer pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve request")
	}

	reason := "peer transfer"
	if request.Message != nil && *request.Message != "" {
		reason = *request.Message
	}
	_, err = s.ledger.Transfer(ctx, repository.LedgerEntry{
		ClassroomID:  request.ClassroomID,
		FromWalletID: &request.FromWalletID,
		ToWalletID:   &request.ToWalletID,
		Amount:       request.Amount,
		Type:         models.TransactionTransfer,
		Reason:       reason,
		CreatedBy:    &teacherID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			s.downgradeTransfer(ctx, requestID, "insufficient balance at approval")
			return nil, appErrors.Clone(appErrors.ErrInsufficientBalance, "sender balance no longer covers the transfer")
		}
		s.downgradeTransfer(ctx, requestID, "settlement failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle transfer")
	}

	s.invalidate(ctx, request.ClassroomID)
	return s.loadTransfer(ctx, requestID)
}

// RejectTransfer resolves a pending transfer without settlement.
func (s *ApprovalService) RejectTransfer(ctx context.Context, teacherID, requestID string, req dto.RejectRequest) (*models.TransferRequest, error) {
	if err := s.requests.ResolveTransfer(ctx, requestID, models.RequestRejected, &teacherID, &req.Reason, s.clock()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "request is no longer pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject request")
	}
	return s.loadTransfer(ctx, requestID)
}

// CancelTransfer lets the sender withdraw a pending transfer within the
// cancellation window.
func (s *ApprovalService) CancelTransfer(ctx context.Context, studentID, requestID string) (*models.TransferRequest, error) {
	request, err := s.loadTransfer(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.FromStudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}
	now := s.clock()
	if now.Sub(request.CreatedAt) > s.cancelWindow {
		return nil, appErrors.Clone(appErrors.ErrWindowExpired, "the cancellation window has closed")
	}
	if err := s.requests.ResolveTransfer(ctx, requestID, models.RequestCancelled, nil, nil, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "request is no longer pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}
	return s.loadTransfer(ctx, requestID)
}

// ListPurchases returns purchase requests for a classroom or student.
func (s *ApprovalService) ListPurchases(ctx context.Context, filter models.RequestFilter) ([]models.PurchaseRequest, error) {
	requests, err := s.requests.ListPurchases(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list purchase requests")
	}
	return requests, nil
}

// ListTransfers returns transfer requests for a classroom or student.
func (s *ApprovalService) ListTransfers(ctx context.Context, filter models.RequestFilter) ([]models.TransferRequest, error) {
	requests, err := s.requests.ListTransfers(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transfer requests")
	}
	return requests, nil
}

func (s *ApprovalService) loadPurchase(ctx context.Context, id string) (*models.PurchaseRequest, error) {
	request, err := s.requests.GetPurchase(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "purchase request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load purchase request")
	}
	return request, nil
}

func (s *ApprovalService) loadTransfer(ctx context.Context, id string) (*models.TransferRequest, error) {
	request, err := s.requests.GetTransfer(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transfer request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transfer request")
	}
	return request, nil
}

func (s *ApprovalService) downgradePurchase(ctx context.Context, id, reason string) {
	if err := s.requests.DowngradeApprovedPurchase(ctx, id, reason); err != nil {
		s.logger.Error("failed to downgrade purchase request", zap.String("request_id", id), zap.Error(err))
	}
}

func (s *ApprovalService) downgradeTransfer(ctx context.Context, id, reason string) {
	if err := s.requests.DowngradeApprovedTransfer(ctx, id, reason); err != nil {
		s.logger.Error("failed to downgrade transfer request", zap.String("request_id", id), zap.Error(err))
	}
}

func (s *ApprovalService) invalidate(ctx context.Context, classroomID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("classroom:%s:*", classroomID)); err != nil {
		s.logger.Warn("failed to invalidate classroom cache", zap.Error(err))
	}
}
