package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	"github.com/noah-isme/classbank-api/internal/repository"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
)

type requestStoreStub struct {
	purchases map[string]*models.PurchaseRequest
	transfers map[string]*models.TransferRequest
	nextID    int
}

func newRequestStoreStub() *requestStoreStub {
	return &requestStoreStub{
		purchases: make(map[string]*models.PurchaseRequest),
		transfers: make(map[string]*models.TransferRequest),
	}
}

func (r *requestStoreStub) CreatePurchase(ctx context.Context, request *models.PurchaseRequest) error {
	r.nextID++
	request.ID = requestStubID(r.nextID)
	request.Status = models.RequestPending
	r.purchases[request.ID] = request
	return nil
}

func (r *requestStoreStub) GetPurchase(ctx context.Context, id string) (*models.PurchaseRequest, error) {
	if request, ok := r.purchases[id]; ok {
		copy := *request
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *requestStoreStub) ListPurchases(ctx context.Context, filter models.RequestFilter) ([]models.PurchaseRequest, error) {
	result := make([]models.PurchaseRequest, 0, len(r.purchases))
	for _, request := range r.purchases {
		result = append(result, *request)
	}
	return result, nil
}

func (r *requestStoreStub) HasPendingPurchase(ctx context.Context, studentID, itemID string) (bool, error) {
	for _, request := range r.purchases {
		if request.StudentID == studentID && request.ItemID == itemID && request.Status == models.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *requestStoreStub) ResolvePurchase(ctx context.Context, id string, status models.RequestStatus, reviewedBy *string, reason *string, at time.Time) error {
	request, ok := r.purchases[id]
	if !ok || request.Status != models.RequestPending {
		return sql.ErrNoRows
	}
	request.Status = status
	request.ReviewedBy = reviewedBy
	request.RejectionReason = reason
	request.ReviewedAt = &at
	return nil
}

func (r *requestStoreStub) DowngradeApprovedPurchase(ctx context.Context, id, reason string) error {
	request, ok := r.purchases[id]
	if !ok || request.Status != models.RequestApproved {
		return sql.ErrNoRows
	}
	request.Status = models.RequestRejected
	request.RejectionReason = &reason
	return nil
}

func (r *requestStoreStub) CreateTransfer(ctx context.Context, request *models.TransferRequest) error {
	r.nextID++
	request.ID = requestStubID(r.nextID)
	request.Status = models.RequestPending
	r.transfers[request.ID] = request
	return nil
}

func (r *requestStoreStub) GetTransfer(ctx context.Context, id string) (*models.TransferRequest, error) {
	if request, ok := r.transfers[id]; ok {
		copy := *request
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *requestStoreStub) ListTransfers(ctx context.Context, filter models.RequestFilter) ([]models.TransferRequest, error) {
	result := make([]models.TransferRequest, 0, len(r.transfers))
	for _, request := range r.transfers {
		result = append(result, *request)
	}
	return result, nil
}

func (r *requestStoreStub) HasPendingTransfer(ctx context.Context, fromStudentID, toStudentID string) (bool, error) {
	for _, request := range r.transfers {
		if request.FromStudentID == fromStudentID && request.ToStudentID == toStudentID && request.Status == models.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *requestStoreStub) ResolveTransfer(ctx context.Context, id string, status models.RequestStatus, reviewedBy *string, reason *string, at time.Time) error {
	request, ok := r.transfers[id]
	if !ok || request.Status != models.RequestPending {
		return sql.ErrNoRows
	}
	request.Status = status
	request.ReviewedBy = reviewedBy
	request.RejectionReason = reason
	request.ReviewedAt = &at
	return nil
}

func (r *requestStoreStub) DowngradeApprovedTransfer(ctx context.Context, id, reason string) error {
	request, ok := r.transfers[id]
	if !ok || request.Status != models.RequestApproved {
		return sql.ErrNoRows
	}
	request.Status = models.RequestRejected
	request.RejectionReason = &reason
	return nil
}

func requestStubID(n int) string {
	return fmt.Sprintf("req-%d", n)
}

type approvalLedgerStub struct {
	spendEntries    []repository.LedgerEntry
	transferEntries []repository.LedgerEntry
	failWith        error
}

func (l *approvalLedgerStub) Spend(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error) {
	if l.failWith != nil {
		return nil, l.failWith
	}
	l.spendEntries = append(l.spendEntries, entry)
	return &models.Transaction{Amount: entry.Amount, Type: entry.Type}, nil
}

func (l *approvalLedgerStub) Transfer(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error) {
	if l.failWith != nil {
		return nil, l.failWith
	}
	l.transferEntries = append(l.transferEntries, entry)
	return &models.Transaction{Amount: entry.Amount, Type: entry.Type}, nil
}

type approvalMarketStub struct {
	items map[string]*models.MarketItem
}

func (m *approvalMarketStub) GetItem(ctx context.Context, id string) (*models.MarketItem, error) {
	if item, ok := m.items[id]; ok {
		copy := *item
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *approvalMarketStub) DecrementStock(ctx context.Context, id string) error {
	item, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	if item.Stock == nil {
		return nil
	}
	if *item.Stock <= 0 {
		return sql.ErrNoRows
	}
	*item.Stock--
	return nil
}

func (m *approvalMarketStub) IncrementStock(ctx context.Context, id string) error {
	item, ok := m.items[id]
	if !ok || item.Stock == nil {
		return nil
	}
	*item.Stock++
	return nil
}

type approvalStudentsStub struct {
	students map[string]*models.Student
}

func (s *approvalStudentsStub) GetByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := s.students[id]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

type approvalClassroomsStub struct {
	classroom *models.Classroom
}

func (c *approvalClassroomsStub) GetByID(ctx context.Context, id string) (*models.Classroom, error) {
	if c.classroom == nil {
		return nil, sql.ErrNoRows
	}
	return c.classroom, nil
}

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

func intPtr(v int) *int { return &v }

func newApprovalFixture(t *testing.T, now time.Time) (*ApprovalService, *requestStoreStub, *approvalLedgerStub, *approvalMarketStub) {
	t.Helper()
	requests := newRequestStoreStub()
	ledger := &approvalLedgerStub{}
	market := &approvalMarketStub{items: map[string]*models.MarketItem{
		"item-1": {
			ID: "item-1", ClassroomID: "class-1", Name: "Homework pass",
			Type: models.ItemIndividual, BasePrice: 100, CurrentPrice: 120,
			Stock: intPtr(3), Active: true,
		},
	}}
	wallets := &walletReaderStub{wallets: map[string]*models.Wallet{
		"student-1": {ID: "wallet-1", StudentID: "student-1", ClassroomID: "class-1", Balance: 500},
		"student-2": {ID: "wallet-2", StudentID: "student-2", ClassroomID: "class-1", Balance: 50},
	}}
	students := &approvalStudentsStub{students: map[string]*models.Student{
		"student-1": {ID: "student-1", ClassroomID: "class-1", Active: true},
		"student-2": {ID: "student-2", ClassroomID: "class-1", Active: true},
	}}
	classrooms := &approvalClassroomsStub{classroom: &models.Classroom{
		ID: "class-1", Settings: models.DefaultClassroomSettings(),
	}}
	svc := NewApprovalService(requests, ledger, market, wallets, students, classrooms, nil, nil,
		WithApprovalClock(fixedClock(now)))
	return svc, requests, ledger, market
}

func TestApprovalServiceSubmitPurchaseFreezesPrice(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, _, _, market := newApprovalFixture(t, now)

	request, err := svc.SubmitPurchase(context.Background(), "class-1", "student-1", dto.SubmitPurchaseRequest{ItemID: "item-1"})
	require.NoError(t, err)
	require.Equal(t, models.RequestPending, request.Status)
	require.Equal(t, int64(120), request.Price)

	// the frozen price survives a later price change
	market.items["item-1"].CurrentPrice = 150
	require.Equal(t, int64(120), request.Price)
}

func TestApprovalServiceSubmitPurchaseDuplicatePending(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, _, _, _ := newApprovalFixture(t, now)

	_, err := svc.SubmitPurchase(context.Background(), "class-1", "student-1", dto.SubmitPurchaseRequest{ItemID: "item-1"})
	require.NoError(t, err)
	_, err = svc.SubmitPurchase(context.Background(), "class-1", "student-1", dto.SubmitPurchaseRequest{ItemID: "item-1"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrDuplicateRequest.Code, appErrorCode(t, err))
}

func TestApprovalServiceApprovePurchaseSettlesOnce(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, _, ledger, market := newApprovalFixture(t, now)

	request, err := svc.SubmitPurchase(context.Background(), "class-1", "student-1", dto.SubmitPurchaseRequest{ItemID: "item-1"})
	require.NoError(t, err)

	approved, err := svc.ApprovePurchase(context.Background(), "teacher-1", request.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestApproved, approved.Status)
	require.Len(t, ledger.spendEntries, 1)
	require.Equal(t, int64(120), ledger.spendEntries[0].Amount)
	require.Equal(t, 2, *market.items["item-1"].Stock)

	// a second reviewer loses the claim race
	_, err = svc.ApprovePurchase(context.Background(), "teacher-2", request.ID)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidStateTransition.Code, appErrorCode(t, err))
	require.Len(t, ledger.spendEntries, 1)
}

func TestApprovalServiceApproveSoldOutDowngrades(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, requests, ledger, market := newApprovalFixture(t, now)

	request, err := svc.SubmitPurchase(context.Background(), "class-1", "student-1", dto.SubmitPurchaseRequest{ItemID: "item-1"})
	require.NoError(t, err)

	*market.items["item-1"].Stock = 0
	_, err = svc.ApprovePurchase(context.Background(), "teacher-1", request.ID)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrOutOfStock.Code, appErrorCode(t, err))
	require.Empty(t, ledger.spendEntries)

	stored := requests.purchases[request.ID]
	require.Equal(t, models.RequestRejected, stored.Status)
	require.NotNil(t, stored.RejectionReason)
}

func TestApprovalServiceApproveBalanceDroppedDowngrades(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, requests, ledger, market := newApprovalFixture(t, now)

	request, err := svc.SubmitPurchase(context.Background(), "class-1", "student-1", dto.SubmitPurchaseRequest{ItemID: "item-1"})
	require.NoError(t, err)

	ledger.failWith = repository.ErrInsufficientBalance
	_, err = svc.ApprovePurchase(context.Background(), "teacher-1", request.ID)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInsufficientBalance.Code, appErrorCode(t, err))

	stored := requests.purchases[request.ID]
	require.Equal(t, models.RequestRejected, stored.Status)
	// the reserved unit went back on the shelf
	require.Equal(t, 3, *market.items["item-1"].Stock)
}

func TestApprovalServiceCancelWithinWindow(t *testing.T) {
	submitted := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, _, _, _ := newApprovalFixture(t, submitted)

	request, err := svc.SubmitPurchase(context.Background(), "class-1", "student-1", dto.SubmitPurchaseRequest{ItemID: "item-1"})
	require.NoError(t, err)

	svc.clock = fixedClock(submitted.Add(59 * time.Minute))
	cancelled, err := svc.CancelPurchase(context.Background(), "student-1", request.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestCancelled, cancelled.Status)
}

func TestApprovalServiceCancelAfterWindow(t *testing.T) {
	submitted := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, _, _, _ := newApprovalFixture(t, submitted)

	request, err := svc.SubmitPurchase(context.Background(), "class-1", "student-1", dto.SubmitPurchaseRequest{ItemID: "item-1"})
	require.NoError(t, err)

	svc.clock = fixedClock(submitted.Add(61 * time.Minute))
	_, err = svc.CancelPurchase(context.Background(), "student-1", request.ID)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrWindowExpired.Code, appErrorCode(t, err))
}

func TestApprovalServiceCancelOtherStudentsRequest(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, _, _, _ := newApprovalFixture(t, now)

	request, err := svc.SubmitPurchase(context.Background(), "class-1", "student-1", dto.SubmitPurchaseRequest{ItemID: "item-1"})
	require.NoError(t, err)

	_, err = svc.CancelPurchase(context.Background(), "student-2", request.ID)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrorCode(t, err))
}

func TestApprovalServiceTransferRespectsClassroomSettings(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, _, _, _ := newApprovalFixture(t, now)

	classrooms := svc.classrooms.(*approvalClassroomsStub)
	classrooms.classroom.Settings.AllowP2PTransfers = false

	_, err := svc.SubmitTransfer(context.Background(), "class-1", "student-1", dto.SubmitTransferRequest{
		ToStudentID: "student-2",
		Amount:      10,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrorCode(t, err))
}

func TestApprovalServiceTransferCap(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, _, _, _ := newApprovalFixture(t, now)

	limit := int64(25)
	classrooms := svc.classrooms.(*approvalClassroomsStub)
	classrooms.classroom.Settings.MaxTransferAmount = &limit

	_, err := svc.SubmitTransfer(context.Background(), "class-1", "student-1", dto.SubmitTransferRequest{
		ToStudentID: "student-2",
		Amount:      30,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidAmount.Code, appErrorCode(t, err))
}

func TestApprovalServiceApproveTransferSettles(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, _, ledger, _ := newApprovalFixture(t, now)

	request, err := svc.SubmitTransfer(context.Background(), "class-1", "student-1", dto.SubmitTransferRequest{
		ToStudentID: "student-2",
		Amount:      75,
	})
	require.NoError(t, err)

	approved, err := svc.ApproveTransfer(context.Background(), "teacher-1", request.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestApproved, approved.Status)
	require.Len(t, ledger.transferEntries, 1)
	require.Equal(t, "wallet-1", *ledger.transferEntries[0].FromWalletID)
	require.Equal(t, "wallet-2", *ledger.transferEntries[0].ToWalletID)
}

func TestApprovalServiceSelfTransferBlocked(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, _, _, _ := newApprovalFixture(t, now)

	_, err := svc.SubmitTransfer(context.Background(), "class-1", "student-1", dto.SubmitTransferRequest{
		ToStudentID: "student-1",
		Amount:      10,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrorCode(t, err))
}
