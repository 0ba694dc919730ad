package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	"github.com/noah-isme/classbank-api/internal/repository"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
)

type marketStore interface {
	CreateItem(ctx context.Context, item *models.MarketItem) error
	GetItem(ctx context.Context, id string) (*models.MarketItem, error)
	ListItems(ctx context.Context, classroomID string, activeOnly bool) ([]models.MarketItem, error)
	UpdateItem(ctx context.Context, item *models.MarketItem) error
	AddFunding(ctx context.Context, id string, amount int64) (int64, error)
}

type marketLedger interface {
	Spend(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error)
}

// MarketService manages the reward catalog and collective goal funding.
// Individual items are settled through the approval workflow; collective
// contributions settle immediately since the coins fund a shared goal.
type MarketService struct {
	market  marketStore
	ledger  marketLedger
	wallets approvalWallets
	cache   ledgerCache
	logger  *zap.Logger
}

// NewMarketService constructs a MarketService.
func NewMarketService(market marketStore, ledger marketLedger, wallets approvalWallets, cache ledgerCache, logger *zap.Logger) *MarketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketService{market: market, ledger: ledger, wallets: wallets, cache: cache, logger: logger}
}

// CreateItem adds an item to the classroom market.
func (s *MarketService) CreateItem(ctx context.Context, classroomID string, req dto.CreateItemRequest) (*models.MarketItem, error) {
	if req.BasePrice <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "base price must be positive")
	}
	if req.Type == models.ItemCollective && req.GoalAmount == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "collective goals need a goal amount")
	}
	item := &models.MarketItem{
		ClassroomID: classroomID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Type:        req.Type,
		BasePrice:   req.BasePrice,
		Stock:       req.Stock,
		GoalAmount:  req.GoalAmount,
	}
	if err := s.market.CreateItem(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create item")
	}
	return item, nil
}

// ListItems returns the classroom's catalog. Students see active items
// only; teachers see everything.
func (s *MarketService) ListItems(ctx context.Context, classroomID string, activeOnly bool) ([]models.MarketItem, error) {
	items, err := s.market.ListItems(ctx, classroomID, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list items")
	}
	return items, nil
}

// UpdateItem edits an item. Base price changes do not touch the current
// dynamic price; the next pricing pass converges on the new base.
func (s *MarketService) UpdateItem(ctx context.Context, classroomID, itemID string, req dto.UpdateItemRequest) (*models.MarketItem, error) {
	item, err := s.loadItem(ctx, classroomID, itemID)
	if err != nil {
		return nil, err
	}
	if req.BasePrice <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "base price must be positive")
	}
	item.Name = req.Name
	item.Description = req.Description
	item.Category = req.Category
	item.BasePrice = req.BasePrice
	item.Stock = req.Stock
	item.GoalAmount = req.GoalAmount
	item.Active = req.Active
	if err := s.market.UpdateItem(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update item")
	}
	return item, nil
}

// Contribute moves coins from a student wallet into a collective goal.
// The contribution settles immediately: the coins return to the treasury
// and the goal's funded amount grows by the same figure.
func (s *MarketService) Contribute(ctx context.Context, classroomID, studentID, itemID string, req dto.ContributeRequest) (*models.MarketItem, error) {
	if req.Amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "contribution must be positive")
	}
	item, err := s.loadItem(ctx, classroomID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Type != models.ItemCollective || !item.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "item is not an open collective goal")
	}
	if item.GoalAmount != nil && item.FundedAmount >= *item.GoalAmount {
		return nil, appErrors.Clone(appErrors.ErrValidation, "goal is already fully funded")
	}

	wallet, err := s.wallets.GetByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load wallet")
	}

	_, err = s.ledger.Spend(ctx, repository.LedgerEntry{
		ClassroomID:  classroomID,
		FromWalletID: &wallet.ID,
		Amount:       req.Amount,
		Type:         models.TransactionContribution,
		Reason:       fmt.Sprintf("contribution: %s", item.Name),
		ItemID:       &item.ID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, appErrors.Clone(appErrors.ErrInsufficientBalance, "balance does not cover the contribution")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle contribution")
	}

	funded, err := s.market.AddFunding(ctx, item.ID, req.Amount)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record funding")
	}
	item.FundedAmount = funded

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("classroom:%s:*", classroomID)); err != nil {
			s.logger.Warn("failed to invalidate classroom cache", zap.Error(err))
		}
	}
	if item.GoalAmount != nil && funded >= *item.GoalAmount {
		s.logger.Info("collective goal reached",
			zap.String("item_id", item.ID),
			zap.Int64("funded", funded))
	}
	return item, nil
}

func (s *MarketService) loadItem(ctx context.Context, classroomID, itemID string) (*models.MarketItem, error) {
	item, err := s.market.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load item")
	}
	if item.ClassroomID != classroomID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
	}
	return item, nil
}
