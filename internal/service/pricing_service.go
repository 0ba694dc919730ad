package service

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classbank-api/internal/models"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
)

type pricingMarket interface {
	ListItems(ctx context.Context, classroomID string, activeOnly bool) ([]models.MarketItem, error)
	UpdatePrice(ctx context.Context, id string, price int64, at time.Time) error
}

type pricingDemand interface {
	DemandByItem(ctx context.Context, classroomID string, since, until time.Time) (map[string]models.ItemDemand, error)
}

type pricingClassrooms interface {
	GetByID(ctx context.Context, id string) (*models.Classroom, error)
	SetLastPriceUpdate(ctx context.Context, id string, at time.Time) error
}

type pricingStudents interface {
	CountActive(ctx context.Context, classroomID string) (int, error)
}

type pricingWallets interface {
	Balances(ctx context.Context, classroomID string) ([]int64, error)
}

// Price band and adjustment behavior.
const (
	priceFloorRatio   = 0.6
	priceCeilRatio    = 1.6
	priceSmoothing    = 0.3
	priceHysteresis   = 0.03
	demandWindowDays  = 7
	weeklyBuyRate     = 0.1
	maxPendingBoost   = 0.15
	pendingBoostStep  = 0.03
	inflationMidpoint = 0.7
	inflationSlope    = 8.0
	inflationWeight   = 0.1
)

// PricingService drifts item prices around their base price from observed
// demand, scarcity, money supply and affordability. Demand is counted from
// approved purchase requests per item, not inferred from ledger text. All
// adjustments stay inside [0.6, 1.6] x base, move at most 30% of the gap
// per pass, and are skipped entirely under a 3% change threshold.
type PricingService struct {
	market     pricingMarket
	demand     pricingDemand
	classrooms pricingClassrooms
	students   pricingStudents
	wallets    pricingWallets
	logger     *zap.Logger

	clock Clock
	noise func() float64
}

// PricingServiceOption configures the service.
type PricingServiceOption func(*PricingService)

// WithPricingClock overrides the time source.
func WithPricingClock(clock Clock) PricingServiceOption {
	return func(s *PricingService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPricingNoise overrides the random jitter source. The function must
// return values in [0, 1).
func WithPricingNoise(noise func() float64) PricingServiceOption {
	return func(s *PricingService) {
		if noise != nil {
			s.noise = noise
		}
	}
}

// NewPricingService constructs a PricingService.
func NewPricingService(market pricingMarket, demand pricingDemand, classrooms pricingClassrooms, students pricingStudents, wallets pricingWallets, logger *zap.Logger, opts ...PricingServiceOption) *PricingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PricingService{
		market:     market,
		demand:     demand,
		classrooms: classrooms,
		students:   students,
		wallets:    wallets,
		logger:     logger,
		clock:      systemClock,
		noise:      rand.Float64,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// RecalculatePrices runs one pricing pass over a classroom's active
// individual items and persists every applied adjustment.
func (s *PricingService) RecalculatePrices(ctx context.Context, classroomID string) ([]models.PriceAdjustment, error) {
	classroom, err := s.classrooms.GetByID(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	items, err := s.market.ListItems(ctx, classroomID, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list items")
	}

	// two disjoint week-long windows, so the trend compares last week
	// against the week before it
	now := s.clock()
	weekAgo := now.AddDate(0, 0, -demandWindowDays)
	recentDemand, err := s.demand.DemandByItem(ctx, classroomID, weekAgo, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read recent demand")
	}
	priorDemand, err := s.demand.DemandByItem(ctx, classroomID, now.AddDate(0, 0, -2*demandWindowDays), weekAgo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read prior demand")
	}

	studentCount, err := s.students.CountActive(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	avgBalance := 0.0
	if balances, err := s.wallets.Balances(ctx, classroomID); err != nil {
		s.logger.Warn("balance distribution unavailable for pricing", zap.Error(err))
	} else if len(balances) > 0 {
		var sum int64
		for _, b := range balances {
			sum += b
		}
		avgBalance = float64(sum) / float64(len(balances))
	}

	emissionRate := 0.0
	if classroom.TreasuryTotal > 0 {
		emissionRate = float64(classroom.EmittedSupply()) / float64(classroom.TreasuryTotal)
	}

	// affordability compares buying power against the classroom's price
	// level, not against each item's own tag
	avgItemPrice := 0.0
	priced := 0
	for i := range items {
		if items[i].Type == models.ItemIndividual && items[i].BasePrice > 0 {
			avgItemPrice += float64(items[i].CurrentPrice)
			priced++
		}
	}
	if priced > 0 {
		avgItemPrice /= float64(priced)
	}

	adjustments := make([]models.PriceAdjustment, 0, len(items))
	for i := range items {
		item := &items[i]
		if item.Type != models.ItemIndividual || item.BasePrice <= 0 {
			continue
		}
		adjustment := s.adjustItem(item, recentDemand[item.ID], priorDemand[item.ID], studentCount, avgBalance, avgItemPrice, emissionRate)
		if adjustment.Applied {
			if err := s.market.UpdatePrice(ctx, item.ID, adjustment.NewPrice, now); err != nil {
				s.logger.Error("failed to persist price", zap.String("item_id", item.ID), zap.Error(err))
				continue
			}
		}
		adjustments = append(adjustments, adjustment)
	}

	if err := s.classrooms.SetLastPriceUpdate(ctx, classroomID, now); err != nil {
		s.logger.Warn("failed to stamp pricing pass", zap.Error(err))
	}
	return adjustments, nil
}

func (s *PricingService) adjustItem(item *models.MarketItem, recent, prior models.ItemDemand, studentCount int, avgBalance, avgItemPrice, emissionRate float64) models.PriceAdjustment {
	current := float64(item.CurrentPrice)
	base := float64(item.BasePrice)

	factor := s.demandScore(recent.ApprovedCount, studentCount)
	factor *= pendingFactor(recent.PendingCount)
	factor *= trendFactor(recent.ApprovedCount, prior.ApprovedCount)
	factor *= scarcityFactor(item.Stock)
	factor *= inflationFactor(emissionRate)
	factor *= affordabilityFactor(avgBalance, avgItemPrice)
	factor *= meanReversionFactor(current, base)
	factor *= 0.98 + s.noise()*0.04

	// the factor scales the base price, so with demand gone the price
	// decays back toward base instead of compounding on itself
	target := base * factor
	target = math.Max(base*priceFloorRatio, math.Min(base*priceCeilRatio, target))
	smoothed := current + priceSmoothing*(target-current)

	newPrice := int64(math.Round(smoothed))
	if newPrice < 1 {
		newPrice = 1
	}

	changePct := 0.0
	if current > 0 {
		changePct = math.Abs(float64(newPrice)-current) / current
	}
	applied := changePct >= priceHysteresis && newPrice != item.CurrentPrice

	result := models.PriceAdjustment{
		ItemID:    item.ID,
		ItemName:  item.Name,
		OldPrice:  item.CurrentPrice,
		NewPrice:  item.CurrentPrice,
		Factor:    factor,
		ChangePct: changePct * 100,
		Applied:   applied,
	}
	if applied {
		result.NewPrice = newPrice
	}
	return result
}

// demandScore maps approved purchases against the expected weekly volume
// onto a bounded curve in [0.9, 1.3).
func (s *PricingService) demandScore(approved, studentCount int) float64 {
	expected := math.Max(1, weeklyBuyRate*float64(studentCount))
	ratio := float64(approved) / expected
	return 0.9 + 0.4*(1-math.Exp(-ratio))
}

func pendingFactor(pending int) float64 {
	return 1 + math.Min(maxPendingBoost, pendingBoostStep*float64(pending))
}

func trendFactor(recent, prior int) float64 {
	if recent == 0 && prior == 0 {
		return 1.0
	}
	ratio := float64(recent) / math.Max(1, float64(prior))
	switch {
	case ratio > 1.5:
		return 1.05
	case ratio < 0.5:
		return 0.95
	default:
		return 1.0
	}
}

func scarcityFactor(stock *int) float64 {
	if stock == nil {
		return 1.0
	}
	switch {
	case *stock == 0:
		return 1.2
	case *stock <= 2:
		return 1.1
	case *stock <= 5:
		return 1.05
	default:
		return 1.0
	}
}

// inflationFactor nudges prices up as the treasury empties, on a logistic
// curve centered at 70% emission.
func inflationFactor(emissionRate float64) float64 {
	return 1 + inflationWeight/(1+math.Exp(-inflationSlope*(emissionRate-inflationMidpoint)))
}

func affordabilityFactor(avgBalance, price float64) float64 {
	if price <= 0 || avgBalance <= 0 {
		return 1.0
	}
	power := avgBalance / price
	switch {
	case power < 2:
		return 0.95 - (2-power)*0.05
	case power > 10:
		return 1.02
	default:
		return 1.0
	}
}

func meanReversionFactor(current, base float64) float64 {
	if base <= 0 {
		return 1.0
	}
	ratio := current / base
	switch {
	case ratio > 1.5:
		return 0.98
	case ratio < 0.7:
		return 1.02
	default:
		return 1.0
	}
}
