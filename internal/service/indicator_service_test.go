package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classbank-api/internal/models"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
)

func TestGini(t *testing.T) {
	require.Zero(t, gini(nil))
	require.Zero(t, gini([]int64{100, 100, 100, 100}))
	// one wallet holding everything among four
	require.InDelta(t, 0.75, gini([]int64{0, 0, 0, 100}), 1e-9)
	require.Zero(t, gini([]int64{0, 0, 0}))
}

func TestHHIMonopoly(t *testing.T) {
	require.Zero(t, hhi(nil))
	require.InDelta(t, 10000, hhi([]int64{500, 0, 0}), 1e-9)
	// four equal shares of 25% each
	require.InDelta(t, 2500, hhi([]int64{50, 50, 50, 50}), 1e-9)
}

func TestPalmaRatio(t *testing.T) {
	require.Zero(t, palmaRatio(nil))
	// decile buckets need at least ten wallets to mean anything
	require.Zero(t, palmaRatio([]int64{0, 0, 0, 100}))
	// destitute bottom with a wealthy top reports the cap
	balances := []int64{0, 0, 0, 0, 10, 10, 10, 10, 10, 100}
	require.Equal(t, 999.0, palmaRatio(balances))

	even := []int64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10}
	require.InDelta(t, 0.25, palmaRatio(even), 1e-9)
}

func TestMedian(t *testing.T) {
	require.Zero(t, median(nil))
	require.Equal(t, 30.0, median([]int64{10, 30, 50}))
	require.Equal(t, 20.0, median([]int64{10, 30}))
}

func TestHealthScoreTiers(t *testing.T) {
	healthy := &models.EconomicIndicators{
		Gini: 0.25, Velocity: 1.0, InflationRate: 3,
		TreasuryRatio: 0.5, ParticipationRate: 80, PurchasingPower: 4,
	}
	score, label := healthScore(healthy)
	require.Equal(t, 100, score)
	require.Equal(t, models.HealthExcellent, label)

	ailing := &models.EconomicIndicators{
		Gini: 0.45, Velocity: 0.3, InflationRate: -18,
		TreasuryRatio: 0.1, ParticipationRate: 30, PurchasingPower: 0.8,
	}
	score, label = healthScore(ailing)
	require.Equal(t, 100-15-10-10-8-5-5, score)
	require.Equal(t, models.HealthFair, label)

	collapsed := &models.EconomicIndicators{
		Gini: 0.7, Velocity: 0.1, InflationRate: 40,
		TreasuryRatio: 0.01, ParticipationRate: 10, PurchasingPower: 0.2,
	}
	score, label = healthScore(collapsed)
	require.Equal(t, 0, score)
	require.Equal(t, models.HealthCritical, label)
}

type indicatorWalletsStub struct {
	balances []int64
}

func (w *indicatorWalletsStub) Balances(ctx context.Context, classroomID string) ([]int64, error) {
	return w.balances, nil
}

type indicatorTransactionsStub struct {
	volume        int64
	volumeSince   time.Time
	activeWallets int
}

func (s *indicatorTransactionsStub) VolumeSince(ctx context.Context, classroomID string, since time.Time) (int64, error) {
	s.volumeSince = since
	return s.volume, nil
}

func (s *indicatorTransactionsStub) ActiveWalletsSince(ctx context.Context, classroomID string, since time.Time) (int, error) {
	return s.activeWallets, nil
}

type indicatorMarketStub struct {
	priceRatio   float64
	currentPrice float64
	baseline     *models.EconomicSnapshot
	saved        []*models.EconomicSnapshot
}

func (m *indicatorMarketStub) AveragePriceRatio(ctx context.Context, classroomID string) (float64, error) {
	return m.priceRatio, nil
}

func (m *indicatorMarketStub) AverageCurrentPrice(ctx context.Context, classroomID string) (float64, error) {
	return m.currentPrice, nil
}

func (m *indicatorMarketStub) SaveSnapshot(ctx context.Context, snapshot *models.EconomicSnapshot) error {
	m.saved = append(m.saved, snapshot)
	return nil
}

func (m *indicatorMarketStub) SnapshotBefore(ctx context.Context, classroomID string, date time.Time) (*models.EconomicSnapshot, error) {
	if m.baseline == nil {
		return nil, sql.ErrNoRows
	}
	return m.baseline, nil
}

type indicatorSavingsStub struct {
	locked int64
}

func (s *indicatorSavingsStub) TotalLocked(ctx context.Context, classroomID string) (int64, error) {
	return s.locked, nil
}

type indicatorRequestsStub struct {
	pending int
}

func (s *indicatorRequestsStub) CountPending(ctx context.Context, classroomID string) (int, error) {
	return s.pending, nil
}

type pricingClassroomsStub struct {
	classroom *models.Classroom
	stamped   []time.Time
}

func (c *pricingClassroomsStub) GetByID(ctx context.Context, id string) (*models.Classroom, error) {
	if c.classroom == nil {
		return nil, sql.ErrNoRows
	}
	return c.classroom, nil
}

func (c *pricingClassroomsStub) SetLastPriceUpdate(ctx context.Context, id string, at time.Time) error {
	c.stamped = append(c.stamped, at)
	return nil
}

type pricingStudentsStub struct {
	count int
}

func (s *pricingStudentsStub) CountActive(ctx context.Context, classroomID string) (int, error) {
	return s.count, nil
}

type indicatorCacheStub struct {
	entries map[string]*models.EconomicIndicators
	sets    int
}

func (c *indicatorCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	if cached, ok := c.entries[key]; ok {
		*dest.(*models.EconomicIndicators) = *cached
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (c *indicatorCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.sets++
	c.entries[key] = value.(*models.EconomicIndicators)
	return nil
}

func TestIndicatorServiceCompute(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	cache := &indicatorCacheStub{entries: make(map[string]*models.EconomicIndicators)}
	transactions := &indicatorTransactionsStub{volume: 600, activeWallets: 3}
	svc := NewIndicatorService(
		&indicatorWalletsStub{balances: []int64{100, 200, 300, 400}},
		transactions,
		&indicatorMarketStub{
			priceRatio:   1.1,
			currentPrice: 100,
			baseline:     &models.EconomicSnapshot{AvgPriceIndex: 1.0, CirculatingSupply: 1000},
		},
		&indicatorSavingsStub{locked: 200},
		&indicatorRequestsStub{pending: 2},
		&pricingClassroomsStub{classroom: &models.Classroom{
			ID: "class-1", TreasuryTotal: 10000, TreasuryRemaining: 8000,
		}},
		&pricingStudentsStub{count: 4},
		cache,
		nil,
		WithIndicatorClock(fixedClock(now)),
	)

	indicators, err := svc.Compute(context.Background(), "class-1")
	require.NoError(t, err)
	require.Equal(t, int64(1200), indicators.CirculatingSupply)
	require.InDelta(t, 0.5, indicators.Velocity, 1e-9)
	// velocity counts the last week of turnover only
	require.Equal(t, now.AddDate(0, 0, -7), transactions.volumeSince)
	// supply grew from 1000 to 1200 against the month-old snapshot
	require.InDelta(t, 20, indicators.InflationRate, 1e-9)
	require.InDelta(t, 250, indicators.AvgBalance, 1e-9)
	require.InDelta(t, 2.5, indicators.PurchasingPower, 1e-9)
	require.InDelta(t, 75, indicators.ParticipationRate, 1e-9)
	require.Equal(t, 2, indicators.PendingRequests)
	require.Equal(t, 1, cache.sets)

	// a second call is served from cache
	again, err := svc.Compute(context.Background(), "class-1")
	require.NoError(t, err)
	require.Equal(t, indicators.ComputedAt, again.ComputedAt)
	require.Equal(t, 1, cache.sets)
}

func TestIndicatorServiceSnapshotDaily(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	market := &indicatorMarketStub{priceRatio: 1.05, currentPrice: 100}
	svc := NewIndicatorService(
		&indicatorWalletsStub{balances: []int64{100, 100}},
		&indicatorTransactionsStub{volume: 50, activeWallets: 2},
		market,
		&indicatorSavingsStub{},
		&indicatorRequestsStub{},
		&pricingClassroomsStub{classroom: &models.Classroom{
			ID: "class-1", TreasuryTotal: 1000, TreasuryRemaining: 800,
		}},
		&pricingStudentsStub{count: 2},
		nil,
		nil,
		WithIndicatorClock(fixedClock(now)),
	)

	require.NoError(t, svc.SnapshotDaily(context.Background(), "class-1"))
	require.Len(t, market.saved, 1)
	snapshot := market.saved[0]
	require.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), snapshot.SnapshotDate)
	require.Equal(t, int64(200), snapshot.CirculatingSupply)
	require.InDelta(t, 1.05, snapshot.AvgPriceIndex, 1e-9)
}
