package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classbank-api/internal/models"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
)

type indicatorWallets interface {
	Balances(ctx context.Context, classroomID string) ([]int64, error)
}

type indicatorTransactions interface {
	VolumeSince(ctx context.Context, classroomID string, since time.Time) (int64, error)
	ActiveWalletsSince(ctx context.Context, classroomID string, since time.Time) (int, error)
}

type indicatorMarket interface {
	AveragePriceRatio(ctx context.Context, classroomID string) (float64, error)
	AverageCurrentPrice(ctx context.Context, classroomID string) (float64, error)
	SaveSnapshot(ctx context.Context, snapshot *models.EconomicSnapshot) error
	SnapshotBefore(ctx context.Context, classroomID string, date time.Time) (*models.EconomicSnapshot, error)
}

type indicatorSavings interface {
	TotalLocked(ctx context.Context, classroomID string) (int64, error)
}

type indicatorRequests interface {
	CountPending(ctx context.Context, classroomID string) (int, error)
}

type indicatorCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const (
	indicatorWindowDays = 30
	velocityWindowDays  = 7
)

// IndicatorService computes the classroom economy dashboard: inequality
// measures over the balance distribution, money velocity, supply growth
// against a past snapshot, and a composite health score. Results are
// cached briefly since the dashboard is polled far more often than the
// economy moves.
type IndicatorService struct {
	wallets      indicatorWallets
	transactions indicatorTransactions
	market       indicatorMarket
	savings      indicatorSavings
	requests     indicatorRequests
	classrooms   pricingClassrooms
	students     pricingStudents
	cache        indicatorCache
	logger       *zap.Logger

	clock    Clock
	cacheTTL time.Duration
}

// IndicatorServiceOption configures the service.
type IndicatorServiceOption func(*IndicatorService)

// WithIndicatorClock overrides the time source.
func WithIndicatorClock(clock Clock) IndicatorServiceOption {
	return func(s *IndicatorService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIndicatorCacheTTL overrides how long computed dashboards are cached.
func WithIndicatorCacheTTL(ttl time.Duration) IndicatorServiceOption {
	return func(s *IndicatorService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// NewIndicatorService constructs an IndicatorService.
func NewIndicatorService(wallets indicatorWallets, transactions indicatorTransactions, market indicatorMarket, savings indicatorSavings, requests indicatorRequests, classrooms pricingClassrooms, students pricingStudents, cache indicatorCache, logger *zap.Logger, opts ...IndicatorServiceOption) *IndicatorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &IndicatorService{
		wallets:      wallets,
		transactions: transactions,
		market:       market,
		savings:      savings,
		requests:     requests,
		classrooms:   classrooms,
		students:     students,
		cache:        cache,
		logger:       logger,
		clock:        systemClock,
		cacheTTL:     5 * time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Compute returns the current indicator dashboard, from cache when fresh.
func (s *IndicatorService) Compute(ctx context.Context, classroomID string) (*models.EconomicIndicators, error) {
	cacheKey := fmt.Sprintf("classroom:%s:indicators", classroomID)
	if s.cache != nil {
		var cached models.EconomicIndicators
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("indicator cache read failed", zap.Error(err))
		}
	}

	indicators, err := s.compute(ctx, classroomID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, indicators, s.cacheTTL); err != nil {
			s.logger.Warn("indicator cache write failed", zap.Error(err))
		}
	}
	return indicators, nil
}

func (s *IndicatorService) compute(ctx context.Context, classroomID string) (*models.EconomicIndicators, error) {
	classroom, err := s.classrooms.GetByID(ctx, classroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}

	balances, err := s.wallets.Balances(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read balances")
	}
	locked, err := s.savings.TotalLocked(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read locked savings")
	}

	// velocity reacts on a weekly window; participation looks at the
	// slower monthly one
	now := s.clock()
	volume, err := s.transactions.VolumeSince(ctx, classroomID, now.AddDate(0, 0, -velocityWindowDays))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read transaction volume")
	}
	activeWallets, err := s.transactions.ActiveWalletsSince(ctx, classroomID, now.AddDate(0, 0, -indicatorWindowDays))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active wallets")
	}
	studentCount, err := s.students.CountActive(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	pending, err := s.requests.CountPending(ctx, classroomID)
	if err != nil {
		s.logger.Warn("pending request count unavailable", zap.Error(err))
	}

	var walletTotal int64
	for _, b := range balances {
		walletTotal += b
	}
	circulating := walletTotal + locked

	avgBalance := 0.0
	if len(balances) > 0 {
		avgBalance = float64(walletTotal) / float64(len(balances))
	}

	velocity := 0.0
	if circulating > 0 {
		velocity = float64(volume) / float64(circulating)
	}

	inflation := s.inflation(ctx, classroomID, circulating, now)

	purchasingPower := 0.0
	if avgPrice, err := s.market.AverageCurrentPrice(ctx, classroomID); err != nil {
		s.logger.Warn("average price unavailable", zap.Error(err))
	} else if avgPrice > 0 {
		purchasingPower = avgBalance / avgPrice
	}

	treasuryRatio := 0.0
	if classroom.TreasuryTotal > 0 {
		treasuryRatio = float64(classroom.TreasuryRemaining) / float64(classroom.TreasuryTotal)
	}

	participation := 0.0
	if studentCount > 0 {
		participation = float64(activeWallets) / float64(studentCount) * 100
	}

	indicators := &models.EconomicIndicators{
		ClassroomID:       classroomID,
		Gini:              gini(balances),
		PalmaRatio:        palmaRatio(balances),
		HHI:               hhi(balances),
		Velocity:          velocity,
		InflationRate:     inflation,
		PurchasingPower:   purchasingPower,
		CirculatingSupply: circulating,
		TreasuryRemaining: classroom.TreasuryRemaining,
		TreasuryRatio:     treasuryRatio,
		AvgBalance:        avgBalance,
		MedianBalance:     median(balances),
		ActiveStudents:    studentCount,
		ParticipationRate: participation,
		PendingRequests:   pending,
		ComputedAt:        now,
	}
	indicators.HealthScore, indicators.HealthLabel = healthScore(indicators)
	return indicators, nil
}

// SnapshotDaily records today's aggregates for future inflation baselines.
func (s *IndicatorService) SnapshotDaily(ctx context.Context, classroomID string) error {
	indicators, err := s.compute(ctx, classroomID)
	if err != nil {
		return err
	}
	priceIndex, err := s.market.AveragePriceRatio(ctx, classroomID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read price index")
	}
	now := s.clock()
	snapshot := &models.EconomicSnapshot{
		ClassroomID:       classroomID,
		SnapshotDate:      truncateToDay(now),
		CirculatingSupply: indicators.CirculatingSupply,
		TreasuryRemaining: indicators.TreasuryRemaining,
		AvgPriceIndex:     priceIndex,
		AvgBalance:        indicators.AvgBalance,
		ActiveStudents:    indicators.ActiveStudents,
	}
	if err := s.market.SaveSnapshot(ctx, snapshot); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save snapshot")
	}
	return nil
}

// inflation measures money-supply growth: how much the circulating supply
// expanded relative to the snapshot closest to thirty days back. No
// baseline means no measurable inflation yet.
func (s *IndicatorService) inflation(ctx context.Context, classroomID string, circulating int64, now time.Time) float64 {
	baseline, err := s.market.SnapshotBefore(ctx, classroomID, now.AddDate(0, 0, -indicatorWindowDays))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("inflation baseline unavailable", zap.Error(err))
		}
		return 0
	}
	if baseline.CirculatingSupply <= 0 {
		return 0
	}
	return float64(circulating-baseline.CirculatingSupply) / float64(baseline.CirculatingSupply) * 100
}

// gini computes the Gini coefficient over the balance distribution.
// 0 is perfect equality, values approach 1 as one wallet holds everything.
func gini(balances []int64) float64 {
	n := len(balances)
	if n == 0 {
		return 0
	}
	sorted := make([]int64, n)
	copy(sorted, balances)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total int64
	for _, b := range sorted {
		total += b
	}
	if total == 0 {
		return 0
	}

	var weighted float64
	for i, b := range sorted {
		weighted += float64(2*(i+1)-n-1) * float64(b)
	}
	return weighted / (float64(n) * float64(total))
}

// palmaRatio divides the top 10% share by the bottom 40% share. Below ten
// wallets the decile buckets are meaningless, so the ratio reads as zero.
// A zero bottom share with a non-zero top share is reported as the cap
// value.
func palmaRatio(balances []int64) float64 {
	n := len(balances)
	if n < 10 {
		return 0
	}
	sorted := make([]int64, n)
	copy(sorted, balances)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	topCount := int(math.Max(1, math.Floor(float64(n)*0.1)))
	bottomCount := int(math.Max(1, math.Floor(float64(n)*0.4)))

	var top, bottom int64
	for _, b := range sorted[n-topCount:] {
		top += b
	}
	for _, b := range sorted[:bottomCount] {
		bottom += b
	}
	if bottom == 0 {
		if top == 0 {
			return 0
		}
		return 999
	}
	return float64(top) / float64(bottom)
}

// hhi computes the Herfindahl-Hirschman index on percentage shares. One
// wallet holding everything scores 10000.
func hhi(balances []int64) float64 {
	var total int64
	for _, b := range balances {
		total += b
	}
	if total == 0 {
		return 0
	}
	var index float64
	for _, b := range balances {
		share := float64(b) / float64(total) * 100
		index += share * share
	}
	return index
}

func median(balances []int64) float64 {
	n := len(balances)
	if n == 0 {
		return 0
	}
	sorted := make([]int64, n)
	copy(sorted, balances)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

// healthScore starts at 100 and applies tiered deductions for inequality,
// stagnant or overheated circulation, price drift, treasury depletion, low
// participation and weak purchasing power.
func healthScore(ind *models.EconomicIndicators) (int, models.HealthLabel) {
	score := 100

	switch {
	case ind.Gini > 0.6:
		score -= 25
	case ind.Gini > 0.4:
		score -= 15
	case ind.Gini > 0.3:
		score -= 5
	}

	switch {
	case ind.Velocity < 0.2:
		score -= 20
	case ind.Velocity < 0.4:
		score -= 10
	case ind.Velocity > 2.5:
		score -= 10
	}

	abs := math.Abs(ind.InflationRate)
	switch {
	case abs > 30:
		score -= 20
	case abs > 15:
		score -= 10
	}

	switch {
	case ind.TreasuryRatio < 0.05:
		score -= 15
	case ind.TreasuryRatio < 0.15:
		score -= 8
	}

	switch {
	case ind.ParticipationRate < 20:
		score -= 10
	case ind.ParticipationRate < 40:
		score -= 5
	}

	switch {
	case ind.PurchasingPower < 0.5:
		score -= 10
	case ind.PurchasingPower < 1:
		score -= 5
	}

	if score < 0 {
		score = 0
	}

	switch {
	case score >= 80:
		return score, models.HealthExcellent
	case score >= 60:
		return score, models.HealthGood
	case score >= 40:
		return score, models.HealthFair
	default:
		return score, models.HealthCritical
	}
}
