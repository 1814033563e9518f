package usecase

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	"SimEcon/pkg/logger"
	"SimEcon/pkg/persistence"
)

// Inflation adjustment bounds.
const (
	inflationFloor   = 0.9
	deflationCeiling = 1.1
	adjustmentFactor = 0.5
)

// EconomyStats is the tracker's persisted and reported state.
type EconomyStats struct {
	TotalMoneySupply    float64                         `json:"total_money_supply"`
	PreviousMoneySupply float64                         `json:"previous_money_supply"`
	InflationRate       float64                         `json:"inflation_rate"`
	ActiveAccounts      int                             `json:"active_accounts"`
	TotalVolume         float64                         `json:"total_volume"`
	DailyVolume         float64                         `json:"daily_volume"`
	CategorySales       map[models.ItemCategory]int64   `json:"category_sales"`
	CategoryPurchases   map[models.ItemCategory]int64   `json:"category_purchases"`
	CategoryRevenue     map[models.ItemCategory]float64 `json:"category_revenue"`
}

// EconomyTracker follows money supply and trade volume and turns the
// inflation rate into a price adjustment.
type EconomyTracker struct {
	snapshotter
	mu            sync.RWMutex
	stats         EconomyStats
	dailyEarnings map[models.ActorID]float64
	high, low     float64
	metrics       repository.Metrics
	log           *logger.Logger
}

// NewEconomyTracker takes the inflation band: rates above high or below low
// move prices.
func NewEconomyTracker(high, low float64, store *persistence.Store, metrics repository.Metrics, log *logger.Logger) *EconomyTracker {
	if log == nil {
		log = logger.Nop()
	}
	return &EconomyTracker{
		snapshotter:   newSnapshotter("economy_tracker", store, metrics),
		stats:         emptyStats(),
		dailyEarnings: make(map[models.ActorID]float64),
		high:          high,
		low:           low,
		metrics:       orNop(metrics),
		log:           log,
	}
}

func emptyStats() EconomyStats {
	return EconomyStats{
		CategorySales:     make(map[models.ItemCategory]int64),
		CategoryPurchases: make(map[models.ItemCategory]int64),
		CategoryRevenue:   make(map[models.ItemCategory]float64),
	}
}

// OnSale records an actor selling qty units for revenue.
func (t *EconomyTracker) OnSale(actor models.ActorID, cat models.ItemCategory, qty int, revenue float64) {
	t.mu.Lock()
	t.stats.CategorySales[cat] += int64(qty)
	t.stats.CategoryRevenue[cat] += revenue
	t.dailyEarnings[actor] += revenue
	t.stats.DailyVolume += revenue
	t.stats.TotalVolume += revenue
	t.mu.Unlock()
	t.markDirty()
}

// OnPurchase records qty units bought for cost.
func (t *EconomyTracker) OnPurchase(cat models.ItemCategory, qty int, cost float64) {
	t.mu.Lock()
	t.stats.CategoryPurchases[cat] += int64(qty)
	t.stats.DailyVolume += cost
	t.stats.TotalVolume += cost
	t.mu.Unlock()
	t.markDirty()
}

// UpdateMoneySupply sums the balances and derives the inflation rate from
// the previous sum.
func (t *EconomyTracker) UpdateMoneySupply(accounts []models.Account) {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	supply := total.InexactFloat64()

	t.mu.Lock()
	t.stats.PreviousMoneySupply = t.stats.TotalMoneySupply
	t.stats.TotalMoneySupply = supply
	t.stats.ActiveAccounts = len(accounts)
	if prev := t.stats.PreviousMoneySupply; prev > 0 {
		t.stats.InflationRate = (supply - prev) / prev
	}
	rate := t.stats.InflationRate
	t.mu.Unlock()

	t.markDirty()
	t.metrics.RecordMoneySupply(supply, rate)
	t.log.Debug("economy.money_supply", logger.Float64("supply", supply),
		logger.Int("accounts", len(accounts)), logger.Float64("inflation", rate))
}

// OnNewDay resets the daily counters.
func (t *EconomyTracker) OnNewDay() {
	t.mu.Lock()
	t.stats.DailyVolume = 0
	t.dailyEarnings = make(map[models.ActorID]float64)
	t.mu.Unlock()
	t.markDirty()
}

func (t *EconomyTracker) InflationRate() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats.InflationRate
}

func (t *EconomyTracker) IsInflationHigh() bool { return t.InflationRate() > t.high }
func (t *EconomyTracker) IsDeflationHigh() bool { return t.InflationRate() < t.low }

// InflationAdjustment damps prices under inflation and lifts them under
// deflation, within [0.9, 1.1].
func (t *EconomyTracker) InflationAdjustment() float64 {
	rate := t.InflationRate()
	switch {
	case rate > t.high:
		return math.Max(inflationFloor, 1-(rate-t.high)*adjustmentFactor)
	case rate < t.low:
		return math.Min(deflationCeiling, 1+(t.low-rate)*adjustmentFactor)
	default:
		return 1.0
	}
}

func (t *EconomyTracker) DailyEarnings(actor models.ActorID) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dailyEarnings[actor]
}

// Stats returns a deep copy of the current statistics.
func (t *EconomyTracker) Stats() EconomyStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.copyStats()
}

// copyStats clones the maps. Caller holds mu.
func (t *EconomyTracker) copyStats() EconomyStats {
	s := t.stats
	s.CategorySales = make(map[models.ItemCategory]int64, len(t.stats.CategorySales))
	for k, v := range t.stats.CategorySales {
		s.CategorySales[k] = v
	}
	s.CategoryPurchases = make(map[models.ItemCategory]int64, len(t.stats.CategoryPurchases))
	for k, v := range t.stats.CategoryPurchases {
		s.CategoryPurchases[k] = v
	}
	s.CategoryRevenue = make(map[models.ItemCategory]float64, len(t.stats.CategoryRevenue))
	for k, v := range t.stats.CategoryRevenue {
		s.CategoryRevenue[k] = v
	}
	return s
}

func (t *EconomyTracker) Load() error {
	doc := emptyStats()
	outcome, err := t.load(&doc)
	n := 0
	if err == nil && outcome != persistence.OutcomeFresh {
		if doc.CategorySales == nil {
			doc.CategorySales = make(map[models.ItemCategory]int64)
		}
		if doc.CategoryPurchases == nil {
			doc.CategoryPurchases = make(map[models.ItemCategory]int64)
		}
		if doc.CategoryRevenue == nil {
			doc.CategoryRevenue = make(map[models.ItemCategory]float64)
		}
		t.mu.Lock()
		t.stats = doc
		t.mu.Unlock()
		n = 1
	}
	t.tracker.Loaded(outcome, err, n)
	if err != nil {
		t.log.Error("economy.load failed", logger.Error(err), logger.String("outcome", outcome.String()))
	}
	return err
}

func (t *EconomyTracker) Flush() error {
	return t.flush(func() (interface{}, int) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		return t.copyStats(), 1
	})
}
