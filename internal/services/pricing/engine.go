package pricing

import (
	"math"
	"sync"
	"sync/atomic"

	"SimEcon/internal/domain/models"
)

// Damping ratios: how much of the cycle deviation each income or cost
// stream sees.
const (
	BuyDamping         = 0.5
	SalaryDamping      = 0.3
	DailyRewardDamping = 0.2
	DeliveryDamping    = 0.6

	fallbackReference = 10.0
	minIncome         = 1.0
	minDeliveryUnit   = 0.01
)

// Product is a registered reference price.
type Product struct {
	ID        string              `json:"id"`
	Reference float64             `json:"reference"`
	Category  models.ItemCategory `json:"category"`
}

// InflationSource supplies the price adjustment derived from money supply.
type InflationSource interface {
	InflationAdjustment() float64
}

type inflationHolder struct{ src InflationSource }

type neutralInflation struct{}

func (neutralInflation) InflationAdjustment() float64 { return 1.0 }

// SellQuote is a sell price split into gross, tax and net.
type SellQuote struct {
	Result
	Gross   float64 `json:"gross"`
	Tax     float64 `json:"tax"`
	Net     float64 `json:"net"`
	TaxRate float64 `json:"tax_rate"`
}

// Engine prices products from the registry and the current signals.
type Engine struct {
	bounds    Bounds
	market    *MarketBoard
	risk      *RiskPremium
	events    *EventBoard
	inflation atomic.Pointer[inflationHolder]
	cycleBits atomic.Uint64

	mu       sync.RWMutex
	products map[string]Product
}

func NewEngine(bounds Bounds, market *MarketBoard, risk *RiskPremium, events *EventBoard) *Engine {
	if bounds.AbsoluteMin <= 0 {
		bounds.AbsoluteMin = DefaultBounds.AbsoluteMin
	}
	if bounds.AbsoluteMax <= 0 {
		bounds.AbsoluteMax = DefaultBounds.AbsoluteMax
	}
	e := &Engine{
		bounds:   bounds,
		market:   market,
		risk:     risk,
		events:   events,
		products: make(map[string]Product),
	}
	e.SetInflationSource(nil)
	e.SetCycleMultiplier(1.0)
	return e
}

func (e *Engine) Market() *MarketBoard { return e.market }
func (e *Engine) Risk() *RiskPremium   { return e.risk }
func (e *Engine) Events() *EventBoard  { return e.events }

func (e *Engine) SetInflationSource(src InflationSource) {
	if src == nil {
		src = neutralInflation{}
	}
	e.inflation.Store(&inflationHolder{src: src})
}

// SetCycleMultiplier is the push target of the economic cycle.
func (e *Engine) SetCycleMultiplier(m float64) {
	e.cycleBits.Store(math.Float64bits(m))
}

func (e *Engine) CycleMultiplier() float64 {
	return math.Float64frombits(e.cycleBits.Load())
}

func (e *Engine) inflationAdj() float64 {
	return e.inflation.Load().src.InflationAdjustment()
}

func (e *Engine) RegisterProduct(id string, reference float64, cat models.ItemCategory) {
	e.mu.Lock()
	e.products[id] = Product{ID: id, Reference: reference, Category: cat}
	e.mu.Unlock()
}

// Product falls back to a reference of 10 in category OTHER.
func (e *Engine) Product(id string) Product {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if p, ok := e.products[id]; ok {
		return p
	}
	return Product{ID: id, Reference: fallbackReference, Category: models.CategoryOther}
}

func (e *Engine) supplyDemand(p Product) float64 {
	if e.market == nil {
		return 1.0
	}
	fill, ok := e.market.FillRatio(p.ID)
	if !ok {
		return 1.0
	}
	return SupplyDemandMultiplier(fill, p.Category.Spec().Sensitivity)
}

func (e *Engine) eventMult(cat models.ItemCategory) float64 {
	if e.events == nil {
		return 1.0
	}
	return e.events.Multiplier(cat)
}

func (e *Engine) riskMult(cat models.ItemCategory) float64 {
	if e.risk == nil {
		return 1.0
	}
	return e.risk.Multiplier(cat)
}

// SellPrice is the gross sell price before tax.
func (e *Engine) SellPrice(productID string, quality float64, qty int) Result {
	p := e.Product(productID)
	return Compute(p.Reference, p.Category, qty, e.bounds,
		quality,
		e.supplyDemand(p),
		e.CycleMultiplier()*e.inflationAdj(),
		e.eventMult(p.Category),
		e.riskMult(p.Category),
	)
}

// SellQuote deducts the category tax from the sell price.
func (e *Engine) SellQuote(productID string, quality float64, qty int) SellQuote {
	p := e.Product(productID)
	r := e.SellPrice(productID, quality, qty)
	rate := p.Category.Spec().TaxRate
	tax := r.Total * rate
	return SellQuote{Result: r, Gross: r.Total, Tax: tax, Net: r.Total - tax, TaxRate: rate}
}

// BuyPrice damps supply/demand and cycle to half strength and adds
// confiscation risk for seizable goods.
func (e *Engine) BuyPrice(productID string, qty int) Result {
	p := e.Product(productID)
	return e.buy(p.Reference, p.Category, e.supplyDemand(p), qty)
}

// ShopPrice prices a fixed shop item. Shop items carry no supply/demand.
func (e *Engine) ShopPrice(base float64, cat models.ItemCategory, qty int) Result {
	return e.buy(base, cat, 1.0, qty)
}

func (e *Engine) buy(base float64, cat models.ItemCategory, sd float64, qty int) Result {
	raw := base *
		Damp(sd, BuyDamping) *
		Damp(e.CycleMultiplier()*e.inflationAdj(), BuyDamping) *
		ConfiscationRisk(cat)
	unit, clamped := ClampUnit(raw, base, cat.Spec(), e.bounds)
	return Result{Unit: unit, Total: unit * float64(qty), Clamped: clamped}
}

// Salary sees 30% of the cycle swing and never drops below 1.
func (e *Engine) Salary(base float64) float64 {
	return math.Max(minIncome, base*Damp(e.CycleMultiplier(), SalaryDamping))
}

// DailyReward sees 20% of the cycle swing and never drops below 1.
func (e *Engine) DailyReward(base float64) float64 {
	return math.Max(minIncome, base*Damp(e.CycleMultiplier(), DailyRewardDamping))
}

// DeliveryPrice sees 60% of the cycle swing plus inflation.
func (e *Engine) DeliveryPrice(base float64, qty int) float64 {
	unit := base * Damp(e.CycleMultiplier(), DeliveryDamping) * e.inflationAdj()
	return math.Max(minDeliveryUnit, unit) * float64(qty)
}
