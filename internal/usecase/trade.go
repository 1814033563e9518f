package usecase

import (
	"fmt"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	"SimEcon/internal/services/pricing"
	"SimEcon/pkg/logger"
)

// Quote sides.
const (
	SideSell = "sell"
	SideBuy  = "buy"
)

// TradeDesk settles product trades against the ledger at engine prices and
// reports them to the economy tracker.
type TradeDesk struct {
	engine  *pricing.Engine
	ledger  *Ledger
	tracker *EconomyTracker
	metrics repository.Metrics
	log     *logger.Logger
}

func NewTradeDesk(engine *pricing.Engine, ledger *Ledger, tracker *EconomyTracker, metrics repository.Metrics, log *logger.Logger) *TradeDesk {
	if log == nil {
		log = logger.Nop()
	}
	return &TradeDesk{engine: engine, ledger: ledger, tracker: tracker, metrics: orNop(metrics), log: log}
}

// Quote prices qty units of product. Quality only affects sell quotes.
func (d *TradeDesk) Quote(side, product string, quality float64, qty int) models.Quote {
	p := d.engine.Product(product)
	q := models.Quote{Product: p.ID, Category: p.Category, Side: side, Quantity: qty}
	if side == SideBuy {
		r := d.engine.BuyPrice(product, qty)
		q.Unit, q.Total, q.Clamped = r.Unit, r.Total, r.Clamped
		q.Net = r.Total
	} else {
		q.Side = SideSell
		s := d.engine.SellQuote(product, quality, qty)
		q.Unit, q.Total, q.Clamped = s.Unit, s.Gross, s.Clamped
		q.Tax, q.Net = s.Tax, s.Net
	}
	d.metrics.RecordQuote(q.Side)
	return q
}

// Sell credits the net proceeds to actor and the sales tax to the treasury.
func (d *TradeDesk) Sell(actor models.ActorID, product string, quality float64, qty int) (models.Quote, error) {
	if qty < 1 {
		return models.Quote{}, fmt.Errorf("sell %s: quantity %d: %w", product, qty, models.ErrNegativeAmount)
	}
	q := d.Quote(SideSell, product, quality, qty)
	desc := fmt.Sprintf("sold %dx %s", qty, q.Product)
	if err := d.ledger.Deposit(actor, models.Money(q.Net), models.TxShopSale, desc); err != nil {
		return models.Quote{}, err
	}
	if tax := models.Money(q.Tax); tax.IsPositive() {
		if err := d.ledger.Deposit(models.TreasuryID, tax, models.TxTax, "sales tax: "+desc); err != nil {
			d.log.Error("trade.sales_tax failed", logger.Actor(actor), logger.Error(err))
		}
	}
	if d.tracker != nil {
		d.tracker.OnSale(actor, q.Category, qty, q.Net)
	}
	return q, nil
}

// Buy debits the purchase cost. It fails without side effects when the
// actor cannot pay.
func (d *TradeDesk) Buy(actor models.ActorID, product string, qty int) (models.Quote, error) {
	if qty < 1 {
		return models.Quote{}, fmt.Errorf("buy %s: quantity %d: %w", product, qty, models.ErrNegativeAmount)
	}
	q := d.Quote(SideBuy, product, 0, qty)
	desc := fmt.Sprintf("bought %dx %s", qty, q.Product)
	if err := d.ledger.Withdraw(actor, models.Money(q.Total), models.TxShopPurchase, desc); err != nil {
		return models.Quote{}, err
	}
	if d.tracker != nil {
		d.tracker.OnPurchase(q.Category, qty, q.Total)
	}
	return q, nil
}
