package usecase

import (
	"sync"

	"github.com/shopspring/decimal"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	"SimEcon/internal/domain/service"
	"SimEcon/pkg/logger"
	"SimEcon/pkg/persistence"
)

var (
	taxFree    = decimal.NewFromInt(10000)
	taxBracket = decimal.NewFromInt(50000)
	taxTop     = decimal.NewFromInt(100000)
	taxRate1   = decimal.RequireFromString("0.10")
	taxRate2   = decimal.RequireFromString("0.15")
	taxRate3   = decimal.RequireFromString("0.20")
)

// IncomeTax is the progressive tax on a balance: nothing up to 10 000,
// then 10% up to 50 000, 15% up to 100 000 and 20% above.
func IncomeTax(balance decimal.Decimal) decimal.Decimal {
	if balance.LessThanOrEqual(taxFree) {
		return decimal.Zero
	}
	tax := decimal.Min(balance, taxBracket).Sub(taxFree).Mul(taxRate1)
	if balance.GreaterThan(taxBracket) {
		tax = tax.Add(decimal.Min(balance, taxTop).Sub(taxBracket).Mul(taxRate2))
	}
	if balance.GreaterThan(taxTop) {
		tax = tax.Add(balance.Sub(taxTop).Mul(taxRate3))
	}
	return models.RoundMoney(tax)
}

type TaxConfig struct {
	PropertyPerChunk decimal.Decimal
	PeriodDays       int64
}

type taxDocument struct {
	LastTaxDay map[string]int64           `json:"last_tax_day"`
	Debt       map[string]decimal.Decimal `json:"tax_debt"`
}

// TaxOffice collects income and property tax into the treasury once per
// period. Uncollectable tax accrues as debt.
type TaxOffice struct {
	snapshotter
	cfg        TaxConfig
	ledger     *Ledger
	properties service.PropertyRegistry
	log        *logger.Logger

	mu      sync.Mutex
	lastDay map[models.ActorID]int64
	debt    map[models.ActorID]decimal.Decimal
}

func NewTaxOffice(cfg TaxConfig, ledger *Ledger, properties service.PropertyRegistry, store *persistence.Store, metrics repository.Metrics, log *logger.Logger) *TaxOffice {
	if cfg.PeriodDays < 1 {
		cfg.PeriodDays = 7
	}
	if properties == nil {
		properties = service.NoProperty{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TaxOffice{
		snapshotter: newSnapshotter("tax", store, metrics),
		cfg:         cfg,
		ledger:      ledger,
		properties:  properties,
		log:         log,
		lastDay:     make(map[models.ActorID]int64),
		debt:        make(map[models.ActorID]decimal.Decimal),
	}
}

func (o *TaxOffice) PropertyTax(actor models.ActorID) decimal.Decimal {
	chunks := o.properties.OwnedChunks(actor)
	if chunks <= 0 {
		return decimal.Zero
	}
	return models.RoundMoney(o.cfg.PropertyPerChunk.Mul(decimal.NewFromInt(int64(chunks))))
}

// ProcessDay taxes every actor whose last assessment is a full period old.
func (o *TaxOffice) ProcessDay(day int64) {
	for _, a := range o.ledger.Accounts() {
		if a.Actor == models.TreasuryID {
			continue
		}
		o.mu.Lock()
		due := day-o.lastDay[a.Actor] >= o.cfg.PeriodDays
		if due {
			o.lastDay[a.Actor] = day
		}
		o.mu.Unlock()
		if due {
			o.assess(a.Actor, a.Balance)
			o.markDirty()
		}
	}
}

func (o *TaxOffice) assess(actor models.ActorID, balance decimal.Decimal) {
	income := IncomeTax(balance)
	property := o.PropertyTax(actor)
	total := income.Add(property)
	if !total.IsPositive() {
		return
	}
	if err := o.ledger.Withdraw(actor, total, models.TxTax, "periodic tax"); err != nil {
		o.mu.Lock()
		o.debt[actor] = o.debt[actor].Add(total)
		owed := o.debt[actor]
		o.mu.Unlock()
		o.log.Warn("tax.uncollected", logger.Actor(actor),
			logger.String("amount", total.StringFixed(models.MoneyPlaces)),
			logger.String("debt", owed.StringFixed(models.MoneyPlaces)))
		return
	}
	o.credit(total, "tax revenue")
	o.log.Info("tax.collected", logger.Actor(actor),
		logger.String("income", income.StringFixed(models.MoneyPlaces)),
		logger.String("property", property.StringFixed(models.MoneyPlaces)))
}

// credit books revenue into the treasury.
func (o *TaxOffice) credit(amount decimal.Decimal, desc string) {
	if err := o.ledger.Deposit(models.TreasuryID, amount, models.TxTax, desc); err != nil {
		o.log.Error("tax.treasury deposit failed", logger.String("amount", amount.StringFixed(models.MoneyPlaces)), logger.Error(err))
	}
}

// PayDebt collects the whole outstanding debt in one withdrawal.
func (o *TaxOffice) PayDebt(actor models.ActorID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	owed := o.debt[actor]
	if !owed.IsPositive() {
		return models.ErrNoTaxDebt
	}
	if err := o.ledger.Withdraw(actor, owed, models.TxTax, "tax debt"); err != nil {
		return err
	}
	delete(o.debt, actor)
	o.markDirty()
	o.credit(owed, "tax debt")
	return nil
}

func (o *TaxOffice) Debt(actor models.ActorID) decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.debt[actor]
}

func (o *TaxOffice) TreasuryBalance() decimal.Decimal {
	return o.ledger.GetBalance(models.TreasuryID)
}

func (o *TaxOffice) Load() error {
	var doc taxDocument
	outcome, err := o.load(&doc)
	n := 0
	if err == nil {
		o.mu.Lock()
		for key, day := range doc.LastTaxDay {
			if actor, perr := models.ParseActor(key); perr == nil {
				o.lastDay[actor] = day
			}
		}
		for key, owed := range doc.Debt {
			if actor, perr := models.ParseActor(key); perr == nil {
				o.debt[actor] = owed
				n++
			}
		}
		o.mu.Unlock()
	}
	o.tracker.Loaded(outcome, err, n)
	if err != nil {
		o.log.Error("tax.load failed", logger.Error(err), logger.String("outcome", outcome.String()))
	}
	return err
}

func (o *TaxOffice) Flush() error {
	return o.flush(func() (interface{}, int) {
		o.mu.Lock()
		defer o.mu.Unlock()
		doc := taxDocument{
			LastTaxDay: make(map[string]int64, len(o.lastDay)),
			Debt:       make(map[string]decimal.Decimal, len(o.debt)),
		}
		for actor, day := range o.lastDay {
			doc.LastTaxDay[actor.String()] = day
		}
		for actor, owed := range o.debt {
			doc.Debt[actor.String()] = owed
		}
		return doc, len(doc.Debt)
	})
}
