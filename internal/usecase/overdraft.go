package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	"SimEcon/pkg/logger"
	"SimEcon/pkg/persistence"
)

// overdraftCooldownDays spaces warnings and interest charges.
const overdraftCooldownDays = 7

// NoticeObserver receives actor-facing notices.
type NoticeObserver func(n models.Notice)

type OverdraftConfig struct {
	Enabled    bool
	Limit      decimal.Decimal // negative
	Warning    decimal.Decimal // negative, above Limit
	WeeklyRate decimal.Decimal
}

type overdraftDocument struct {
	LastWarningDay  map[string]int64 `json:"last_warning_day"`
	LastInterestDay map[string]int64 `json:"last_interest_day"`
}

// OverdraftDesk warns, charges interest on and finally seizes overdrawn
// accounts during daily processing.
type OverdraftDesk struct {
	snapshotter
	cfg    OverdraftConfig
	ledger *Ledger
	log    *logger.Logger
	now    func() time.Time

	mu           sync.Mutex
	day          int64
	lastWarning  map[models.ActorID]int64
	lastInterest map[models.ActorID]int64

	obsMu     sync.RWMutex
	observers []NoticeObserver
}

func NewOverdraftDesk(cfg OverdraftConfig, ledger *Ledger, store *persistence.Store, metrics repository.Metrics, log *logger.Logger) *OverdraftDesk {
	if log == nil {
		log = logger.Nop()
	}
	return &OverdraftDesk{
		snapshotter:  newSnapshotter("overdraft", store, metrics),
		cfg:          cfg,
		ledger:       ledger,
		log:          log,
		now:          time.Now,
		lastWarning:  make(map[models.ActorID]int64),
		lastInterest: make(map[models.ActorID]int64),
	}
}

func (o *OverdraftDesk) Subscribe(n NoticeObserver) {
	o.obsMu.Lock()
	o.observers = append(o.observers, n)
	o.obsMu.Unlock()
}

func (o *OverdraftDesk) notify(actor models.ActorID, kind, msg string) {
	n := models.Notice{Actor: actor, Kind: kind, Message: msg, At: o.now()}
	o.obsMu.RLock()
	obs := o.observers
	o.obsMu.RUnlock()
	for _, fn := range obs {
		fn(n)
	}
}

// cooledDown reports whether a week passed since last and stamps day if so.
// Caller holds mu.
func cooledDown(last map[models.ActorID]int64, actor models.ActorID, day int64) bool {
	prev, ok := last[actor]
	if ok && day-prev < overdraftCooldownDays {
		return false
	}
	last[actor] = day
	return true
}

// ProcessDay handles every negative balance.
func (o *OverdraftDesk) ProcessDay(day int64) {
	if !o.cfg.Enabled {
		return
	}
	o.mu.Lock()
	o.day = day
	o.mu.Unlock()

	for _, a := range o.ledger.Accounts() {
		if !a.Balance.IsNegative() || a.Actor == models.TreasuryID {
			continue
		}
		o.process(a.Actor, a.Balance, day)
	}
}

func (o *OverdraftDesk) process(actor models.ActorID, balance decimal.Decimal, day int64) {
	o.mu.Lock()
	warn := balance.LessThanOrEqual(o.cfg.Warning) && cooledDown(o.lastWarning, actor, day)
	charge := cooledDown(o.lastInterest, actor, day)
	o.mu.Unlock()
	if warn || charge {
		o.markDirty()
	}

	if warn {
		o.log.Warn("overdraft.warning", logger.Actor(actor), logger.String("balance", balance.StringFixed(models.MoneyPlaces)))
		o.notify(actor, "overdraft_warning",
			fmt.Sprintf("balance %s is approaching the overdraft limit %s",
				balance.StringFixed(models.MoneyPlaces), o.cfg.Limit.StringFixed(models.MoneyPlaces)))
	}
	if charge {
		interest := models.RoundMoney(balance.Abs().Mul(o.cfg.WeeklyRate))
		if interest.IsPositive() {
			if err := o.ledger.Charge(actor, interest, models.TxOverdraftFee, "overdraft interest"); err != nil {
				o.log.Error("overdraft.interest failed", logger.Actor(actor), logger.Error(err))
			} else {
				o.log.Info("overdraft.interest", logger.Actor(actor), logger.String("interest", interest.StringFixed(models.MoneyPlaces)))
				o.notify(actor, "overdraft_interest", "overdraft interest charged: "+interest.StringFixed(models.MoneyPlaces))
			}
		}
	}

	if after := o.ledger.GetBalance(actor); after.LessThanOrEqual(o.cfg.Limit) {
		o.ledger.ResetTo(actor, o.cfg.Limit, models.TxOverdraftSeizure, "overdraft seizure")
		o.log.Warn("overdraft.seizure", logger.Actor(actor), logger.String("balance", after.StringFixed(models.MoneyPlaces)))
		o.notify(actor, "overdraft_seizure", "assets seized, balance reset to "+o.cfg.Limit.StringFixed(models.MoneyPlaces))
	}
}

// Info describes the actor's overdraft position.
func (o *OverdraftDesk) Info(actor models.ActorID) models.OverdraftInfo {
	bal := o.ledger.GetBalance(actor)
	info := models.OverdraftInfo{
		Actor:       actor,
		Balance:     bal,
		Overdrawn:   decimal.Zero,
		Limit:       o.cfg.Limit,
		InOverdraft: bal.IsNegative(),
	}
	if bal.IsNegative() {
		info.Overdrawn = bal.Abs()
	}
	o.mu.Lock()
	if last, ok := o.lastInterest[actor]; ok {
		info.DaysSinceInterest = o.day - last
	}
	o.mu.Unlock()
	return info
}

func (o *OverdraftDesk) Load() error {
	var doc overdraftDocument
	outcome, err := o.load(&doc)
	n := 0
	if err == nil {
		o.mu.Lock()
		for key, day := range doc.LastWarningDay {
			if actor, perr := models.ParseActor(key); perr == nil {
				o.lastWarning[actor] = day
			}
		}
		for key, day := range doc.LastInterestDay {
			if actor, perr := models.ParseActor(key); perr == nil {
				o.lastInterest[actor] = day
				n++
			}
		}
		o.mu.Unlock()
	}
	o.tracker.Loaded(outcome, err, n)
	if err != nil {
		o.log.Error("overdraft.load failed", logger.Error(err), logger.String("outcome", outcome.String()))
	}
	return err
}

func (o *OverdraftDesk) Flush() error {
	return o.flush(func() (interface{}, int) {
		o.mu.Lock()
		defer o.mu.Unlock()
		doc := overdraftDocument{
			LastWarningDay:  make(map[string]int64, len(o.lastWarning)),
			LastInterestDay: make(map[string]int64, len(o.lastInterest)),
		}
		for actor, day := range o.lastWarning {
			doc.LastWarningDay[actor.String()] = day
		}
		for actor, day := range o.lastInterest {
			doc.LastInterestDay[actor.String()] = day
		}
		return doc, len(doc.LastInterestDay)
	})
}
