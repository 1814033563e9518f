package usecase

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	"SimEcon/pkg/logger"
	"SimEcon/pkg/persistence"
)

const savingsInterestDays = 7

type SavingsConfig struct {
	MinDeposit   decimal.Decimal
	MaxPerActor  decimal.Decimal
	WeeklyRate   decimal.Decimal
	LockDays     int
	EarlyPenalty decimal.Decimal
}

// SavingsBank holds interest-bearing accounts outside the spendable
// balance. Money moves between them through the ledger.
type SavingsBank struct {
	snapshotter
	cfg    SavingsConfig
	ledger *Ledger
	log    *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	day      int64
	accounts map[models.ActorID][]*models.SavingsAccount
}

func NewSavingsBank(cfg SavingsConfig, ledger *Ledger, store *persistence.Store, metrics repository.Metrics, log *logger.Logger) *SavingsBank {
	if log == nil {
		log = logger.Nop()
	}
	return &SavingsBank{
		snapshotter: newSnapshotter("savings", store, metrics),
		cfg:         cfg,
		ledger:      ledger,
		log:         log,
		now:         time.Now,
		accounts:    make(map[models.ActorID][]*models.SavingsAccount),
	}
}

// totalLocked sums an actor's savings. Caller holds mu.
func (b *SavingsBank) totalLocked(actor models.ActorID) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range b.accounts[actor] {
		sum = sum.Add(a.Balance)
	}
	return sum
}

// find returns the account with id. Caller holds mu.
func (b *SavingsBank) find(actor models.ActorID, id uuid.UUID) (*models.SavingsAccount, int) {
	for i, a := range b.accounts[actor] {
		if a.ID == id {
			return a, i
		}
	}
	return nil, -1
}

// Open withdraws initial from the ledger into a new savings account.
func (b *SavingsBank) Open(actor models.ActorID, initial decimal.Decimal) (models.SavingsAccount, error) {
	if initial.LessThan(b.cfg.MinDeposit) {
		return models.SavingsAccount{}, models.ErrSavingsMinimum
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.totalLocked(actor).Add(initial).GreaterThan(b.cfg.MaxPerActor) {
		return models.SavingsAccount{}, models.ErrSavingsLimit
	}
	if err := b.ledger.Withdraw(actor, initial, models.TxSavingsDeposit, "savings account opened"); err != nil {
		return models.SavingsAccount{}, err
	}
	acc := &models.SavingsAccount{
		ID:              uuid.New(),
		Actor:           actor,
		Balance:         models.RoundMoney(initial),
		OpenedDay:       b.day,
		LastInterestDay: b.day,
		InterestEarned:  decimal.Zero,
		CreatedAt:       b.now(),
	}
	b.accounts[actor] = append(b.accounts[actor], acc)
	b.markDirty()
	b.log.Info("savings.opened", logger.Actor(actor), logger.String("account", acc.ID.String()),
		logger.String("amount", acc.Balance.StringFixed(models.MoneyPlaces)))
	return *acc, nil
}

func (b *SavingsBank) Deposit(actor models.ActorID, id uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return models.ErrNegativeAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, _ := b.find(actor, id)
	if acc == nil {
		return models.ErrSavingsNotFound
	}
	if b.totalLocked(actor).Add(amount).GreaterThan(b.cfg.MaxPerActor) {
		return models.ErrSavingsLimit
	}
	if err := b.ledger.Withdraw(actor, amount, models.TxSavingsDeposit, "savings deposit"); err != nil {
		return err
	}
	acc.Balance = models.RoundMoney(acc.Balance.Add(amount))
	b.markDirty()
	return nil
}

// Withdraw moves amount back to the ledger. A locked account needs forced
// and pays the early penalty to the treasury. It returns the payout.
func (b *SavingsBank) Withdraw(actor models.ActorID, id uuid.UUID, amount decimal.Decimal, forced bool) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, models.ErrNegativeAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, _ := b.find(actor, id)
	if acc == nil {
		return decimal.Zero, models.ErrSavingsNotFound
	}
	locked := acc.LockedAt(b.day, b.cfg.LockDays)
	if locked && !forced {
		return decimal.Zero, models.ErrSavingsLocked
	}
	if amount.GreaterThan(acc.Balance) {
		return decimal.Zero, models.ErrSavingsBalance
	}
	penalty := decimal.Zero
	if locked {
		penalty = models.RoundMoney(amount.Mul(b.cfg.EarlyPenalty))
	}
	payout := amount.Sub(penalty)
	if err := b.ledger.Deposit(actor, payout, models.TxSavingsWithdraw, "savings withdrawal"); err != nil {
		return decimal.Zero, err
	}
	acc.Balance = acc.Balance.Sub(amount)
	b.payPenalty(actor, penalty)
	b.markDirty()
	return payout, nil
}

// Close pays out the whole account, minus the penalty while locked.
func (b *SavingsBank) Close(actor models.ActorID, id uuid.UUID) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, idx := b.find(actor, id)
	if acc == nil {
		return decimal.Zero, models.ErrSavingsNotFound
	}
	penalty := decimal.Zero
	if acc.LockedAt(b.day, b.cfg.LockDays) {
		penalty = models.RoundMoney(acc.Balance.Mul(b.cfg.EarlyPenalty))
	}
	payout := acc.Balance.Sub(penalty)
	if payout.IsPositive() {
		if err := b.ledger.Deposit(actor, payout, models.TxSavingsWithdraw, "savings account closed"); err != nil {
			return decimal.Zero, err
		}
	}
	b.payPenalty(actor, penalty)
	list := b.accounts[actor]
	b.accounts[actor] = append(list[:idx], list[idx+1:]...)
	if len(b.accounts[actor]) == 0 {
		delete(b.accounts, actor)
	}
	b.markDirty()
	b.log.Info("savings.closed", logger.Actor(actor), logger.String("account", id.String()),
		logger.String("payout", payout.StringFixed(models.MoneyPlaces)))
	return payout, nil
}

func (b *SavingsBank) payPenalty(actor models.ActorID, penalty decimal.Decimal) {
	if !penalty.IsPositive() {
		return
	}
	if err := b.ledger.Deposit(models.TreasuryID, penalty, models.TxOther, fmt.Sprintf("early withdrawal penalty %s", actor)); err != nil {
		b.log.Error("savings.penalty deposit failed", logger.Actor(actor), logger.Error(err))
	}
}

// ProcessDay credits weekly interest inside each account.
func (b *SavingsBank) ProcessDay(day int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.day = day
	paid := 0
	for _, list := range b.accounts {
		for _, acc := range list {
			if day-acc.LastInterestDay < savingsInterestDays {
				continue
			}
			interest := models.RoundMoney(acc.Balance.Mul(b.cfg.WeeklyRate))
			acc.Balance = acc.Balance.Add(interest)
			acc.InterestEarned = acc.InterestEarned.Add(interest)
			acc.LastInterestDay = day
			paid++
		}
	}
	if paid > 0 {
		b.markDirty()
		b.log.Debug("savings.interest", logger.Int("accounts", paid), logger.Int64("day", day))
	}
}

// Accounts lists an actor's savings accounts, oldest first.
func (b *SavingsBank) Accounts(actor models.ActorID) []models.SavingsAccount {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.SavingsAccount, 0, len(b.accounts[actor]))
	for _, a := range b.accounts[actor] {
		out = append(out, *a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (b *SavingsBank) Total(actor models.ActorID) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalLocked(actor)
}

func (b *SavingsBank) Load() error {
	var doc map[string][]models.SavingsAccount
	outcome, err := b.load(&doc)
	n := 0
	if err == nil {
		b.mu.Lock()
		for key, list := range doc {
			actor, perr := models.ParseActor(key)
			if perr != nil {
				continue
			}
			for i := range list {
				acc := list[i]
				acc.Actor = actor
				b.accounts[actor] = append(b.accounts[actor], &acc)
				n++
			}
		}
		b.mu.Unlock()
	}
	b.tracker.Loaded(outcome, err, n)
	if err != nil {
		b.log.Error("savings.load failed", logger.Error(err), logger.String("outcome", outcome.String()))
	}
	return err
}

func (b *SavingsBank) Flush() error {
	return b.flush(func() (interface{}, int) {
		b.mu.Lock()
		defer b.mu.Unlock()
		doc := make(map[string][]models.SavingsAccount, len(b.accounts))
		n := 0
		for actor, list := range b.accounts {
			for _, a := range list {
				doc[actor.String()] = append(doc[actor.String()], *a)
				n++
			}
		}
		return doc, n
	})
}
