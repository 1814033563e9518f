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
	"SimEcon/internal/service/ratelimit"
	"SimEcon/pkg/logger"
	"SimEcon/pkg/persistence"
	"SimEcon/pkg/util"
)

// TransactionObserver is notified after a mutation commits, outside any lock.
type TransactionObserver func(tx models.Transaction)

type LedgerConfig struct {
	Floor      decimal.Decimal // most negative balance a withdrawal may reach
	MaxBalance decimal.Decimal // zero disables the ceiling
	Shards     int
}

type ledgerShard struct {
	mu       sync.Mutex
	balances map[models.ActorID]decimal.Decimal
}

// Ledger owns every balance. Mutations on one actor are serialized by that
// actor's shard lock; different shards never contend.
type Ledger struct {
	snapshotter
	cfg     LedgerConfig
	shards  []*ledgerShard
	journal *Journal
	limiter ratelimit.Limiter
	metrics repository.Metrics
	log     *logger.Logger
	now     func() time.Time

	obsMu     sync.RWMutex
	observers []TransactionObserver
}

func NewLedger(cfg LedgerConfig, journal *Journal, limiter ratelimit.Limiter, store *persistence.Store, metrics repository.Metrics, log *logger.Logger) *Ledger {
	if cfg.Shards < 1 {
		cfg.Shards = 64
	}
	if log == nil {
		log = logger.Nop()
	}
	l := &Ledger{
		snapshotter: newSnapshotter("balances", store, metrics),
		cfg:         cfg,
		shards:      make([]*ledgerShard, cfg.Shards),
		journal:     journal,
		limiter:     limiter,
		metrics:     orNop(metrics),
		log:         log,
		now:         time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &ledgerShard{balances: make(map[models.ActorID]decimal.Decimal)}
	}
	return l
}

// Subscribe registers an observer for committed transactions.
func (l *Ledger) Subscribe(o TransactionObserver) {
	l.obsMu.Lock()
	l.observers = append(l.observers, o)
	l.obsMu.Unlock()
}

func (l *Ledger) Floor() decimal.Decimal { return l.cfg.Floor }

func (l *Ledger) shardFor(actor models.ActorID) *ledgerShard {
	return l.shards[util.ShardIndex(actor, len(l.shards))]
}

// posting describes one balance change.
type posting struct {
	actor      models.ActorID
	delta      decimal.Decimal
	txType     models.TransactionType
	desc       string
	from, to   *models.ActorID
	checkFloor bool
}

// apply commits one posting under the actor's lock and journals it.
func (l *Ledger) apply(p posting) (models.Transaction, error) {
	s := l.shardFor(p.actor)
	s.mu.Lock()
	bal := s.balances[p.actor]
	next := models.RoundMoney(bal.Add(p.delta))
	if p.delta.IsNegative() && p.checkFloor && next.LessThan(l.cfg.Floor) {
		s.mu.Unlock()
		return models.Transaction{}, models.ErrInsufficientFunds
	}
	if p.delta.IsPositive() && !l.cfg.MaxBalance.IsZero() && next.GreaterThan(l.cfg.MaxBalance) {
		s.mu.Unlock()
		return models.Transaction{}, models.ErrBalanceCeiling
	}
	s.balances[p.actor] = next
	tx := models.Transaction{
		ID:           uuid.New(),
		Actor:        p.actor,
		Timestamp:    l.now(),
		Type:         p.txType,
		From:         p.from,
		To:           p.to,
		Amount:       models.RoundMoney(p.delta),
		Description:  p.desc,
		BalanceAfter: next,
	}
	if l.journal != nil {
		l.journal.Append(tx)
	}
	s.mu.Unlock()

	l.markDirty()
	l.metrics.RecordTransaction(string(p.txType), "ok")
	return tx, nil
}

func (l *Ledger) notify(txs ...models.Transaction) {
	l.obsMu.RLock()
	obs := l.observers
	l.obsMu.RUnlock()
	for _, tx := range txs {
		for _, o := range obs {
			o(tx)
		}
	}
}

// admit validates the amount and takes a rate-limit slot for
// actor-initiated types. The slot is spent even when the operation then
// fails, so retries of a rejected withdrawal count against the window.
func (l *Ledger) admit(actor models.ActorID, amount decimal.Decimal, t models.TransactionType) error {
	if amount.IsNegative() {
		l.metrics.RecordTransaction(string(t), "rejected")
		return models.ErrNegativeAmount
	}
	if class := t.RateClass(); class != "" && l.limiter != nil && !l.limiter.TryAcquire(actor, class) {
		l.metrics.RecordRateLimited(class)
		l.metrics.RecordTransaction(string(t), "rate_limited")
		return models.ErrRateLimited
	}
	return nil
}

func (l *Ledger) reject(t models.TransactionType, err error) error {
	l.metrics.RecordTransaction(string(t), "rejected")
	return err
}

// Deposit credits amount. It fails only on validation, rate limit or the
// balance ceiling.
func (l *Ledger) Deposit(actor models.ActorID, amount decimal.Decimal, t models.TransactionType, desc string) error {
	if err := l.admit(actor, amount, t); err != nil {
		return err
	}
	tx, err := l.apply(posting{actor: actor, delta: amount, txType: t, desc: desc})
	if err != nil {
		return l.reject(t, err)
	}
	l.notify(tx)
	return nil
}

// Withdraw debits amount when the result stays at or above the floor.
func (l *Ledger) Withdraw(actor models.ActorID, amount decimal.Decimal, t models.TransactionType, desc string) error {
	if err := l.admit(actor, amount, t); err != nil {
		return err
	}
	tx, err := l.apply(posting{actor: actor, delta: amount.Neg(), txType: t, desc: desc, checkFloor: true})
	if err != nil {
		return l.reject(t, err)
	}
	l.notify(tx)
	return nil
}

// Charge debits amount without the floor check. Used for system fees that
// must land even on overdrawn accounts.
func (l *Ledger) Charge(actor models.ActorID, amount decimal.Decimal, t models.TransactionType, desc string) error {
	if amount.IsNegative() {
		return l.reject(t, models.ErrNegativeAmount)
	}
	tx, err := l.apply(posting{actor: actor, delta: amount.Neg(), txType: t, desc: desc})
	if err != nil {
		return l.reject(t, err)
	}
	l.notify(tx)
	return nil
}

// Transfer withdraws from one actor and then deposits to the other. The two
// steps are not atomic: if the deposit fails the funds have already left
// from and the returned error wraps ErrTransferIncomplete.
func (l *Ledger) Transfer(from, to models.ActorID, amount decimal.Decimal, desc string) error {
	start := time.Now()
	defer func() { l.metrics.RecordLatency("ledger.transfer", time.Since(start).Seconds()) }()

	if from == to {
		return l.reject(models.TxTransfer, models.ErrSelfTransfer)
	}
	if err := l.admit(from, amount, models.TxTransfer); err != nil {
		return err
	}
	src, dst := from, to
	out, err := l.apply(posting{actor: from, delta: amount.Neg(), txType: models.TxTransfer, desc: desc, from: &src, to: &dst, checkFloor: true})
	if err != nil {
		return l.reject(models.TxTransfer, err)
	}
	in, err := l.apply(posting{actor: to, delta: amount, txType: models.TxTransfer, desc: desc, from: &src, to: &dst})
	if err != nil {
		l.log.Error("ledger.transfer incomplete",
			logger.Actor(from), logger.String("to", to.String()),
			logger.String("amount", amount.StringFixed(models.MoneyPlaces)), logger.Error(err))
		l.metrics.RecordError("transfer_incomplete")
		l.notify(out)
		return fmt.Errorf("%w: %w", models.ErrTransferIncomplete, err)
	}
	l.notify(out, in)
	return nil
}

// SetBalance overrides a balance. Negative input is clamped to zero and the
// difference is journaled.
func (l *Ledger) SetBalance(actor models.ActorID, amount decimal.Decimal, t models.TransactionType, desc string) {
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	if t == "" {
		t = models.TxAdminSet
	}
	prev := l.overwrite(actor, amount, t, desc)
	l.log.Info("ledger.set_balance", logger.Actor(actor),
		logger.String("previous", prev.StringFixed(models.MoneyPlaces)),
		logger.String("balance", models.RoundMoney(amount).StringFixed(models.MoneyPlaces)))
}

// ResetTo moves a balance to target as a system posting of type t, with no
// floor or ceiling check. Used for overdraft seizure.
func (l *Ledger) ResetTo(actor models.ActorID, target decimal.Decimal, t models.TransactionType, desc string) {
	l.overwrite(actor, target, t, desc)
}

func (l *Ledger) overwrite(actor models.ActorID, amount decimal.Decimal, t models.TransactionType, desc string) decimal.Decimal {
	amount = models.RoundMoney(amount)
	s := l.shardFor(actor)
	s.mu.Lock()
	prev := s.balances[actor]
	s.balances[actor] = amount
	tx := models.Transaction{
		ID:           uuid.New(),
		Actor:        actor,
		Timestamp:    l.now(),
		Type:         t,
		Amount:       amount.Sub(prev),
		Description:  desc,
		BalanceAfter: amount,
	}
	if l.journal != nil {
		l.journal.Append(tx)
	}
	s.mu.Unlock()

	l.markDirty()
	l.metrics.RecordTransaction(string(t), "ok")
	l.notify(tx)
	return prev
}

// GetBalance returns zero for unknown actors without creating them.
func (l *Ledger) GetBalance(actor models.ActorID) decimal.Decimal {
	s := l.shardFor(actor)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[actor]
}

func (l *Ledger) Exists(actor models.ActorID) bool {
	s := l.shardFor(actor)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.balances[actor]
	return ok
}

func (l *Ledger) CreateAccount(actor models.ActorID) error {
	s := l.shardFor(actor)
	s.mu.Lock()
	if _, ok := s.balances[actor]; ok {
		s.mu.Unlock()
		return models.ErrAccountExists
	}
	s.balances[actor] = decimal.Zero
	s.mu.Unlock()
	l.markDirty()
	return nil
}

// EnsureAccount creates the account on first reference.
func (l *Ledger) EnsureAccount(actor models.ActorID) {
	if err := l.CreateAccount(actor); err == nil {
		l.log.Debug("ledger.account created", logger.Actor(actor))
	}
}

func (l *Ledger) DeleteAccount(actor models.ActorID) error {
	s := l.shardFor(actor)
	s.mu.Lock()
	if _, ok := s.balances[actor]; !ok {
		s.mu.Unlock()
		return models.ErrAccountNotFound
	}
	delete(s.balances, actor)
	s.mu.Unlock()
	l.markDirty()
	l.log.Info("ledger.account deleted", logger.Actor(actor))
	return nil
}

// Accounts returns every balance sorted by actor id.
func (l *Ledger) Accounts() []models.Account {
	var out []models.Account
	for _, s := range l.shards {
		s.mu.Lock()
		for actor, bal := range s.balances {
			out = append(out, models.Account{Actor: actor, Balance: bal})
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Actor.String() < out[j].Actor.String() })
	return out
}

func (l *Ledger) Load() error {
	var doc map[string]decimal.Decimal
	outcome, err := l.load(&doc)
	n := 0
	if err == nil {
		for key, bal := range doc {
			actor, perr := models.ParseActor(key)
			if perr != nil {
				l.log.Warn("ledger.load skip invalid actor", logger.String("actor", key))
				continue
			}
			s := l.shardFor(actor)
			s.mu.Lock()
			s.balances[actor] = models.RoundMoney(bal)
			s.mu.Unlock()
			n++
		}
	}
	l.tracker.Loaded(outcome, err, n)
	if err != nil {
		l.log.Error("ledger.load failed", logger.Error(err), logger.String("outcome", outcome.String()))
	} else {
		l.log.Info("ledger.loaded", logger.Int("accounts", n), logger.String("outcome", outcome.String()))
	}
	return err
}

func (l *Ledger) Flush() error {
	return l.flush(func() (interface{}, int) {
		doc := make(map[string]decimal.Decimal)
		for _, s := range l.shards {
			s.mu.Lock()
			for actor, bal := range s.balances {
				doc[actor.String()] = bal
			}
			s.mu.Unlock()
		}
		return doc, len(doc)
	})
}
