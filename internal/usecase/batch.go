package usecase

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"SimEcon/internal/domain/models"
	"SimEcon/pkg/logger"
)

// BatchResult summarizes one Execute. Succeeded+Failed always equals Total.
type BatchResult struct {
	Total      int   `json:"total"`
	Succeeded  int   `json:"succeeded"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"duration_ms"`
}

type batchOp struct {
	actor  models.ActorID
	to     models.ActorID
	amount decimal.Decimal
	txType models.TransactionType
	desc   string
}

// Batch queues ledger operations and applies them in one pass: deposits,
// then withdrawals, then transfers. Items go through the normal ledger path
// and a failed item never rolls back earlier ones.
type Batch struct {
	ledger *Ledger
	log    *logger.Logger

	mu          sync.Mutex
	deposits    []batchOp
	withdrawals []batchOp
	transfers   []batchOp
}

func NewBatch(ledger *Ledger, log *logger.Logger) *Batch {
	if log == nil {
		log = logger.Nop()
	}
	return &Batch{ledger: ledger, log: log}
}

func (b *Batch) AddDeposit(actor models.ActorID, amount decimal.Decimal, t models.TransactionType, desc string) {
	b.mu.Lock()
	b.deposits = append(b.deposits, batchOp{actor: actor, amount: amount, txType: t, desc: desc})
	b.mu.Unlock()
}

func (b *Batch) AddWithdrawal(actor models.ActorID, amount decimal.Decimal, t models.TransactionType, desc string) {
	b.mu.Lock()
	b.withdrawals = append(b.withdrawals, batchOp{actor: actor, amount: amount, txType: t, desc: desc})
	b.mu.Unlock()
}

func (b *Batch) AddTransfer(from, to models.ActorID, amount decimal.Decimal, desc string) {
	b.mu.Lock()
	b.transfers = append(b.transfers, batchOp{actor: from, to: to, amount: amount, txType: models.TxTransfer, desc: desc})
	b.mu.Unlock()
}

// Len is the number of queued items.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.deposits) + len(b.withdrawals) + len(b.transfers)
}

// Execute drains the queue. The queue is empty afterwards whatever happened.
func (b *Batch) Execute() BatchResult {
	start := time.Now()
	b.mu.Lock()
	deposits, withdrawals, transfers := b.deposits, b.withdrawals, b.transfers
	b.deposits, b.withdrawals, b.transfers = nil, nil, nil
	b.mu.Unlock()

	res := BatchResult{Total: len(deposits) + len(withdrawals) + len(transfers)}
	tally := func(err error, op batchOp) {
		if err == nil {
			res.Succeeded++
			return
		}
		res.Failed++
		b.log.Debug("batch.item failed", logger.Actor(op.actor), logger.String("type", string(op.txType)), logger.Error(err))
	}
	for _, op := range deposits {
		tally(b.ledger.Deposit(op.actor, op.amount, op.txType, op.desc), op)
	}
	for _, op := range withdrawals {
		tally(b.ledger.Withdraw(op.actor, op.amount, op.txType, op.desc), op)
	}
	for _, op := range transfers {
		tally(b.ledger.Transfer(op.actor, op.to, op.amount, op.desc), op)
	}
	res.DurationMs = time.Since(start).Milliseconds()
	if res.Total > 0 {
		b.log.Info("batch.executed", logger.Int("total", res.Total), logger.Int("failed", res.Failed), logger.Int64("duration_ms", res.DurationMs))
	}
	return res
}
