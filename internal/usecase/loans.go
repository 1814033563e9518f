package usecase

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	"SimEcon/pkg/logger"
	"SimEcon/pkg/persistence"
)

// loanEpsilon is the remaining balance below which a loan counts as repaid.
var loanEpsilon = decimal.RequireFromString("0.01")

// LoanDesk issues loans and collects their daily installments. An actor
// holds at most one active loan.
type LoanDesk struct {
	snapshotter
	mu         sync.Mutex
	loans      map[models.ActorID]*models.Loan
	ledger     *Ledger
	credit     *CreditTracker
	minBalance decimal.Decimal
	metrics    repository.Metrics
	log        *logger.Logger
}

func NewLoanDesk(ledger *Ledger, credit *CreditTracker, minBalance decimal.Decimal, store *persistence.Store, metrics repository.Metrics, log *logger.Logger) *LoanDesk {
	if log == nil {
		log = logger.Nop()
	}
	return &LoanDesk{
		snapshotter: newSnapshotter("loans", store, metrics),
		loans:       make(map[models.ActorID]*models.Loan),
		ledger:      ledger,
		credit:      credit,
		minBalance:  minBalance,
		metrics:     orNop(metrics),
		log:         log,
	}
}

// NewLoan prices a loan: total is principal*(1+rate) and the daily
// installment spreads it evenly over the duration.
func NewLoan(actor models.ActorID, t models.LoanType, rate float64, startDay int64) (models.Loan, error) {
	spec, ok := t.Spec()
	if !ok {
		return models.Loan{}, models.ErrUnknownLoanType
	}
	principal := decimal.NewFromInt(spec.Principal)
	total := models.RoundMoney(principal.Mul(decimal.NewFromFloat(1 + rate)))
	daily := models.RoundMoney(total.Div(decimal.NewFromInt(int64(spec.DurationDays))))
	return models.Loan{
		ID:            uuid.New(),
		Actor:         actor,
		Type:          t,
		Principal:     principal,
		EffectiveRate: rate,
		DurationDays:  spec.DurationDays,
		StartDay:      startDay,
		Total:         total,
		Remaining:     total,
		DailyPayment:  daily,
	}, nil
}

// Apply checks eligibility and credits the principal.
func (d *LoanDesk) Apply(actor models.ActorID, t models.LoanType) (models.Loan, error) {
	if _, ok := t.Spec(); !ok {
		return models.Loan{}, models.ErrUnknownLoanType
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.loans[actor]; ok {
		return models.Loan{}, models.ErrActiveLoan
	}
	if d.ledger.GetBalance(actor).LessThan(d.minBalance) {
		return models.Loan{}, models.ErrBalanceTooLow
	}
	if err := d.credit.Eligible(actor, t); err != nil {
		return models.Loan{}, err
	}
	loan, err := NewLoan(actor, t, d.credit.EffectiveRate(actor, t), d.credit.Day())
	if err != nil {
		return models.Loan{}, err
	}
	if err := d.ledger.Deposit(actor, loan.Principal, models.TxLoanDisbursement, "loan: "+string(t)); err != nil {
		return models.Loan{}, fmt.Errorf("disburse loan: %w", err)
	}
	d.loans[actor] = &loan
	d.markDirty()
	d.metrics.RecordLoan("issued")
	d.log.Info("loan.issued", logger.Actor(actor), logger.String("type", string(t)),
		logger.String("total", loan.Total.StringFixed(models.MoneyPlaces)),
		logger.Float64("rate", loan.EffectiveRate))
	return loan, nil
}

// Repay pays off the whole remaining balance in one withdrawal.
func (d *LoanDesk) Repay(actor models.ActorID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	loan, ok := d.loans[actor]
	if !ok {
		return models.ErrNoActiveLoan
	}
	if err := d.ledger.Withdraw(actor, loan.Remaining, models.TxLoanRepayment, "loan payoff: "+string(loan.Type)); err != nil {
		return err
	}
	loan.Remaining = decimal.Zero
	d.complete(loan)
	return nil
}

// ProcessDay collects one installment from every active loan. A failed
// collection counts as a missed payment and is retried the next day.
func (d *LoanDesk) ProcessDay(day int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	actors := make([]models.ActorID, 0, len(d.loans))
	for a := range d.loans {
		actors = append(actors, a)
	}
	sort.Slice(actors, func(i, j int) bool { return actors[i].String() < actors[j].String() })

	for _, actor := range actors {
		loan := d.loans[actor]
		payment := installment(loan)
		err := d.ledger.Withdraw(actor, payment, models.TxLoanRepayment, "loan installment: "+string(loan.Type))
		if err != nil {
			d.credit.RecordMissedPayment(actor)
			d.metrics.RecordLoan("missed")
			d.log.Warn("loan.installment missed", logger.Actor(actor),
				logger.String("due", payment.StringFixed(models.MoneyPlaces)), logger.Int64("day", day), logger.Error(err))
			continue
		}
		loan.Remaining = loan.Remaining.Sub(payment)
		d.credit.RecordOnTimePayment(actor)
		d.metrics.RecordLoan("paid")
		if loan.Remaining.LessThan(loanEpsilon) {
			d.complete(loan)
		}
	}
	if len(actors) > 0 {
		d.markDirty()
	}
}

// installment is the daily payment, or the whole remainder when a regular
// payment would leave less than one installment behind. Cent rounding of
// DailyPayment otherwise leaves a residue past the scheduled last day.
func installment(loan *models.Loan) decimal.Decimal {
	if loan.Remaining.Sub(loan.DailyPayment).LessThan(loan.DailyPayment) {
		return loan.Remaining
	}
	return loan.DailyPayment
}

// complete closes the loan and grants the completion bonus. Caller holds mu.
func (d *LoanDesk) complete(loan *models.Loan) {
	delete(d.loans, loan.Actor)
	d.credit.RecordLoanCompleted(loan.Actor, loan.Total)
	d.markDirty()
	d.metrics.RecordLoan("completed")
	d.log.Info("loan.completed", logger.Actor(loan.Actor), logger.String("type", string(loan.Type)))
}

// Loan returns a copy of the actor's active loan.
func (d *LoanDesk) Loan(actor models.ActorID) (models.Loan, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.loans[actor]
	if !ok {
		return models.Loan{}, false
	}
	return *l, true
}

func (d *LoanDesk) HasActiveLoan(actor models.ActorID) bool {
	_, ok := d.Loan(actor)
	return ok
}

// Active lists active loans sorted by actor.
func (d *LoanDesk) Active() []models.Loan {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.Loan, 0, len(d.loans))
	for _, l := range d.loans {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Actor.String() < out[j].Actor.String() })
	return out
}

// Report is the credit report with the active loan attached.
func (d *LoanDesk) Report(actor models.ActorID) models.CreditReport {
	rep := d.credit.Report(actor)
	if l, ok := d.Loan(actor); ok {
		rep.ActiveLoan = &l
	}
	return rep
}

func (d *LoanDesk) Load() error {
	var doc map[string]models.Loan
	outcome, err := d.load(&doc)
	n := 0
	if err == nil {
		d.mu.Lock()
		for key, l := range doc {
			actor, perr := models.ParseActor(key)
			if perr != nil {
				continue
			}
			loan := l
			loan.Actor = actor
			d.loans[actor] = &loan
			n++
		}
		d.mu.Unlock()
	}
	d.tracker.Loaded(outcome, err, n)
	if err != nil {
		d.log.Error("loan.load failed", logger.Error(err), logger.String("outcome", outcome.String()))
	}
	return err
}

func (d *LoanDesk) Flush() error {
	return d.flush(func() (interface{}, int) {
		d.mu.Lock()
		defer d.mu.Unlock()
		doc := make(map[string]models.Loan, len(d.loans))
		for actor, l := range d.loans {
			doc[actor.String()] = *l
		}
		return doc, len(doc)
	})
}
