package usecase

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	"SimEcon/pkg/logger"
	"SimEcon/pkg/persistence"
)

// Score component caps.
const (
	maxPlaytimePoints  = 200
	maxBalancePoints   = 200
	maxLoanPoints      = 300
	balancePerPoint    = 500.0
	pointsPerLoan      = 50
	punctualityPoints  = 200
	neutralPunctuality = 100
	defaultPenalty     = 100
	missedPenalty      = 10
	maxScore           = 1000
)

// Score derives the 0..1000 credit score of a record on day.
func Score(r models.CreditRecord, day int64) int {
	played := day - r.FirstActivityDay
	if played < 0 {
		played = 0
	}
	score := int(min(played, maxPlaytimePoints))
	score += int(math.Min(maxBalancePoints, math.Max(0, r.AvgBalance/balancePerPoint)))
	score += min(maxLoanPoints, r.CompletedLoans*pointsPerLoan)

	if payments := r.OnTimePayments + r.MissedPayments; payments > 0 {
		score += int(math.Round(punctualityPoints * float64(r.OnTimePayments) / float64(payments)))
	} else {
		score += neutralPunctuality
	}
	score -= r.DefaultedLoans * defaultPenalty
	score -= r.MissedPayments * missedPenalty

	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// RateModifier scales loan base rates: 1.5x at score 0 down to 0.5x at 1000.
func RateModifier(score int) float64 {
	return 1.5 - float64(score)/maxScore
}

// CreditTracker keeps the payment history each score is derived from.
type CreditTracker struct {
	snapshotter
	mu      sync.RWMutex
	records map[models.ActorID]*models.CreditRecord
	ledger  *Ledger
	day     atomic.Int64
	log     *logger.Logger
}

func NewCreditTracker(ledger *Ledger, store *persistence.Store, metrics repository.Metrics, log *logger.Logger) *CreditTracker {
	if log == nil {
		log = logger.Nop()
	}
	return &CreditTracker{
		snapshotter: newSnapshotter("credit_scores", store, metrics),
		records:     make(map[models.ActorID]*models.CreditRecord),
		ledger:      ledger,
		log:         log,
	}
}

func (c *CreditTracker) Day() int64 { return c.day.Load() }

// SetDay moves the tracker's clock without sampling.
func (c *CreditTracker) SetDay(day int64) { c.day.Store(day) }

// record returns the actor's record, starting one today. Caller holds mu.
func (c *CreditTracker) record(actor models.ActorID) *models.CreditRecord {
	r, ok := c.records[actor]
	if !ok {
		r = &models.CreditRecord{Actor: actor, FirstActivityDay: c.day.Load()}
		c.records[actor] = r
	}
	return r
}

func (c *CreditTracker) update(actor models.ActorID, fn func(r *models.CreditRecord)) {
	c.mu.Lock()
	fn(c.record(actor))
	c.mu.Unlock()
	c.markDirty()
}

func (c *CreditTracker) RecordOnTimePayment(actor models.ActorID) {
	c.update(actor, func(r *models.CreditRecord) { r.OnTimePayments++ })
}

func (c *CreditTracker) RecordMissedPayment(actor models.ActorID) {
	c.update(actor, func(r *models.CreditRecord) { r.MissedPayments++ })
}

// RecordLoanCompleted adds the completion bonus and the repaid total.
func (c *CreditTracker) RecordLoanCompleted(actor models.ActorID, repaid decimal.Decimal) {
	c.update(actor, func(r *models.CreditRecord) {
		r.CompletedLoans++
		r.TotalRepaid = r.TotalRepaid.Add(repaid)
	})
}

// RecordDefault books an administrative write-off.
func (c *CreditTracker) RecordDefault(actor models.ActorID) {
	c.update(actor, func(r *models.CreditRecord) { r.DefaultedLoans++ })
	c.log.Warn("credit.default recorded", logger.Actor(actor))
}

// SampleBalance folds one balance observation into the running average.
func (c *CreditTracker) SampleBalance(actor models.ActorID, balance decimal.Decimal) {
	b := balance.InexactFloat64()
	c.update(actor, func(r *models.CreditRecord) {
		r.BalanceSamples++
		r.AvgBalance += (b - r.AvgBalance) / float64(r.BalanceSamples)
	})
}

// OnNewDay sets the day and samples every ledger balance once.
func (c *CreditTracker) OnNewDay(day int64) {
	c.SetDay(day)
	if c.ledger == nil {
		return
	}
	accounts := c.ledger.Accounts()
	for _, a := range accounts {
		if a.Actor == models.TreasuryID {
			continue
		}
		c.SampleBalance(a.Actor, a.Balance)
	}
	c.log.Debug("credit.sampled", logger.Int("accounts", len(accounts)), logger.Int64("day", day))
}

// Record returns a copy of the actor's history.
func (c *CreditTracker) Record(actor models.ActorID) (models.CreditRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[actor]
	if !ok {
		return models.CreditRecord{Actor: actor, FirstActivityDay: c.day.Load()}, false
	}
	return *r, true
}

func (c *CreditTracker) Score(actor models.ActorID) int {
	r, _ := c.Record(actor)
	return Score(r, c.day.Load())
}

func (c *CreditTracker) Tier(actor models.ActorID) models.RatingTier {
	return models.TierForScore(c.Score(actor))
}

// Report is the score view without loan data.
func (c *CreditTracker) Report(actor models.ActorID) models.CreditReport {
	r, _ := c.Record(actor)
	score := Score(r, c.day.Load())
	return models.CreditReport{
		Actor:    actor,
		Score:    score,
		Tier:     models.TierForScore(score),
		Modifier: RateModifier(score),
		Record:   r,
	}
}

// Eligible checks the rating and loan ceiling for a loan type.
func (c *CreditTracker) Eligible(actor models.ActorID, t models.LoanType) error {
	spec, ok := t.Spec()
	if !ok {
		return models.ErrUnknownLoanType
	}
	tier := c.Tier(actor)
	if !tier.Rating.AtLeast(spec.RequiredRating) {
		return models.ErrRatingTooLow
	}
	if spec.Principal > tier.MaxLoan {
		return models.ErrPrincipalTooHigh
	}
	return nil
}

// EffectiveRate is the loan type's base rate scaled by the actor's modifier.
func (c *CreditTracker) EffectiveRate(actor models.ActorID, t models.LoanType) float64 {
	spec, _ := t.Spec()
	return spec.BaseRate * RateModifier(c.Score(actor))
}

func (c *CreditTracker) Load() error {
	var doc map[string]models.CreditRecord
	outcome, err := c.load(&doc)
	n := 0
	if err == nil {
		c.mu.Lock()
		for key, r := range doc {
			actor, perr := models.ParseActor(key)
			if perr != nil {
				continue
			}
			rec := r
			rec.Actor = actor
			c.records[actor] = &rec
			n++
		}
		c.mu.Unlock()
	}
	c.tracker.Loaded(outcome, err, n)
	if err != nil {
		c.log.Error("credit.load failed", logger.Error(err), logger.String("outcome", outcome.String()))
	}
	return err
}

func (c *CreditTracker) Flush() error {
	return c.flush(func() (interface{}, int) {
		c.mu.RLock()
		defer c.mu.RUnlock()
		doc := make(map[string]models.CreditRecord, len(c.records))
		for actor, r := range c.records {
			doc[actor.String()] = *r
		}
		return doc, len(doc)
	})
}
