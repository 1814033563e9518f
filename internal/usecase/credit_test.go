package usecase

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SimEcon/internal/domain/models"
	"SimEcon/pkg/persistence"
)

func TestScoreOfFreshActorIsNeutral(t *testing.T) {
	score := Score(models.CreditRecord{}, 0)
	assert.Equal(t, 100, score)
	assert.Equal(t, models.RatingCCC, models.TierForScore(score).Rating)
}

func TestScoreComponents(t *testing.T) {
	tests := []struct {
		name string
		rec  models.CreditRecord
		day  int64
		want int
	}{
		{"playtime capped", models.CreditRecord{}, 500, 200 + 100},
		{"balance points", models.CreditRecord{AvgBalance: 25000}, 0, 50 + 100},
		{"balance capped", models.CreditRecord{AvgBalance: 1e9}, 0, 200 + 100},
		{"negative balance gives nothing", models.CreditRecord{AvgBalance: -4000}, 0, 100},
		{"loans capped", models.CreditRecord{CompletedLoans: 10}, 0, 300 + 100},
		{"perfect punctuality", models.CreditRecord{OnTimePayments: 14}, 0, 200},
		{"mixed punctuality", models.CreditRecord{OnTimePayments: 2, MissedPayments: 1}, 0, 133 - 10},
		{"defaults", models.CreditRecord{DefaultedLoans: 3}, 0, 0},
		{"every component maxed", models.CreditRecord{AvgBalance: 1e9, CompletedLoans: 20, OnTimePayments: 100}, 1000, 900},
		{"first activity later", models.CreditRecord{FirstActivityDay: 30}, 40, 10 + 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.rec, tt.day))
		})
	}
}

func TestScoreMonotonicInPayments(t *testing.T) {
	base := models.CreditRecord{OnTimePayments: 5, MissedPayments: 3, AvgBalance: 12000, CompletedLoans: 1}
	for day := int64(0); day < 50; day += 7 {
		s := Score(base, day)

		more := base
		more.OnTimePayments++
		assert.GreaterOrEqual(t, Score(more, day), s)

		missed := base
		missed.MissedPayments++
		assert.LessOrEqual(t, Score(missed, day), s)
	}
}

func TestScoreAlwaysInRange(t *testing.T) {
	for onTime := 0; onTime < 40; onTime += 3 {
		for missed := 0; missed < 40; missed += 5 {
			for defaults := 0; defaults < 4; defaults++ {
				s := Score(models.CreditRecord{OnTimePayments: onTime, MissedPayments: missed, DefaultedLoans: defaults, CompletedLoans: onTime / 10}, int64(onTime*10))
				assert.GreaterOrEqual(t, s, 0)
				assert.LessOrEqual(t, s, 1000)
			}
		}
	}
}

func TestRateModifier(t *testing.T) {
	assert.InDelta(t, 1.5, RateModifier(0), 1e-9)
	assert.InDelta(t, 1.0, RateModifier(500), 1e-9)
	assert.InDelta(t, 0.5, RateModifier(1000), 1e-9)
}

func TestCreditTrackerEligibility(t *testing.T) {
	c := NewCreditTracker(nil, nil, nil, nil)
	actor := uuid.New()

	require.NoError(t, c.Eligible(actor, models.LoanStarter))
	assert.ErrorIs(t, c.Eligible(actor, models.LoanStandard), models.ErrRatingTooLow)
	assert.ErrorIs(t, c.Eligible(actor, models.LoanType("JUMBO")), models.ErrUnknownLoanType)

	for i := 0; i < 12; i++ {
		c.RecordMissedPayment(actor)
	}
	// 0 + 0 + 0 + 0 - 120 clamps to 0, rating D
	assert.Equal(t, 0, c.Score(actor))
	assert.ErrorIs(t, c.Eligible(actor, models.LoanStarter), models.ErrRatingTooLow)
}

func TestCreditTrackerSamplesLedger(t *testing.T) {
	l, _, _ := newTestLedger(t, ledgerOpts{})
	c := NewCreditTracker(l, nil, nil, nil)
	actor := uuid.New()
	require.NoError(t, l.Deposit(actor, dec("1000"), models.TxDeposit, ""))
	c.OnNewDay(1)
	require.NoError(t, l.Deposit(actor, dec("2000"), models.TxDeposit, ""))
	c.OnNewDay(2)

	r, ok := c.Record(actor)
	require.True(t, ok)
	assert.EqualValues(t, 2, r.BalanceSamples)
	assert.InDelta(t, 2000, r.AvgBalance, 1e-9)
	assert.EqualValues(t, 1, r.FirstActivityDay)
	assert.EqualValues(t, 2, c.Day())
}

func TestCreditTrackerFlushAndLoad(t *testing.T) {
	dir := t.TempDir()
	c := NewCreditTracker(nil, persistence.NewStore(dir, "credit_scores.json"), nil, nil)
	actor := uuid.New()
	c.RecordOnTimePayment(actor)
	c.RecordLoanCompleted(actor, dec("5400"))
	c.RecordDefault(actor)
	require.NoError(t, c.Flush())

	restored := NewCreditTracker(nil, persistence.NewStore(dir, "credit_scores.json"), nil, nil)
	require.NoError(t, restored.Load())
	r, ok := restored.Record(actor)
	require.True(t, ok)
	assert.Equal(t, 1, r.OnTimePayments)
	assert.Equal(t, 1, r.CompletedLoans)
	assert.Equal(t, 1, r.DefaultedLoans)
	assert.True(t, r.TotalRepaid.Equal(dec("5400")))
	assert.Equal(t, 1, restored.Health().Records)
}
