package usecase

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SimEcon/internal/domain/models"
)

func journalTx(actor models.ActorID, at time.Time, t models.TransactionType, amount string) models.Transaction {
	return models.Transaction{ID: uuid.New(), Actor: actor, Timestamp: at, Type: t, Amount: dec(amount)}
}

func TestRecentIsMostRecentFirst(t *testing.T) {
	j := NewJournal(100, 0, 4, nil, nil, nil)
	actor := uuid.New()
	for i := 0; i < 5; i++ {
		j.Append(journalTx(actor, testStart.Add(time.Duration(i)*time.Minute), models.TxDeposit, "1"))
	}

	recent := j.Recent(actor, 3)
	require.Len(t, recent, 3)
	assert.Equal(t, testStart.Add(4*time.Minute), recent[0].Timestamp)
	assert.Equal(t, testStart.Add(2*time.Minute), recent[2].Timestamp)
	assert.Len(t, j.Recent(actor, 50), 5)
	assert.Empty(t, j.Recent(uuid.New(), 5))
}

func TestAppendTrimsOldestPastCap(t *testing.T) {
	j := NewJournal(3, 0, 1, nil, nil, nil)
	actor := uuid.New()
	for i := 0; i < 5; i++ {
		j.Append(journalTx(actor, testStart.Add(time.Duration(i)*time.Second), models.TxDeposit, "1"))
	}
	all := j.Recent(actor, 0)
	require.Len(t, all, 3)
	assert.Equal(t, testStart.Add(2*time.Second), all[2].Timestamp)
}

func TestFiltersAndTotals(t *testing.T) {
	j := NewJournal(100, 0, 4, nil, nil, nil)
	actor := uuid.New()
	j.Append(journalTx(actor, testStart, models.TxSalary, "100"))
	j.Append(journalTx(actor, testStart.Add(time.Hour), models.TxShopPurchase, "-30"))
	j.Append(journalTx(actor, testStart.Add(2*time.Hour), models.TxSalary, "50"))
	j.Append(journalTx(actor, testStart.Add(3*time.Hour), models.TxTax, "-5.5"))

	assert.Len(t, j.ByType(actor, models.TxSalary), 2)
	between := j.Between(actor, testStart.Add(time.Hour), testStart.Add(2*time.Hour))
	require.Len(t, between, 2)
	assert.Equal(t, models.TxShopPurchase, between[0].Type)

	assert.True(t, j.TotalIncome(actor).Equal(dec("150")))
	assert.True(t, j.TotalExpense(actor).Equal(dec("35.5")))
}

func TestRotateEvictsPastRetention(t *testing.T) {
	j := NewJournal(100, 90*24*time.Hour, 4, nil, nil, nil)
	old, fresh := uuid.New(), uuid.New()
	now := testStart.Add(100 * 24 * time.Hour)

	j.Append(journalTx(old, testStart, models.TxDeposit, "1"))
	j.Append(journalTx(old, now.Add(-time.Hour), models.TxDeposit, "2"))
	j.Append(journalTx(fresh, testStart.Add(5*time.Hour), models.TxDeposit, "3"))

	evicted := j.Rotate(now)
	assert.Len(t, evicted, 2)
	assert.Equal(t, 1, j.Count())
	assert.Len(t, j.Recent(old, 0), 1)
	assert.Empty(t, j.Recent(fresh, 0))
	assert.Empty(t, j.Rotate(now))
}
