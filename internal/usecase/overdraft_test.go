package usecase

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SimEcon/internal/domain/models"
	"SimEcon/pkg/persistence"
)

func newTestOverdraft(t *testing.T, dir string) (*OverdraftDesk, *Ledger, *[]models.Notice) {
	t.Helper()
	l, _, clock := newTestLedger(t, ledgerOpts{floor: "-5000"})
	var store *persistence.Store
	if dir != "" {
		store = persistence.NewStore(dir, "overdraft.json")
	}
	o := NewOverdraftDesk(OverdraftConfig{
		Enabled:    true,
		Limit:      dec("-5000"),
		Warning:    dec("-2500"),
		WeeklyRate: dec("0.25"),
	}, l, store, nil, nil)
	o.now = clock.now
	var notices []models.Notice
	o.Subscribe(func(n models.Notice) { notices = append(notices, n) })
	return o, l, &notices
}

func kinds(ns []models.Notice) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Kind
	}
	return out
}

func TestOverdraftInterestWeekly(t *testing.T) {
	o, l, notices := newTestOverdraft(t, "")
	actor := uuid.New()
	require.NoError(t, l.Withdraw(actor, dec("1000"), models.TxWithdrawal, ""))

	o.ProcessDay(1)
	requireBalance(t, l, actor, "-1250")
	assert.Equal(t, []string{"overdraft_interest"}, kinds(*notices))

	o.ProcessDay(5)
	requireBalance(t, l, actor, "-1250")

	o.ProcessDay(8)
	requireBalance(t, l, actor, "-1562.5")
	info := o.Info(actor)
	assert.True(t, info.InOverdraft)
	assert.True(t, info.Overdrawn.Equal(dec("1562.5")))
	assert.EqualValues(t, 0, info.DaysSinceInterest)
}

func TestOverdraftWarningAndSeizure(t *testing.T) {
	o, l, notices := newTestOverdraft(t, "")
	actor := uuid.New()
	require.NoError(t, l.Withdraw(actor, dec("4500"), models.TxWithdrawal, ""))

	o.ProcessDay(1)
	// -4500 - 1125 interest crosses the limit and is reset to it
	requireBalance(t, l, actor, "-5000")
	assert.Equal(t, []string{"overdraft_warning", "overdraft_interest", "overdraft_seizure"}, kinds(*notices))

	o.ProcessDay(2)
	// no new warning or interest inside the week; balance sits at the limit
	assert.Equal(t, "overdraft_seizure", kinds(*notices)[len(*notices)-1])
	assert.Len(t, *notices, 4)
	requireBalance(t, l, actor, "-5000")
}

func TestOverdraftIgnoresPositiveAndDisabled(t *testing.T) {
	o, l, notices := newTestOverdraft(t, "")
	rich := uuid.New()
	require.NoError(t, l.Deposit(rich, dec("100"), models.TxDeposit, ""))
	o.ProcessDay(1)
	requireBalance(t, l, rich, "100")
	assert.Empty(t, *notices)
	assert.False(t, o.Info(rich).InOverdraft)

	o.cfg.Enabled = false
	poor := uuid.New()
	require.NoError(t, l.Withdraw(poor, dec("100"), models.TxWithdrawal, ""))
	o.ProcessDay(9)
	requireBalance(t, l, poor, "-100")
}

func TestOverdraftFlushAndLoad(t *testing.T) {
	dir := t.TempDir()
	o, l, _ := newTestOverdraft(t, dir)
	actor := uuid.New()
	require.NoError(t, l.Withdraw(actor, dec("1000"), models.TxWithdrawal, ""))
	o.ProcessDay(3)
	require.NoError(t, o.Flush())

	restored, rl, _ := newTestOverdraft(t, dir)
	require.NoError(t, restored.Load())
	require.NoError(t, rl.Withdraw(actor, dec("1000"), models.TxWithdrawal, ""))
	restored.ProcessDay(6)
	requireBalance(t, rl, actor, "-1000")
	restored.ProcessDay(10)
	requireBalance(t, rl, actor, "-1250")
}
