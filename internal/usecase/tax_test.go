package usecase

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SimEcon/internal/domain/models"
	"SimEcon/pkg/persistence"
)

type chunkTable map[models.ActorID]int

func (c chunkTable) OwnedChunks(actor models.ActorID) int { return c[actor] }

func TestIncomeTaxBrackets(t *testing.T) {
	tests := []struct {
		balance string
		want    string
	}{
		{"-500", "0"},
		{"0", "0"},
		{"10000", "0"},
		{"20000", "1000"},
		{"50000", "4000"},
		{"60000", "5500"},
		{"100000", "11500"},
		{"150000", "21500"},
		{"10000.55", "0.06"},
	}
	for _, tt := range tests {
		t.Run(tt.balance, func(t *testing.T) {
			got := IncomeTax(dec(tt.balance))
			assert.Truef(t, got.Equal(dec(tt.want)), "IncomeTax(%s) = %s, want %s", tt.balance, got, tt.want)
		})
	}
}

func newTestTaxOffice(t *testing.T, chunks chunkTable, dir string) (*TaxOffice, *Ledger) {
	t.Helper()
	l, _, _ := newTestLedger(t, ledgerOpts{})
	var store *persistence.Store
	if dir != "" {
		store = persistence.NewStore(dir, "tax.json")
	}
	o := NewTaxOffice(TaxConfig{PropertyPerChunk: dec("50"), PeriodDays: 7}, l, chunks, store, nil, nil)
	return o, l
}

func TestTaxCollectedOncePerPeriod(t *testing.T) {
	actor := uuid.New()
	o, l := newTestTaxOffice(t, chunkTable{actor: 4}, "")
	require.NoError(t, l.Deposit(actor, dec("20000"), models.TxDeposit, ""))

	o.ProcessDay(3)
	requireBalance(t, l, actor, "20000")

	o.ProcessDay(7)
	// 1000 income + 4 chunks x 50
	requireBalance(t, l, actor, "18800")
	assert.True(t, o.TreasuryBalance().Equal(dec("1200")))

	o.ProcessDay(10)
	requireBalance(t, l, actor, "18800")

	o.ProcessDay(14)
	requireBalance(t, l, actor, "17720")
}

func TestTaxSkipsTreasury(t *testing.T) {
	o, l := newTestTaxOffice(t, nil, "")
	require.NoError(t, l.Deposit(models.TreasuryID, dec("500000"), models.TxDeposit, ""))
	o.ProcessDay(7)
	requireBalance(t, l, models.TreasuryID, "500000")
}

func TestUncollectableTaxBecomesDebt(t *testing.T) {
	actor := uuid.New()
	o, l := newTestTaxOffice(t, chunkTable{actor: 10}, "")
	l.EnsureAccount(actor)

	o.ProcessDay(7)
	assert.True(t, o.Debt(actor).Equal(dec("500")))
	o.ProcessDay(14)
	assert.True(t, o.Debt(actor).Equal(dec("1000")))

	require.NoError(t, l.Deposit(actor, dec("400"), models.TxDeposit, ""))
	assert.ErrorIs(t, o.PayDebt(actor), models.ErrInsufficientFunds)

	require.NoError(t, l.Deposit(actor, dec("600"), models.TxDeposit, ""))
	require.NoError(t, o.PayDebt(actor))
	requireBalance(t, l, actor, "0")
	assert.True(t, o.Debt(actor).IsZero())
	assert.True(t, o.TreasuryBalance().Equal(dec("1000")))
	assert.ErrorIs(t, o.PayDebt(actor), models.ErrNoTaxDebt)
}

func TestTaxOfficeFlushAndLoad(t *testing.T) {
	dir := t.TempDir()
	actor := uuid.New()
	o, l := newTestTaxOffice(t, chunkTable{actor: 2}, dir)
	l.EnsureAccount(actor)
	o.ProcessDay(7)
	require.NoError(t, o.Flush())

	restored, rl := newTestTaxOffice(t, chunkTable{actor: 2}, dir)
	require.NoError(t, restored.Load())
	assert.True(t, restored.Debt(actor).Equal(dec("100")))

	rl.EnsureAccount(actor)
	restored.ProcessDay(8)
	assert.True(t, restored.Debt(actor).Equal(dec("100")), "period restarts from the persisted day")
}
