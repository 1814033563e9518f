package usecase

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/services/pricing"
)

func newTestTradeDesk(t *testing.T) (*TradeDesk, *Ledger, *EconomyTracker) {
	t.Helper()
	l, _, _ := newTestLedger(t, ledgerOpts{})
	engine := pricing.NewEngine(pricing.DefaultBounds, pricing.NewMarketBoard(), pricing.NewRiskPremium(nil), pricing.NewEventBoard())
	engine.RegisterProduct("bread", 10, models.CategoryFood)
	engine.RegisterProduct("weed", 50, models.CategoryCannabis)
	tr := NewEconomyTracker(0.05, -0.02, nil, nil, nil)
	return NewTradeDesk(engine, l, tr, nil, nil), l, tr
}

func TestSellCreditsNetAndTaxesLegalGoods(t *testing.T) {
	d, l, tr := newTestTradeDesk(t)
	actor := uuid.New()

	q, err := d.Sell(actor, "bread", 1.0, 10)
	require.NoError(t, err)
	assert.InDelta(t, 100, q.Total, 1e-9)
	assert.InDelta(t, 19, q.Tax, 1e-9)
	assert.InDelta(t, 81, q.Net, 1e-9)
	requireBalance(t, l, actor, "81")
	requireBalance(t, l, models.TreasuryID, "19")

	s := tr.Stats()
	assert.EqualValues(t, 10, s.CategorySales[models.CategoryFood])
	assert.InDelta(t, 81, tr.DailyEarnings(actor), 1e-9)
}

func TestSellIllegalGoodsIsUntaxed(t *testing.T) {
	d, l, _ := newTestTradeDesk(t)
	actor := uuid.New()
	q, err := d.Sell(actor, "weed", 1.0, 1)
	require.NoError(t, err)
	assert.Zero(t, q.Tax)
	assert.True(t, l.GetBalance(actor).Equal(models.Money(q.Net)))
	assert.False(t, l.Exists(models.TreasuryID))
}

func TestBuyRequiresFunds(t *testing.T) {
	d, l, tr := newTestTradeDesk(t)
	actor := uuid.New()

	_, err := d.Buy(actor, "bread", 1)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.Empty(t, tr.Stats().CategoryPurchases)

	require.NoError(t, l.Deposit(actor, dec("100"), models.TxDeposit, ""))
	q, err := d.Buy(actor, "bread", 3)
	require.NoError(t, err)
	assert.InDelta(t, 30, q.Total, 1e-9)
	requireBalance(t, l, actor, "70")
	assert.EqualValues(t, 3, tr.Stats().CategoryPurchases[models.CategoryFood])

	_, err = d.Buy(actor, "bread", 0)
	assert.ErrorIs(t, err, models.ErrNegativeAmount)
}

func TestQuoteDefaultsToSellSide(t *testing.T) {
	d, _, _ := newTestTradeDesk(t)
	q := d.Quote("", "unknown-thing", 1.0, 2)
	assert.Equal(t, SideSell, q.Side)
	assert.Equal(t, models.CategoryOther, q.Category)
	assert.InDelta(t, 20, q.Total, 1e-9)
}
