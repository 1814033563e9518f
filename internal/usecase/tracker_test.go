package usecase

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SimEcon/internal/domain/models"
	"SimEcon/pkg/persistence"
)

func accountsWorth(values ...string) []models.Account {
	out := make([]models.Account, len(values))
	for i, v := range values {
		out[i] = models.Account{Actor: uuid.New(), Balance: dec(v)}
	}
	return out
}

func TestInflationAdjustment(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur string
		want      float64
		high, low bool
	}{
		{"stable", "1000", "1010", 1.0, false, false},
		{"high inflation", "1000", "1250", 0.9, true, false},
		{"moderate inflation", "1000", "1100", 0.975, true, false},
		{"deflation", "1000", "900", 1.04, false, true},
		{"crash", "1000", "500", 1.1, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewEconomyTracker(0.05, -0.02, nil, nil, nil)
			tr.UpdateMoneySupply(accountsWorth(tt.prev))
			tr.UpdateMoneySupply(accountsWorth(tt.cur))
			assert.InDelta(t, tt.want, tr.InflationAdjustment(), 1e-9)
			assert.Equal(t, tt.high, tr.IsInflationHigh())
			assert.Equal(t, tt.low, tr.IsDeflationHigh())
		})
	}
}

func TestFirstSupplySampleHasNoInflation(t *testing.T) {
	tr := NewEconomyTracker(0.05, -0.02, nil, nil, nil)
	tr.UpdateMoneySupply(accountsWorth("100", "250.50"))
	s := tr.Stats()
	assert.InDelta(t, 350.5, s.TotalMoneySupply, 1e-9)
	assert.Equal(t, 2, s.ActiveAccounts)
	assert.Zero(t, s.InflationRate)
	assert.Equal(t, 1.0, tr.InflationAdjustment())
}

func TestTradeVolumeAndDailyReset(t *testing.T) {
	tr := NewEconomyTracker(0.05, -0.02, nil, nil, nil)
	actor := uuid.New()
	tr.OnSale(actor, models.CategoryCannabis, 3, 120)
	tr.OnSale(actor, models.CategoryCannabis, 1, 40)
	tr.OnPurchase(models.CategoryFood, 5, 25)

	s := tr.Stats()
	assert.EqualValues(t, 4, s.CategorySales[models.CategoryCannabis])
	assert.EqualValues(t, 5, s.CategoryPurchases[models.CategoryFood])
	assert.InDelta(t, 160, s.CategoryRevenue[models.CategoryCannabis], 1e-9)
	assert.InDelta(t, 185, s.DailyVolume, 1e-9)
	assert.InDelta(t, 160, tr.DailyEarnings(actor), 1e-9)

	tr.OnNewDay()
	s = tr.Stats()
	assert.Zero(t, s.DailyVolume)
	assert.InDelta(t, 185, s.TotalVolume, 1e-9)
	assert.Zero(t, tr.DailyEarnings(actor))
}

func TestTrackerFlushAndLoad(t *testing.T) {
	dir := t.TempDir()
	tr := NewEconomyTracker(0.05, -0.02, persistence.NewStore(dir, "economy_tracker.json"), nil, nil)
	tr.UpdateMoneySupply(accountsWorth("1000"))
	tr.UpdateMoneySupply(accountsWorth("1200"))
	tr.OnSale(uuid.New(), models.CategoryTool, 2, 30)
	require.NoError(t, tr.Flush())

	restored := NewEconomyTracker(0.05, -0.02, persistence.NewStore(dir, "economy_tracker.json"), nil, nil)
	require.NoError(t, restored.Load())
	s := restored.Stats()
	assert.InDelta(t, 0.2, s.InflationRate, 1e-9)
	assert.EqualValues(t, 2, s.CategorySales[models.CategoryTool])
	assert.True(t, restored.IsInflationHigh())
}
