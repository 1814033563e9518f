package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/services/pricing"
)

func TestPricingEventHandlerAddsActiveEvent(t *testing.T) {
	board := pricing.NewEventBoard()
	h := NewPricingEventHandler("simecon.pricing-events", board, nil, nil)
	h.now = func() time.Time { return testStart }

	msg := `{"name":"harbour strike","categories":["FOOD","TOOL"],"multiplier":1.3,"duration_minutes":60}`
	require.NoError(t, h.Handle(context.Background(), []byte(msg)))
	assert.InDelta(t, 1.3, board.Multiplier(models.CategoryFood), 1e-9)
	assert.InDelta(t, 1.3, board.Multiplier(models.CategoryTool), 1e-9)
	assert.Equal(t, 1.0, board.Multiplier(models.CategoryMeth))

	active := board.Active()
	require.Len(t, active, 1)
	assert.NotEmpty(t, active[0].ID)
	assert.Equal(t, testStart.Add(time.Hour), active[0].ExpiresAt)

	board.Refresh(testStart.Add(2 * time.Hour))
	assert.Equal(t, 1.0, board.Multiplier(models.CategoryFood))
}

func TestPricingEventHandlerRejectsInvalid(t *testing.T) {
	m := newMetricsSpy()
	h := NewPricingEventHandler("t", pricing.NewEventBoard(), m, nil)
	bad := []string{
		`not json`,
		`{"name":"x","categories":["FOOD"],"multiplier":0,"duration_minutes":5}`,
		`{"name":"x","categories":[],"multiplier":1.2,"duration_minutes":5}`,
		`{"name":"x","categories":["GOLD"],"multiplier":1.2,"duration_minutes":5}`,
		`{"name":"x","categories":["FOOD"],"multiplier":1.2}`,
	}
	for _, b := range bad {
		assert.Error(t, h.Handle(context.Background(), []byte(b)), b)
	}
	assert.Equal(t, 1, m.errorCount("signal_unmarshal"))
	assert.Equal(t, 4, m.errorCount("signal_invalid"))
}

func TestEnforcementHandler(t *testing.T) {
	risk := pricing.NewRiskPremium(nil)
	h := NewEnforcementHandler("simecon.enforcement", risk, nil, nil)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, []byte(`{"wanted_level":3}`)))
	assert.Equal(t, 3, risk.WantedLevel())
	assert.Zero(t, risk.RaidCount())

	require.NoError(t, h.Handle(ctx, []byte(`{"raid":true,"reason":"warehouse"}`)))
	assert.Equal(t, 3, risk.WantedLevel(), "absent wanted level keeps the current one")
	assert.Equal(t, 1, risk.RaidCount())

	require.NoError(t, h.Handle(ctx, []byte(`{"wanted_level":9}`)))
	assert.Equal(t, 5, risk.WantedLevel())
	assert.Error(t, h.Handle(ctx, []byte(`{`)))
}

func TestMarketHandler(t *testing.T) {
	market := pricing.NewMarketBoard()
	h := NewMarketHandler("simecon.market", market, nil)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, []byte(`{"product":"bread","fill_ratio":0.8}`)))
	fill, ok := market.FillRatio("bread")
	require.True(t, ok)
	assert.InDelta(t, 0.8, fill, 1e-9)

	require.NoError(t, h.Handle(ctx, []byte(`{"product":"bread","fill_ratio":1.7}`)))
	fill, _ = market.FillRatio("bread")
	assert.Equal(t, 1.0, fill)

	assert.Error(t, h.Handle(ctx, []byte(`{"fill_ratio":0.5}`)))
}
