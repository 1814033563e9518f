package cycle

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SimEcon/internal/domain/models"
	"SimEcon/pkg/persistence"
)

func newTestCycle(t *testing.T, store *persistence.Store) *Cycle {
	t.Helper()
	return New(rand.New(rand.NewSource(42)), store, nil, nil)
}

func TestNewStartsInNormal(t *testing.T) {
	c := newTestCycle(t, nil)
	st := c.State()
	assert.Equal(t, models.PhaseNormal, st.Phase)
	assert.Equal(t, 1.0, st.CurrentMultiplier)
	spec := models.PhaseNormal.Spec()
	assert.GreaterOrEqual(t, st.RemainingDays, spec.MinDays)
	assert.LessOrEqual(t, st.RemainingDays, spec.MaxDays)
	assert.Equal(t, st.RemainingDays, st.PhaseTotalDays)
}

func TestForcedBoomRisesMonotonically(t *testing.T) {
	c := newTestCycle(t, nil)
	var pushed []float64
	c.Subscribe(func(_ models.Phase, m float64) { pushed = append(pushed, m) })

	c.ForcePhase(models.PhaseBoom, 5)
	require.Len(t, pushed, 1)
	assert.Equal(t, 1.0, pushed[0], "forcing a phase must not jump the multiplier")

	for i := 0; i < 5; i++ {
		c.OnNewDay()
	}
	ticks := pushed[1:]
	require.Len(t, ticks, 5)

	prev := 1.0
	for i, m := range ticks {
		assert.Greater(t, m, prev, "tick %d", i+1)
		if i < len(ticks)-1 {
			assert.Less(t, m, 1.20-1e-9, "tick %d reached the target early", i+1)
		}
		prev = m
	}
	assert.InDelta(t, 1.20, ticks[4], 1e-9)

	st := c.State()
	assert.Equal(t, models.PhaseOverheat, st.Phase)
	assert.InDelta(t, 1.20, st.PreviousMultiplier, 1e-9)
	assert.InDelta(t, 1.20, st.CurrentMultiplier, 1e-9)
}

func TestTransitionRestartsFromOutgoingValue(t *testing.T) {
	c := newTestCycle(t, nil)
	c.ForcePhase(models.PhaseBoom, 2)
	c.OnNewDay()
	c.OnNewDay()
	require.Equal(t, models.PhaseOverheat, c.Phase())
	at := c.Multiplier()

	c.OnNewDay()
	next := c.Multiplier()
	assert.Greater(t, next, at)
	assert.Less(t, next, models.PhaseOverheat.Spec().SellMultiplier)
}

func TestMultiplierIsContinuousOverManyCycles(t *testing.T) {
	c := newTestCycle(t, nil)
	prev := c.Multiplier()
	for day := 0; day < 500; day++ {
		c.OnNewDay()
		m := c.Multiplier()
		assert.LessOrEqual(t, math.Abs(m-prev), 0.25, "day %d", day)
		assert.GreaterOrEqual(t, m, 0.70-1e-9)
		assert.LessOrEqual(t, m, 1.35+1e-9)
		prev = m
	}
	assert.Positive(t, c.State().CompletedCycles)
	assert.EqualValues(t, 500, c.State().TotalDaysElapsed)
}

func TestRecoveryToNormalCompletesCycle(t *testing.T) {
	c := newTestCycle(t, nil)
	c.ForcePhase(models.PhaseRecovery, 1)
	c.OnNewDay()
	st := c.State()
	assert.Equal(t, models.PhaseNormal, st.Phase)
	assert.Equal(t, 1, st.CompletedCycles)
}

func TestAccelerateTransitionFloorsAtOneDay(t *testing.T) {
	c := newTestCycle(t, nil)
	c.ForcePhase(models.PhaseNormal, 10)
	c.AccelerateTransition(3)
	assert.Equal(t, 7, c.State().RemainingDays)
	c.AccelerateTransition(100)
	assert.Equal(t, 1, c.State().RemainingDays)
	assert.Equal(t, 10, c.State().PhaseTotalDays)
}

func TestForcePhaseRollsDurationWhenUnset(t *testing.T) {
	c := newTestCycle(t, nil)
	c.ForcePhase(models.PhaseDepression, 0)
	st := c.State()
	spec := models.PhaseDepression.Spec()
	assert.GreaterOrEqual(t, st.RemainingDays, spec.MinDays)
	assert.LessOrEqual(t, st.RemainingDays, spec.MaxDays)
}

func TestEventHookFires(t *testing.T) {
	c := newTestCycle(t, nil)
	events := 0
	c.SetEventHook(func(models.Phase) { events++ })
	c.ForcePhase(models.PhaseDepression, 1000)
	for i := 0; i < 200; i++ {
		c.OnNewDay()
	}
	// a 25% daily chance over 200 days
	assert.Greater(t, events, 10)
	assert.Less(t, events, 100)
}

func TestFlushAndLoad(t *testing.T) {
	dir := t.TempDir()
	c := newTestCycle(t, persistence.NewStore(dir, "cycle.json"))
	c.ForcePhase(models.PhaseRecession, 6)
	c.OnNewDay()
	c.OnNewDay()
	require.NoError(t, c.Flush())
	want := c.State()

	restored := newTestCycle(t, persistence.NewStore(dir, "cycle.json"))
	var pushed float64
	restored.Subscribe(func(_ models.Phase, m float64) { pushed = m })
	require.NoError(t, restored.Load())
	assert.Equal(t, want, restored.State())
	assert.Equal(t, want.CurrentMultiplier, pushed)
	assert.True(t, restored.Health().Healthy)
	assert.Equal(t, 1, restored.Health().Records)
}

func TestFlushSkipsWhenClean(t *testing.T) {
	dir := t.TempDir()
	store := persistence.NewStore(dir, "cycle.json")
	c := newTestCycle(t, store)
	require.NoError(t, c.Flush())
	outcome, err := store.Load(&models.CycleState{})
	require.NoError(t, err)
	assert.Equal(t, persistence.OutcomeFresh, outcome)
}
