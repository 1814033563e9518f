package cycle

import (
	"math/rand"
	"sync"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	"SimEcon/pkg/logger"
	"SimEcon/pkg/persistence"
)

// Listener receives the multiplier after every recompute.
type Listener func(phase models.Phase, multiplier float64)

// EventHook is called when the daily event roll of the current phase hits.
type EventHook func(phase models.Phase)

// Cycle is the economic phase state machine. It advances once per simulated
// day and interpolates the sell multiplier between phases so prices never
// jump on a day tick.
type Cycle struct {
	mu    sync.Mutex
	state models.CycleState
	rng   *rand.Rand

	lmu       sync.RWMutex
	listeners []Listener
	onEvent   EventHook

	store   *persistence.Store
	tracker *persistence.Tracker
	metrics repository.Metrics
	log     *logger.Logger
}

// New starts in NORMAL with a rolled duration. store and metrics may be nil.
func New(rng *rand.Rand, store *persistence.Store, metrics repository.Metrics, log *logger.Logger) *Cycle {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Cycle{
		rng:     rng,
		store:   store,
		tracker: persistence.NewTracker(),
		metrics: metrics,
		log:     log,
	}
	days := c.roll(models.PhaseNormal)
	c.state = models.CycleState{
		Phase:              models.PhaseNormal,
		RemainingDays:      days,
		PhaseTotalDays:     days,
		CurrentMultiplier:  1.0,
		PreviousMultiplier: 1.0,
	}
	return c
}

// Subscribe registers a multiplier listener.
func (c *Cycle) Subscribe(l Listener) {
	c.lmu.Lock()
	c.listeners = append(c.listeners, l)
	c.lmu.Unlock()
}

func (c *Cycle) SetEventHook(h EventHook) {
	c.lmu.Lock()
	c.onEvent = h
	c.lmu.Unlock()
}

// roll draws a duration in [MinDays, MaxDays]. Caller holds mu or owns c.
func (c *Cycle) roll(p models.Phase) int {
	s := p.Spec()
	return s.MinDays + c.rng.Intn(s.MaxDays-s.MinDays+1)
}

func smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// interpolate recomputes the current multiplier from phase progress.
func (c *Cycle) interpolate() {
	st := &c.state
	progress := 1.0
	if st.PhaseTotalDays > 0 {
		progress = 1 - float64(st.RemainingDays)/float64(st.PhaseTotalDays)
	}
	target := st.Phase.Spec().SellMultiplier
	st.CurrentMultiplier = st.PreviousMultiplier + (target-st.PreviousMultiplier)*smoothstep(progress)
}

// OnNewDay advances the cycle by one simulated day.
func (c *Cycle) OnNewDay() {
	c.mu.Lock()
	st := &c.state
	st.TotalDaysElapsed++
	st.RemainingDays--
	c.interpolate()

	transitioned := false
	from := st.Phase
	if st.RemainingDays <= 0 {
		c.transition()
		transitioned = true
	}
	phase, mult := st.Phase, st.CurrentMultiplier
	event := c.rng.Float64() < phase.Spec().EventChance
	snapshot := *st
	c.mu.Unlock()

	c.tracker.MarkDirty()
	if transitioned {
		c.log.Info("cycle.transition",
			logger.String("from", string(from)), logger.String("to", string(phase)),
			logger.Int("days", snapshot.PhaseTotalDays), logger.Int("completed_cycles", snapshot.CompletedCycles))
	}
	c.push(phase, mult)
	if event {
		c.fireEvent(phase)
	}
}

// transition moves to the next phase. The outgoing phase's target becomes
// the start of the next interpolation. Caller holds mu.
func (c *Cycle) transition() {
	st := &c.state
	st.PreviousMultiplier = st.Phase.Spec().SellMultiplier
	next := st.Phase.Next()
	if st.Phase == models.PhaseRecovery && next == models.PhaseNormal {
		st.CompletedCycles++
	}
	st.Phase = next
	st.RemainingDays = c.roll(next)
	st.PhaseTotalDays = st.RemainingDays
}

// ForcePhase jumps to phase for days (rolled when days <= 0). The
// multiplier keeps its current value and interpolates from there.
func (c *Cycle) ForcePhase(phase models.Phase, days int) {
	c.mu.Lock()
	st := &c.state
	from := st.Phase
	st.PreviousMultiplier = st.CurrentMultiplier
	st.Phase = phase
	if days <= 0 {
		days = c.roll(phase)
	}
	st.RemainingDays = days
	st.PhaseTotalDays = days
	mult := st.CurrentMultiplier
	c.mu.Unlock()

	c.tracker.MarkDirty()
	c.log.Info("cycle.force_phase",
		logger.String("from", string(from)), logger.String("to", string(phase)), logger.Int("days", days))
	c.push(phase, mult)
}

// AccelerateTransition shortens the current phase, never below one day.
func (c *Cycle) AccelerateTransition(days int) {
	c.mu.Lock()
	st := &c.state
	st.RemainingDays -= days
	if st.RemainingDays < 1 {
		st.RemainingDays = 1
	}
	remaining := st.RemainingDays
	c.mu.Unlock()
	c.tracker.MarkDirty()
	c.log.Debug("cycle.accelerate", logger.Int("days", days), logger.Int("remaining", remaining))
}

func (c *Cycle) push(phase models.Phase, mult float64) {
	if c.metrics != nil {
		c.metrics.RecordCycle(string(phase), mult)
	}
	c.lmu.RLock()
	ls := c.listeners
	c.lmu.RUnlock()
	for _, l := range ls {
		l(phase, mult)
	}
}

func (c *Cycle) fireEvent(phase models.Phase) {
	c.lmu.RLock()
	h := c.onEvent
	c.lmu.RUnlock()
	if h != nil {
		h(phase)
	}
}

func (c *Cycle) State() models.CycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Cycle) Phase() models.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase
}

// Multiplier is the current interpolated sell multiplier.
func (c *Cycle) Multiplier() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CurrentMultiplier
}

// SalaryMultiplier is the static salary multiplier of the current phase.
func (c *Cycle) SalaryMultiplier() float64 {
	return c.Phase().Spec().SalaryMultiplier
}

func (c *Cycle) Name() string               { return "cycle" }
func (c *Cycle) Health() persistence.Health { return c.tracker.Health() }

// Load restores the saved state and pushes it to listeners. An unknown
// phase in the document keeps the fresh state.
func (c *Cycle) Load() error {
	if c.store == nil {
		return nil
	}
	var st models.CycleState
	outcome, err := c.store.Load(&st)
	n := 0
	if err == nil && outcome != persistence.OutcomeFresh {
		if _, ok := models.ParsePhase(string(st.Phase)); ok {
			if st.PhaseTotalDays < 1 {
				st.PhaseTotalDays = 1
			}
			c.mu.Lock()
			c.state = st
			c.mu.Unlock()
			n = 1
		} else {
			c.log.Warn("cycle.load unknown phase", logger.String("phase", string(st.Phase)))
		}
	}
	c.tracker.Loaded(outcome, err, n)
	if err != nil {
		c.log.Error("cycle.load failed", logger.Error(err), logger.String("outcome", outcome.String()))
	} else {
		c.log.Info("cycle.loaded", logger.String("outcome", outcome.String()))
	}
	cur := c.State()
	c.push(cur.Phase, cur.CurrentMultiplier)
	return err
}

func (c *Cycle) Flush() error {
	if c.store == nil || !c.tracker.TakeDirty() {
		return nil
	}
	st := c.State()
	err := c.store.Save(st)
	c.tracker.Saved(err, 1)
	if c.metrics != nil {
		c.metrics.RecordFlush(c.Name(), err)
	}
	return err
}
