package usecase

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	"SimEcon/internal/service/ratelimit"
	"SimEcon/internal/services/cycle"
	"SimEcon/internal/services/pricing"
	"SimEcon/pkg/logger"
	"SimEcon/pkg/persistence"
	"SimEcon/pkg/util"
)

type SimulationConfig struct {
	DayLength           time.Duration
	TickInterval        time.Duration
	FlushInterval       time.Duration
	RotationInterval    time.Duration
	CleanupInterval     time.Duration
	LimiterIdleTTL      time.Duration
	RaidDecayInterval   time.Duration
	MoneySupplyInterval time.Duration
	EventRefresh        time.Duration
}

type dayObserver struct {
	name string
	fn   func(day int64)
}

type job struct {
	name  string
	every time.Duration
	last  time.Time
	fn    func(ctx context.Context, now time.Time)
}

type simulationDocument struct {
	StartedAt time.Time `json:"started_at"`
	Day       int64     `json:"day"`
}

// Simulation is the single cooperative loop driving the economy: it turns
// wall time into simulated days and runs periodic maintenance.
type Simulation struct {
	snapshotter
	cfg SimulationConfig
	log *logger.Logger
	now func() time.Time

	mu        sync.Mutex
	startedAt time.Time
	day       int64
	observers []dayObserver
	jobs      []*job
	subs      []Persistent
}

func NewSimulation(cfg SimulationConfig, store *persistence.Store, metrics repository.Metrics, log *logger.Logger) *Simulation {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Simulation{
		snapshotter: newSnapshotter("simulation", store, metrics),
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// OnDay registers fn to run once per simulated day. Observers run in
// registration order.
func (s *Simulation) OnDay(name string, fn func(day int64)) {
	s.mu.Lock()
	s.observers = append(s.observers, dayObserver{name: name, fn: fn})
	s.mu.Unlock()
}

// Every registers a periodic job. Intervals <= 0 disable it.
func (s *Simulation) Every(name string, every time.Duration, fn func(ctx context.Context, now time.Time)) {
	if every <= 0 {
		return
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, &job{name: name, every: every, fn: fn})
	s.mu.Unlock()
}

// Register adds persisted subsystems to load, flush and health reporting.
func (s *Simulation) Register(subs ...Persistent) {
	s.mu.Lock()
	s.subs = append(s.subs, subs...)
	s.mu.Unlock()
}

func (s *Simulation) Day() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day
}

// AdvanceDay runs every day observer for the next day and returns it.
func (s *Simulation) AdvanceDay() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked()
}

func (s *Simulation) advanceLocked() int64 {
	s.day++
	day := s.day
	start := time.Now()
	for _, o := range s.observers {
		o.fn(day)
	}
	s.markDirty()
	s.metrics.RecordLatency("day", time.Since(start).Seconds())
	s.log.Info("simulation.day", logger.Int64("day", day), logger.Duration("took", time.Since(start)))
	return day
}

// Tick catches the day counter up with wall time and runs due jobs.
func (s *Simulation) Tick(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	if s.startedAt.IsZero() {
		s.startedAt = now
		s.markDirty()
	}
	target := util.SimDay(s.startedAt, now, s.cfg.DayLength)
	for s.day < target {
		s.advanceLocked()
	}
	var due []*job
	for _, j := range s.jobs {
		if now.Sub(j.last) >= j.every {
			j.last = now
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		j.fn(ctx, now)
	}
}

// Run ticks until ctx is done, then flushes every subsystem.
func (s *Simulation) Run(ctx context.Context) error {
	s.log.Info("simulation.start", logger.Int64("day", s.Day()), logger.Duration("day_length", s.cfg.DayLength))
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return s.Shutdown()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// LoadAll loads the simulation clock and every registered subsystem. A
// failed subsystem keeps running on empty data; the errors are joined.
func (s *Simulation) LoadAll() error {
	var errs []error
	if err := s.Load(); err != nil {
		errs = append(errs, err)
	}
	for _, p := range s.subsystems() {
		if err := p.Load(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FlushAll writes every dirty document.
func (s *Simulation) FlushAll() error {
	var errs []error
	for _, p := range s.subsystems() {
		if err := p.Flush(); err != nil {
			s.log.Error("simulation.flush failed", logger.String("subsystem", p.Name()), logger.Error(err))
			errs = append(errs, err)
		}
	}
	if err := s.Flush(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Simulation) Shutdown() error {
	err := s.FlushAll()
	s.log.Info("simulation.stopped", logger.Int64("day", s.Day()), logger.Bool("clean", err == nil))
	return err
}

// Health reports every persisted subsystem by name.
func (s *Simulation) Health() map[string]persistence.Health {
	subs := s.subsystems()
	out := make(map[string]persistence.Health, len(subs)+1)
	out[s.Name()] = s.snapshotter.Health()
	for _, p := range subs {
		out[p.Name()] = p.Health()
	}
	return out
}

func (s *Simulation) subsystems() []Persistent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Persistent, len(s.subs))
	copy(out, s.subs)
	return out
}

func (s *Simulation) Load() error {
	var doc simulationDocument
	outcome, err := s.load(&doc)
	n := 0
	if err == nil && outcome != persistence.OutcomeFresh {
		s.mu.Lock()
		s.startedAt, s.day = doc.StartedAt, doc.Day
		s.mu.Unlock()
		n = 1
	}
	s.tracker.Loaded(outcome, err, n)
	return err
}

func (s *Simulation) Flush() error {
	return s.flush(func() (interface{}, int) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return simulationDocument{StartedAt: s.startedAt, Day: s.day}, 1
	})
}

// Economy groups the components the simulation drives.
type Economy struct {
	Ledger    *Ledger
	Journal   *Journal
	Limiter   ratelimit.Limiter
	Cycle     *cycle.Cycle
	Pricing   *pricing.Engine
	Credit    *CreditTracker
	Loans     *LoanDesk
	Tax       *TaxOffice
	Overdraft *OverdraftDesk
	Savings   *SavingsBank
	Tracker   *EconomyTracker
	Archive   repository.TransactionArchive
}

// Attach wires e into the simulation: the cycle drives pricing, the
// tracker feeds inflation back into pricing and the cycle, and every
// component gets its day hook and maintenance job.
func (s *Simulation) Attach(e *Economy, rng *rand.Rand) {
	e.Pricing.SetInflationSource(e.Tracker)
	e.Cycle.Subscribe(func(_ models.Phase, mult float64) { e.Pricing.SetCycleMultiplier(mult) })
	e.Cycle.SetEventHook(func(phase models.Phase) {
		ev := pricing.RandomEvent(rng, s.now(), s.cfg.DayLength)
		e.Pricing.Events().Add(ev)
		s.log.Info("simulation.market_event", logger.String("event", ev.Name),
			logger.String("phase", string(phase)), logger.Float64("multiplier", ev.Multiplier))
	})

	// runs before the cycle so a hot economy shortens today's decrement
	s.OnDay("inflation", func(int64) {
		if !e.Tracker.IsInflationHigh() {
			return
		}
		if phase := e.Cycle.Phase(); phase == models.PhaseBoom || phase == models.PhaseOverheat {
			e.Cycle.AccelerateTransition(1)
		}
	})
	s.OnDay("cycle", func(int64) { e.Cycle.OnNewDay() })
	s.OnDay("credit", e.Credit.OnNewDay)
	s.OnDay("loans", e.Loans.ProcessDay)
	s.OnDay("tax", e.Tax.ProcessDay)
	s.OnDay("overdraft", e.Overdraft.ProcessDay)
	s.OnDay("savings", e.Savings.ProcessDay)
	s.OnDay("tracker", func(int64) { e.Tracker.OnNewDay() })

	s.Every("flush", s.cfg.FlushInterval, func(context.Context, time.Time) { _ = s.FlushAll() })
	s.Every("rotate", s.cfg.RotationInterval, func(ctx context.Context, now time.Time) {
		evicted := e.Journal.Rotate(now)
		if len(evicted) == 0 || e.Archive == nil {
			return
		}
		batch := make([]*models.Transaction, len(evicted))
		for i := range evicted {
			batch[i] = &evicted[i]
		}
		if err := e.Archive.StoreBatch(ctx, batch); err != nil {
			s.metrics.RecordError("archive_rotation")
			s.log.Error("simulation.archive failed", logger.Int("transactions", len(batch)), logger.Error(err))
		}
	})
	s.Every("limiter_cleanup", s.cfg.CleanupInterval, func(context.Context, time.Time) {
		if n := e.Limiter.Cleanup(s.cfg.LimiterIdleTTL); n > 0 {
			s.log.Debug("simulation.limiter_cleanup", logger.Int("evicted", n))
		}
	})
	s.Every("raid_decay", s.cfg.RaidDecayInterval, func(context.Context, time.Time) { e.Pricing.Risk().Decay() })
	s.Every("money_supply", s.cfg.MoneySupplyInterval, func(context.Context, time.Time) {
		e.Tracker.UpdateMoneySupply(e.Ledger.Accounts())
	})
	s.Every("event_refresh", s.cfg.EventRefresh, func(_ context.Context, now time.Time) { e.Pricing.Events().Refresh(now) })

	s.Register(e.Ledger, e.Journal, e.Cycle, e.Credit, e.Loans, e.Tax, e.Overdraft, e.Savings, e.Tracker)
}
