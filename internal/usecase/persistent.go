package usecase

import (
	"SimEcon/internal/domain/repository"
	"SimEcon/pkg/persistence"
)

// Persistent is a subsystem backed by one snapshot document.
type Persistent interface {
	Name() string
	Load() error
	// Flush writes the snapshot when the subsystem is dirty.
	Flush() error
	Health() persistence.Health
}

// snapshotter is the shared Load/Flush plumbing embedded by subsystems.
type snapshotter struct {
	name    string
	store   *persistence.Store
	tracker *persistence.Tracker
	metrics repository.Metrics
}

func newSnapshotter(name string, store *persistence.Store, metrics repository.Metrics) snapshotter {
	return snapshotter{name: name, store: store, tracker: persistence.NewTracker(), metrics: orNop(metrics)}
}

func (s *snapshotter) Name() string               { return s.name }
func (s *snapshotter) Health() persistence.Health { return s.tracker.Health() }
func (s *snapshotter) markDirty()                 { s.tracker.MarkDirty() }

// load decodes into v and returns the outcome for the caller to count records.
func (s *snapshotter) load(v interface{}) (persistence.Outcome, error) {
	if s.store == nil {
		return persistence.OutcomeFresh, nil
	}
	return s.store.Load(v)
}

// flush saves the value produced by snapshot when dirty.
func (s *snapshotter) flush(snapshot func() (interface{}, int)) error {
	if s.store == nil || !s.tracker.TakeDirty() {
		return nil
	}
	v, n := snapshot()
	err := s.store.Save(v)
	s.tracker.Saved(err, n)
	s.metrics.RecordFlush(s.name, err)
	return err
}

type nopMetrics struct{}

func (nopMetrics) RecordTransaction(string, string)   {}
func (nopMetrics) RecordRateLimited(string)           {}
func (nopMetrics) RecordLatency(string, float64)      {}
func (nopMetrics) RecordFlush(string, error)          {}
func (nopMetrics) RecordCycle(string, float64)        {}
func (nopMetrics) RecordMoneySupply(float64, float64) {}
func (nopMetrics) RecordLoan(string)                  {}
func (nopMetrics) RecordQuote(string)                 {}
func (nopMetrics) RecordRelay(string, int)            {}
func (nopMetrics) RecordError(string)                 {}

func orNop(m repository.Metrics) repository.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
