package persistence

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Health is the operator-facing status of one persisted subsystem.
type Health struct {
	Healthy   bool   `json:"healthy"`
	LastError string `json:"last_error,omitempty"`
	Records   int    `json:"records"`
}

func (h Health) String() string {
	status := "healthy"
	if !h.Healthy {
		status = "unhealthy"
	}
	if h.LastError == "" {
		return fmt.Sprintf("%s (%d records)", status, h.Records)
	}
	return fmt.Sprintf("%s (%d records) last error: %s", status, h.Records, h.LastError)
}

// Tracker carries the dirty flag and health of a subsystem. Mutators call
// MarkDirty; the flush job calls TakeDirty and reports the result.
type Tracker struct {
	dirty atomic.Bool
	mu    sync.RWMutex
	h     Health
}

func NewTracker() *Tracker {
	return &Tracker{h: Health{Healthy: true}}
}

func (t *Tracker) MarkDirty()    { t.dirty.Store(true) }
func (t *Tracker) IsDirty() bool { return t.dirty.Load() }

// TakeDirty clears the flag and reports whether it was set.
func (t *Tracker) TakeDirty() bool { return t.dirty.Swap(false) }

// Loaded records the result of a Load.
func (t *Tracker) Loaded(outcome Outcome, err error, records int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.h.Records = records
	switch outcome {
	case OutcomeRecovered:
		t.h.Healthy = true
		t.h.LastError = "recovered from backup"
	case OutcomeEmpty:
		t.h.Healthy = false
		t.h.LastError = fmt.Sprintf("critical load failure - running with empty data: %v", err)
	default:
		t.h.Healthy = true
		t.h.LastError = ""
	}
}

// Saved records the result of a flush. A failed save re-marks the store
// dirty so the next flush retries. A successful save clears any earlier
// error, including a load failure: the document on disk is good again and
// the corrupt original stays quarantined next to it.
func (t *Tracker) Saved(err error, records int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.dirty.Store(true)
		t.h.Healthy = false
		t.h.LastError = err.Error()
		return
	}
	t.h.Healthy = true
	t.h.LastError = ""
	t.h.Records = records
}

func (t *Tracker) Health() Health {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.h
}
