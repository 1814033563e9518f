package ratelimit

import (
	"sync"
	"time"

	"SimEcon/internal/domain/models"
	"SimEcon/pkg/util"
)

// Policy caps operations of one class to Max inside a sliding Window.
type Policy struct {
	Max    int
	Window time.Duration
}

// Limiter throttles actor-initiated operations per (actor, class).
// Classes without a policy are never throttled.
type Limiter interface {
	// Allow reports whether one more operation fits the window.
	Allow(actor models.ActorID, class string) bool
	// Record counts an operation that was performed.
	Record(actor models.ActorID, class string)
	// TryAcquire is Allow and Record in one step.
	TryAcquire(actor models.ActorID, class string) bool
	// Cleanup evicts keys idle for longer than idle and returns how many.
	Cleanup(idle time.Duration) int
}

type key struct {
	actor models.ActorID
	class string
}

type window struct {
	stamps []time.Time // ascending
	last   time.Time
}

// prune drops stamps that fell out of the window.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

type shard struct {
	mu sync.Mutex
	m  map[key]*window
}

// SlidingWindow is the in-process limiter. Keys are spread over shards so
// unrelated actors do not contend on one mutex.
type SlidingWindow struct {
	shards   []*shard
	policies map[string]Policy
	now      func() time.Time
}

func NewSlidingWindow(policies map[string]Policy, shards int) *SlidingWindow {
	if shards < 1 {
		shards = 1
	}
	l := &SlidingWindow{
		shards:   make([]*shard, shards),
		policies: policies,
		now:      time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{m: make(map[key]*window)}
	}
	return l
}

func (l *SlidingWindow) shardFor(actor models.ActorID) *shard {
	return l.shards[util.ShardIndex(actor, len(l.shards))]
}

func (l *SlidingWindow) Allow(actor models.ActorID, class string) bool {
	p, ok := l.policies[class]
	if !ok {
		return true
	}
	now := l.now()
	s := l.shardFor(actor)
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.m[key{actor, class}]
	if !ok {
		return true
	}
	w.prune(now.Add(-p.Window))
	return len(w.stamps) < p.Max
}

func (l *SlidingWindow) Record(actor models.ActorID, class string) {
	p, ok := l.policies[class]
	if !ok {
		return
	}
	now := l.now()
	s := l.shardFor(actor)
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.window(key{actor, class})
	w.prune(now.Add(-p.Window))
	w.stamps = append(w.stamps, now)
	w.last = now
}

func (l *SlidingWindow) TryAcquire(actor models.ActorID, class string) bool {
	p, ok := l.policies[class]
	if !ok {
		return true
	}
	now := l.now()
	s := l.shardFor(actor)
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.window(key{actor, class})
	w.prune(now.Add(-p.Window))
	w.last = now
	if len(w.stamps) >= p.Max {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

func (l *SlidingWindow) Cleanup(idle time.Duration) int {
	cutoff := l.now().Add(-idle)
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for k, w := range s.m {
			if w.last.Before(cutoff) {
				delete(s.m, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len is the number of tracked keys.
func (l *SlidingWindow) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.m)
		s.mu.Unlock()
	}
	return n
}

func (s *shard) window(k key) *window {
	w, ok := s.m[k]
	if !ok {
		w = &window{}
		s.m[k] = w
	}
	return w
}
