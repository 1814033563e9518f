package usecase

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	"SimEcon/pkg/logger"
	"SimEcon/pkg/persistence"
	"SimEcon/pkg/util"
)

type journalShard struct {
	mu   sync.RWMutex
	logs map[models.ActorID][]models.Transaction // oldest first
}

// Journal is the per-actor append-only transaction log. Each actor keeps at
// most maxPerActor entries, and Rotate drops entries past the retention age.
type Journal struct {
	snapshotter
	shards      []*journalShard
	maxPerActor int
	retention   time.Duration
	log         *logger.Logger
}

func NewJournal(maxPerActor int, retention time.Duration, shards int, store *persistence.Store, metrics repository.Metrics, log *logger.Logger) *Journal {
	if shards < 1 {
		shards = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	j := &Journal{
		snapshotter: newSnapshotter("transactions", store, metrics),
		shards:      make([]*journalShard, shards),
		maxPerActor: maxPerActor,
		retention:   retention,
		log:         log,
	}
	for i := range j.shards {
		j.shards[i] = &journalShard{logs: make(map[models.ActorID][]models.Transaction)}
	}
	return j
}

func (j *Journal) shardFor(actor models.ActorID) *journalShard {
	return j.shards[util.ShardIndex(actor, len(j.shards))]
}

// Append adds tx to its actor's log, trimming the oldest past the cap.
func (j *Journal) Append(tx models.Transaction) {
	s := j.shardFor(tx.Actor)
	s.mu.Lock()
	entries := append(s.logs[tx.Actor], tx)
	if j.maxPerActor > 0 && len(entries) > j.maxPerActor {
		entries = entries[len(entries)-j.maxPerActor:]
	}
	s.logs[tx.Actor] = entries
	s.mu.Unlock()
	j.markDirty()
}

// Recent returns up to limit entries, most recent first.
func (j *Journal) Recent(actor models.ActorID, limit int) []models.Transaction {
	s := j.shardFor(actor)
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.logs[actor]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]models.Transaction, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out
}

// ByType returns matching entries, oldest first.
func (j *Journal) ByType(actor models.ActorID, t models.TransactionType) []models.Transaction {
	return j.filter(actor, func(tx *models.Transaction) bool { return tx.Type == t })
}

// Between returns entries with from <= timestamp <= to, oldest first.
func (j *Journal) Between(actor models.ActorID, from, to time.Time) []models.Transaction {
	return j.filter(actor, func(tx *models.Transaction) bool {
		return !tx.Timestamp.Before(from) && !tx.Timestamp.After(to)
	})
}

func (j *Journal) filter(actor models.ActorID, keep func(*models.Transaction) bool) []models.Transaction {
	s := j.shardFor(actor)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Transaction
	for i := range s.logs[actor] {
		if keep(&s.logs[actor][i]) {
			out = append(out, s.logs[actor][i])
		}
	}
	return out
}

// TotalIncome sums positive amounts in the retained log.
func (j *Journal) TotalIncome(actor models.ActorID) decimal.Decimal {
	return j.sum(actor, models.Transaction.IsIncome)
}

// TotalExpense sums negative amounts, reported as a positive figure.
func (j *Journal) TotalExpense(actor models.ActorID) decimal.Decimal {
	return j.sum(actor, models.Transaction.IsExpense).Abs()
}

func (j *Journal) sum(actor models.ActorID, keep func(models.Transaction) bool) decimal.Decimal {
	s := j.shardFor(actor)
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, tx := range s.logs[actor] {
		if keep(tx) {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// Rotate removes entries older than the retention window and returns them
// so callers can archive them.
func (j *Journal) Rotate(now time.Time) []models.Transaction {
	if j.retention <= 0 {
		return nil
	}
	cutoff := now.Add(-j.retention)
	var evicted []models.Transaction
	for _, s := range j.shards {
		s.mu.Lock()
		for actor, entries := range s.logs {
			i := 0
			for i < len(entries) && entries[i].Timestamp.Before(cutoff) {
				i++
			}
			if i == 0 {
				continue
			}
			evicted = append(evicted, entries[:i]...)
			if i == len(entries) {
				delete(s.logs, actor)
			} else {
				s.logs[actor] = append(entries[:0:0], entries[i:]...)
			}
		}
		s.mu.Unlock()
	}
	if len(evicted) > 0 {
		j.markDirty()
		j.log.Info("journal.rotate", logger.Int("evicted", len(evicted)))
	}
	return evicted
}

// Count is the number of retained entries.
func (j *Journal) Count() int {
	n := 0
	for _, s := range j.shards {
		s.mu.RLock()
		for _, entries := range s.logs {
			n += len(entries)
		}
		s.mu.RUnlock()
	}
	return n
}

func (j *Journal) Load() error {
	var doc map[string][]models.Transaction
	outcome, err := j.load(&doc)
	n := 0
	if err == nil {
		for key, entries := range doc {
			actor, perr := models.ParseActor(key)
			if perr != nil {
				j.log.Warn("journal.load skip invalid actor", logger.String("actor", key))
				continue
			}
			s := j.shardFor(actor)
			s.mu.Lock()
			s.logs[actor] = entries
			s.mu.Unlock()
			n += len(entries)
		}
	}
	j.tracker.Loaded(outcome, err, n)
	if err != nil {
		j.log.Error("journal.load failed", logger.Error(err), logger.String("outcome", outcome.String()))
	}
	return err
}

func (j *Journal) Flush() error {
	return j.flush(func() (interface{}, int) {
		doc := make(map[string][]models.Transaction)
		n := 0
		for _, s := range j.shards {
			s.mu.RLock()
			for actor, entries := range s.logs {
				cp := make([]models.Transaction, len(entries))
				copy(cp, entries)
				doc[actor.String()] = cp
				n += len(cp)
			}
			s.mu.RUnlock()
		}
		return doc, n
	})
}
