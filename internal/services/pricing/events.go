package pricing

import (
	"sync"
	"time"

	"SimEcon/internal/domain/models"
)

// EventBoard holds active pricing events and the per-category product of
// their multipliers, recomputed on Refresh.
type EventBoard struct {
	mu          sync.RWMutex
	events      map[string]models.PricingEvent
	multipliers map[models.ItemCategory]float64
}

func NewEventBoard() *EventBoard {
	return &EventBoard{
		events:      make(map[string]models.PricingEvent),
		multipliers: make(map[models.ItemCategory]float64),
	}
}

// Add registers or replaces an event by id. It takes effect on the next Refresh.
func (b *EventBoard) Add(e models.PricingEvent) {
	b.mu.Lock()
	b.events[e.ID] = e
	b.mu.Unlock()
}

func (b *EventBoard) Remove(id string) {
	b.mu.Lock()
	delete(b.events, id)
	b.mu.Unlock()
}

// Refresh drops expired events and rebuilds the category multipliers.
func (b *EventBoard) Refresh(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mults := make(map[models.ItemCategory]float64)
	for id, e := range b.events {
		if !e.Active(now) {
			delete(b.events, id)
			continue
		}
		for _, cat := range e.Categories {
			if m, ok := mults[cat]; ok {
				mults[cat] = m * e.Multiplier
			} else {
				mults[cat] = e.Multiplier
			}
		}
	}
	b.multipliers = mults
}

// Multiplier is 1.0 for categories without active events.
func (b *EventBoard) Multiplier(cat models.ItemCategory) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if m, ok := b.multipliers[cat]; ok {
		return m
	}
	return 1.0
}

// Active lists the events kept by the last Refresh.
func (b *EventBoard) Active() []models.PricingEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.PricingEvent, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e)
	}
	return out
}
