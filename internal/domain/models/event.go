package models

import "time"

// PricingEvent is a time-boxed multiplier over a set of categories.
type PricingEvent struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Categories []ItemCategory `json:"categories"`
	Multiplier float64        `json:"multiplier"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

func (e PricingEvent) Active(now time.Time) bool { return now.Before(e.ExpiresAt) }

// EnforcementSignal carries policing pressure. Raid marks a discrete
// enforcement event; WantedLevel is applied when present.
type EnforcementSignal struct {
	WantedLevel *int      `json:"wanted_level,omitempty"`
	Raid        bool      `json:"raid"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// MarketSignal reports a warehouse fill ratio for a product.
type MarketSignal struct {
	Product   string    `json:"product"`
	FillRatio float64   `json:"fill_ratio"`
	At        time.Time `json:"at"`
}

// Quote is a priced line.
type Quote struct {
	Product  string       `json:"product"`
	Category ItemCategory `json:"category"`
	Side     string       `json:"side"`
	Quantity int          `json:"quantity"`
	Unit     float64      `json:"unit"`
	Total    float64      `json:"total"`
	Tax      float64      `json:"tax,omitempty"`
	Net      float64      `json:"net,omitempty"`
	Clamped  bool         `json:"clamped"`
}
