package pricing

import "sync"

// MarketBoard stores the latest warehouse fill ratio per product.
type MarketBoard struct {
	mu   sync.RWMutex
	fill map[string]float64
}

func NewMarketBoard() *MarketBoard {
	return &MarketBoard{fill: make(map[string]float64)}
}

// SetFill clamps ratio to [0,1].
func (m *MarketBoard) SetFill(product string, ratio float64) {
	m.mu.Lock()
	m.fill[product] = clamp(ratio, 0, 1)
	m.mu.Unlock()
}

// FillRatio returns false when no signal has been received for product.
func (m *MarketBoard) FillRatio(product string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fill[product]
	return f, ok
}
