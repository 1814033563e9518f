package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"SimEcon/internal/domain/models"
	domrepo "SimEcon/internal/domain/repository"
	"SimEcon/internal/services/pricing"
	pkgkafka "SimEcon/pkg/kafka"
	"SimEcon/pkg/logger"
)

// pricingEventMessage is the wire form of a pricing event. Either
// expires_at or duration_minutes bounds it.
type pricingEventMessage struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Categories      []models.ItemCategory `json:"categories"`
	Multiplier      float64               `json:"multiplier"`
	ExpiresAt       time.Time             `json:"expires_at"`
	DurationMinutes int                   `json:"duration_minutes"`
}

// PricingEventHandler adds externally announced events to the event board.
type PricingEventHandler struct {
	topic   string
	board   *pricing.EventBoard
	metrics domrepo.Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewPricingEventHandler(topic string, board *pricing.EventBoard, metrics domrepo.Metrics, log *logger.Logger) *PricingEventHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &PricingEventHandler{topic: topic, board: board, metrics: orNop(metrics), log: log, now: time.Now}
}

func (h *PricingEventHandler) Topic() string { return h.topic }

func (h *PricingEventHandler) Handle(_ context.Context, b []byte) error {
	var m pricingEventMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("signal_unmarshal")
		return fmt.Errorf("decode pricing event: %w", err)
	}
	now := h.now()
	if err := m.validate(); err != nil {
		h.metrics.RecordError("signal_invalid")
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.ExpiresAt.IsZero() {
		m.ExpiresAt = now.Add(time.Duration(m.DurationMinutes) * time.Minute)
	}
	ev := models.PricingEvent{ID: m.ID, Name: m.Name, Categories: m.Categories, Multiplier: m.Multiplier, ExpiresAt: m.ExpiresAt}
	h.board.Add(ev)
	h.board.Refresh(now)
	h.log.Info("signal.pricing_event", logger.String("event", ev.Name),
		logger.Float64("multiplier", ev.Multiplier), logger.Int("categories", len(ev.Categories)))
	return nil
}

func (m pricingEventMessage) validate() error {
	if m.Multiplier <= 0 || math.IsNaN(m.Multiplier) || math.IsInf(m.Multiplier, 0) {
		return fmt.Errorf("pricing event %q: multiplier must be positive", m.Name)
	}
	if len(m.Categories) == 0 {
		return fmt.Errorf("pricing event %q: no categories", m.Name)
	}
	for _, c := range m.Categories {
		if _, ok := models.ParseCategory(string(c)); !ok {
			return fmt.Errorf("pricing event %q: unknown category %s", m.Name, c)
		}
	}
	if m.ExpiresAt.IsZero() && m.DurationMinutes <= 0 {
		return fmt.Errorf("pricing event %q: expires_at or duration_minutes required", m.Name)
	}
	return nil
}

// EnforcementHandler feeds wanted levels and raids into the risk premium.
type EnforcementHandler struct {
	topic   string
	risk    *pricing.RiskPremium
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewEnforcementHandler(topic string, risk *pricing.RiskPremium, metrics domrepo.Metrics, log *logger.Logger) *EnforcementHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &EnforcementHandler{topic: topic, risk: risk, metrics: orNop(metrics), log: log}
}

func (h *EnforcementHandler) Topic() string { return h.topic }

func (h *EnforcementHandler) Handle(_ context.Context, b []byte) error {
	var s models.EnforcementSignal
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("signal_unmarshal")
		return fmt.Errorf("decode enforcement signal: %w", err)
	}
	if s.WantedLevel != nil {
		h.risk.SetWantedLevel(*s.WantedLevel)
	}
	if s.Raid {
		h.risk.OnRaid(s.Reason)
	}
	h.log.Debug("signal.enforcement", logger.Int("wanted_level", h.risk.WantedLevel()),
		logger.Bool("raid", s.Raid), logger.Int("raids", h.risk.RaidCount()))
	return nil
}

// MarketHandler records warehouse fill ratios for supply/demand pricing.
type MarketHandler struct {
	topic   string
	market  *pricing.MarketBoard
	metrics domrepo.Metrics
}

func NewMarketHandler(topic string, market *pricing.MarketBoard, metrics domrepo.Metrics) *MarketHandler {
	return &MarketHandler{topic: topic, market: market, metrics: orNop(metrics)}
}

func (h *MarketHandler) Topic() string { return h.topic }

func (h *MarketHandler) Handle(_ context.Context, b []byte) error {
	var s models.MarketSignal
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("signal_unmarshal")
		return fmt.Errorf("decode market signal: %w", err)
	}
	if s.Product == "" || math.IsNaN(s.FillRatio) {
		h.metrics.RecordError("signal_invalid")
		return fmt.Errorf("market signal: product and fill_ratio required")
	}
	h.market.SetFill(s.Product, s.FillRatio)
	if !s.At.IsZero() {
		h.metrics.RecordLatency("signal_market_lag", time.Since(s.At).Seconds())
	}
	return nil
}

var (
	_ pkgkafka.MessageHandler = (*PricingEventHandler)(nil)
	_ pkgkafka.MessageHandler = (*EnforcementHandler)(nil)
	_ pkgkafka.MessageHandler = (*MarketHandler)(nil)
)
