package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "simecon"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	transactions *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	flushes      *prometheus.CounterVec
	cyclePhase   *prometheus.GaugeVec
	cycleMult    prometheus.Gauge
	moneySupply  prometheus.Gauge
	inflation    prometheus.Gauge
	loans        *prometheus.CounterVec
	quotes       *prometheus.CounterVec
	relayed      *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers on reg, which lets tests use a private registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		transactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transactions_total",
			Help: "Ledger operations by transaction type and result",
		}, []string{"type", "result"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rate_limited_total",
			Help: "Operations rejected by the rate limiter",
		}, []string{"class"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "operation_duration_seconds",
			Help:    "Duration of operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		flushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "persistence_flushes_total",
			Help: "Snapshot flushes by subsystem and result",
		}, []string{"subsystem", "result"}),
		cyclePhase: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cycle_phase",
			Help: "1 for the active economic cycle phase",
		}, []string{"phase"}),
		cycleMult: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cycle_multiplier",
			Help: "Current interpolated cycle multiplier",
		}),
		moneySupply: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "money_supply",
			Help: "Sum of all positive balances",
		}),
		inflation: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "inflation_rate",
			Help: "Money supply change since the previous sample",
		}),
		loans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "loan_events_total",
			Help: "Loan lifecycle events",
		}, []string{"event"}),
		quotes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "quotes_total",
			Help: "Price quotes served by side",
		}, []string{"side"}),
		relayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "relayed_transactions_total",
			Help: "Transactions handed to the relay backend",
		}, []string{"backend"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total",
			Help: "Errors by kind",
		}, []string{"type"}),
	}
}

func (r *Recorder) RecordTransaction(txType, result string) {
	r.transactions.WithLabelValues(txType, result).Inc()
}

func (r *Recorder) RecordRateLimited(class string) {
	r.rateLimited.WithLabelValues(class).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordFlush(subsystem string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.flushes.WithLabelValues(subsystem, result).Inc()
}

// RecordCycle flips the phase gauge and sets the multiplier.
func (r *Recorder) RecordCycle(phase string, multiplier float64) {
	r.cyclePhase.Reset()
	r.cyclePhase.WithLabelValues(phase).Set(1)
	r.cycleMult.Set(multiplier)
}

func (r *Recorder) RecordMoneySupply(total, inflation float64) {
	r.moneySupply.Set(total)
	r.inflation.Set(inflation)
}

func (r *Recorder) RecordLoan(event string) {
	r.loans.WithLabelValues(event).Inc()
}

func (r *Recorder) RecordQuote(side string) {
	r.quotes.WithLabelValues(side).Inc()
}

func (r *Recorder) RecordRelay(backend string, n int) {
	r.relayed.WithLabelValues(backend).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
