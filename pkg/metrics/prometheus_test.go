package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounters(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordTransaction("DEPOSIT", "ok")
	r.RecordTransaction("DEPOSIT", "ok")
	r.RecordRateLimited("transfer")
	r.RecordFlush("balances", nil)
	r.RecordFlush("balances", errors.New("disk full"))
	r.RecordRelay("kafka", 5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.transactions.WithLabelValues("DEPOSIT", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rateLimited.WithLabelValues("transfer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.flushes.WithLabelValues("balances", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.relayed.WithLabelValues("kafka")))
}

func TestRecordCycleKeepsSinglePhase(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordCycle("NORMAL", 1.0)
	r.RecordCycle("BOOM", 1.04)

	assert.Equal(t, 1, testutil.CollectAndCount(r.cyclePhase))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cyclePhase.WithLabelValues("BOOM")))
	assert.InDelta(t, 1.04, testutil.ToFloat64(r.cycleMult), 1e-9)
}
