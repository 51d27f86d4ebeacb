package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSettlementOnlyAddsAmountsWhenApplied(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry(), Config{ServiceName: "dreamline"})

	m.RecordSettlement("applied", "usd", 600, 1400)
	m.RecordSettlement("replayed", "usd", 600, 1400)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.settlements.WithLabelValues("applied")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.settlements.WithLabelValues("replayed")))
	assert.Equal(t, float64(600), testutil.ToFloat64(m.settledAmount.WithLabelValues("usd", "platform")))
	assert.Equal(t, float64(1400), testutil.ToFloat64(m.settledAmount.WithLabelValues("usd", "interpreter")))
}

func TestNewWithRegistererReusesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewWithRegisterer(registry, Config{})
	second := NewWithRegisterer(registry, Config{})

	first.RecordDuplicate()
	second.RecordDuplicate()

	assert.Equal(t, float64(2), testutil.ToFloat64(second.duplicates))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAdmission("free", "allowed")
		m.RecordTransition("new", "assigned", "ok")
		m.SetStuckOrders("assigned", 3)
	})
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "unknown", normalizeLabel("  "))
	assert.Equal(t, "in_progress", normalizeLabel(" IN_PROGRESS "))
}
