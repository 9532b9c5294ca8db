package postgres

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/betteru/pharma-ops/internal/observability/metrics"
)

// The outbox table has no bookkeeping columns beyond processed_at,
// retry_count and last_error; the relay's UPDATE statements must not touch
// anything else or every mark fails and the entry republishes forever.
func TestRelayUpdateQueriesTouchOnlyDeclaredColumns(t *testing.T) {
	for _, query := range []string{markProcessedQuery, bumpRetryQuery} {
		assert.NotContains(t, query, "updated_at")
	}

	assert.Contains(t, markProcessedQuery, "processed_at = NOW()")
	assert.Contains(t, bumpRetryQuery, "retry_count = retry_count + 1")
	assert.Contains(t, bumpRetryQuery, "last_error = $1")
}

func TestRelayMetrics(t *testing.T) {
	m := &metrics.Metrics{
		EventsRelayed: prometheus.NewCounter(prometheus.CounterOpts{Name: "events_relayed_test"}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{Name: "outbox_pending_test"}),
	}

	o := NewOutbox(nil, nil, DefaultOutboxConfig(), m, nil)

	o.recordRelayed()
	o.recordRelayed()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventsRelayed))

	o.observeStats(&OutboxStats{Pending: 7})
	assert.Equal(t, float64(7), testutil.ToFloat64(m.OutboxPending))
}

func TestRelayMetricsNilSafe(t *testing.T) {
	o := NewOutbox(nil, nil, DefaultOutboxConfig(), nil, nil)

	o.recordRelayed()
	o.observeStats(&OutboxStats{Pending: 1})
}
