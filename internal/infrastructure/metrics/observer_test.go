package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := NewPrometheusObserver(reg)
	require.NoError(t, err)

	o.RecordWebhook("invoice.paid", "applied", 20*time.Millisecond)
	o.RecordWebhook("invoice.paid", "duplicate", time.Millisecond)
	o.RecordJob("email", "payment_failed", "retried", time.Second)
	o.RecordNotification("payment_failed", "email", false)

	assert.Equal(t, float64(1), testutil.ToFloat64(o.webhookEvents.WithLabelValues("invoice.paid", "applied")))
	assert.Equal(t, float64(1), testutil.ToFloat64(o.jobRuns.WithLabelValues("email", "payment_failed", "retried")))
	assert.Equal(t, float64(1), testutil.ToFloat64(o.notifications.WithLabelValues("payment_failed", "email", "failed")))

	again, err := NewPrometheusObserver(reg)
	require.NoError(t, err)
	assert.Same(t, o.webhookEvents, again.webhookEvents)
}

func TestNilAndNopObservers(t *testing.T) {
	var o *PrometheusObserver
	assert.NotPanics(t, func() {
		o.RecordWebhook("x", "y", 0)
		o.RecordJob("q", "t", "o", 0)
		o.RecordNotification("k", "c", true)
		Nop().RecordWebhook("x", "y", 0)
	})
}
