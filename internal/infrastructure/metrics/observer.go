// Package metrics exports webhook, queue and notification telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "subflow"

// Observer receives telemetry from the webhook router, the job workers and
// notification dispatch.
type Observer interface {
	RecordWebhook(eventType, outcome string, duration time.Duration)
	RecordJob(queue, jobType, outcome string, duration time.Duration)
	RecordNotification(kind, channel string, success bool)
}

// PrometheusObserver implements Observer with Prometheus collectors.
type PrometheusObserver struct {
	webhookEvents   *prometheus.CounterVec
	webhookDuration *prometheus.HistogramVec
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
}

// NewPrometheusObserver registers the collectors with reg, reusing collectors
// a previous observer already registered.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{}
	var err error

	if o.webhookEvents, err = registerCounter(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Billing webhook deliveries by event type and outcome.",
	}, []string{"type", "outcome"}); err != nil {
		return nil, err
	}
	if o.webhookDuration, err = registerHistogram(reg, prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "webhook_duration_seconds",
		Help:      "Time spent handling a billing webhook delivery.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type"}); err != nil {
		return nil, err
	}
	if o.jobRuns, err = registerCounter(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Background job executions by queue, type and outcome.",
	}, []string{"queue", "type", "outcome"}); err != nil {
		return nil, err
	}
	if o.jobDuration, err = registerHistogram(reg, prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Background job handler latency.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"queue", "type"}); err != nil {
		return nil, err
	}
	if o.notifications, err = registerCounter(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification send attempts by kind, channel and result.",
	}, []string{"kind", "channel", "result"}); err != nil {
		return nil, err
	}

	return o, nil
}

func registerCounter(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	c := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register metric %s: %w", opts.Name, err)
	}
	return c, nil
}

func registerHistogram(reg prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) (*prometheus.HistogramVec, error) {
	h := prometheus.NewHistogramVec(opts, labels)
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register metric %s: %w", opts.Name, err)
	}
	return h, nil
}

func (o *PrometheusObserver) RecordWebhook(eventType, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	o.webhookEvents.WithLabelValues(eventType, outcome).Inc()
	o.webhookDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func (o *PrometheusObserver) RecordJob(queue, jobType, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	o.jobRuns.WithLabelValues(queue, jobType, outcome).Inc()
	o.jobDuration.WithLabelValues(queue, jobType).Observe(duration.Seconds())
}

func (o *PrometheusObserver) RecordNotification(kind, channel string, success bool) {
	if o == nil {
		return
	}
	result := "sent"
	if !success {
		result = "failed"
	}
	o.notifications.WithLabelValues(kind, channel, result).Inc()
}

type nopObserver struct{}

// Nop returns an Observer that drops everything.
func Nop() Observer {
	return nopObserver{}
}

func (nopObserver) RecordWebhook(string, string, time.Duration) {}

func (nopObserver) RecordJob(string, string, string, time.Duration) {}

func (nopObserver) RecordNotification(string, string, bool) {}
