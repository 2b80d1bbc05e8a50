package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of the sampling and publish paths. A nil *Metrics is a no-op.
type Metrics struct {
	samples   *prometheus.CounterVec
	enqueued  prometheus.Counter
	published prometheus.Counter
	failed    prometheus.Counter
	dropped   prometheus.Counter
	queue     prometheus.Gauge
	latency   prometheus.Histogram
	bridged   *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a fresh private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kusensors_samples_emitted_total",
			Help: "Normalized samples emitted by the shaper.",
		}, []string{"channel"}),
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kusensors_publish_enqueued_total",
			Help: "Telemetry messages handed to the publish workers.",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kusensors_publish_succeeded_total",
			Help: "Telemetry messages acknowledged by the broker.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kusensors_publish_failed_total",
			Help: "Telemetry messages lost to publish errors or timeouts.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kusensors_publish_dropped_total",
			Help: "Telemetry messages dropped because the publish queue was full.",
		}),
		queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kusensors_publish_queue_length",
			Help: "Messages waiting for a publish worker.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kusensors_publish_latency_seconds",
			Help:    "Time from enqueue to broker acknowledgment.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		bridged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kusensors_bridge_records_total",
			Help: "Ledger records posted by the bridge, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.samples, m.enqueued, m.published, m.failed, m.dropped, m.queue, m.latency, m.bridged)
	return m
}

func (m *Metrics) SampleEmitted(channel string) {
	if m == nil {
		return
	}
	m.samples.WithLabelValues(channel).Inc()
}

func (m *Metrics) PublishEnqueued() {
	if m == nil {
		return
	}
	m.enqueued.Inc()
	m.queue.Inc()
}

func (m *Metrics) PublishDequeued() {
	if m == nil {
		return
	}
	m.queue.Dec()
}

func (m *Metrics) PublishSucceeded(seconds float64) {
	if m == nil {
		return
	}
	m.published.Inc()
	m.latency.Observe(seconds)
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.failed.Inc()
}

func (m *Metrics) PublishDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) BridgeRecord(result string) {
	if m == nil {
		return
	}
	m.bridged.WithLabelValues(result).Inc()
}

// Handler serves the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
