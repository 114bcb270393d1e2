package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tenant_scope"

// Metrics holds every collector the service exports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	resolutions   *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	guard         *prometheus.CounterVec
	invalidations *prometheus.CounterVec

	WorkerProcessed *prometheus.CounterVec
	WorkerActive    prometheus.Gauge
	QueueDepth      *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_resolutions_total",
			Help:      "Tenant resolutions by source, outcome and failure kind",
		}, []string{"source", "outcome", "kind"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_cache_lookups_total",
			Help:      "Tenant cache reads by lookup method and result",
		}, []string{"method", "result"}),
		guard: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_guard_decisions_total",
			Help:      "Admin region guard decisions",
		}, []string{"decision"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_cache_invalidations_total",
			Help:      "Tenant events processed by the invalidation pipeline",
		}, []string{"event_type", "status"}),
		WorkerProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_messages_processed_total",
			Help:      "Total number of messages processed by workers",
		}, []string{"status"}),
		WorkerActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_active_goroutines",
			Help:      "Number of active worker goroutines",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current RabbitMQ queue depth",
		}, []string{"queue"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.resolutions, m.cacheLookups, m.guard, m.invalidations,
		m.WorkerProcessed, m.WorkerActive, m.QueueDepth)
	return m
}

func (m *Metrics) ObserveResolution(source, outcome, kind string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(source, outcome, kind).Inc()
}

func (m *Metrics) ObserveCache(method, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(method, result).Inc()
}

// ObserveGuard records allow, unscoped, synthesized or reject.
func (m *Metrics) ObserveGuard(decision string) {
	if m == nil {
		return
	}
	m.guard.WithLabelValues(decision).Inc()
}

func (m *Metrics) ObserveInvalidation(eventType, status string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(eventType, status).Inc()
}

func (m *Metrics) ObserveWorker(status string) {
	if m == nil {
		return
	}
	m.WorkerProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) SetWorkersActive(n int) {
	if m == nil {
		return
	}
	m.WorkerActive.Set(float64(n))
}

func (m *Metrics) SetQueueDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// Handler returns the Prometheus metrics HTTP handler for g, or the default
// registry when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
