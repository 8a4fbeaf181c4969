// Package observability expone las métricas Prometheus del proxy.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa todas las métricas de la aplicación.
type Metrics struct {
	// Upstream
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec

	// Cache y coalescing
	CacheLookups     *prometheus.CounterVec
	Refreshes        *prometheus.CounterVec
	CoalescedWaiters prometheus.Counter
	StaleServed      prometheus.Counter
	SnapshotAge      prometheus.Gauge

	// Archivo de snapshots
	SnapshotsArchived *prometheus.CounterVec

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics registra las métricas en el registry por defecto.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pulse"
	}

	return &Metrics{
		UpstreamRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total upstream requests by query strategy and outcome",
		}, []string{"strategy", "outcome"}),
		UpstreamDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream request latency by query strategy",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"strategy"}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result (hit|miss)",
		}, []string{"result"}),
		Refreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Upstream refreshes by outcome",
		}, []string{"outcome"}),
		CoalescedWaiters: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coalesced_waiters_total",
			Help:      "Requests that joined an in-flight refresh instead of starting one",
		}),
		StaleServed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_served_total",
			Help:      "Responses served from a stale snapshot after a failed refresh",
		}),
		SnapshotAge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_age_seconds",
			Help:      "Age of the snapshot served by the last request",
		}),

		SnapshotsArchived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "snapshots_total",
			Help:      "Snapshots written to the archive by outcome",
		}, []string{"outcome"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler devuelve el handler de /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics es la instancia global.
var DefaultMetrics = NewMetrics("")

// RecordUpstreamRequest registra una petición upstream.
func RecordUpstreamRequest(strategy, outcome string, seconds float64) {
	DefaultMetrics.UpstreamRequests.WithLabelValues(strategy, outcome).Inc()
	DefaultMetrics.UpstreamDuration.WithLabelValues(strategy).Observe(seconds)
}

// RecordCacheLookup registra un hit o miss de la cache.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(result).Inc()
}

// RecordRefresh registra el resultado de un refresh.
func RecordRefresh(outcome string) {
	DefaultMetrics.Refreshes.WithLabelValues(outcome).Inc()
}

func RecordCoalescedWaiter() {
	DefaultMetrics.CoalescedWaiters.Inc()
}

func RecordStaleServed() {
	DefaultMetrics.StaleServed.Inc()
}

// UpdateSnapshotAge actualiza la edad del snapshot servido.
func UpdateSnapshotAge(seconds float64) {
	DefaultMetrics.SnapshotAge.Set(seconds)
}

// RecordSnapshotArchived registra una escritura en el archivo.
func RecordSnapshotArchived(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	DefaultMetrics.SnapshotsArchived.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest registra una petición HTTP servida.
func RecordHTTPRequest(route, method, status string, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, method, status).Inc()
	DefaultMetrics.HTTPDuration.WithLabelValues(route).Observe(seconds)
}
