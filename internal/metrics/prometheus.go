// Package metrics exposes Prometheus collectors for the cache tier. All
// Record functions are no-ops until InitPrometheus is called, so library
// code and tests can call them unconditionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup results.
const (
	ResultHit      = "hit"
	ResultMiss     = "miss"
	ResultNegative = "negative"
)

// PrometheusMetrics wraps the collectors registered by InitPrometheus.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	cacheRequests    *prometheus.CounterVec
	cacheErrors      *prometheus.CounterVec
	populateDuration *prometheus.HistogramVec
	guardSkips       *prometheus.CounterVec

	counterFallbacks *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	storeFailovers   *prometheus.CounterVec

	reconcileRuns     *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	reconcileMembers  *prometheus.GaugeVec
}

// Buckets for store-backed population, in milliseconds.
var defaultBuckets = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

var promMetrics *PrometheusMetrics

// InitPrometheus registers all collectors under namespace.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Cache lookups by cache name and result (hit, miss, negative)",
			},
			[]string{"cache", "result"},
		),

		cacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_backend_errors_total",
				Help:      "Cache backend failures that were degraded instead of surfaced",
			},
			[]string{"cache", "op"},
		),

		populateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_populate_duration_milliseconds",
				Help:      "Time spent loading from the store and writing the cache on a miss",
				Buckets:   buckets,
			},
			[]string{"cache"},
		),

		guardSkips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_update_guard_skips_total",
				Help:      "In-place index updates skipped because the key was missing or about to expire",
			},
			[]string{"cache"},
		),

		counterFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "counter_read_fallbacks_total",
				Help:      "Counter reads served by the replica or by the zero default",
			},
			[]string{"counter", "target"},
		),

		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "redis_primary_breaker_state",
				Help:      "Primary breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),

		storeFailovers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_replica_failovers_total",
				Help:      "Store reads that failed over to the next pool",
			},
			[]string{"op"},
		),

		reconcileRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_runs_total",
				Help:      "Counter reconciliation runs by class and status",
			},
			[]string{"class", "status"},
		),

		reconcileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_duration_milliseconds",
				Help:      "Duration of one counter class reconciliation",
				Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 15000, 60000},
			},
			[]string{"class"},
		),

		reconcileMembers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reconcile_members",
				Help:      "Members written by the last reconciliation of a class",
			},
			[]string{"class"},
		),
	}

	registry.MustRegister(
		pm.cacheRequests,
		pm.cacheErrors,
		pm.populateDuration,
		pm.guardSkips,
		pm.counterFallbacks,
		pm.breakerState,
		pm.storeFailovers,
		pm.reconcileRuns,
		pm.reconcileDuration,
		pm.reconcileMembers,
	)

	promMetrics = pm
}

func RecordCacheRequest(cache, result string) {
	if promMetrics == nil {
		return
	}
	promMetrics.cacheRequests.WithLabelValues(cache, result).Inc()
}

func RecordCacheError(cache, op string) {
	if promMetrics == nil {
		return
	}
	promMetrics.cacheErrors.WithLabelValues(cache, op).Inc()
}

func RecordPopulate(cache string, d time.Duration) {
	if promMetrics == nil {
		return
	}
	promMetrics.populateDuration.WithLabelValues(cache).Observe(float64(d.Microseconds()) / 1000)
}

func RecordGuardSkip(cache string) {
	if promMetrics == nil {
		return
	}
	promMetrics.guardSkips.WithLabelValues(cache).Inc()
}

// RecordCounterFallback counts a counter read served by target ("replica"
// or "default").
func RecordCounterFallback(counter, target string) {
	if promMetrics == nil {
		return
	}
	promMetrics.counterFallbacks.WithLabelValues(counter, target).Inc()
}

func SetBreakerState(name string, state int) {
	if promMetrics == nil {
		return
	}
	promMetrics.breakerState.WithLabelValues(name).Set(float64(state))
}

func RecordStoreFailover(op string) {
	if promMetrics == nil {
		return
	}
	promMetrics.storeFailovers.WithLabelValues(op).Inc()
}

// RecordReconcile records one class run. members is ignored on failure.
func RecordReconcile(class string, d time.Duration, members int, err error) {
	if promMetrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	promMetrics.reconcileRuns.WithLabelValues(class, status).Inc()
	promMetrics.reconcileDuration.WithLabelValues(class).Observe(float64(d.Milliseconds()))
	if err == nil {
		promMetrics.reconcileMembers.WithLabelValues(class).Set(float64(members))
	}
}

// PrometheusHandler returns an HTTP handler for Prometheus scraping.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "prometheus metrics not initialized", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the registry, or nil before InitPrometheus.
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
