// Package metrics defines the Prometheus collectors Tagdeck exposes on
// /metrics. Collectors are registered on the default registry at init time;
// packages record through the helper functions so label sets stay consistent.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tagdeck"

var (
	// Total HTTP requests partitioned by method, route, and status code.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests. Long-lived SSE streams count here too.
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Calls to the remote tag API by operation and outcome.
	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests made to the remote tag API",
		},
		[]string{"op", "status"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of remote tag API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Query cache lookups: hit (fresh), stale (served then refetched), miss.
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_lookups_total",
			Help:      "Query cache lookups by family and result",
		},
		[]string{"family", "result"},
	)

	cacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_invalidations_total",
			Help:      "Query family invalidations by origin (local or remote instance)",
		},
		[]string{"family", "origin"},
	)

	liveViews = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_views",
			Help:      "Number of tag list views currently held by the server",
		},
	)
)

// ObserveHTTP records one finished HTTP request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	httpRequestsTotal.With(labels).Inc()
	httpRequestDuration.With(labels).Observe(elapsed.Seconds())
}

// HTTPInFlight returns the in-flight request gauge.
func HTTPInFlight() prometheus.Gauge { return httpInFlight }

// ObserveUpstream records one call to the remote tag API. status is the
// HTTP status code, or 0 when the request failed before a response arrived.
func ObserveUpstream(op string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	upstreamRequestsTotal.WithLabelValues(op, label).Inc()
	upstreamDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// CacheLookup records a query cache lookup result ("hit", "stale", "miss").
func CacheLookup(family, result string) {
	cacheLookupsTotal.WithLabelValues(family, result).Inc()
}

// CacheInvalidation records a family invalidation.
func CacheInvalidation(family, origin string) {
	cacheInvalidationsTotal.WithLabelValues(family, origin).Inc()
}

// LiveViewOpened increments the live view gauge.
func LiveViewOpened() { liveViews.Inc() }

// LiveViewClosed decrements the live view gauge.
func LiveViewClosed() { liveViews.Dec() }
