// Package metrics holds the Prometheus collectors exported by the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shortener"

// Resolve results.
const (
	ResultFound    = "found"
	ResultNotFound = "not_found"
	ResultExpired  = "expired"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Expiry sources.
const (
	SourceLazy  = "lazy"
	SourceSweep = "sweep"
)

var (
	URLsShortened = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_shortened_total",
			Help:      "Total number of shortened URLs",
		},
	)

	URLsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_resolved_total",
			Help:      "Total number of short code lookups by result",
		},
		[]string{"result"},
	)

	URLsExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_expired_total",
			Help:      "Total number of expired URLs removed, by removal source",
		},
		[]string{"source"},
	)

	AllocationCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocation_collisions_total",
			Help:      "Total number of inserts rejected because the short code was taken",
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Total number of URL cache lookups by result",
		},
		[]string{"result"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordResolve counts a short code lookup.
func RecordResolve(result string) {
	URLsResolved.WithLabelValues(result).Inc()
}

// RecordExpired counts removed expired URLs.
func RecordExpired(source string, n int64) {
	if n <= 0 {
		return
	}
	URLsExpired.WithLabelValues(source).Add(float64(n))
}

// RecordCacheLookup counts a URL cache lookup.
func RecordCacheLookup(result string) {
	CacheLookups.WithLabelValues(result).Inc()
}

// RecordHTTPRequest observes the duration of a served request.
func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
