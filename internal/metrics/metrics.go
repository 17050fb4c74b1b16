// Package metrics defines the Prometheus collectors exported by the
// reference services and an HTTP middleware that records request metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsTotal counts HTTP requests by route pattern, method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflink_requests_total",
			Help: "Total requests",
		},
		[]string{"route", "method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reflink_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// ReferencesRendered counts references rendered into pages.
	ReferencesRendered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reflink_references_rendered_total",
			Help: "References rendered",
		},
	)

	// FetchFailuresTotal counts failed reference fetches by classification.
	FetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflink_fetch_failures_total",
			Help: "Failed reference fetches",
		},
		[]string{"kind"},
	)

	// ResolutionsTotal counts resolve requests by target kind ("none" when
	// no target exists).
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflink_resolutions_total",
			Help: "Reference resolutions",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ReferencesRendered,
		FetchFailuresTotal,
		ResolutionsTotal,
	)
}
