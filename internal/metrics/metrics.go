// Package metrics registers the sync engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "notionsync"

var (
	NotionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notion",
			Name:      "requests_total",
			Help:      "Notion API calls by operation and HTTP status class.",
		},
		[]string{"op", "status"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notion",
			Name:      "rate_limit_hits_total",
			Help:      "HTTP 429 responses received from Notion.",
		},
	)

	PagesRetrieved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "pages_total",
			Help:      "Non-archived pages retrieved per entity.",
		},
		[]string{"entity"},
	)

	ConflictsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "conflicts_total",
			Help:      "Conflicts detected by entity and type.",
		},
		[]string{"entity", "type"},
	)

	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolution",
			Name:      "groups_total",
			Help:      "Resolved record groups by strategy and outcome.",
		},
		[]string{"entity", "strategy", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each sync pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
)

// StatusClass buckets an HTTP status for the requests counter.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "network"
	case code == 429:
		return "429"
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
