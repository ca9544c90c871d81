package shardqueue

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notionsync",
		Subsystem: "shardqueue",
		Name:      "submissions_total",
		Help:      "Jobs accepted per shard.",
	}, []string{"shard"})

	enqueueWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notionsync",
		Subsystem: "shardqueue",
		Name:      "enqueue_waits_total",
		Help:      "Submissions that found the shard full and had to wait.",
	}, []string{"shard"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "notionsync",
		Subsystem: "shardqueue",
		Name:      "run_duration_seconds",
		Help:      "Duration of individual job attempts.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"shard"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "notionsync",
		Subsystem: "shardqueue",
		Name:      "queue_depth",
		Help:      "Jobs waiting per shard after the last run.",
	}, []string{"shard"})
)

func labelFor(shard int) string { return strconv.Itoa(shard) }
