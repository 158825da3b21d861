// Package metrics holds the process-wide Prometheus collectors. Collectors
// register on the default registry at init; the HTTP server exposes them on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TimelineLatency tracks end-to-end page assembly per timeline kind
	// (home, profile, replies, quotes).
	TimelineLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quill_timeline_page_seconds",
		Help:    "Time to compose and hydrate one timeline page.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// ReactionsTotal counts confirmed reaction writes by action (react, undo).
	ReactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_reactions_total",
		Help: "Reaction rows written or removed.",
	}, []string{"action"})

	// SharesTotal counts share wrapper writes by action (share, unshare).
	SharesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_shares_total",
		Help: "Share wrappers created or removed.",
	}, []string{"action"})

	// FanoutEventsTotal counts queue events handled by the worker pool,
	// by event type and outcome (ok, error).
	FanoutEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_fanout_events_total",
		Help: "Timeline stream events processed by workers.",
	}, []string{"type", "outcome"})

	// CacheWarms counts cold home timeline caches rebuilt from the store.
	CacheWarms = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_timeline_cache_warms_total",
		Help: "Home timeline caches warmed on miss.",
	})
)
