package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesTotal counts applied vote actions.
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pettit_votes_total",
		Help: "Total number of vote actions applied",
	}, []string{"action"})

	// MembershipChanges counts membership transitions by kind.
	MembershipChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pettit_membership_changes_total",
		Help: "Total number of community membership changes",
	}, []string{"change"})

	// FeedQueryDuration records feed query latency by scope and sort.
	FeedQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pettit_feed_query_duration_seconds",
		Help:    "Feed query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope", "sort"})

	// MediaCompensations counts stored blobs removed after a failed post write.
	MediaCompensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pettit_media_compensations_total",
		Help: "Total number of uploaded media deleted after a failed post write",
	}, []string{"result"})

	// TrendingCacheLookups counts trending cache hits and misses.
	TrendingCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pettit_trending_cache_lookups_total",
		Help: "Trending cache lookups by outcome",
	}, []string{"outcome"})

	// FeedSubscribers is the number of connected realtime feed clients.
	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pettit_feed_subscribers",
		Help: "Number of connected realtime feed clients",
	})
)

// ObserveFeedQuery returns a function that records feed latency when called.
func ObserveFeedQuery(scope, sort string) func() {
	start := time.Now()
	return func() {
		FeedQueryDuration.WithLabelValues(scope, sort).Observe(time.Since(start).Seconds())
	}
}
