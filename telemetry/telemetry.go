// Package telemetry holds the resolver's ambient logging and metrics
// surface: a package-level logrus logger in the style of
// folbricht-routedns's rdns.Log, plus a handful of prometheus counters in
// the style of straticus1-dnsscienced's resolver instrumentation.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Log is the logger used by the resolver and daemon packages and by
// cmd/recurdns. Callers (typically cmd/recurdns) may replace its level
// or output; library code never constructs its own logger.
var Log = logrus.New()

// Metrics, registered against the default prometheus registry.
var (
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recurdns",
		Name:      "resolver_queries_total",
		Help:      "Total backend responses received by the recursive resolver, by outcome.",
	}, []string{"outcome"})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recurdns",
		Name:      "resolver_cache_hits_total",
		Help:      "Total cache lookups that returned an authoritative or referral hit.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recurdns",
		Name:      "resolver_cache_misses_total",
		Help:      "Total cache lookups that found nothing usable.",
	})

	RecursionDepthExceededTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recurdns",
		Name:      "resolver_recursion_depth_exceeded_total",
		Help:      "Total resolutions aborted for exceeding the maximum recursion depth.",
	})
)

func init() {
	prometheus.MustRegister(QueriesTotal, CacheHitsTotal, CacheMissesTotal, RecursionDepthExceededTotal)
}
