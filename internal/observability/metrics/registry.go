// Package metrics provides centralized Prometheus metrics for BrainStream's
// HTTP surface and core subsystems.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Collection-pipeline metrics.
var (
	ArticlesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_articles_fetched_total",
			Help: "Total number of raw items fetched per source plugin",
		},
		[]string{"plugin"},
	)

	ArticlesNewTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_articles_new_total",
			Help: "Total number of previously-unseen articles ingested per source plugin",
		},
		[]string{"plugin"},
	)

	PluginFetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_plugin_fetch_errors_total",
			Help: "Total number of plugin fetch failures",
		},
		[]string{"plugin"},
	)

	CollectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_run_duration_seconds",
			Help:    "Wall-clock duration of a full collection run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"scope"}, // "all" or a single plugin name
	)
)

// Topology / feed metrics.
var (
	ArticlesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "topology_articles_total",
			Help: "Total number of articles currently stored in the vector store",
		},
	)

	ClustersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "topology_clusters_total",
			Help: "Number of non-noise clusters after the most recent recluster",
		},
	)

	FeedActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_actions_total",
			Help: "Total number of recorded feed actions by type",
		},
		[]string{"action"},
	)
)

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
