// Package metrics provides Prometheus metrics registry and recording
// utilities for BrainStream.
//
// This package centralizes:
//   - HTTP request metrics (duration, count, status)
//   - Collection-pipeline metrics (fetched/new articles per plugin, errors)
//   - Topology and feed metrics (store size, cluster count, recorded actions)
//
// All metrics are registered with the Prometheus default registry and
// exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "catchup-feed/internal/observability/metrics"
//
//	func collectFromPlugin(name string) {
//	    start := time.Now()
//	    fetched, new := 12, 4
//	    metrics.RecordPluginFetch(name, fetched, new)
//	    metrics.RecordCollectionRun(name, time.Since(start))
//	}
package metrics
