package metrics

import "time"

// RecordPluginFetch records one plugin's fetch outcome: how many raw items
// it returned and how many were new to the topology store.
func RecordPluginFetch(plugin string, fetched, new int) {
	ArticlesFetchedTotal.WithLabelValues(plugin).Add(float64(fetched))
	ArticlesNewTotal.WithLabelValues(plugin).Add(float64(new))
}

// RecordPluginFetchError records a plugin fetch failure.
func RecordPluginFetchError(plugin string) {
	PluginFetchErrorsTotal.WithLabelValues(plugin).Inc()
}

// RecordCollectionRun records the duration of a collection run. scope is
// "all" for CollectAll or the plugin name for CollectFrom.
func RecordCollectionRun(scope string, duration time.Duration) {
	CollectionDuration.WithLabelValues(scope).Observe(duration.Seconds())
}

// UpdateTopologySnapshot refreshes the gauges reporting current store size.
func UpdateTopologySnapshot(totalArticles, totalClusters int) {
	ArticlesTotal.Set(float64(totalArticles))
	ClustersTotal.Set(float64(totalClusters))
}

// RecordFeedAction records one recorded user action (click/bookmark/skip).
func RecordFeedAction(action string) {
	FeedActionsTotal.WithLabelValues(action).Inc()
}
