package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPluginFetch(t *testing.T) {
	tests := []struct {
		name    string
		plugin  string
		fetched int
		new     int
	}{
		{name: "some new", plugin: "test-plugin-some-new", fetched: 10, new: 3},
		{name: "all duplicates", plugin: "test-plugin-all-dup", fetched: 5, new: 0},
		{name: "empty fetch", plugin: "test-plugin-empty", fetched: 0, new: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(ArticlesFetchedTotal.WithLabelValues(tt.plugin))
			RecordPluginFetch(tt.plugin, tt.fetched, tt.new)
			require.Equal(t, before+float64(tt.fetched), testutil.ToFloat64(ArticlesFetchedTotal.WithLabelValues(tt.plugin)))
			require.Equal(t, float64(tt.new), testutil.ToFloat64(ArticlesNewTotal.WithLabelValues(tt.plugin)))
		})
	}
}

func TestRecordPluginFetchError(t *testing.T) {
	const plugin = "test-plugin-error"
	before := testutil.ToFloat64(PluginFetchErrorsTotal.WithLabelValues(plugin))
	RecordPluginFetchError(plugin)
	require.Equal(t, before+1, testutil.ToFloat64(PluginFetchErrorsTotal.WithLabelValues(plugin)))
}

func TestRecordCollectionRun(t *testing.T) {
	tests := []struct {
		name     string
		scope    string
		duration time.Duration
	}{
		{name: "full run", scope: "test-scope-all", duration: 4 * time.Second},
		{name: "single plugin", scope: "test-scope-single", duration: 500 * time.Millisecond},
		{name: "instant", scope: "test-scope-instant", duration: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.CollectAndCount(CollectionDuration, "collector_run_duration_seconds")
			RecordCollectionRun(tt.scope, tt.duration)
			after := testutil.CollectAndCount(CollectionDuration, "collector_run_duration_seconds")
			require.Greater(t, after, before)
		})
	}
}

func TestUpdateTopologySnapshot(t *testing.T) {
	tests := []struct {
		name     string
		articles int
		clusters int
	}{
		{name: "empty store", articles: 0, clusters: 0},
		{name: "populated store", articles: 500, clusters: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			UpdateTopologySnapshot(tt.articles, tt.clusters)
			require.Equal(t, float64(tt.articles), testutil.ToFloat64(ArticlesTotal))
			require.Equal(t, float64(tt.clusters), testutil.ToFloat64(ClustersTotal))
		})
	}
}

func TestRecordFeedAction(t *testing.T) {
	for _, action := range []string{"test-click", "test-bookmark", "test-skip", "test-dwell"} {
		t.Run(action, func(t *testing.T) {
			before := testutil.ToFloat64(FeedActionsTotal.WithLabelValues(action))
			RecordFeedAction(action)
			require.Equal(t, before+1, testutil.ToFloat64(FeedActionsTotal.WithLabelValues(action)))
		})
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/feed", "200"))
	RecordHTTPRequest("GET", "/api/v1/feed", "200", 25*time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/feed", "200")))
}

func TestMetricsFunctions_AllCallable(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordPluginFetch("test-smoke-plugin", 10, 4)
		RecordPluginFetchError("test-smoke-plugin")
		RecordCollectionRun("test-smoke-scope", 2*time.Second)
		UpdateTopologySnapshot(100, 5)
		RecordFeedAction("test-smoke-action")
		RecordHTTPRequest("POST", "/api/v1/articles/:id/action", "204", 10*time.Millisecond)
	})
}
