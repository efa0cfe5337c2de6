// Package collector orchestrates one collection run end to end: fan out
// over enabled plugins, dedup against the topology store, summarize,
// ingest, and trigger re-clustering when new items landed.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"catchup-feed/internal/content"
	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/notify"
	"catchup-feed/internal/observability/metrics"
	"catchup-feed/internal/plugin"
	"catchup-feed/internal/summarizer"
	"catchup-feed/internal/topology"
)

// Topology is the slice of the Topology Engine the Collector drives.
type Topology interface {
	Ingest(ctx context.Context, items []entity.ProcessedItem) ([]entity.ProcessedItem, error)
	Recluster(ctx context.Context, arms topology.ArmUpserter) (map[int]int, error)
}

// Result is the outcome of collecting from one plugin.
type Result struct {
	SourceName string
	Fetched    int
	New        int
	Processed  int
	Errors     []string
	Duration   time.Duration
}

// Summary aggregates a full CollectAll run.
type Summary struct {
	TotalFetched   int
	TotalNew       int
	TotalProcessed int
	Sources        []Result
	Duration       time.Duration
}

// pluginRunState tracks what the Collector remembers about a plugin
// between runs: last successful fetch time, health status, and the vendor
// it last advertised (to detect renames). Held in memory for the lifetime
// of the process — see DESIGN.md for why this isn't persisted.
type pluginRunState struct {
	lastFetchedAt *time.Time
	fetchStatus   string
	lastError     string
	vendor        string
}

// Collector runs collection passes over a fixed plugin registry.
type Collector struct {
	registry    *plugin.Registry
	topo        Topology
	arms        topology.ArmUpserter
	summarizer  *summarizer.Wrapper
	enhancer    *content.Enhancer
	notifier    notify.Notifier
	limiter     *rate.Limiter
	logger      *slog.Logger

	mu    sync.Mutex
	state map[string]*pluginRunState
}

// New builds a Collector. limiter paces outbound content-enhancement
// fetches; summarizer invocations are never rate-limited because they run
// strictly sequentially already. notifier is called once per newly stored
// item; pass notify.NoOp{} to disable digest notifications.
func New(registry *plugin.Registry, topo Topology, arms topology.ArmUpserter, summ *summarizer.Wrapper, enhancer *content.Enhancer, notifier notify.Notifier, logger *slog.Logger) *Collector {
	if notifier == nil {
		notifier = notify.NoOp{}
	}
	return &Collector{
		registry:   registry,
		topo:       topo,
		arms:       arms,
		summarizer: summ,
		enhancer:   enhancer,
		notifier:   notifier,
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		logger:     logger,
		state:      make(map[string]*pluginRunState),
	}
}

// CollectAll iterates every registered plugin sequentially (the spec's
// default concurrency model) and triggers a re-cluster if any new items
// landed.
func (c *Collector) CollectAll(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary

	for _, p := range c.registry.All() {
		result := c.collectFromPlugin(ctx, p)
		summary.Sources = append(summary.Sources, result)
		summary.TotalFetched += result.Fetched
		summary.TotalNew += result.New
		summary.TotalProcessed += result.Processed
	}
	summary.Duration = time.Since(start)
	metrics.RecordCollectionRun("all", summary.Duration)

	if summary.TotalNew > 0 {
		if _, err := c.topo.Recluster(ctx, c.arms); err != nil {
			return summary, fmt.Errorf("recluster after collection: %w", err)
		}
	}
	return summary, nil
}

// CollectFrom runs one named plugin. UnknownSourceError if name isn't
// registered.
func (c *Collector) CollectFrom(ctx context.Context, name string) (Result, error) {
	p, err := c.registry.Get(name)
	if err != nil {
		return Result{}, err
	}
	result := c.collectFromPlugin(ctx, p)
	metrics.RecordCollectionRun(name, result.Duration)
	if result.New > 0 {
		if _, err := c.topo.Recluster(ctx, c.arms); err != nil {
			return result, fmt.Errorf("recluster after collection: %w", err)
		}
	}
	return result, nil
}

func (c *Collector) collectFromPlugin(ctx context.Context, p plugin.Source) Result {
	start := time.Now()
	name := p.Info().Name
	result := Result{SourceName: name}

	c.mu.Lock()
	st, ok := c.state[name]
	if !ok {
		st = &pluginRunState{}
		c.state[name] = st
	}
	since := st.lastFetchedAt
	c.mu.Unlock()

	c.detectVendorRename(p, st)

	raw, err := p.FetchUpdates(ctx, since)
	if err != nil {
		c.mu.Lock()
		st.fetchStatus = "error"
		st.lastError = err.Error()
		c.mu.Unlock()
		metrics.RecordPluginFetchError(name)
		result.Errors = append(result.Errors, err.Error())
		result.Duration = time.Since(start)
		return result
	}
	result.Fetched = len(raw)

	enhanced := c.enhanceContent(ctx, raw)
	processed := c.summarizeSequentially(ctx, enhanced, p)
	result.Processed = len(processed)

	fresh, err := c.topo.Ingest(ctx, processed)
	if err != nil {
		metrics.RecordPluginFetchError(name)
		result.Errors = append(result.Errors, fmt.Sprintf("ingest failed: %v", err))
		result.Duration = time.Since(start)
		return result
	}
	result.New = len(fresh)
	metrics.RecordPluginFetch(name, result.Fetched, result.New)
	c.notifyFresh(ctx, fresh)

	c.mu.Lock()
	now := time.Now().UTC()
	st.lastFetchedAt = &now
	st.fetchStatus = "healthy"
	c.mu.Unlock()

	result.Duration = time.Since(start)
	return result
}

// notifyFresh pushes a digest notification for each newly stored item.
// Notification failures are logged, never propagated — a webhook outage
// must not fail the collection run.
func (c *Collector) notifyFresh(ctx context.Context, items []entity.ProcessedItem) {
	for _, it := range items {
		if err := c.notifier.NotifyItem(ctx, it); err != nil && c.logger != nil {
			c.logger.Warn("digest notification failed",
				slog.String("external_id", it.ExternalID),
				slog.Any("error", err))
		}
	}
}

// detectVendorRename supplements the core Collector algorithm: if a
// plugin's declared vendor metadata changed since the previous run, this
// is recorded so future ingests carry the new vendor. Propagating the
// rename to already-stored items is left to an operator-triggered
// maintenance pass; the Collector itself only tracks the change here.
func (c *Collector) detectVendorRename(p plugin.Source, st *pluginRunState) {
	vendor := p.Info().Vendor
	if st.vendor != "" && st.vendor != vendor && c.logger != nil {
		c.logger.Info("plugin vendor changed",
			slog.String("plugin", p.Info().Name),
			slog.String("old_vendor", st.vendor),
			slog.String("new_vendor", vendor))
	}
	st.vendor = vendor
}

// enhanceContent fetches full-text content for short items, bounded in
// parallel since each fetch is I/O-bound and independent.
func (c *Collector) enhanceContent(ctx context.Context, items []entity.RawItem) []entity.RawItem {
	if c.enhancer == nil {
		return items
	}

	out := make([]entity.RawItem, len(items))
	copy(out, items)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)

	for i := range out {
		i := i
		g.Go(func() error {
			if err := c.limiter.Wait(gctx); err != nil {
				return nil
			}
			out[i].Content = c.enhancer.Enhance(gctx, out[i].SourceURL, out[i].Content)
			return nil
		})
	}
	_ = g.Wait() // enhancement never fails the run; errors are already swallowed per-item

	return out
}

// summarizeSequentially invokes the summarizer one item at a time — the
// spec forbids concurrency at this layer. Per-item summarizer failure
// degrades to the fallback described in §4.2, never blocking the item.
func (c *Collector) summarizeSequentially(ctx context.Context, items []entity.RawItem, p plugin.Source) []entity.ProcessedItem {
	out := make([]entity.ProcessedItem, len(items))
	for i, item := range items {
		payload, err := c.summarizer.Analyze(ctx, item.Title, item.Content, item.SourceURL, item.Vendor)
		if err != nil {
			if c.logger != nil {
				c.logger.Info("summarizer fallback",
					slog.String("plugin", p.Info().Name),
					slog.String("external_id", item.ExternalID),
					slog.Any("error", err))
			}
			out[i] = fallbackProcessedItem(item, p.Info().Name)
			continue
		}
		out[i] = entity.ProcessedItem{
			ExternalID:      item.ExternalID,
			SourceURL:       item.SourceURL,
			Title:           item.Title,
			Content:         item.Content,
			PublishedAt:     item.PublishedAt,
			Vendor:          item.Vendor,
			Categories:      item.Categories,
			Metadata:        item.Metadata,
			Summary:         payload.Summary,
			Tags:            unionLowercase(item.Categories, payload.Tags),
			IsPrimarySource: payload.IsPrimarySource,
			TechDomain:      payload.TechDomain,
			SourcePlugin:    p.Info().Name,
			CollectedAt:     time.Now().UTC(),
			ClusterID:       entity.NoiseClusterID,
		}
	}
	return out
}

func fallbackProcessedItem(item entity.RawItem, pluginName string) entity.ProcessedItem {
	return entity.ProcessedItem{
		ExternalID:      item.ExternalID,
		SourceURL:       item.SourceURL,
		Title:           item.Title,
		Content:         item.Content,
		PublishedAt:     item.PublishedAt,
		Vendor:          item.Vendor,
		Categories:      item.Categories,
		Metadata:        item.Metadata,
		Summary:         truncateTitleContent(item.Title, item.Content),
		Tags:            unionLowercase(item.Categories, nil),
		IsPrimarySource: false,
		TechDomain:      "",
		SourcePlugin:    pluginName,
		CollectedAt:     time.Now().UTC(),
		ClusterID:       entity.NoiseClusterID,
	}
}

func truncateTitleContent(title, content string) string {
	const maxLen = 200
	combined := title
	if content != "" {
		combined = title + ": " + content
	}
	if len(combined) > maxLen {
		return combined[:maxLen]
	}
	return combined
}

func unionLowercase(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			lower := strings.ToLower(strings.TrimSpace(s))
			if lower != "" && !seen[lower] {
				seen[lower] = true
				out = append(out, lower)
			}
		}
	}
	return out
}
