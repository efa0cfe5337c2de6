package topology

import (
	"context"
	"fmt"
	"sort"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/embedding"
)

// ArmUpserter is the narrow slice of the Feed Selector's state store that
// Recluster needs: creating missing arms with a uniform prior and
// refreshing article counts for existing ones. Defined here (rather than
// imported from the feed package) so Topology has no dependency on Feed.
type ArmUpserter interface {
	UpsertClusterArm(ctx context.Context, clusterID int, articleCount int) error
}

// Engine is the Topology Engine: it owns the vector store and cluster
// assignments and answers spatial queries over them.
type Engine struct {
	store      Store
	embedder   embedding.Provider
	params     ClusterParams
}

// NewEngine builds a Topology Engine over store, computing embeddings via
// embedder and clustering with the given density parameters.
func NewEngine(store Store, embedder embedding.Provider, params ClusterParams) *Engine {
	return &Engine{store: store, embedder: embedder, params: params}
}

// Ingest computes embeddings for items whose external_id isn't already
// stored and persists them atomically per item. Duplicates are silently
// skipped. Returns the newly stored items, in storage order.
func (e *Engine) Ingest(ctx context.Context, items []entity.ProcessedItem) ([]entity.ProcessedItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ExternalID
	}
	existing, err := e.store.Exists(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check existing items: %w", err)
	}

	var fresh []entity.ProcessedItem
	for _, it := range items {
		if !existing[it.ExternalID] {
			fresh = append(fresh, it)
		}
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	texts := make([]string, len(fresh))
	for i, it := range fresh {
		texts[i] = it.Title + " " + it.Summary
	}
	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("compute embeddings: %w", err)
	}

	for i, it := range fresh {
		it.ClusterID = entity.NoiseClusterID
		if err := e.store.Put(ctx, Record{Item: it, Embedding: vectors[i]}); err != nil {
			return nil, fmt.Errorf("store item %s: %w", it.ExternalID, err)
		}
		fresh[i] = it
	}
	return fresh, nil
}

// Recluster reads every stored embedding, runs density-based clustering,
// writes the new cluster_id back to every record, and upserts a ClusterArm
// for every non-noise cluster via arms. It returns article counts per
// cluster (noise excluded from the returned map but still written as -1).
func (e *Engine) Recluster(ctx context.Context, arms ArmUpserter) (map[int]int, error) {
	records, err := e.store.BulkScan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bulk scan: %w", err)
	}
	if len(records) == 0 {
		return map[int]int{}, nil
	}

	vectors := make([][]float32, len(records))
	for i, r := range records {
		vectors[i] = r.Embedding
	}
	labels := Cluster(vectors, e.params)

	counts := make(map[int]int)
	for i, r := range records {
		label := labels[i]
		if err := e.store.UpdateClusterID(ctx, r.Item.ExternalID, label); err != nil {
			return nil, fmt.Errorf("update cluster id for %s: %w", r.Item.ExternalID, err)
		}
		if label != entity.NoiseClusterID {
			counts[label]++
		}
	}

	for clusterID, count := range counts {
		if err := arms.UpsertClusterArm(ctx, clusterID, count); err != nil {
			return nil, fmt.Errorf("upsert arm for cluster %d: %w", clusterID, err)
		}
	}

	return counts, nil
}

// ClusterArticles returns up to n items in cluster_id, newest-first when
// requested. Ties break on external_id ascending for determinism.
func (e *Engine) ClusterArticles(ctx context.Context, clusterID int, n int, newestFirst bool) ([]entity.ProcessedItem, error) {
	records, err := e.recordsInCluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		pi, pj := records[i].Item.PublishedAt, records[j].Item.PublishedAt
		if pi == nil && pj == nil {
			return records[i].Item.ExternalID < records[j].Item.ExternalID
		}
		if pi == nil {
			return !newestFirst
		}
		if pj == nil {
			return newestFirst
		}
		if pi.Equal(*pj) {
			return records[i].Item.ExternalID < records[j].Item.ExternalID
		}
		if newestFirst {
			return pi.After(*pj)
		}
		return pi.Before(*pj)
	})

	if n >= 0 && n < len(records) {
		records = records[:n]
	}

	out := make([]entity.ProcessedItem, len(records))
	for i, r := range records {
		out[i] = r.Item
	}
	return out, nil
}

// BoundaryItem pairs a ProcessedItem with its Euclidean distance from its
// cluster's centroid.
type BoundaryItem struct {
	Item     entity.ProcessedItem
	Distance float64
}

// BoundaryArticles computes the cluster's centroid as the arithmetic mean
// of member embeddings, ranks members by distance to it, and returns the n
// farthest descending by distance (ties by external_id ascending).
func (e *Engine) BoundaryArticles(ctx context.Context, clusterID int, n int) ([]BoundaryItem, error) {
	records, err := e.recordsInCluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	centroid := centroidOf(records)

	items := make([]BoundaryItem, len(records))
	for i, r := range records {
		items[i] = BoundaryItem{Item: r.Item, Distance: euclidean(r.Embedding, centroid)}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Distance == items[j].Distance {
			return items[i].Item.ExternalID < items[j].Item.ExternalID
		}
		return items[i].Distance > items[j].Distance
	})

	if n >= 0 && n < len(items) {
		items = items[:n]
	}
	return items, nil
}

func centroidOf(records []Record) []float32 {
	dim := len(records[0].Embedding)
	sums := make([]float64, dim)
	for _, r := range records {
		for i, v := range r.Embedding {
			sums[i] += float64(v)
		}
	}
	centroid := make([]float32, dim)
	for i, s := range sums {
		centroid[i] = float32(s / float64(len(records)))
	}
	return centroid
}

// LatestArticles returns up to n items across all clusters, sorted by
// published_at descending (ties by external_id ascending), for the
// no-arms-yet fallback path of the Feed Selector.
func (e *Engine) LatestArticles(ctx context.Context, n int) ([]entity.ProcessedItem, error) {
	records, err := e.store.BulkScan(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		pi, pj := records[i].Item.PublishedAt, records[j].Item.PublishedAt
		if pi == nil && pj == nil {
			return records[i].Item.ExternalID < records[j].Item.ExternalID
		}
		if pi == nil {
			return false
		}
		if pj == nil {
			return true
		}
		if pi.Equal(*pj) {
			return records[i].Item.ExternalID < records[j].Item.ExternalID
		}
		return pi.After(*pj)
	})

	if n >= 0 && n < len(records) {
		records = records[:n]
	}
	out := make([]entity.ProcessedItem, len(records))
	for i, r := range records {
		out[i] = r.Item
	}
	return out, nil
}

// ClusterDensity returns, for each non-noise cluster, the fraction of total
// items it contains.
func (e *Engine) ClusterDensity(ctx context.Context) (map[int]float64, error) {
	records, err := e.store.BulkScan(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return map[int]float64{}, nil
	}

	counts := make(map[int]int)
	for _, r := range records {
		if r.Item.ClusterID != entity.NoiseClusterID {
			counts[r.Item.ClusterID]++
		}
	}

	density := make(map[int]float64, len(counts))
	total := float64(len(records))
	for clusterID, count := range counts {
		density[clusterID] = float64(count) / total
	}
	return density, nil
}

// Get returns a single stored item, or nil if not found.
func (e *Engine) Get(ctx context.Context, externalID string) (*entity.ProcessedItem, error) {
	rec, err := e.store.Get(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return &rec.Item, nil
}

// TotalCount returns the number of stored items.
func (e *Engine) TotalCount(ctx context.Context) (int, error) {
	return e.store.TotalCount(ctx)
}

// Info is the read-only introspection surface for the HTTP API's topology
// endpoint.
type Info struct {
	TotalArticles int
	ClusterCounts map[int]int
}

// TopologyInfo returns total article count plus per-cluster counts.
func (e *Engine) TopologyInfo(ctx context.Context) (Info, error) {
	records, err := e.store.BulkScan(ctx)
	if err != nil {
		return Info{}, err
	}
	counts := make(map[int]int)
	for _, r := range records {
		counts[r.Item.ClusterID]++
	}
	return Info{TotalArticles: len(records), ClusterCounts: counts}, nil
}

func (e *Engine) recordsInCluster(ctx context.Context, clusterID int) ([]Record, error) {
	all, err := e.store.BulkScan(ctx)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range all {
		if r.Item.ClusterID == clusterID && clusterID != entity.NoiseClusterID {
			out = append(out, r)
		}
	}
	return out, nil
}
