// Package feed implements the Feed Selector: a Thompson-Sampling
// multi-armed bandit over topology clusters, with reserved serendipity
// slots drawn from cluster boundaries, and an action-driven reward loop.
package feed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/feed/state"
	"catchup-feed/internal/topology"
)

// TopologyReader is the slice of the Topology Engine the Feed Selector
// consumes.
type TopologyReader interface {
	Get(ctx context.Context, externalID string) (*entity.ProcessedItem, error)
	ClusterArticles(ctx context.Context, clusterID int, n int, newestFirst bool) ([]entity.ProcessedItem, error)
	BoundaryArticles(ctx context.Context, clusterID int, n int) ([]topology.BoundaryItem, error)
	LatestArticles(ctx context.Context, n int) ([]entity.ProcessedItem, error)
}

// Selector generates feed pages and updates arms from recorded actions.
type Selector struct {
	topo  TopologyReader
	arms  *state.Store
	rng   *rand.Rand
}

// New builds a Selector. rng may be nil, in which case a process-wide
// source seeded from crypto-quality entropy at startup is used; tests pass
// a seeded rand.Rand for determinism.
func New(topo TopologyReader, arms *state.Store, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Selector{topo: topo, arms: arms, rng: rng}
}

// Params bundles generate_feed's filters alongside pagination.
type Params struct {
	Limit            int
	Offset           int
	VendorFilter     string
	PrimaryOnly      bool
	SerendipitySlots int
}

// GenerateFeed produces one page of the feed.
func (s *Selector) GenerateFeed(ctx context.Context, p Params) ([]entity.FeedItem, error) {
	arms, err := s.arms.GetAllClusterArms(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cluster arms: %w", err)
	}

	if len(arms) == 0 {
		return s.latestArticlesFeed(ctx, p)
	}

	sampled := make([]sampledArm, len(arms))
	for i, arm := range arms {
		sampled[i] = sampledArm{arm: arm, sample: sampleBeta(s.rng, arm.Alpha, arm.Beta)}
	}
	sort.Slice(sampled, func(i, j int) bool { return sampled[i].sample > sampled[j].sample })

	serendipitySlots := p.SerendipitySlots
	if serendipitySlots > p.Limit {
		serendipitySlots = p.Limit
	}
	mainSlots := p.Limit - serendipitySlots
	perCluster := mainSlots / len(sampled)
	if perCluster < 1 {
		perCluster = 1
	}

	seen := make(map[string]bool)
	var page []entity.FeedItem

	for _, sa := range sampled {
		if len(page) >= mainSlots {
			break
		}
		items, err := s.topo.ClusterArticles(ctx, sa.arm.ClusterID, perCluster+p.Offset, true)
		if err != nil {
			return nil, fmt.Errorf("load cluster %d articles: %w", sa.arm.ClusterID, err)
		}
		filtered := applyFilters(items, p)
		if p.Offset > 0 && p.Offset < len(filtered) {
			filtered = filtered[p.Offset:]
		} else if p.Offset >= len(filtered) {
			filtered = nil
		}
		for _, it := range filtered {
			if len(page) >= mainSlots || seen[it.ExternalID] {
				continue
			}
			seen[it.ExternalID] = true
			page = append(page, toFeedItem(it, false))
		}
	}

	lowCount := len(sampled) / 2
	if lowCount < 3 {
		lowCount = 3
	}
	if lowCount > len(sampled) {
		lowCount = len(sampled)
	}
	lowClusters := sampled[len(sampled)-lowCount:]

	for _, sa := range lowClusters {
		if len(page) >= p.Limit {
			break
		}
		boundary, err := s.topo.BoundaryArticles(ctx, sa.arm.ClusterID, 3)
		if err != nil {
			return nil, fmt.Errorf("load cluster %d boundary: %w", sa.arm.ClusterID, err)
		}
		for _, b := range boundary {
			if len(page) >= p.Limit || seen[b.Item.ExternalID] {
				continue
			}
			if !matchesFilters(b.Item, p) {
				continue
			}
			seen[b.Item.ExternalID] = true
			page = append(page, toFeedItem(b.Item, true))
		}
	}

	if len(page) > p.Limit {
		page = page[:p.Limit]
	}
	return page, nil
}

type sampledArm struct {
	arm    entity.ClusterArm
	sample float64
}

func (s *Selector) latestArticlesFeed(ctx context.Context, p Params) ([]entity.FeedItem, error) {
	items, err := s.topo.LatestArticles(ctx, p.Offset+p.Limit+1)
	if err != nil {
		return nil, fmt.Errorf("load latest articles: %w", err)
	}
	filtered := applyFilters(items, p)
	if p.Offset > 0 {
		if p.Offset >= len(filtered) {
			filtered = nil
		} else {
			filtered = filtered[p.Offset:]
		}
	}
	if len(filtered) > p.Limit {
		filtered = filtered[:p.Limit]
	}
	out := make([]entity.FeedItem, len(filtered))
	for i, it := range filtered {
		out[i] = toFeedItem(it, false)
	}
	return out, nil
}

// RecordAction looks up articleID; no-ops if missing or its cluster is
// noise. Otherwise it durably logs the action before updating the arm, so a
// crash between the two leaves the arm under-counted, never over-counted.
func (s *Selector) RecordAction(ctx context.Context, articleID string, action entity.Action) error {
	if !action.IsValid() {
		return &InvalidActionError{Action: string(action)}
	}

	item, err := s.topo.Get(ctx, articleID)
	if err != nil {
		return fmt.Errorf("load article: %w", err)
	}
	if item == nil {
		return nil
	}
	if item.ClusterID == entity.NoiseClusterID {
		return nil
	}

	clusterID := item.ClusterID
	if err := s.arms.LogAction(ctx, articleID, action, &clusterID); err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return s.arms.UpdateArmReward(ctx, clusterID, action.IsSuccess())
}

// InvalidActionError is returned for any action outside {click, bookmark, skip}.
type InvalidActionError struct{ Action string }

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %q", e.Action)
}

func applyFilters(items []entity.ProcessedItem, p Params) []entity.ProcessedItem {
	out := make([]entity.ProcessedItem, 0, len(items))
	for _, it := range items {
		if matchesFilters(it, p) {
			out = append(out, it)
		}
	}
	return out
}

func matchesFilters(it entity.ProcessedItem, p Params) bool {
	if p.VendorFilter != "" && !strings.EqualFold(it.Vendor, p.VendorFilter) {
		return false
	}
	if p.PrimaryOnly && !it.IsPrimarySource {
		return false
	}
	return true
}

func toFeedItem(it entity.ProcessedItem, serendipity bool) entity.FeedItem {
	return entity.FeedItem{
		ExternalID:      it.ExternalID,
		Title:           it.Title,
		SourceURL:       it.SourceURL,
		Summary:         it.Summary,
		Tags:            it.Tags,
		Vendor:          it.Vendor,
		IsPrimarySource: it.IsPrimarySource,
		TechDomain:      it.TechDomain,
		PublishedAt:     it.PublishedAt,
		ClusterID:       it.ClusterID,
		Serendipity:     serendipity,
	}
}

// sampleBeta draws one sample from Beta(alpha, beta) via two Gamma draws,
// the standard Gamma-ratio construction (no direct Beta sampler in the
// standard library's math/rand).
func sampleBeta(rng *rand.Rand, alpha, beta float64) float64 {
	x := sampleGamma(rng, alpha)
	y := sampleGamma(rng, beta)
	return x / (x + y)
}

// sampleGamma implements Marsaglia and Tsang's method for shape >= 1, with
// the standard boost transform for shape < 1.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*(x*x*x*x) {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
