package topology

import (
	"math"
	"sort"
)

// Labels maps a point index to its assigned cluster, or NoiseLabel.
type Labels []int

// NoiseLabel is the label for points not assigned to any cluster.
const NoiseLabel = -1

// ClusterParams tunes the density-based clustering pass.
type ClusterParams struct {
	MinClusterSize int
	MinSamples     int
}

// Cluster runs a density-based clustering pass over vectors, in the
// HDBSCAN family: it builds a minimum spanning tree over mutual-
// reachability distances (core distance from MinSamples-nearest-neighbor,
// per point) and grows flat clusters along that tree's edges in increasing
// order of weight, the same way HDBSCAN sweeps DBSCAN* across increasing
// epsilon. Edges heavier than mstEdgeCutoff are treated as bridges between
// separate components rather than merged — without this cut the MST is
// connected end to end and the whole graph would always collapse into one
// cluster. A component is promoted to a cluster the first time its size
// reaches MinClusterSize; further merges of two already-promoted clusters
// keep the label of the larger side. This is a simplification of full
// HDBSCAN's excess-of-mass extraction over the condensed tree (no
// persistence/stability scoring), chosen because no clustering library in
// the dependency set covers this; see DESIGN.md.
//
// If len(vectors) < params.MinClusterSize, every point is assigned to
// cluster 0, per the spec's boundary behavior.
func Cluster(vectors [][]float32, params ClusterParams) Labels {
	n := len(vectors)
	labels := make(Labels, n)

	if n < params.MinClusterSize {
		for i := range labels {
			labels[i] = 0
		}
		return labels
	}

	dist := pairwiseDistances(vectors)
	core := coreDistances(dist, params.MinSamples)
	edges := mutualReachabilityMST(n, dist, core)

	sort.Slice(edges, func(i, j int) bool { return edges[i].weight < edges[j].weight })
	cutoff := mstEdgeCutoff(edges)

	uf := newUnionFind(n)
	clusterOf := make(map[int]int) // root -> cluster label
	nextLabel := 0

	for _, e := range edges {
		if e.weight > cutoff {
			continue
		}
		rootA := uf.find(e.a)
		rootB := uf.find(e.b)
		if rootA == rootB {
			continue
		}
		sizeA, sizeB := uf.size[rootA], uf.size[rootB]
		labelA, hasA := clusterOf[rootA]
		labelB, hasB := clusterOf[rootB]

		newRoot := uf.union(rootA, rootB)
		delete(clusterOf, rootA)
		delete(clusterOf, rootB)
		newSize := uf.size[newRoot]

		if newSize >= params.MinClusterSize {
			switch {
			case !hasA && !hasB:
				clusterOf[newRoot] = nextLabel
				nextLabel++
			case hasA && !hasB:
				clusterOf[newRoot] = labelA
			case hasB && !hasA:
				clusterOf[newRoot] = labelB
			default:
				if sizeA >= sizeB {
					clusterOf[newRoot] = labelA
				} else {
					clusterOf[newRoot] = labelB
				}
			}
		}
	}

	for i := 0; i < n; i++ {
		if label, ok := clusterOf[uf.find(i)]; ok {
			labels[i] = label
		} else {
			labels[i] = NoiseLabel
		}
	}
	return labels
}

func pairwiseDistances(vectors [][]float32) [][]float64 {
	n := len(vectors)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := euclidean(vectors[i], vectors[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// coreDistances returns, for each point, the distance to its minSamples-th
// nearest neighbor (excluding itself).
func coreDistances(dist [][]float64, minSamples int) []float64 {
	n := len(dist)
	core := make([]float64, n)
	for i := 0; i < n; i++ {
		neighbors := make([]float64, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				neighbors = append(neighbors, dist[i][j])
			}
		}
		sort.Float64s(neighbors)
		idx := minSamples - 1
		if idx >= len(neighbors) {
			idx = len(neighbors) - 1
		}
		if idx < 0 {
			core[i] = 0
		} else {
			core[i] = neighbors[idx]
		}
	}
	return core
}

type mstEdge struct {
	a, b   int
	weight float64
}

// mutualReachabilityMST builds a minimum spanning tree (Prim's algorithm)
// over the mutual reachability graph: d_mreach(i,j) = max(core[i], core[j], dist[i][j]).
func mutualReachabilityMST(n int, dist [][]float64, core []float64) []mstEdge {
	inTree := make([]bool, n)
	minEdge := make([]float64, n)
	minFrom := make([]int, n)
	for i := range minEdge {
		minEdge[i] = math.Inf(1)
		minFrom[i] = -1
	}

	inTree[0] = true
	var edges []mstEdge
	for i := 1; i < n; i++ {
		w := mutualReachability(dist[0][i], core[0], core[i])
		minEdge[i] = w
		minFrom[i] = 0
	}

	for k := 1; k < n; k++ {
		next := -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !inTree[i] && minEdge[i] < best {
				best = minEdge[i]
				next = i
			}
		}
		if next == -1 {
			break
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: minFrom[next], b: next, weight: best})

		for i := 0; i < n; i++ {
			if !inTree[i] {
				w := mutualReachability(dist[next][i], core[next], core[i])
				if w < minEdge[i] {
					minEdge[i] = w
					minFrom[i] = next
				}
			}
		}
	}
	return edges
}

// mstEdgeCutoff returns the density cut: MST edges heavier than this are
// bridges between separate dense regions rather than same-region edges, the
// same role epsilon plays in a DBSCAN flat cut. It sits one standard
// deviation above the mean MST edge weight, so a handful of unusually long
// bridging edges fall above it while the bulk of same-density edges stay
// below.
func mstEdgeCutoff(edges []mstEdge) float64 {
	if len(edges) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for _, e := range edges {
		sum += e.weight
	}
	mean := sum / float64(len(edges))

	var variance float64
	for _, e := range edges {
		d := e.weight - mean
		variance += d * d
	}
	variance /= float64(len(edges))

	return mean + math.Sqrt(variance)
}

func mutualReachability(d, coreA, coreB float64) float64 {
	m := d
	if coreA > m {
		m = coreA
	}
	if coreB > m {
		m = coreB
	}
	return m
}

type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// union merges the components rooted at a and b (already distinct roots)
// and returns the resulting root.
func (uf *unionFind) union(a, b int) int {
	if uf.size[a] < uf.size[b] {
		a, b = b, a
	}
	uf.parent[b] = a
	uf.size[a] += uf.size[b]
	return a
}
