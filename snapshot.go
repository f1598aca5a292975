package hnswstore

import (
	"cmp"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/hnswstore/internal/coderhnsw"
	"github.com/hupe1980/hnswstore/internal/hnsw"
)

// graph is the read-only view of a built index shared by all backends.
type graph interface {
	Len() int
	KNNSearch(q []float32, k int, efSearch int, accept hnsw.AcceptFunc) ([]hnsw.Neighbor, error)
	BruteSearch(q []float32, k int, accept hnsw.AcceptFunc) ([]hnsw.Neighbor, error)
	Stats() hnsw.Stats
}

var (
	_ graph = (*hnsw.HNSW)(nil)
	_ graph = (*coderhnsw.Graph)(nil)
)

// snapshot is an immutable, fully built index. Graph node i holds ids[i].
type snapshot struct {
	graph graph
	ids   []int64
	idSet *roaring64.Bitmap

	dimension     int
	generation    uint64
	backend       Backend
	builtAt       time.Time
	buildDuration time.Duration

	// reserved is the memory reservation held while the snapshot is published.
	reserved int64
}

func newGraph(o *options, dimension int, vectors [][]float32) (graph, error) {
	switch o.backend {
	case BackendCoder:
		return coderhnsw.Build(dimension, vectors, coderhnsw.Options{
			M:        o.m,
			EfSearch: o.efSearch,
			Seed:     o.seed,
		})
	default:
		return hnsw.Build(dimension, vectors, func(ho *hnsw.Options) {
			ho.M = o.m
			ho.EF = o.efConstruction
			ho.Heuristic = o.heuristic
			ho.Seed = o.seed
		})
	}
}

func (s *snapshot) search(query []float32, topK int, efSearch int, filter *roaring64.Bitmap) ([]SearchResult, error) {
	var accept hnsw.AcceptFunc
	if filter != nil {
		accept = func(node uint32) bool {
			return filter.Contains(uint64(s.ids[node]))
		}
	}

	neighbors, err := s.graph.KNNSearch(query, topK, max(efSearch, topK), accept)
	if err != nil {
		return nil, err
	}

	if want := min(topK, s.graph.Len()); len(neighbors) < want {
		if neighbors, err = s.topUp(query, want, neighbors, accept); err != nil {
			return nil, err
		}
	}

	results := make([]SearchResult, len(neighbors))
	for i, n := range neighbors {
		results[i] = SearchResult{ID: s.ids[n.Node], Distance: n.Distance}
	}

	return results, nil
}

// topUp fills a short traversal result with the nearest nodes it missed. Graphs
// built from many tied distances (duplicate or zero vectors) can leave nodes
// unreachable from the entry point.
func (s *snapshot) topUp(query []float32, want int, found []hnsw.Neighbor, accept hnsw.AcceptFunc) ([]hnsw.Neighbor, error) {
	seen := bitset.New(uint(s.graph.Len()))
	for _, n := range found {
		seen.Set(uint(n.Node))
	}

	rest, err := s.graph.BruteSearch(query, want-len(found), func(node uint32) bool {
		return !seen.Test(uint(node)) && (accept == nil || accept(node))
	})
	if err != nil {
		return nil, err
	}

	merged := append(found, rest...)
	slices.SortFunc(merged, func(a, b hnsw.Neighbor) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.Node, b.Node))
	})

	return merged, nil
}

// estimateMemory approximates the bytes held by a snapshot of n vectors.
func estimateMemory(n, dimension, m int) int64 {
	perPoint := int64(dimension)*4 + // vector
		8 + // id
		int64(2*m)*4 + // base layer links
		64 // node and slice headers
	return int64(n) * perPoint
}
