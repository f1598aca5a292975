// Package coderhnsw adapts github.com/coder/hnsw graphs to the search contract of
// the native graph.
package coderhnsw

import (
	"cmp"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/coder/hnsw"
	ihnsw "github.com/hupe1980/hnswstore/internal/hnsw"
	"github.com/hupe1980/hnswstore/internal/queue"
	"github.com/hupe1980/hnswstore/metric"
)

const (
	// DefaultM is the default maximum number of neighbors per node.
	DefaultM = 16

	// DefaultMl is the default level generation factor.
	DefaultMl = 0.25

	// DefaultEfSearch is the default candidate list size.
	DefaultEfSearch = 64

	// filterOversample widens the fetch when results are post-filtered.
	filterOversample = 4
)

// Options configures a graph.
type Options struct {
	M        int
	Ml       float64
	EfSearch int
	Seed     *int64
}

// Graph is an immutable coder/hnsw graph keyed by position in the build batch.
//
// Searches are serialized: the library graph is not documented as safe for
// concurrent readers and EfSearch is adjusted per call.
type Graph struct {
	g         *hnsw.Graph[uint32]
	vectors   [][]float32
	dimension int
	opts      Options

	mu sync.Mutex
}

// Build inserts every vector; node i corresponds to vectors[i].
func Build(dimension int, vectors [][]float32, opts Options) (*Graph, error) {
	if dimension <= 0 {
		return nil, &ihnsw.ErrInvalidDimension{Dimension: dimension}
	}

	if opts.M < 2 {
		opts.M = DefaultM
	}
	if opts.Ml <= 0 {
		opts.Ml = DefaultMl
	}
	if opts.EfSearch <= 0 {
		opts.EfSearch = DefaultEfSearch
	}

	seed := time.Now().UnixNano()
	if opts.Seed != nil {
		seed = *opts.Seed
	}

	g := hnsw.NewGraph[uint32]()
	g.Distance = metric.Cosine
	g.M = opts.M
	g.Ml = opts.Ml
	g.EfSearch = opts.EfSearch
	g.Rng = rand.New(rand.NewSource(seed)) // nolint gosec

	nodes := make([]hnsw.Node[uint32], len(vectors))

	for i, v := range vectors {
		// The library panics on mismatched dimensions.
		if len(v) != dimension {
			return nil, &ihnsw.ErrDimensionMismatch{Expected: dimension, Actual: len(v)}
		}

		nodes[i] = hnsw.MakeNode(uint32(i), v)
	}

	if len(nodes) > 0 {
		g.Add(nodes...)
	}

	return &Graph{g: g, vectors: vectors, dimension: dimension, opts: opts}, nil
}

// Len returns the number of nodes in the graph.
func (c *Graph) Len() int { return c.g.Len() }

// Dimension returns the vector dimension of the graph.
func (c *Graph) Dimension() int { return c.dimension }

// KNNSearch returns up to k nodes ordered by ascending cosine distance.
// With accept set, an oversampled result list is filtered afterwards, so fewer
// than k results may come back even when k accepted nodes exist.
func (c *Graph) KNNSearch(q []float32, k int, efSearch int, accept ihnsw.AcceptFunc) ([]ihnsw.Neighbor, error) {
	if len(q) != c.dimension {
		return nil, &ihnsw.ErrDimensionMismatch{Expected: c.dimension, Actual: len(q)}
	}

	if k <= 0 || c.g.Len() == 0 {
		return nil, nil
	}

	fetch := k
	if accept != nil {
		fetch = min(c.g.Len(), max(k*filterOversample, efSearch))
	}

	c.mu.Lock()
	c.g.EfSearch = max(efSearch, fetch, c.opts.EfSearch)
	nodes := c.g.Search(q, fetch)
	c.mu.Unlock()

	results := make([]ihnsw.Neighbor, 0, len(nodes))

	for _, n := range nodes {
		if accept != nil && !accept(n.Key) {
			continue
		}

		results = append(results, ihnsw.Neighbor{Node: n.Key, Distance: metric.Cosine(q, n.Value)})
	}

	slices.SortFunc(results, func(a, b ihnsw.Neighbor) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.Node, b.Node))
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// BruteSearch compares q against every node. Results are ordered by ascending
// distance. accept may be nil.
func (c *Graph) BruteSearch(q []float32, k int, accept ihnsw.AcceptFunc) ([]ihnsw.Neighbor, error) {
	if len(q) != c.dimension {
		return nil, &ihnsw.ErrDimensionMismatch{Expected: c.dimension, Actual: len(q)}
	}

	if k <= 0 {
		return nil, nil
	}

	top := queue.NewMax(k + 1)

	for i, v := range c.vectors {
		node := uint32(i)
		if accept != nil && !accept(node) {
			continue
		}

		d := metric.Cosine(q, v)

		if top.Len() < k {
			top.PushItem(ihnsw.Neighbor{Node: node, Distance: d})
			continue
		}

		if d < top.Top().Distance {
			top.PopItem()
			top.PushItem(ihnsw.Neighbor{Node: node, Distance: d})
		}
	}

	out := make([]ihnsw.Neighbor, top.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = top.PopItem()
	}

	return out, nil
}

// Stats describes the graph. The library does not expose its layers.
func (c *Graph) Stats() ihnsw.Stats {
	return ihnsw.Stats{
		Nodes:     c.g.Len(),
		Dimension: c.dimension,
		M:         c.opts.M,
		M0:        c.opts.M,
		EF:        c.opts.EfSearch,
	}
}
