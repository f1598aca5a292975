package hnsw

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/hnswstore/internal/queue"
	"github.com/hupe1980/hnswstore/metric"
)

const (
	// DefaultM is the default number of bidirectional links.
	DefaultM = 16

	// DefaultEF is the default size of the dynamic candidate list during construction.
	DefaultEF = 200

	// minimumM is the minimum valid value for M.
	// M == 1 would result in division by zero: 1 / log(1.0 * M) = 1 / 0
	minimumM = 2

	// mmax0Multiplier is the multiplier for calculating maximum connections at layer 0.
	mmax0Multiplier = 2
)

// DistanceFunc represents a function for calculating the distance between two vectors
type DistanceFunc func(v1, v2 []float32) (float32, error)

// Options represents the options for configuring HNSW.
type Options struct {
	// M specifies the number of established connections for every new element during construction.
	// Reasonable range for M is 2-100. Higher M works better on datasets with high intrinsic dimensionality and/or high recall,
	// while low M works better for datasets with low intrinsic dimensionality and/or low recalls.
	// The range M=12-48 is ok for most use cases.
	M int

	// EF specifies the size of the dynamic candidate list during construction.
	EF int

	// Heuristic indicates whether to use the heuristic neighbour selection (true) or the naive K-NN selection (false).
	Heuristic bool

	// Seed makes level assignment deterministic when set.
	Seed *int64

	// DistanceFunc represents the distance function for calculating distance between vectors.
	DistanceFunc DistanceFunc
}

// DefaultOptions contains the default options for HNSW.
var DefaultOptions = Options{
	M:            DefaultM,
	EF:           DefaultEF,
	Heuristic:    true,
	DistanceFunc: metric.CosineDistance,
}

type node struct {
	vector      []float32
	layer       int
	connections [][]uint32 // Links to other nodes, one slice per layer
}

// HNSW represents the Hierarchical Navigable Small World graph.
//
// Insert is serialized internally. KNNSearch and BruteSearch do not lock and must not
// run concurrently with Insert; once construction is finished they are safe for
// concurrent use.
type HNSW struct {
	dimension int
	mmax      int     // Max number of connections per element/per layer
	mmax0     int     // Max for the 0 layer
	ml        float64 // Normalization factor for level generation
	ep        uint32  // Entry point, lives on the top layer
	maxLevel  int     // Track the current max level used

	nodes []*node

	opts Options
	rng  *rand.Rand

	visitedPool sync.Pool

	mutex sync.Mutex
}

// New creates a new, empty HNSW instance with the given dimension and options.
func New(dimension int, optFns ...func(o *Options)) (*HNSW, error) {
	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}

	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M < minimumM {
		opts.M = minimumM
	}

	if opts.EF <= 0 {
		opts.EF = DefaultEF
	}

	if opts.DistanceFunc == nil {
		opts.DistanceFunc = metric.CosineDistance
	}

	seed := time.Now().UnixNano()
	if opts.Seed != nil {
		seed = *opts.Seed
	}

	h := &HNSW{
		dimension: dimension,
		mmax:      opts.M,
		mmax0:     mmax0Multiplier * opts.M,
		ml:        1 / math.Log(float64(opts.M)),
		opts:      opts,
		rng:       rand.New(rand.NewSource(seed)), // nolint gosec
	}

	h.visitedPool.New = func() any {
		return bitset.New(uint(len(h.nodes)))
	}

	return h, nil
}

// Build creates a graph containing every vector, in order. Node i of the graph
// corresponds to vectors[i]. The graph retains the vectors without copying them.
func Build(dimension int, vectors [][]float32, optFns ...func(o *Options)) (*HNSW, error) {
	h, err := New(dimension, optFns...)
	if err != nil {
		return nil, err
	}

	h.nodes = slices.Grow(h.nodes, len(vectors))

	for _, v := range vectors {
		if _, err := h.Insert(v); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// Len returns the number of nodes in the graph.
func (h *HNSW) Len() int { return len(h.nodes) }

// Dimension returns the vector dimension of the graph.
func (h *HNSW) Dimension() int { return h.dimension }

// Insert inserts a new element into the HNSW graph and returns its position.
// The graph retains v; callers must not modify it afterwards.
func (h *HNSW) Insert(v []float32) (uint32, error) {
	// Check if dimensions of the input vector match the expected dimension
	if len(v) != h.dimension {
		return 0, &ErrDimensionMismatch{Expected: h.dimension, Actual: len(v)}
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	// next ID
	id := uint32(len(h.nodes))

	layer := h.randomLevel()

	n := &node{
		vector:      v,
		layer:       layer,
		connections: make([][]uint32, layer+1),
	}

	if id == 0 {
		h.nodes = append(h.nodes, n)
		h.ep = id
		h.maxLevel = layer

		return id, nil
	}

	currDist, err := h.opts.DistanceFunc(v, h.nodes[h.ep].vector)
	if err != nil {
		return 0, err
	}

	curr := Neighbor{Node: h.ep, Distance: currDist}

	// Find single shortest path from top layers above our current node, which will be our new starting-point
	for level := h.maxLevel; level > layer; level-- {
		if curr, err = h.greedyClosest(v, curr, level); err != nil {
			return 0, err
		}
	}

	// For all levels equal and below our current node, find the top (closest) candidates and create a link
	for level := min(layer, h.maxLevel); level >= 0; level-- {
		candidates, err := h.searchLayer(v, curr, h.opts.EF, level, nil)
		if err != nil {
			return 0, err
		}

		selected, err := h.selectNeighbours(candidates, h.mmax)
		if err != nil {
			return 0, err
		}

		n.connections[level] = make([]uint32, len(selected))
		for i, s := range selected {
			n.connections[level][i] = s.Node
		}

		curr = candidates[0]
	}

	// Append new node
	h.nodes = append(h.nodes, n)

	// Next link the neighbour nodes to our new node, making it visible
	for level := min(layer, h.maxLevel); level >= 0; level-- {
		for _, neighbour := range n.connections[level] {
			if err := h.link(neighbour, id, level); err != nil {
				return 0, err
			}
		}
	}

	if layer > h.maxLevel {
		h.ep = id
		h.maxLevel = layer
	}

	return id, nil
}

// KNNSearch performs a k-nearest neighbor search in the HNSW graph.
// Results are ordered by ascending distance. accept may be nil.
func (h *HNSW) KNNSearch(q []float32, k int, efSearch int, accept AcceptFunc) ([]Neighbor, error) {
	if len(q) != h.dimension {
		return nil, &ErrDimensionMismatch{Expected: h.dimension, Actual: len(q)}
	}

	if k <= 0 || len(h.nodes) == 0 {
		return nil, nil
	}

	ef := max(efSearch, k)

	currDist, err := h.opts.DistanceFunc(q, h.nodes[h.ep].vector)
	if err != nil {
		return nil, err
	}

	curr := Neighbor{Node: h.ep, Distance: currDist}

	for level := h.maxLevel; level > 0; level-- {
		if curr, err = h.greedyClosest(q, curr, level); err != nil {
			return nil, err
		}
	}

	results, err := h.searchLayer(q, curr, ef, 0, accept)
	if err != nil {
		return nil, err
	}

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// BruteSearch performs an exhaustive search over every node.
// Results are ordered by ascending distance. accept may be nil.
func (h *HNSW) BruteSearch(q []float32, k int, accept AcceptFunc) ([]Neighbor, error) {
	if len(q) != h.dimension {
		return nil, &ErrDimensionMismatch{Expected: h.dimension, Actual: len(q)}
	}

	if k <= 0 {
		return nil, nil
	}

	topCandidates := queue.NewMax(k + 1)

	for id, n := range h.nodes {
		if accept != nil && !accept(uint32(id)) {
			continue
		}

		nodeDist, err := h.opts.DistanceFunc(q, n.vector)
		if err != nil {
			return nil, err
		}

		if topCandidates.Len() < k {
			topCandidates.PushItem(Neighbor{Node: uint32(id), Distance: nodeDist})
			continue
		}

		if nodeDist < topCandidates.Top().Distance {
			topCandidates.PopItem()
			topCandidates.PushItem(Neighbor{Node: uint32(id), Distance: nodeDist})
		}
	}

	return drainAscending(topCandidates), nil
}

// randomLevel draws the layer of a new node from an exponentially decaying distribution.
func (h *HNSW) randomLevel() int {
	// 1 - Float64() is in (0, 1], keeping the logarithm finite.
	return int(math.Floor(-math.Log(1-h.rng.Float64()) * h.ml))
}

// greedyClosest walks a single layer towards q until no neighbour is closer.
func (h *HNSW) greedyClosest(q []float32, curr Neighbor, level int) (Neighbor, error) {
	for changed := true; changed; {
		changed = false

		for _, id := range h.nodes[curr.Node].connections[level] {
			d, err := h.opts.DistanceFunc(q, h.nodes[id].vector)
			if err != nil {
				return Neighbor{}, err
			}

			if d < curr.Distance {
				// Update the starting point to our new node
				curr = Neighbor{Node: id, Distance: d}
				changed = true
			}
		}
	}

	return curr, nil
}

// searchLayer performs a beam search of width ef in a single layer starting at ep.
// The returned candidates are ordered by ascending distance.
func (h *HNSW) searchLayer(q []float32, ep Neighbor, ef int, level int, accept AcceptFunc) ([]Neighbor, error) {
	visited := h.visitedPool.Get().(*bitset.BitSet)
	defer func() {
		visited.ClearAll()
		h.visitedPool.Put(visited)
	}()

	visited.Set(uint(ep.Node))

	candidates := queue.NewMin(ef)
	candidates.PushItem(ep)

	topCandidates := queue.NewMax(ef + 1)
	if accept == nil || accept(ep.Node) {
		topCandidates.PushItem(ep)
	}

	for candidates.Len() > 0 {
		candidate := candidates.PopItem()

		if topCandidates.Len() >= ef && candidate.Distance > topCandidates.Top().Distance {
			break
		}

		n := h.nodes[candidate.Node]
		if level >= len(n.connections) {
			continue
		}

		for _, id := range n.connections[level] {
			if visited.Test(uint(id)) {
				continue
			}

			visited.Set(uint(id))

			distance, err := h.opts.DistanceFunc(q, h.nodes[id].vector)
			if err != nil {
				return nil, err
			}

			if topCandidates.Len() >= ef && distance >= topCandidates.Top().Distance {
				continue
			}

			item := Neighbor{Node: id, Distance: distance}
			candidates.PushItem(item)

			if accept != nil && !accept(id) {
				continue
			}

			topCandidates.PushItem(item)
			if topCandidates.Len() > ef {
				topCandidates.PopItem()
			}
		}
	}

	return drainAscending(topCandidates), nil
}

// selectNeighbours picks at most m links out of candidates, which must be ordered by
// ascending distance.
func (h *HNSW) selectNeighbours(candidates []Neighbor, m int) ([]Neighbor, error) {
	if len(candidates) <= m {
		return candidates, nil
	}

	if !h.opts.Heuristic {
		return candidates[:m], nil
	}

	selected := make([]Neighbor, 0, m)
	discarded := make([]Neighbor, 0, len(candidates))

	for _, c := range candidates {
		if len(selected) >= m {
			break
		}

		keep := true

		// Keep c only if it is closer to the base element than to every element already selected
		for _, s := range selected {
			d, err := h.opts.DistanceFunc(h.nodes[s.Node].vector, h.nodes[c.Node].vector)
			if err != nil {
				return nil, err
			}

			if d < c.Distance {
				keep = false
				break
			}
		}

		if keep {
			selected = append(selected, c)
		} else {
			discarded = append(discarded, c)
		}
	}

	// Fill up with the closest pruned candidates
	for i := 0; len(selected) < m && i < len(discarded); i++ {
		selected = append(selected, discarded[i])
	}

	return selected, nil
}

// link adds a connection from first to second at level, shrinking the connection list
// of first if it overflows.
func (h *HNSW) link(first uint32, second uint32, level int) error {
	maxConnections := h.mmax
	// HNSW allows double the connections for the bottom level (0)
	if level == 0 {
		maxConnections = h.mmax0
	}

	n := h.nodes[first]
	n.connections[level] = append(n.connections[level], second)

	if len(n.connections[level]) <= maxConnections {
		return nil
	}

	candidates := make([]Neighbor, 0, len(n.connections[level]))

	for _, id := range n.connections[level] {
		distance, err := h.opts.DistanceFunc(n.vector, h.nodes[id].vector)
		if err != nil {
			return err
		}

		candidates = append(candidates, Neighbor{Node: id, Distance: distance})
	}

	// Ties keep the older node first so pruning is deterministic.
	slices.SortFunc(candidates, func(a, b Neighbor) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.Node, b.Node))
	})

	selected, err := h.selectNeighbours(candidates, maxConnections)
	if err != nil {
		return err
	}

	conns := n.connections[level][:0]
	for _, s := range selected {
		conns = append(conns, s.Node)
	}

	n.connections[level] = conns

	return nil
}

func drainAscending(pq *queue.PriorityQueue) []Neighbor {
	out := make([]Neighbor, pq.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = pq.PopItem()
	}

	return out
}
