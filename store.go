package hnswstore

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest number of points validated by one goroutine.
const minChunk = 1024

// Store holds at most one published index.
//
// Build and Clear are serialized by a mutex while they publish. Searches load the
// current snapshot atomically and never block on writers; a snapshot replaced
// during a search stays valid until that search returns.
type Store struct {
	mu         sync.Mutex
	current    atomic.Pointer[snapshot]
	generation uint64

	opts options
}

// New creates an empty store.
func New(optFns ...Option) (*Store, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.setDefaults()

	if opts.dimension < 0 {
		return nil, fmt.Errorf("%w: dimension must not be negative", ErrInvalidInput)
	}

	if opts.dimension > 0 {
		opts.logger = opts.logger.WithDimension(opts.dimension)
	}

	return &Store{opts: opts}, nil
}

// Build replaces the current index with one built from points.
//
// An empty batch leaves the store unchanged. Vectors are copied.
func (s *Store) Build(points []Point) error {
	return s.BuildContext(context.Background(), points)
}

// BuildContext is like Build. ctx bounds the wait for a build slot.
func (s *Store) BuildContext(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		s.opts.logger.WarnContext(ctx, "build called with empty batch; index unchanged")
		return nil
	}

	start := time.Now()

	dim, err := s.build(ctx, points, start)
	err = translateError(err)

	duration := time.Since(start)
	s.opts.logger.LogBuild(ctx, len(points), dim, duration, err)
	s.opts.metricsCollector.RecordBuild(len(points), duration, err)

	return err
}

// BuildFrom loads a batch from src and builds it.
func (s *Store) BuildFrom(ctx context.Context, src PointSource) error {
	points, err := src.Points(ctx)
	if err != nil {
		return fmt.Errorf("load points: %w", err)
	}

	return s.BuildContext(ctx, points)
}

func (s *Store) build(ctx context.Context, points []Point, start time.Time) (int, error) {
	s.opts.logger.InfoContext(ctx, "index build started", "count", len(points))

	ids, vectors, err := s.prepare(ctx, points)
	if err != nil {
		return 0, err
	}

	dim := len(vectors[0])

	rc := s.opts.resources

	if err := rc.AcquireBuild(ctx); err != nil {
		return dim, err
	}
	defer rc.ReleaseBuild()

	reserved := estimateMemory(len(points), dim, s.opts.m)
	if err := rc.ReserveMemory(reserved); err != nil {
		return dim, err
	}

	g, err := newGraph(&s.opts, dim, vectors)
	if err != nil {
		rc.ReleaseMemory(reserved)
		return dim, err
	}

	idSet := roaring64.New()
	for _, id := range ids {
		idSet.Add(uint64(id))
	}
	idSet.RunOptimize()

	snap := &snapshot{
		graph:         g,
		ids:           ids,
		idSet:         idSet,
		dimension:     dim,
		backend:       s.opts.backend,
		builtAt:       time.Now(),
		buildDuration: time.Since(start),
		reserved:      reserved,
	}

	s.publish(snap)

	return dim, nil
}

// publish installs snap and releases the reservation of the snapshot it replaces.
func (s *Store) publish(snap *snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	snap.generation = s.generation

	if old := s.current.Swap(snap); old != nil {
		s.opts.resources.ReleaseMemory(old.reserved)
	}
}

// prepare validates points and copies their vectors into one backing array.
func (s *Store) prepare(ctx context.Context, points []Point) ([]int64, [][]float32, error) {
	dim := len(points[0].Vector)
	if dim == 0 {
		return nil, nil, fmt.Errorf("%w: point 0 has an empty vector", ErrInvalidInput)
	}

	if s.opts.dimension > 0 && dim != s.opts.dimension {
		return nil, nil, &ErrDimensionMismatch{Expected: s.opts.dimension, Actual: dim}
	}

	ids := make([]int64, len(points))
	vectors := make([][]float32, len(points))
	backing := make([]float32, len(points)*dim)

	chunk := max(minChunk, (len(points)+runtime.GOMAXPROCS(0)-1)/runtime.GOMAXPROCS(0))

	g, ctx := errgroup.WithContext(ctx)

	for lo := 0; lo < len(points); lo += chunk {
		hi := min(lo+chunk, len(points))

		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if i%minChunk == 0 && ctx.Err() != nil {
					return ctx.Err()
				}

				p := points[i]
				if len(p.Vector) != dim {
					return &ErrDimensionMismatch{Expected: dim, Actual: len(p.Vector)}
				}

				for _, f := range p.Vector {
					if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
						return fmt.Errorf("%w: point %d (id %d) has a non-finite component", ErrInvalidInput, i, p.ID)
					}
				}

				v := backing[i*dim : (i+1)*dim : (i+1)*dim]
				copy(v, p.Vector)

				ids[i] = p.ID
				vectors[i] = v
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return ids, vectors, nil
}

// Search returns the topK approximate nearest neighbors of query.
func (s *Store) Search(query []float32, topK int) ([]SearchResult, error) {
	return s.SearchWithOptions(query, topK, SearchOptions{})
}

// SearchWithOptions is like Search with a per-call candidate list size and
// an optional id filter.
func (s *Store) SearchWithOptions(query []float32, topK int, opts SearchOptions) ([]SearchResult, error) {
	return s.SearchContext(context.Background(), query, topK, opts)
}

// SearchContext is like SearchWithOptions. ctx carries logging context and is
// checked before the traversal starts; a running traversal is not interrupted.
func (s *Store) SearchContext(ctx context.Context, query []float32, topK int, opts SearchOptions) ([]SearchResult, error) {
	start := time.Now()

	var (
		results []SearchResult
		err     error
	)

	if err = ctx.Err(); err == nil {
		results, err = s.search(query, topK, opts)
		err = translateError(err)
	}

	s.opts.logger.LogSearch(ctx, topK, len(results), err)
	s.opts.metricsCollector.RecordSearch(topK, len(results), time.Since(start), err)

	return results, err
}

func (s *Store) search(query []float32, topK int, opts SearchOptions) ([]SearchResult, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotInitialized
	}

	if topK < 0 {
		return nil, ErrInvalidK
	}

	if len(query) != snap.dimension {
		return nil, &ErrDimensionMismatch{Expected: snap.dimension, Actual: len(query)}
	}

	if topK == 0 {
		return []SearchResult{}, nil
	}

	ef := opts.EFSearch
	if ef <= 0 {
		ef = s.opts.efSearch
	}

	return snap.search(query, topK, ef, opts.Filter)
}

// IsLoaded reports whether an index is currently published.
func (s *Store) IsLoaded() bool {
	return s.current.Load() != nil
}

// Clear drops the current index. Searches already running finish on it.
func (s *Store) Clear() {
	s.ClearContext(context.Background())
}

// ClearContext is like Clear. ctx only carries logging context.
func (s *Store) ClearContext(ctx context.Context) {
	s.mu.Lock()
	old := s.current.Swap(nil)
	s.mu.Unlock()

	dropped := 0
	if old != nil {
		dropped = len(old.ids)
		s.opts.resources.ReleaseMemory(old.reserved)
	}

	s.opts.logger.LogClear(ctx, dropped)
	s.opts.metricsCollector.RecordClear()
}

// Len returns the number of indexed points, or 0 when nothing is loaded.
func (s *Store) Len() int {
	if snap := s.current.Load(); snap != nil {
		return len(snap.ids)
	}
	return 0
}

// Dimension returns the dimension of the current index, or the configured
// dimension when nothing is loaded.
func (s *Store) Dimension() int {
	if snap := s.current.Load(); snap != nil {
		return snap.dimension
	}
	return s.opts.dimension
}

// Contains reports whether id is part of the current index.
func (s *Store) Contains(id int64) bool {
	snap := s.current.Load()
	return snap != nil && snap.idSet.Contains(uint64(id))
}

// Stats describes the current index.
func (s *Store) Stats() Stats {
	snap := s.current.Load()
	if snap == nil {
		return Stats{Dimension: s.opts.dimension, Backend: s.opts.backend}
	}

	return Stats{
		Loaded:        true,
		Generation:    snap.generation,
		Backend:       snap.backend,
		Points:        len(snap.ids),
		DistinctIDs:   snap.idSet.GetCardinality(),
		Dimension:     snap.dimension,
		BuiltAt:       snap.builtAt,
		BuildDuration: snap.buildDuration,
		MemoryBytes:   snap.reserved,
		Graph:         newGraphStats(snap.graph.Stats()),
	}
}
