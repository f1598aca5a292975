package hnsw

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed int64) func(o *Options) {
	return func(o *Options) {
		o.Seed = &seed
	}
}

func assertAscending(t *testing.T, results []Neighbor) {
	t.Helper()

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestNew_InvalidDimension(t *testing.T) {
	_, err := New(0)

	var invalid *ErrInvalidDimension
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 0, invalid.Dimension)
}

func TestNew_NormalizesOptions(t *testing.T) {
	h, err := New(4, func(o *Options) {
		o.M = 1
		o.EF = 0
		o.DistanceFunc = nil
	})
	require.NoError(t, err)

	stats := h.Stats()
	assert.Equal(t, minimumM, stats.M)
	assert.Equal(t, 2*minimumM, stats.M0)
	assert.Equal(t, DefaultEF, stats.EF)
}

func TestBuild_Small(t *testing.T) {
	h, err := Build(2, [][]float32{{1, 0}, {0, 1}, {1, 1}}, seeded(4711))
	require.NoError(t, err)
	assert.Equal(t, 3, h.Len())

	results, err := h.KNNSearch([]float32{1, 0}, 2, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, uint32(0), results[0].Node)
	assert.InDelta(t, 0, results[0].Distance, 1e-6)
	assert.Equal(t, uint32(2), results[1].Node)
	assert.Greater(t, results[1].Distance, float32(0))
}

func TestBuild_Empty(t *testing.T) {
	h, err := Build(8, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())

	results, err := h.KNNSearch(make([]float32, 8), 5, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestKNNSearch_ResultCount(t *testing.T) {
	vectors := GenerateRandomSignedVectors(50, 16, 1)

	h, err := Build(16, vectors, seeded(1))
	require.NoError(t, err)

	tests := []struct {
		name string
		k    int
		want int
	}{
		{"zero", 0, 0},
		{"fewer than n", 10, 10},
		{"exactly n", 50, 50},
		{"more than n", 80, 50},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			results, err := h.KNNSearch(vectors[3], tc.k, 20, nil)
			require.NoError(t, err)
			assert.Len(t, results, tc.want)
			assertAscending(t, results)
		})
	}
}

func TestKNNSearch_Recall(t *testing.T) {
	const (
		dim     = 32
		size    = 1000
		k       = 10
		queries = 50
	)

	vectors := GenerateRandomSignedVectors(size, dim, 4711)
	h, err := Build(dim, vectors, seeded(4711))
	require.NoError(t, err)

	hits := 0

	for _, q := range GenerateRandomSignedVectors(queries, dim, 42) {
		approx, err := h.KNNSearch(q, k, 100, nil)
		require.NoError(t, err)

		exact, err := h.BruteSearch(q, k, nil)
		require.NoError(t, err)
		require.Len(t, exact, k)

		truth := make(map[uint32]struct{}, k)
		for _, e := range exact {
			truth[e.Node] = struct{}{}
		}

		for _, a := range approx {
			if _, ok := truth[a.Node]; ok {
				hits++
			}
		}
	}

	recall := float64(hits) / float64(queries*k)
	assert.GreaterOrEqual(t, recall, 0.9, "recall@%d = %.3f", k, recall)
}

func TestKNNSearch_SelfSimilarity(t *testing.T) {
	const dim = 32

	vectors := GenerateRandomSignedVectors(500, dim, 7)
	h, err := Build(dim, vectors, seeded(7))
	require.NoError(t, err)

	found := 0

	for i := 0; i < 50; i++ {
		results, err := h.KNNSearch(vectors[i], 10, 64, nil)
		require.NoError(t, err)

		for _, r := range results {
			if r.Node == uint32(i) {
				assert.InDelta(t, 0, r.Distance, 1e-5)
				found++

				break
			}
		}
	}

	assert.GreaterOrEqual(t, found, 49)
}

func TestKNNSearch_Filter(t *testing.T) {
	const dim = 16

	vectors := GenerateRandomSignedVectors(300, dim, 3)
	h, err := Build(dim, vectors, seeded(3))
	require.NoError(t, err)

	even := func(node uint32) bool { return node%2 == 0 }

	results, err := h.KNNSearch(vectors[1], 10, 50, even)
	require.NoError(t, err)
	require.Len(t, results, 10)
	assertAscending(t, results)

	for _, r := range results {
		assert.Zero(t, r.Node%2)
	}

	none := func(uint32) bool { return false }

	results, err = h.KNNSearch(vectors[1], 10, 50, none)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestKNNSearch_DimensionMismatch(t *testing.T) {
	h, err := Build(4, [][]float32{{1, 2, 3, 4}})
	require.NoError(t, err)

	_, err = h.KNNSearch([]float32{1, 2}, 1, 10, nil)

	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, dm.Expected)
	assert.Equal(t, 2, dm.Actual)

	_, err = h.Insert([]float32{1})
	require.ErrorAs(t, err, &dm)

	_, err = h.BruteSearch([]float32{1}, 1, nil)
	require.ErrorAs(t, err, &dm)
}

func TestKNNSearch_ZeroVectors(t *testing.T) {
	h, err := Build(3, [][]float32{{0, 0, 0}, {1, 0, 0}, {0, 0, 0}}, seeded(1))
	require.NoError(t, err)

	results, err := h.KNNSearch([]float32{0, 0, 0}, 3, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, r := range results {
		assert.Equal(t, float32(1), r.Distance)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	vectors := GenerateRandomSignedVectors(200, 8, 11)

	a, err := Build(8, vectors, seeded(99))
	require.NoError(t, err)
	b, err := Build(8, vectors, seeded(99))
	require.NoError(t, err)

	assert.Equal(t, a.Stats(), b.Stats())

	ra, err := a.KNNSearch(vectors[0], 5, 20, nil)
	require.NoError(t, err)
	rb, err := b.KNNSearch(vectors[0], 5, 20, nil)
	require.NoError(t, err)
	assert.Equal(t, ra, rb)
}

func TestBuild_NaiveSelection(t *testing.T) {
	vectors := GenerateRandomSignedVectors(300, 16, 5)

	h, err := Build(16, vectors, seeded(5), func(o *Options) {
		o.Heuristic = false
		o.M = 8
	})
	require.NoError(t, err)

	results, err := h.KNNSearch(vectors[10], 5, 100, nil)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, uint32(10), results[0].Node)
}

func TestStats(t *testing.T) {
	vectors := GenerateRandomSignedVectors(400, 8, 21)

	h, err := Build(8, vectors, seeded(21), func(o *Options) { o.M = 4 })
	require.NoError(t, err)

	stats := h.Stats()
	assert.Equal(t, 400, stats.Nodes)
	assert.Equal(t, 8, stats.Dimension)
	assert.Equal(t, 4, stats.M)
	assert.Equal(t, 8, stats.M0)
	assert.Len(t, stats.Levels, stats.MaxLevel+1)

	total := 0
	for _, l := range stats.Levels {
		total += l.Nodes
	}

	assert.Equal(t, 400, total)
	assert.LessOrEqual(t, stats.Levels[0].AvgConnections, float64(stats.M0))
	assert.Greater(t, stats.Levels[0].Connections, 0)
}

func TestKNNSearch_Concurrent(t *testing.T) {
	const dim = 32

	vectors := GenerateRandomSignedVectors(1000, dim, 13)
	h, err := Build(dim, vectors, seeded(13))
	require.NoError(t, err)

	const numGoroutines = 16

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(offset int) {
			defer wg.Done()

			for j := 0; j < 50; j++ {
				q := vectors[(offset*50+j)%len(vectors)]

				results, err := h.KNNSearch(q, 10, 64, nil)
				if err != nil {
					t.Errorf("KNNSearch failed: %v", err)
					return
				}

				if len(results) != 10 {
					t.Errorf("expected 10 results, got %d", len(results))
					return
				}
			}
		}(i)
	}

	wg.Wait()
}
