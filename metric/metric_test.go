package metric

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Identical", []float32{1, 0}, []float32{1, 0}, 0},
		{"Same direction", []float32{1, 2, 3}, []float32{2, 4, 6}, 0},
		{"Orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"Opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"Diagonal", []float32{1, 0}, []float32{1, 1}, 1 - 0.70710677},
		{"Zero left", []float32{0, 0}, []float32{1, 1}, MaxDistance},
		{"Zero right", []float32{1, 1}, []float32{0, 0}, MaxDistance},
		{"Both zero", []float32{0, 0}, []float32{0, 0}, MaxDistance},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := CosineDistance(tc.a, tc.b)
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, d, 1e-6)
			assert.GreaterOrEqual(t, d, float32(0))
		})
	}
}

func TestCosineDistance_DimensionMismatch(t *testing.T) {
	_, err := CosineDistance([]float32{1, 2, 3}, []float32{1, 2})

	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
	assert.Equal(t, "dimension mismatch: expected 3, got 2", err.Error())
}

func TestCosineDistance_Symmetric(t *testing.T) {
	a := []float32{0.3, -1.2, 4.5, 0.01}
	b := []float32{2.2, 0.7, -0.4, 1.9}

	ab, err := CosineDistance(a, b)
	require.NoError(t, err)
	ba, err := CosineDistance(b, a)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
}

func TestCosineSimilarity(t *testing.T) {
	s, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.Equal(t, float32(0), s)

	s, err = CosineSimilarity([]float32{0, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.Equal(t, float32(0), s)

	_, err = CosineSimilarity([]float32{0}, []float32{0, 1})
	assert.Error(t, err)
}

func TestMagnitude(t *testing.T) {
	assert.Equal(t, float32(5), Magnitude([]float32{3, 4}))
}

func TestCosine_Concurrent(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{4, 3, 2, 1}
	want := Cosine(a, b)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if got := Cosine(a, b); got != want {
					t.Errorf("got %v, want %v", got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
}
