package hnsw

import "math/rand"

// GenerateRandomVectors returns num vectors of the given dimension with components in [0, 1).
// The same seed always yields the same vectors.
func GenerateRandomVectors(num int, dimensions int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed)) // nolint gosec

	vectors := make([][]float32, num)

	for i := 0; i < num; i++ {
		vectors[i] = make([]float32, dimensions)

		for j := 0; j < dimensions; j++ {
			vectors[i][j] = r.Float32()
		}
	}

	return vectors
}

// GenerateRandomSignedVectors is like GenerateRandomVectors with components in [-1, 1).
// Signed components spread directions over the whole sphere, which is what cosine
// distance sees of real embeddings.
func GenerateRandomSignedVectors(num int, dimensions int, seed int64) [][]float32 {
	vectors := GenerateRandomVectors(num, dimensions, seed)

	for _, v := range vectors {
		for j := range v {
			v[j] = 2*v[j] - 1
		}
	}

	return vectors
}
