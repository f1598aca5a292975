package hnswstore

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Point is an embedding vector and the caller-assigned identifier returned for it.
//
// IDs are opaque to the store and need not be unique; duplicates are indexed as
// separate points.
type Point struct {
	ID     int64
	Vector []float32
}

// SearchResult is a single match, ordered by ascending Distance.
type SearchResult struct {
	ID       int64
	Distance float32
}

// SearchOptions tunes a single search.
type SearchOptions struct {
	// EFSearch overrides the store's default candidate list size. Values smaller
	// than topK are raised to topK.
	EFSearch int

	// Filter restricts results to the given ids (stored as uint64(id)).
	// The bitmap must not be modified while the search runs.
	Filter *roaring64.Bitmap
}

// PointSource supplies a batch of points to build from.
type PointSource interface {
	Points(ctx context.Context) ([]Point, error)
}
