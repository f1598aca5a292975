package hnsw

import (
	"fmt"

	"github.com/hupe1980/hnswstore/internal/queue"
)

// ErrInvalidDimension is returned when a graph is created with a non-positive dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrDimensionMismatch is returned when a vector does not match the graph dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Neighbor is a graph position and its distance to the query.
type Neighbor = queue.Item

// AcceptFunc reports whether a graph position may appear in search results.
// Rejected nodes are still traversed.
type AcceptFunc func(node uint32) bool

// LevelStats describes a single layer of the graph.
type LevelStats struct {
	Level          int
	Nodes          int
	Connections    int
	AvgConnections float64
}

// Stats describes the shape of a graph.
type Stats struct {
	Nodes      int
	Dimension  int
	M          int
	M0         int
	EF         int
	Heuristic  bool
	EntryPoint uint32
	MaxLevel   int
	Levels     []LevelStats
}
