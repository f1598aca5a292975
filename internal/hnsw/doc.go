// Package hnsw implements Hierarchical Navigable Small World graphs.
//
// A graph is built once by inserting every vector of a batch and is then treated as
// immutable: KNNSearch never mutates it and may be called from many goroutines.
//
// # Parameters
//
//   - M: Max connections per node above layer 0 (layer 0 allows 2*M, default: 16)
//   - EF: Construction queue size (default: 200)
//   - EFSearch: Search queue size, raised to k when smaller
//
// # Reference
//
// Malkov & Yashunin, "Efficient and robust approximate nearest neighbor search
// using Hierarchical Navigable Small World graphs", IEEE TPAMI 2018.
package hnsw
