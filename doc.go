// Package hnswstore provides an in-process approximate nearest-neighbor index over
// fixed-dimension embedding vectors.
//
// A Store owns at most one immutable HNSW graph at a time. Build replaces it as a
// whole, Clear drops it, and any number of goroutines may Search concurrently while
// that happens: a Search always runs against one complete graph, either the one that
// was current when it started or a newer one, never a partially built or cleared one.
//
// # Quick Start
//
//	store, _ := hnswstore.New(hnswstore.WithDimension(384))
//
//	err := store.Build([]hnswstore.Point{
//	    {ID: 1, Vector: emb1},
//	    {ID: 2, Vector: emb2},
//	})
//
//	results, err := store.Search(query, 10)
//	if errors.Is(err, hnswstore.ErrNotInitialized) {
//	    // build first
//	}
//	for _, r := range results {
//	    fmt.Println(r.ID, r.Distance)
//	}
//
// # Distance
//
// Vectors are compared by cosine distance (1 - cosine similarity, see package
// metric). A zero vector is at distance 1 from every vector, itself included.
//
// # Building From Storage
//
// The batch package reads (id, vector) batches from local files, S3 or MinIO and
// implements PointSource:
//
//	src := &batch.FileSource{Path: "embeddings.hnsb"}
//	err := store.BuildFrom(ctx, src)
//
// # Tuning
//
//	store, _ := hnswstore.New(
//	    hnswstore.WithM(32),
//	    hnswstore.WithEFConstruction(400),
//	    hnswstore.WithEFSearch(128),
//	)
//
// # Thread Safety
//
// All Store methods are safe for concurrent use. Build and Clear are serialized
// against each other; Search, IsLoaded and the other readers never block on them.
package hnswstore
