// Package batch moves point batches between storage and a Store.
//
// Batches use a small binary format:
//
//	magic   [4]byte "HNSB"
//	version uint8
//	codec   uint8   (0 none, 1 lz4, 2 zstd)
//	_       [2]byte
//	dim     uint32
//	count   uint32
//	blocks  [uncompressed uint32][compressed uint32 (0 = raw)][data]...
//
// The concatenated block data holds count records of (id int64, dim × float32),
// little endian.
//
// Sources implement hnswstore.PointSource and load batches from memory, local
// files, S3 or MinIO:
//
//	src := &batch.FileSource{Path: "points.hnsb"}
//	if err := store.BuildFrom(ctx, src); err != nil {
//	    log.Fatal(err)
//	}
package batch
