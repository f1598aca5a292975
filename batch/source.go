package batch

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/hupe1980/hnswstore"
	"github.com/hupe1980/hnswstore/resource"
)

var (
	_ hnswstore.PointSource = Slice(nil)
	_ hnswstore.PointSource = (*FileSource)(nil)
	_ hnswstore.PointSource = (*S3Source)(nil)
	_ hnswstore.PointSource = (*MinioSource)(nil)
)

// Slice is an in-memory batch.
type Slice []hnswstore.Point

// Points returns a shallow copy of the batch.
func (s Slice) Points(ctx context.Context) ([]hnswstore.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return slices.Clone(s), nil
}

// FileSource reads a batch from a local file.
type FileSource struct {
	Path string

	// Resources optionally throttles reads.
	Resources *resource.Controller
}

// Points implements hnswstore.PointSource.
func (s *FileSource) Points(ctx context.Context) ([]hnswstore.Point, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	points, err := Decode(resource.NewRateLimitedReader(ctx, f, s.Resources))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path, err)
	}

	return points, nil
}

// WriteFile encodes points into the named file, replacing it if it exists.
func WriteFile(path string, points []hnswstore.Point, c Codec) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Encode(f, points, c); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
