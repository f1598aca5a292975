package batch

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hupe1980/hnswstore"
	"github.com/hupe1980/hnswstore/resource"
	"github.com/minio/minio-go/v7"
)

// MinioSource reads a batch object from MinIO or another S3-compatible store.
type MinioSource struct {
	Client *minio.Client
	Bucket string
	Key    string

	// Resources optionally throttles reads.
	Resources *resource.Controller
}

// Points implements hnswstore.PointSource.
func (s *MinioSource) Points(ctx context.Context) ([]hnswstore.Point, error) {
	obj, err := s.Client.GetObject(ctx, s.Bucket, s.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", s.Bucket, s.Key, err)
	}
	defer obj.Close()

	points, err := Decode(resource.NewRateLimitedReader(ctx, obj, s.Resources))
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", s.Bucket, s.Key, err)
	}

	return points, nil
}

// PutMinio encodes points and stores them as a batch object.
func PutMinio(ctx context.Context, client *minio.Client, bucket, key string, points []hnswstore.Point, c Codec) error {
	var buf bytes.Buffer
	if err := Encode(&buf, points, c); err != nil {
		return err
	}

	if _, err := client.PutObject(ctx, bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}

	return nil
}
