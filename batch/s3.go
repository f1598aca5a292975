package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/hnswstore"
	"github.com/hupe1980/hnswstore/resource"
)

// S3Source downloads a batch object from S3.
type S3Source struct {
	Client manager.DownloadAPIClient
	Bucket string
	Key    string

	// Resources optionally throttles the download.
	Resources *resource.Controller
}

// NewS3Source creates an S3Source using the default AWS configuration chain.
func NewS3Source(ctx context.Context, bucket, key string, optFns ...func(*config.LoadOptions) error) (*S3Source, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Source{
		Client: s3.NewFromConfig(cfg),
		Bucket: bucket,
		Key:    key,
	}, nil
}

// Points implements hnswstore.PointSource.
func (s *S3Source) Points(ctx context.Context) ([]hnswstore.Point, error) {
	buf := manager.NewWriteAtBuffer(nil)
	downloader := manager.NewDownloader(s.Client)

	if _, err := downloader.Download(ctx, &rateLimitedWriterAt{ctx: ctx, w: buf, rc: s.Resources}, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	}); err != nil {
		return nil, fmt.Errorf("download s3://%s/%s: %w", s.Bucket, s.Key, err)
	}

	points, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("decode s3://%s/%s: %w", s.Bucket, s.Key, err)
	}

	return points, nil
}

// UploadS3 encodes points and uploads them as a batch object.
func UploadS3(ctx context.Context, client manager.UploadAPIClient, bucket, key string, points []hnswstore.Point, c Codec) error {
	var buf bytes.Buffer
	if err := Encode(&buf, points, c); err != nil {
		return err
	}

	uploader := manager.NewUploader(client)

	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        &buf,
		ContentType: aws.String("application/octet-stream"),
	}); err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", bucket, key, err)
	}

	return nil
}

// rateLimitedWriterAt throttles the parts written by a parallel download.
type rateLimitedWriterAt struct {
	ctx context.Context
	w   io.WriterAt
	rc  *resource.Controller
}

func (r *rateLimitedWriterAt) WriteAt(p []byte, off int64) (int, error) {
	burst := r.rc.IOBurst()
	if burst <= 0 {
		return r.w.WriteAt(p, off)
	}

	written := 0
	for len(p) > 0 {
		n := min(len(p), burst)

		if err := r.rc.AcquireIO(r.ctx, n); err != nil {
			return written, err
		}

		m, err := r.w.WriteAt(p[:n], off)
		written += m
		if err != nil {
			return written, err
		}

		p = p[n:]
		off += int64(n)
	}

	return written, nil
}
