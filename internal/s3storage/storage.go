package s3storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/formatforge/formatforge/internal/config"
)

// Storage wraps MinIO/S3 interactions for uploaded sources and conversion
// results.
type Storage struct {
	client       *minio.Client
	uploadBucket string
	resultBucket string
	region       string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:       client,
		uploadBucket: cfg.UploadBucket,
		resultBucket: cfg.ResultBucket,
		region:       cfg.S3Region,
	}, nil
}

// EnsureBuckets makes sure the upload/result buckets exist before use.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.uploadBucket, s.resultBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// UploadSource stores the uploaded file in the upload bucket.
func (s *Storage) UploadSource(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.uploadBucket, objectKey, reader, size, opts); err != nil {
		return fmt.Errorf("upload source object: %w", err)
	}
	return nil
}

// DownloadSourceTo streams the uploaded source into a local file. Sources can
// be large video files, so the object is never buffered in memory.
func (s *Storage) DownloadSourceTo(ctx context.Context, objectKey, destPath string) error {
	if err := s.client.FGetObject(ctx, s.uploadBucket, objectKey, destPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download source object: %w", err)
	}
	return nil
}

// UploadResultFile stores a produced output file in the result bucket.
func (s *Storage) UploadResultFile(ctx context.Context, objectKey, filePath, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.FPutObject(ctx, s.resultBucket, objectKey, filePath, opts); err != nil {
		return fmt.Errorf("upload result object: %w", err)
	}
	return nil
}

// OpenResult returns a reader over a stored result for streaming downloads.
func (s *Storage) OpenResult(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.resultBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get result object: %w", err)
	}
	return obj, nil
}

// RemoveSource deletes an uploaded source object.
func (s *Storage) RemoveSource(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.uploadBucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove source object: %w", err)
	}
	return nil
}

// RemoveResult deletes a stored result object.
func (s *Storage) RemoveResult(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.resultBucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove result object: %w", err)
	}
	return nil
}
