// Package objectstore persists result bundles to an S3-compatible store.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage implements ports.Storage against a MinIO/S3 bucket.
type MinIOStorage struct {
	client *minio.Client
	bucket string
}

// New creates a MinIOStorage for the given endpoint and bucket.
func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIOStorage, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	if bucket == "" {
		bucket = "stemsplit-bundles"
	}
	return &MinIOStorage{client: client, bucket: bucket}, nil
}

// InitJob ensures the bucket exists. Jobs share one bucket and are keyed
// by prefix, so there is no per-job setup beyond that.
func (s *MinIOStorage) InitJob(ctx context.Context, jobID string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// SaveInput stores the job input metadata as <jobID>/input.json.
func (s *MinIOStorage) SaveInput(ctx context.Context, jobID string, data []byte) error {
	objectName := jobID + "/input.json"
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

// SaveBundle uploads the archive as <jobID>/<filename>.
func (s *MinIOStorage) SaveBundle(ctx context.Context, jobID string, r io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = "stems.zip"
	}
	objectName := jobID + "/" + filename
	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, -1,
		minio.PutObjectOptions{ContentType: "application/zip"})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, objectName), nil
}
