package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
type MinioStorage struct {
	client     *minio.Client
	bucket     string
	publicBase string
	log        zerolog.Logger
}

// NewMinioStorage creates a MinIO client. Call EnsureBucket before serving
// traffic; the constructor does not touch the network.
func NewMinioStorage(endpoint, accessKey, secretKey, bucket, publicBase string, useSSL bool, log zerolog.Logger) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioStorage{
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		log:        log,
	}, nil
}

// EnsureBucket verifies the bucket exists, creating it if absent, and applies
// a bucket-wide public-read policy. A policy failure is logged and swallowed:
// objects are still marked public-read individually at upload time, so the
// service stays available even when the credentials lack policy permissions.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %q: %w", s.bucket, err)
		}
		s.log.Info().Str("bucket", s.bucket).Msg("storage: created bucket")
	}

	if err := s.client.SetBucketPolicy(ctx, s.bucket, publicReadPolicy(s.bucket)); err != nil {
		s.log.Warn().Err(err).Str("bucket", s.bucket).
			Msg("storage: failed to set public-read bucket policy, public URLs may not resolve")
		return nil
	}

	return nil
}

// Store uploads data under a uuid-prefixed key and returns the public locator.
func (s *MinioStorage) Store(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	key := objectKey(filename)

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
		// Canned ACL so each object is readable even without the bucket policy.
		UserMetadata: map[string]string{"x-amz-acl": "public-read"},
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}

	return s.publicURL(key), nil
}

// objectKey combines a fresh random token with the original filename, keeping
// a human-readable suffix while guaranteeing uniqueness.
func objectKey(filename string) string {
	return uuid.NewString() + "-" + filename
}

// publicURL returns the browser-accessible URL for the given key. The key is
// percent-encoded as a single path segment; unreserved characters such as the
// file extension pass through untouched.
func (s *MinioStorage) publicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBase, s.bucket, url.PathEscape(key))
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
