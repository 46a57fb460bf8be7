package filestorage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures an S3-compatible bucket
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

// ObjectClient is the part of *minio.Client used by S3Storage
type ObjectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// S3Storage stores files in an S3-compatible bucket
type S3Storage struct {
	raw    ObjectClient
	bucket string
	prefix string
}

var _ FileStorage = (*S3Storage)(nil)

// NewS3Storage creates a minio-backed storage
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return NewS3StorageWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3StorageWithClient wraps an existing client
func NewS3StorageWithClient(client ObjectClient, bucket, prefix string) *S3Storage {
	return &S3Storage{raw: client, bucket: bucket, prefix: prefix}
}

// Save uploads data under the configured prefix
func (c *S3Storage) Save(ctx context.Context, key string, data []byte, contentType string) (*FileInfo, error) {
	objectKey := c.prefix + key

	_, err := c.raw.PutObject(ctx, c.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("put object %q failed: %w", objectKey, err)
	}

	return &FileInfo{
		Key:         key,
		FileSize:    int64(len(data)),
		ContentType: contentType,
	}, nil
}

// Delete removes an object
func (c *S3Storage) Delete(ctx context.Context, key string) error {
	objectKey := c.prefix + key
	if err := c.raw.RemoveObject(ctx, c.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q failed: %w", objectKey, err)
	}
	return nil
}

// URL presigns a GET for ttl
func (c *S3Storage) URL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	objectKey := c.prefix + key
	expires := time.Now().Add(ttl)

	u, err := c.raw.PresignedGetObject(ctx, c.bucket, objectKey, ttl, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign get object %q failed: %w", objectKey, err)
	}
	return u.String(), expires, nil
}
