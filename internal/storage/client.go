// Package storage keeps preview sources and exported outputs in an S3
// compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dunamismax/passportflow/internal/config"
	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// maxObjectBytes bounds reads. Nothing the wizard stores is larger than a
// processed photo or a sheet PDF.
const maxObjectBytes = 64 << 20

type Client struct {
	minio  *minio.Client
	bucket string
}

func NewClient(cfg config.StorageConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("storage endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage bucket is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Client{minio: mc, bucket: cfg.Bucket}, nil
}

// Open builds a client and makes sure its bucket exists.
func Open(ctx context.Context, cfg config.StorageConfig) (*Client, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minio.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.minio.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		// Another replica may have won the race.
		if exists, checkErr := c.minio.BucketExists(ctx, c.bucket); checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}
	return nil
}

// ExpirePrefix installs a lifecycle rule that deletes objects under prefix
// after the given number of days. It replaces the bucket's lifecycle
// configuration.
func (c *Client) ExpirePrefix(ctx context.Context, prefix string, days int) error {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return errors.New("expiry prefix is required")
	}
	days = max(days, 1)

	rules := lifecycle.NewConfiguration()
	rules.Rules = []lifecycle.Rule{{
		ID:         "expire-" + strings.ReplaceAll(prefix, "/", "-"),
		Status:     "Enabled",
		RuleFilter: lifecycle.Filter{Prefix: prefix + "/"},
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(days)},
	}}
	if err := c.minio.SetBucketLifecycle(ctx, c.bucket, rules); err != nil {
		return fmt.Errorf("set lifecycle on %s/%s: %w", c.bucket, prefix, err)
	}
	return nil
}

// PresignedGetURL lets a webhook receiver fetch an exported file directly.
func (c *Client) PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := c.minio.PresignedGetObject(ctx, c.bucket, objectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return u.String(), nil
}

// ReadObject returns domain.ErrNotFound for a missing key.
func (c *Client) ReadObject(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := c.minio.GetObject(ctx, c.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, c.objectError("get", objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxObjectBytes+1))
	if err != nil {
		return nil, c.objectError("read", objectKey, err)
	}
	if len(data) > maxObjectBytes {
		return nil, fmt.Errorf("object %s exceeds %d bytes", objectKey, maxObjectBytes)
	}
	return data, nil
}

func (c *Client) WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error {
	_, err := c.minio.PutObject(ctx, c.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", objectKey, err)
	}
	return nil
}

// RemoveObject deletes objectKey. Removing a missing object is not an error.
func (c *Client) RemoveObject(ctx context.Context, objectKey string) error {
	err := c.minio.RemoveObject(ctx, c.bucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil && !isMissing(err) {
		return fmt.Errorf("remove object %s: %w", objectKey, err)
	}
	return nil
}

func (c *Client) objectError(op, objectKey string, err error) error {
	if isMissing(err) {
		return fmt.Errorf("%s object %s: %w", op, objectKey, domain.ErrNotFound)
	}
	return fmt.Errorf("%s object %s: %w", op, objectKey, err)
}

func isMissing(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return true
	default:
		return false
	}
}
