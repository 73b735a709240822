// Package mediastore hosts outbound media (charts, exports) in an S3-compatible
// bucket and hands out presigned URLs, for transports that can only attach
// media by URL.
package mediastore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// DefaultRegion is used when no region is configured.
	DefaultRegion = "us-east-1"
	// DefaultExpiry is the lifetime of a presigned URL.
	DefaultExpiry = time.Hour
)

// Config holds the bucket connection settings.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Expiry    time.Duration
}

// Store uploads media to a bucket.
type Store struct {
	client   *minio.Client
	bucket   string
	region   string
	expiry   time.Duration
	initOnce sync.Once
	initErr  error
}

// New validates the configuration and creates the client. The bucket is created
// on first use.
func New(cfg Config) (*Store, error) {
	cfg, err := normalize(cfg)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init media store client: %w", err)
	}
	slog.Debug("MediaStore created", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket, "ssl", cfg.UseSSL)
	return &Store{client: client, bucket: cfg.Bucket, region: cfg.Region, expiry: cfg.Expiry}, nil
}

func normalize(cfg Config) (Config, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.AccessKey = strings.TrimSpace(cfg.AccessKey)
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.Region = strings.TrimSpace(cfg.Region)
	if cfg.Endpoint == "" {
		return cfg, fmt.Errorf("media store endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return cfg, fmt.Errorf("media store access key and secret key are required")
	}
	if cfg.Bucket == "" {
		return cfg, fmt.Errorf("media store bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultExpiry
	}
	return cfg, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		if s.initErr == nil {
			slog.Info("MediaStore bucket created", "bucket", s.bucket)
		}
	})
	return s.initErr
}

// Publish uploads data and returns a presigned URL valid for the configured expiry.
func (s *Store) Publish(ctx context.Context, userID, filename, contentType string, data []byte) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("failed to ensure bucket: %w", err)
	}
	key := objectKey(userID, uuid.NewString(), filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	slog.Debug("MediaStore published", "key", key, "bytes", len(data))
	return u.String(), nil
}

// objectKey builds "<user>/<id>-<file>" with path separators stripped from the parts.
func objectKey(userID, id, filename string) string {
	clean := func(s string) string {
		s = strings.Map(func(r rune) rune {
			if r == '/' || r == '\\' {
				return '_'
			}
			return r
		}, strings.TrimSpace(s))
		if s == "" || s == "." || s == ".." {
			return "_"
		}
		return s
	}
	return path.Join(clean(strings.TrimPrefix(userID, "+")), clean(id)+"-"+clean(filename))
}
