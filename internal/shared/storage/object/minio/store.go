package minio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"resume-builder/internal/shared/storage/object"
)

// Config configures the MinIO backend.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// Store implements object.Store for MinIO and other S3-compatible servers.
type Store struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

var _ object.Store = (*Store)(nil)

// New connects to MinIO and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(checkCtx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(checkCtx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &Store{client: client, bucket: cfg.Bucket, baseURL: publicBase(cfg)}, nil
}

// Put uploads an object.
func (m *Store) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (object.Object, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return object.Object{}, err
	}
	info, err := m.client.PutObject(ctx, m.bucket, clean, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return object.Object{}, fmt.Errorf("put object: %w", err)
	}
	return object.Object{Key: clean, Size: info.Size, ContentType: contentType, URL: m.URL(clean)}, nil
}

// Open streams an object.
func (m *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return nil, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, clean, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return obj, nil
}

// Delete removes an object.
func (m *Store) Delete(ctx context.Context, key string) error {
	clean, err := object.CleanKey(key)
	if err != nil {
		return err
	}
	if err := m.client.RemoveObject(ctx, m.bucket, clean, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// URL returns the public URL for key.
func (m *Store) URL(key string) string {
	return object.JoinURL(m.baseURL, key)
}

// PresignGet returns a time-limited download URL for private buckets.
func (m *Store) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return "", err
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, clean, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return u.String(), nil
}

func publicBase(cfg Config) string {
	if cfg.PublicBaseURL != "" {
		return object.JoinURL(cfg.PublicBaseURL, cfg.Bucket)
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	host := strings.TrimSuffix(cfg.Endpoint, "/")
	return fmt.Sprintf("%s://%s/%s", scheme, host, cfg.Bucket)
}
