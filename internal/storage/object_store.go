package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"eventhub/internal/config"
	"eventhub/internal/ids"
)

var ErrUnsupportedMIME = errors.New("unsupported mime type")

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

// ObjectStore keeps event images. Callers only see the returned reference.
type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.cfg.Bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
		}
	}
	return nil
}

// Store uploads data and returns its reference (the object key).
func (s *ObjectStore) Store(ctx context.Context, data []byte, mimeType string) (string, error) {
	ext, ok := extensions[mimeType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMIME, mimeType)
	}

	ref := ObjectKey(time.Now().UTC(), ids.New(), ext)
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, ref, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return ref, nil
}

func (s *ObjectStore) Remove(ctx context.Context, ref string) error {
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (s *ObjectStore) Exists(ctx context.Context, ref string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.cfg.Bucket, ref, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat object: %w", err)
}

func (s *ObjectStore) URL(ref string) string {
	return PublicURL(s.cfg, ref)
}

func (s *ObjectStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	return err
}

// ObjectKey lays images out by upload date.
func ObjectKey(now time.Time, id string, ext string) string {
	return path.Join(now.Format("2006/01/02"), fmt.Sprintf("%s.%s", id, ext))
}

// PublicURL prefers the configured public base and falls back to the endpoint.
func PublicURL(cfg config.StorageConfig, ref string) string {
	if ref == "" {
		return ""
	}
	base := strings.TrimSuffix(cfg.PublicURL, "/")
	if base == "" {
		base = strings.TrimSuffix(cfg.Endpoint, "/")
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			scheme := "http://"
			if cfg.UseSSL {
				scheme = "https://"
			}
			base = scheme + base
		}
		base = base + "/" + cfg.Bucket
	}
	return fmt.Sprintf("%s/%s", base, ref)
}
