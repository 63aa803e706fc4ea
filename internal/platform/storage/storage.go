package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"pmds/internal/platform/config"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Store keeps evidence attachments. Keys are slash separated and relative.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

func New(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case config.StorageS3:
		return NewS3(ctx, S3Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
	case config.StorageLocal, "":
		return NewLocal(cfg.StorageDir)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// Evidence owner kinds used as key prefixes.
const (
	KindKRA          = "kras"
	KindReviewRating = "review-ratings"
)

// EvidenceKey builds the object key for an evidence upload attached to the
// owner record of the given kind.
func EvidenceKey(tenantID, kind, ownerID, fileID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join("tenants", tenantID, kind, ownerID, fileID+ext)
}

func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
