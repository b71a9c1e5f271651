// Package storage writes post media to the configured object store.
package storage

import (
	"context"
	"fmt"

	"pettit/internal/config"

	"github.com/google/uuid"
)

// MediaStore persists uploaded media blobs.
type MediaStore interface {
	// Put stores data under key and returns the public URL of the object.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	// Delete removes the object at key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

// ObjectKey returns a fresh key under the posts prefix.
func ObjectKey(ext string) string {
	return fmt.Sprintf("posts/%s%s", uuid.NewString(), ext)
}

// New builds the MediaStore selected by MEDIA_BACKEND.
func New(ctx context.Context, cfg *config.Config) (MediaStore, error) {
	switch cfg.MediaBackend {
	case "s3":
		store, err := NewS3Store(S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Bucket:    cfg.S3Bucket,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure media bucket: %w", err)
		}
		return store, nil
	default:
		return NewLocalStore(cfg.MediaUploadDir, "/uploads"), nil
	}
}
