package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"ataryouth/internal/config"
)

// PhotoStore holds processed profile photos addressed by a relative path
// such as "/profiles/profile_<id>_<millis>.webp".
type PhotoStore interface {
	Put(ctx context.Context, relPath string, r io.Reader, size int64, contentType string) error
	// Delete removes relPath. A missing object is not an error.
	Delete(ctx context.Context, relPath string) error
	URL(relPath string) string
	Ping(ctx context.Context) error
}

// cleanRel normalises relPath to a rooted slash path with no ".." segments.
func cleanRel(relPath string) string {
	return path.Clean("/" + strings.TrimLeft(relPath, "/"))
}

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (PhotoStore, error) {
	switch cfg.Driver {
	case config.StorageDriverLocal:
		return NewLocalStore(cfg.LocalRoot, cfg.PublicPrefix)
	case config.StorageDriverMinio:
		store, err := NewObjectStore(cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
