// Package storage stores task snapshots in an object store.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tasklane/apiserver/config"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Bucket() string
}

// Open constructs the backend named in cfg.
func Open(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch strings.TrimSpace(cfg.Backend) {
	case "", "minio":
		return NewMinioClient(cfg.Minio)
	case "gcs":
		return NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
