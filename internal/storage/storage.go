package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cambosugarscan/apiserver/config"
)

// ErrDisabled is returned when no storage backend is configured.
var ErrDisabled = errors.New("object storage is not configured")

// ObjectStorage is implemented by each bucket client.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Bucket() string
}

// FromConfig builds the configured bucket client.
func FromConfig(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Backend {
	case "":
		return nil, ErrDisabled
	case config.StorageBackendMinio:
		return NewMinioClient(cfg.Minio)
	case config.StorageBackendGCS:
		return NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
