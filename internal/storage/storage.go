package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/forest-guardian/satfusion/internal/properties"
)

var ErrNotFound = errors.New("object not found")

// Sink is where exported rasters are written. Keys are slash separated
// paths relative to the data folder.
type Sink interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Fetch(ctx context.Context, key, localPath string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// New picks the sink configured by cfg.Storage.Backend.
func New(ctx context.Context, cfg *properties.Config) (Sink, error) {
	switch cfg.Storage.Backend {
	case "local", "":
		return NewLocalSink(cfg.DataPath()), nil
	case "s3":
		return NewS3Sink(ctx, cfg.Storage)
	case "gcs":
		return NewGCSSink(ctx, cfg.Storage.GCSBucket)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
