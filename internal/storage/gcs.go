package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/forest-guardian/satfusion/internal/log"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

type GCSSink struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

func NewGCSSink(ctx context.Context, bucket string) (*GCSSink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.newclient: %w", err)
	}
	return &GCSSink{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

func (s *GCSSink) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	w := s.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize %s: %w", key, err)
	}
	log.Info("storage: uploaded", zap.String("bucket", s.name), zap.String("key", key))
	return fmt.Sprintf("gs://%s/%s", s.name, key), nil
}

func (s *GCSSink) Fetch(ctx context.Context, key, localPath string) error {
	rc, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to open %s: %w", key, err)
	}
	defer rc.Close()
	if err := os.MkdirAll(filepath.Dir(localPath), os.ModePerm); err != nil {
		return err
	}
	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(localPath)
		return fmt.Errorf("failed to download %s: %w", key, err)
	}
	return f.Close()
}

func (s *GCSSink) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (s *GCSSink) Close() error {
	return s.client.Close()
}
