package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalSink writes under a root folder. Files are written to a temporary
// name first and renamed into place.
type LocalSink struct {
	root string
}

func NewLocalSink(root string) *LocalSink {
	return &LocalSink{root: root}
}

func (s *LocalSink) Path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *LocalSink) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	path := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create folder for %s: %w", key, err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return path, nil
}

func (s *LocalSink) Fetch(ctx context.Context, key, localPath string) error {
	src := s.Path(key)
	if filepath.Clean(src) == filepath.Clean(localPath) {
		if _, err := os.Stat(src); err != nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return err
	}
	defer in.Close()
	_, err = NewLocalSink(filepath.Dir(localPath)).Put(ctx, filepath.Base(localPath), in)
	return err
}

func (s *LocalSink) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalSink) Close() error { return nil }
