package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileSystemImageStore implements ImageStore using the local filesystem
type FileSystemImageStore struct {
	rootDir string
	baseURL string
}

// NewFileSystemImageStore creates a new filesystem-based image store
func NewFileSystemImageStore(rootDir, baseURL string) (*FileSystemImageStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &FileSystemImageStore{rootDir: rootDir, baseURL: baseURL}, nil
}

// Put implements ImageStore.Put
func (s *FileSystemImageStore) Put(ctx context.Context, key, contentType string, content io.Reader, size int64) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial image
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move image into place: %w", err)
	}
	return nil
}

// Delete implements ImageStore.Delete
func (s *FileSystemImageStore) Delete(ctx context.Context, key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// URL implements ImageStore.URL
func (s *FileSystemImageStore) URL(key string) string {
	return s.baseURL + strings.TrimPrefix(path.Clean("/"+key), "/")
}

// Handler serves stored images; mount it under the base URL
func (s *FileSystemImageStore) Handler() http.Handler {
	return http.StripPrefix(s.baseURL, http.FileServer(http.Dir(s.rootDir)))
}

// BaseURL returns the URL prefix images are served under
func (s *FileSystemImageStore) BaseURL() string {
	return s.baseURL
}

// resolve maps a key to a path below the root directory
func (s *FileSystemImageStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid image key: %q", key)
	}
	return filepath.Join(s.rootDir, filepath.FromSlash(clean)), nil
}
