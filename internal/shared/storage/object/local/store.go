package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"resume-builder/internal/shared/storage/object"
)

// FilesRoute is the path under which the HTTP server exposes local objects.
const FilesRoute = "/api/v1/files/"

// Store implements object.Store using the local filesystem.
type Store struct {
	baseDir string
	baseURL string
}

// New creates a local object store rooted at baseDir whose URLs hang off
// publicBaseURL + FilesRoute.
func New(baseDir, publicBaseURL string) *Store {
	return &Store{
		baseDir: baseDir,
		baseURL: object.JoinURL(publicBaseURL, FilesRoute),
	}
}

var _ object.Store = (*Store)(nil)

// Put writes r to disk at key, replacing any existing file.
func (s *Store) Put(ctx context.Context, key, contentType string, r io.Reader, _ int64) (object.Object, error) {
	if err := ctx.Err(); err != nil {
		return object.Object{}, err
	}
	fullPath, clean, err := s.resolve(key)
	if err != nil {
		return object.Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return object.Object{}, fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return object.Object{}, fmt.Errorf("create temp: %w", err)
	}
	written, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		if copyErr != nil {
			return object.Object{}, fmt.Errorf("write body: %w", copyErr)
		}
		return object.Object{}, fmt.Errorf("close temp: %w", closeErr)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		_ = os.Remove(tmp.Name())
		return object.Object{}, fmt.Errorf("rename: %w", err)
	}

	return object.Object{Key: clean, Size: written, ContentType: contentType, URL: s.URL(clean)}, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, _, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, object.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes the object at key. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, _, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// URL returns the public URL for key.
func (s *Store) URL(key string) string {
	return object.JoinURL(s.baseURL, key)
}

func (s *Store) resolve(key string) (string, string, error) {
	clean, err := object.CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(clean)), clean, nil
}
