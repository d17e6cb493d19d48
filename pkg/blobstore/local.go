package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore persists blobs on disk under a base directory. It exists for
// development and tests; the served URL is relative to the configured public
// base so the API can expose stored files itself.
type LocalStore struct {
	baseDir    string
	publicBase string
}

// NewLocalStore ensures the base directory exists and returns a handle.
func NewLocalStore(baseDir, publicBase string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if publicBase == "" {
		publicBase = "/files"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

// Upload writes the bytes to disk under the namespace.
func (s *LocalStore) Upload(ctx context.Context, namespace, filename, contentType string, data []byte) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}
	storagePath := objectPath(namespace, filename)
	full := filepath.Join(s.baseDir, filepath.FromSlash(storagePath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Ref{}, fmt.Errorf("prepare blob directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return Ref{}, fmt.Errorf("write blob: %w", err)
	}
	return Ref{Path: storagePath, URL: s.publicBase + "/" + storagePath}, nil
}

// Fetch reads a stored blob back from disk.
func (s *LocalStore) Fetch(ctx context.Context, storagePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := s.resolve(storagePath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", storagePath, err)
	}
	return data, nil
}

// Delete removes a stored blob if present.
func (s *LocalStore) Delete(ctx context.Context, storagePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := s.resolve(storagePath)
	if err != nil {
		return err
	}
	if err := os.Remove(clean); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", storagePath, err)
	}
	return nil
}

// BaseDir exposes the root directory so the HTTP layer can serve files from it.
func (s *LocalStore) BaseDir() string {
	return s.baseDir
}

// resolve rejects paths escaping the base directory.
func (s *LocalStore) resolve(storagePath string) (string, error) {
	full := filepath.Join(s.baseDir, filepath.FromSlash(storagePath))
	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if abs != base && !strings.HasPrefix(abs, base+string(filepath.Separator)) {
		return "", fmt.Errorf("blob path %s outside storage root", storagePath)
	}
	return abs, nil
}
