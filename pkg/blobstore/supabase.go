package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

// SupabaseStore stores blobs in a Supabase storage bucket.
type SupabaseStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewSupabaseStore wires a storage client against the project URL.
func NewSupabaseStore(projectURL, serviceKey, bucket string) (*SupabaseStore, error) {
	if projectURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase url and service key are required")
	}
	baseURL := strings.TrimRight(projectURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceKey, nil)
	return &SupabaseStore{client: client, bucket: bucket, baseURL: baseURL}, nil
}

// Upload writes the bytes under the namespace and returns the public URL.
func (s *SupabaseStore) Upload(ctx context.Context, namespace, filename, contentType string, data []byte) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}
	storagePath := objectPath(namespace, filename)
	upsert := false
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return Ref{}, fmt.Errorf("upload %s: %w", storagePath, err)
	}
	return Ref{Path: storagePath, URL: s.publicURL(storagePath)}, nil
}

// Fetch downloads a stored blob.
func (s *SupabaseStore) Fetch(ctx context.Context, storagePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.client.DownloadFile(s.bucket, storagePath)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", storagePath, err)
	}
	return data, nil
}

// Delete removes a stored blob.
func (s *SupabaseStore) Delete(ctx context.Context, storagePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.RemoveFile(s.bucket, []string{storagePath}); err != nil {
		return fmt.Errorf("remove %s: %w", storagePath, err)
	}
	return nil
}

func (s *SupabaseStore) publicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, storagePath)
}
