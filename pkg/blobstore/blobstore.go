package blobstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
)

// Ref is the durable reference a backend hands back for a stored blob. Path
// addresses the blob inside the backend; URL is what clients download from.
type Ref struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Store is the blob-store collaborator contract. Implementations must not
// leave partial state behind on failure.
type Store interface {
	Upload(ctx context.Context, namespace, filename, contentType string, data []byte) (Ref, error)
	Fetch(ctx context.Context, storagePath string) ([]byte, error)
	Delete(ctx context.Context, storagePath string) error
}

// objectPath derives a collision-free storage path inside the namespace,
// keeping the original extension so public URLs stay recognisable.
func objectPath(namespace, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%d_%s%s", strings.Trim(namespace, "/"), time.Now().Unix(), randomSuffix(), ext)
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
