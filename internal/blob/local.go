// Package blob stores screenshot images. The backend ships with a local
// filesystem store; cloud storage plugs in behind the same interface.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store saves image bytes under a key and returns a serving URL.
type Store interface {
	Upload(data []byte, key string) (string, error)
}

// LocalStore writes images under a base directory and serves them from a
// base URL.
type LocalStore struct {
	baseDir string
	baseURL string
}

func NewLocalStore(baseDir, baseURL string) *LocalStore {
	return &LocalStore{
		baseDir: baseDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (s *LocalStore) Upload(data []byte, key string) (string, error) {
	cleaned := filepath.Clean("/" + key)
	path := filepath.Join(s.baseDir, cleaned)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	return s.baseURL + "/blobs" + filepath.ToSlash(cleaned), nil
}
