package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/abate-Agegnehu/musiccollectionbackend/apperrors"
)

// LocalStore implements MediaStore on the local filesystem. Files are
// served by the HTTP server under baseURL.
type LocalStore struct {
	basePath string
	baseURL  string
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(basePath, baseURL string) (*LocalStore, error) {
	if basePath == "" {
		basePath = "./uploads/media"
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &LocalStore{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload copies the file under a fresh key.
func (s *LocalStore) Upload(_ context.Context, localPath string, opts UploadOptions) (*UploadResult, error) {
	key := objectKey(opts.Kind, localPath)
	if err := s.copyIn(localPath, key); err != nil {
		return nil, apperrors.Upstream("upload media", err)
	}
	return &UploadResult{URL: s.baseURL + "/" + key, ID: key}, nil
}

func (s *LocalStore) copyIn(localPath, key string) error {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open staged file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	return dst.Close()
}

// Destroy removes the file; a missing file is not an error.
func (s *LocalStore) Destroy(_ context.Context, id string, _ DestroyOptions) error {
	fullPath, err := s.fullPath(id)
	if err != nil {
		return apperrors.Upstream("destroy media", err)
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return apperrors.Upstream("destroy media", err)
	}
	return nil
}

// BasePath is the directory files are kept in.
func (s *LocalStore) BasePath() string {
	return s.basePath
}

// fullPath resolves key inside basePath and refuses keys that escape it.
func (s *LocalStore) fullPath(key string) (string, error) {
	full := filepath.Join(s.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.basePath, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid media id %q", key)
	}
	return full, nil
}
