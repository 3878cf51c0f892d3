// Package blob stores payment-proof images on the local filesystem and
// hands back the public path they are served under.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ninewheels/server/internal/apperr"
)

// PublicPrefix is the URL path proofs are served from.
const PublicPrefix = "/uploads/"

var extByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// FileStore writes uploads under a single directory.
type FileStore struct {
	dir     string
	maxSize int64
}

// NewFileStore creates the upload directory if needed.
func NewFileStore(dir string, maxSize int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &FileStore{dir: dir, maxSize: maxSize}, nil
}

// Dir returns the backing directory, for wiring the static file server.
func (f *FileStore) Dir() string { return f.dir }

// SaveProof stores one payment-proof image and returns its public URL
// path. Non-image content and oversized uploads are rejected.
func (f *FileStore) SaveProof(payoutID, contentType string, r io.Reader) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperr.New(apperr.CodeInvalidInput, "payment proof must be an image")
	}
	ext, ok := extByContentType[contentType]
	if !ok {
		ext = ".img"
	}

	name := fmt.Sprintf("proof_%s_%s%s", payoutID, uuid.NewString()[:8], ext)
	path := filepath.Join(f.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create proof file: %w", err)
	}
	defer dst.Close()

	// Read one byte past the cap to distinguish at-limit from over-limit.
	n, err := io.Copy(dst, io.LimitReader(r, f.maxSize+1))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write proof file: %w", err)
	}
	if n > f.maxSize {
		os.Remove(path)
		return "", apperr.Newf(apperr.CodeInvalidInput, "payment proof exceeds %d bytes", f.maxSize)
	}

	return PublicPrefix + name, nil
}
