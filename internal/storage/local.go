package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"furniture-store/internal/domain"
)

// URLPrefix is the route stored objects are served under.
const URLPrefix = "/storage/"

// LocalStore keeps uploaded objects on the local filesystem.
type LocalStore struct {
	dir           string
	publicBaseURL string
	logger        *zap.Logger
}

// NewLocalStore creates the storage directory if needed.
func NewLocalStore(dir, publicBaseURL string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, ProductImagePrefix), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{
		dir:           dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}, nil
}

// CleanObjectPath normalizes p and rejects paths that leave the product
// image prefix.
func CleanObjectPath(p string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(p))[1:]
	if cleaned == "" || !strings.HasPrefix(cleaned, ProductImagePrefix+"/") {
		return "", domain.NewValidationError("path", "path must be under "+ProductImagePrefix+"/")
	}
	return cleaned, nil
}

// SaveImage validates r as a product image and writes it to objectPath. It
// returns the cleaned object path.
func (s *LocalStore) SaveImage(ctx context.Context, objectPath string, r io.Reader) (string, error) {
	cleaned, err := CleanObjectPath(objectPath)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if err := ValidateImage(data); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}

	s.logger.Info("Image stored", zap.String("path", cleaned), zap.Int("bytes", len(data)))
	return cleaned, nil
}

// PublicURL returns the address objectPath is served from.
func (s *LocalStore) PublicURL(objectPath string) string {
	return s.publicBaseURL + URLPrefix + strings.TrimLeft(objectPath, "/")
}

// Handler serves stored objects. Mount it at URLPrefix. Directory listings
// are not served.
func (s *LocalStore) Handler() http.Handler {
	files := http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
