package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furniture-store/internal/domain"
)

// jpegBytes returns a minimal buffer that sniffs as image/jpeg.
func jpegBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00})
	return data
}

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"jpeg", jpegBytes(1024), false},
		{"empty", nil, true},
		{"png", append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...), true},
		{"text", []byte("hello world"), true},
		{"too large", jpegBytes(MaxImageSize + 1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImage(tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProductImagePath(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "products/1700000000123-cama-box-casal.jpg", ProductImagePath("Cama Box  Casal!", at))
	assert.Equal(t, "products/1700000000123-image.jpg", ProductImagePath("***", at))
}

func TestCleanObjectPath(t *testing.T) {
	got, err := CleanObjectPath("products/a/../b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "products/b.jpg", got)

	for _, p := range []string{"", "../etc/passwd", "products/../../x.jpg", "other/x.jpg"} {
		_, err := CleanObjectPath(p)
		assert.ErrorIs(t, err, domain.ErrValidation, p)
	}
}

func TestLocalStore_SaveAndServe(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8080/", nil)
	require.NoError(t, err)

	data := jpegBytes(2048)
	stored, err := store.SaveImage(context.Background(), "products/1-sofa.jpg", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "products/1-sofa.jpg", stored)
	assert.Equal(t, "http://localhost:8080/storage/products/1-sofa.jpg", store.PublicURL(stored))

	onDisk, err := os.ReadFile(filepath.Join(dir, "products", "1-sofa.jpg"))
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	srv := httptest.NewServer(store.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/storage/products/1-sofa.jpg")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, data, body)

	resp, err = http.Get(srv.URL + "/storage/products/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLocalStore_RejectsInvalidUploads(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "", nil)
	require.NoError(t, err)

	_, err = store.SaveImage(context.Background(), "products/x.jpg", strings.NewReader("not an image"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = store.SaveImage(context.Background(), "products/big.jpg", bytes.NewReader(jpegBytes(MaxImageSize+10)))
	assert.ErrorIs(t, err, domain.ErrValidation)

	entries, err := os.ReadDir(filepath.Join(dir, "products"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
