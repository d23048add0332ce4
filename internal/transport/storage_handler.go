package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"furniture-store/internal/domain"
	"furniture-store/internal/middleware"
	"furniture-store/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ImageStore persists uploaded product images.
type ImageStore interface {
	SaveImage(ctx context.Context, objectPath string, r io.Reader) (string, error)
	PublicURL(objectPath string) string
	Handler() http.Handler
}

// UploadResponse describes a stored object.
type UploadResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// StorageHandler accepts product image uploads and serves stored files.
type StorageHandler struct {
	store  ImageStore
	logger *zap.Logger
	now    func() time.Time
}

func NewStorageHandler(store ImageStore, logger *zap.Logger) *StorageHandler {
	return &StorageHandler{store: store, logger: logger, now: time.Now}
}

// RegisterRoutes mounts the admin upload route and the public file route.
func (h *StorageHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware, adminMiddleware).Post("/api/storage/product-images", h.UploadProductImage)
	r.Handle(storage.URLPrefix+"*", h.store.Handler())
}

// UploadProductImage stores the multipart "file" part. The optional "path"
// field names the object; otherwise it is derived from the file name.
func (h *StorageHandler) UploadProductImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+(1<<20))
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondWithRequestError(w, domain.NewValidationError("file", "image must be at most 5MB"))
			return
		}
		middleware.RespondWithRequestError(w, domain.NewValidationError("body", "invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.RespondWithRequestError(w, domain.NewValidationError("file", "file is required"))
		return
	}
	defer file.Close()

	objectPath := strings.TrimSpace(r.FormValue("path"))
	if objectPath == "" {
		name := strings.TrimSuffix(header.Filename, ".jpg")
		objectPath = storage.ProductImagePath(strings.TrimSuffix(name, ".jpeg"), h.now())
	}

	stored, err := h.store.SaveImage(r.Context(), objectPath, file)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, UploadResponse{
		Path: stored,
		URL:  h.store.PublicURL(stored),
	})
}
