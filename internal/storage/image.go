package storage

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"

	"furniture-store/internal/domain"
)

const (
	// MaxImageSize is the largest accepted product image, in bytes.
	MaxImageSize = 5 << 20
	// ImageContentType is the only accepted image type.
	ImageContentType = "image/jpeg"
	// ProductImagePrefix is the object prefix for product images.
	ProductImagePrefix = "products"
)

// ValidateImage checks that data is a JPEG no larger than MaxImageSize.
func ValidateImage(data []byte) error {
	if len(data) == 0 {
		return domain.NewValidationError("file", "image is empty")
	}
	if len(data) > MaxImageSize {
		return domain.NewValidationError("file", "image must be at most 5MB")
	}
	if mt := mimetype.Detect(data); !mt.Is(ImageContentType) {
		return domain.NewValidationError("file", fmt.Sprintf("only JPEG images are accepted, got %s", mt.String()))
	}
	return nil
}

// ProductImagePath builds the object path for a product image named after
// the product.
func ProductImagePath(productName string, now time.Time) string {
	return fmt.Sprintf("%s/%d-%s.jpg", ProductImagePrefix, now.UnixMilli(), Slug(productName))
}

// Slug lowercases s and replaces every run of characters outside a-z and
// 0-9 with a single dash.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "image"
	}
	return slug
}
