package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"mime"
	"net/http"
	"strings"

	"pettit/internal/models"

	_ "golang.org/x/image/webp" // register decoder
)

// MaxUploadsPerPost caps the number of files attached to one post.
const MaxUploadsPerPost = 5

// Upload is a file received with a post.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// CheckedImage is an upload that passed CheckImage.
type CheckedImage struct {
	MimeType string
	Ext      string
	Width    int
	Height   int
}

// CheckImage verifies that content is a jpeg, png, gif or webp image no larger
// than maxBytes. The type is taken from the bytes, not the client's header.
func CheckImage(content []byte, maxBytes int64) (*CheckedImage, error) {
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", maxBytes/(1024*1024)))
	}

	detected := normalizeContentType(http.DetectContentType(content))
	if !isAllowedImageMIME(detected) {
		return nil, models.NewValidationError("Invalid image type")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}

	mimeType := decodedFormatToMime(format)
	if mimeType == "" {
		return nil, models.NewValidationError("Unsupported image format")
	}

	return &CheckedImage{
		MimeType: mimeType,
		Ext:      extensionFor(mimeType),
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
