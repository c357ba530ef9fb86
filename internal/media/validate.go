package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"memory-map-backend/internal/models"
)

// SniffLen is how many leading bytes are needed to check a file's content
const SniffLen = 3072

var allowedTypes = map[string]string{
	"image/jpeg":      models.MediaTypeImage,
	"image/png":       models.MediaTypeImage,
	"image/gif":       models.MediaTypeImage,
	"image/webp":      models.MediaTypeImage,
	"video/mp4":       models.MediaTypeVideo,
	"video/webm":      models.MediaTypeVideo,
	"video/quicktime": models.MediaTypeVideo,
}

var defaultExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"video/mp4":       "mp4",
	"video/webm":      "webm",
	"video/quicktime": "mov",
}

// Classify maps an allowed content type to its media type (image or video)
func Classify(contentType string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	kind, ok := allowedTypes[ct]
	return kind, ok
}

// CheckUpload validates the declared type, the size and the leading bytes of an upload
func CheckUpload(declaredType string, size, maxBytes int64, head []byte) (string, error) {
	kind, ok := Classify(declaredType)
	if !ok {
		return "", models.NewValidationError("file",
			"only images (JPG, PNG, GIF, WebP) or videos (MP4, WebM, QuickTime) can be uploaded")
	}
	if size <= 0 {
		return "", models.NewValidationError("file", "file is empty")
	}
	if size > maxBytes {
		return "", models.NewValidationError("file",
			fmt.Sprintf("file must be %d MB or smaller", maxBytes/(1024*1024)))
	}
	if !mimetype.Detect(head).Is(declaredType) {
		return "", models.NewValidationError("file", "file content does not match its type")
	}
	return kind, nil
}

// Extension returns the extension to store a file under, without the dot
func Extension(filename, contentType string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext != "" && len(ext) <= 8 {
		return ext
	}
	ct, _, _ := strings.Cut(strings.ToLower(contentType), ";")
	if def, ok := defaultExtensions[strings.TrimSpace(ct)]; ok {
		return def
	}
	return "bin"
}

// Folder is the object-key prefix for a media type
func Folder(kind string) string {
	if kind == models.MediaTypeVideo {
		return "videos"
	}
	return "images"
}
