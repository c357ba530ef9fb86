package media

import (
	"path"
	"strings"

	"memory-map-backend/internal/models"
)

// Uploads are stored as {images|videos}/{userID}/{name}. The preview of an
// image lives at thumbnails/{userID}/{name without extension}.jpg.
const thumbnailFolder = "thumbnails"

// ObjectKey returns the key an upload of kind by userID is stored under
func ObjectKey(kind, userID, name string) string {
	return Folder(kind) + "/" + userID + "/" + name
}

// ParseKey splits a stored key into its folder, owner and file name
func ParseKey(key string) (folder, owner, name string, ok bool) {
	if key == "" || path.Clean(key) != key {
		return "", "", "", false
	}
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// KindOf returns the media type of an upload key, or "" when key is not one
func KindOf(key string) string {
	folder, _, _, ok := ParseKey(key)
	if !ok {
		return ""
	}
	switch folder {
	case Folder(models.MediaTypeImage):
		return models.MediaTypeImage
	case Folder(models.MediaTypeVideo):
		return models.MediaTypeVideo
	}
	return ""
}

// OwnedBy reports whether key is an upload or preview stored for userID
func OwnedBy(key, userID string) bool {
	folder, owner, _, ok := ParseKey(key)
	if !ok || userID == "" || owner != userID {
		return false
	}
	return folder == thumbnailFolder || KindOf(key) != ""
}

// ThumbnailKey returns the preview key of an image upload
func ThumbnailKey(imageKey string) (string, bool) {
	if KindOf(imageKey) != models.MediaTypeImage {
		return "", false
	}
	_, owner, name, _ := ParseKey(imageKey)
	return thumbnailFolder + "/" + owner + "/" + strings.TrimSuffix(name, path.Ext(name)) + ".jpg", true
}

// UserPrefixes returns the key prefixes holding everything userID uploaded
func UserPrefixes(userID string) []string {
	return []string{
		Folder(models.MediaTypeImage) + "/" + userID + "/",
		Folder(models.MediaTypeVideo) + "/" + userID + "/",
		thumbnailFolder + "/" + userID + "/",
	}
}
