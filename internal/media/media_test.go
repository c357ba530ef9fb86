package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memory-map-backend/internal/models"
)

func stored(ids ...string) []models.MemoryImage {
	out := make([]models.MemoryImage, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.MemoryImage{ID: id, MemoryID: "m1", URL: "https://cdn/" + id, Filename: id + ".jpg"})
	}
	return out
}

func TestReconcile_SameSetIsNoop(t *testing.T) {
	plan := Reconcile(stored("a", "b", "c"), []Attachment{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	assert.True(t, plan.IsNoop())
	assert.Empty(t, plan.Delete)
	assert.Empty(t, plan.Insert)
	assert.Equal(t, []string{"a", "b", "c"}, plan.Keep)
}

func TestReconcile_KeepDeleteInsert(t *testing.T) {
	plan := Reconcile(stored("a", "b", "c"), []Attachment{
		{ID: "a"},
		{URL: "https://cdn/new.jpg", Filename: "new.jpg", Type: "image"},
	})

	assert.Equal(t, []string{"a"}, plan.Keep)
	assert.Equal(t, []string{"b", "c"}, plan.Delete)
	require.Len(t, plan.Insert, 1)
	assert.Equal(t, "new.jpg", plan.Insert[0].Filename)
}

func TestReconcile_ForeignIDIgnored(t *testing.T) {
	plan := Reconcile(stored("a"), []Attachment{{ID: "a"}, {ID: "other-memory-image"}})

	assert.Equal(t, []string{"a"}, plan.Keep)
	assert.Empty(t, plan.Delete)
	assert.Empty(t, plan.Insert)
}

func TestReconcile_ForeignIDDoesNotProtectAnything(t *testing.T) {
	plan := Reconcile(stored("a", "b"), []Attachment{{ID: "x"}})

	assert.Empty(t, plan.Keep)
	assert.Equal(t, []string{"a", "b"}, plan.Delete)
}

func TestReconcile_EmptyDesiredDeletesAll(t *testing.T) {
	plan := Reconcile(stored("a", "b"), nil)
	assert.Equal(t, []string{"a", "b"}, plan.Delete)
	assert.Empty(t, plan.Insert)
}

func TestReconcile_DuplicateIDsKeptOnce(t *testing.T) {
	plan := Reconcile(stored("a"), []Attachment{{ID: "a"}, {ID: "a"}})
	assert.Equal(t, []string{"a"}, plan.Keep)
	assert.True(t, plan.IsNoop())
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCheckUpload(t *testing.T) {
	const limit = 10 * 1024 * 1024
	data := pngBytes(t, 4, 4)

	kind, err := CheckUpload("image/png", int64(len(data)), limit, data)
	require.NoError(t, err)
	assert.Equal(t, models.MediaTypeImage, kind)

	_, err = CheckUpload("application/pdf", 100, limit, []byte("%PDF-1.4"))
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = CheckUpload("image/png", limit+1, limit, data)
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = CheckUpload("image/jpeg", int64(len(data)), limit, data)
	assert.True(t, errors.Is(err, models.ErrValidation), "png bytes declared as jpeg must be rejected")

	_, err = CheckUpload("image/png", 0, limit, nil)
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestClassify(t *testing.T) {
	kind, ok := Classify("video/quicktime")
	assert.True(t, ok)
	assert.Equal(t, models.MediaTypeVideo, kind)

	kind, ok = Classify("Image/WEBP; charset=binary")
	assert.True(t, ok)
	assert.Equal(t, models.MediaTypeImage, kind)

	_, ok = Classify("image/svg+xml")
	assert.False(t, ok)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "jpeg", Extension("Beach.JPEG", "image/jpeg"))
	assert.Equal(t, "mov", Extension("clip", "video/quicktime"))
	assert.Equal(t, "bin", Extension("noext", "application/octet-stream"))
	assert.Equal(t, "videos", Folder(models.MediaTypeVideo))
	assert.Equal(t, "images", Folder(models.MediaTypeImage))
}

func TestThumbnail(t *testing.T) {
	out, err := Thumbnail(bytes.NewReader(pngBytes(t, 640, 480)))
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, ThumbnailWidth, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())

	_, err = Thumbnail(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestOwnedBy(t *testing.T) {
	tests := []struct {
		key   string
		owner string
		want  bool
	}{
		{"images/u1/a.jpg", "u1", true},
		{"videos/u1/a.mp4", "u1", true},
		{"thumbnails/u1/a.jpg", "u1", true},
		{"images/u2/a.jpg", "u1", false},
		{"images/u1/a.jpg", "", false},
		{"docs/u1/a.pdf", "u1", false},
		{"images/u1/../u2/a.jpg", "u1", false},
		{"images/u1/nested/a.jpg", "u1", false},
		{"images/u1/", "u1", false},
		{"", "u1", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, OwnedBy(tt.key, tt.owner))
		})
	}
}

func TestThumbnailKey(t *testing.T) {
	key, ok := ThumbnailKey(ObjectKey(models.MediaTypeImage, "u1", "abc.png"))
	require.True(t, ok)
	assert.Equal(t, "thumbnails/u1/abc.jpg", key)

	_, ok = ThumbnailKey(ObjectKey(models.MediaTypeVideo, "u1", "abc.mp4"))
	assert.False(t, ok)
	_, ok = ThumbnailKey("thumbnails/u1/abc.jpg")
	assert.False(t, ok)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, models.MediaTypeImage, KindOf("images/u1/a.jpg"))
	assert.Equal(t, models.MediaTypeVideo, KindOf("videos/u1/a.webm"))
	assert.Empty(t, KindOf("thumbnails/u1/a.jpg"))
	assert.Empty(t, KindOf("images/a.jpg"))
}

func TestUserPrefixes(t *testing.T) {
	prefixes := UserPrefixes("u1")
	assert.Equal(t, []string{"images/u1/", "videos/u1/", "thumbnails/u1/"}, prefixes)
	for _, key := range []string{"images/u1/a.jpg", "videos/u1/b.mp4", "thumbnails/u1/a.jpg"} {
		assert.True(t, OwnedBy(key, "u1"))
	}
}
