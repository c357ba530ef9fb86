package media

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// ThumbnailWidth is the width of generated previews; height keeps the aspect ratio
const ThumbnailWidth = 320

// Thumbnail decodes an image and renders a JPEG preview of it
func Thumbnail(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Resize(img, ThumbnailWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
