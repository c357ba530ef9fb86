package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"memory-map-backend/internal/media"
	"memory-map-backend/internal/metrics"
	"memory-map-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// UploadService stores media files for later attachment to memories
type UploadService struct {
	objects  ObjectStore
	maxBytes int64
}

// NewUploadService creates a new upload service
func NewUploadService(objects ObjectStore, maxBytes int64) *UploadService {
	return &UploadService{
		objects:  objects,
		maxBytes: maxBytes,
	}
}

// UploadFile is one file received from a client
type UploadFile struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// UploadResponse describes a stored file. It is the shape memory requests
// expect for new attachments.
type UploadResponse struct {
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	ID           string `json:"id"`
	Type         string `json:"type"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// MaxBytes returns the size ceiling for one file
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload validates a file and puts it into object storage under
// {images|videos}/{userID}/{uuid}.{ext}. Images also get a JPEG thumbnail.
func (s *UploadService) Upload(ctx context.Context, userID string, file UploadFile) (*UploadResponse, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	if file.Body == nil {
		return nil, models.NewValidationError("file", "file is required")
	}

	data, err := io.ReadAll(io.LimitReader(file.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head := data
	if len(head) > media.SniffLen {
		head = head[:media.SniffLen]
	}
	kind, err := media.CheckUpload(file.ContentType, int64(len(data)), s.maxBytes, head)
	if err != nil {
		return nil, err
	}

	contentType := strings.ToLower(strings.TrimSpace(file.ContentType))
	name := uuid.New().String() + "." + media.Extension(file.Filename, contentType)
	key := media.ObjectKey(kind, userID, name)

	url, err := s.objects.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, err
	}

	resp := &UploadResponse{
		URL:      url,
		Filename: file.Filename,
		ID:       name,
		Type:     kind,
	}
	if kind == models.MediaTypeImage {
		resp.ThumbnailURL = s.storeThumbnail(ctx, userID, key, data)
	}

	metrics.Uploads.WithLabelValues(kind).Inc()
	log.Info().
		Str("user_id", userID).
		Str("key", key).
		Str("type", kind).
		Int("size", len(data)).
		Msg("Media uploaded")
	return resp, nil
}

// storeThumbnail renders and stores a preview; formats the decoder does not
// know produce no thumbnail
func (s *UploadService) storeThumbnail(ctx context.Context, userID, imageKey string, data []byte) string {
	key, ok := media.ThumbnailKey(imageKey)
	if !ok {
		return ""
	}
	thumb, err := media.Thumbnail(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Skipping thumbnail")
		return ""
	}
	url, err := s.objects.Put(ctx, key, "image/jpeg", thumb)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to store thumbnail")
		return ""
	}
	return url
}
