package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"memory-map-backend/internal/authz"
	"memory-map-backend/internal/media"
	"memory-map-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const cleanupTimeout = 30 * time.Second

// MemoryService handles memory-related business logic
type MemoryService struct {
	memoryRepo MemoryStore
	objects    ObjectStore
	enricher   Enricher
	events     Notifier
	now        func() time.Time
}

// NewMemoryService creates a new memory service. objects, enricher and
// events may be nil.
func NewMemoryService(memoryRepo MemoryStore, objects ObjectStore, enricher Enricher, events Notifier) *MemoryService {
	if enricher == nil {
		enricher = noopEnricher{}
	}
	if events == nil {
		events = noopNotifier{}
	}
	return &MemoryService{
		memoryRepo: memoryRepo,
		objects:    objects,
		enricher:   enricher,
		events:     events,
		now:        time.Now,
	}
}

// MemoryRequest is the body of a memory create or update.
// Address and place fields sent by clients are not part of it; they are
// always derived from the coordinates.
type MemoryRequest struct {
	Title       string             `json:"title" validate:"required"`
	Description *string            `json:"description"`
	Latitude    *float64           `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude   *float64           `json:"longitude" validate:"required,min=-180,max=180"`
	Date        string             `json:"date"`
	StampType   string             `json:"stampType"`
	Images      []media.Attachment `json:"images" validate:"omitempty,dive"`
	// UploadedImages is the older name of Images, accepted on create
	UploadedImages []media.Attachment `json:"uploadedImages" validate:"omitempty,dive"`
}

func (r *MemoryRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = trimmedOrNil(r.Description)
	r.StampType = strings.TrimSpace(r.StampType)
	if r.StampType == "" {
		r.StampType = models.DefaultStampType
	}
}

// List returns the memories of a user, newest first
func (s *MemoryService) List(ctx context.Context, userID string) ([]*models.Memory, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	return s.memoryRepo.ListByUser(ctx, userID)
}

// Get returns one memory of the requesting user
func (s *MemoryService) Get(ctx context.Context, userID, memoryID string) (*models.Memory, error) {
	return s.loadAuthorized(ctx, userID, memoryID, authz.ActionRead)
}

// Create validates and stores a new memory with its attachments
func (s *MemoryService) Create(ctx context.Context, userID string, req MemoryRequest) (*models.Memory, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}

	req.normalize()
	attachments := req.Images
	if attachments == nil {
		attachments = req.UploadedImages
	}
	// every attachment of a new memory is new, whatever id it carries
	fresh := make([]media.Attachment, len(attachments))
	for i, a := range attachments {
		a.ID = ""
		fresh[i] = a
	}
	req.Images, req.UploadedImages = fresh, nil

	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now()
	memoryID := uuid.New().String()
	images, err := s.newImages(fresh, memoryID, userID, now)
	if err != nil {
		return nil, err
	}

	date := now
	if req.Date != "" {
		d, err := parseDate(req.Date)
		if err != nil {
			return nil, err
		}
		date = d
	}

	memory := &models.Memory{
		ID:          memoryID,
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		Date:        date,
		StampType:   req.StampType,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyPlace(memory, s.enricher.Enrich(ctx, memory.Latitude, memory.Longitude))
	memory.Images = images

	if err := s.memoryRepo.Create(ctx, memory); err != nil {
		return nil, err
	}

	created, err := s.memoryRepo.GetByID(ctx, memory.ID)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID).Str("memory_id", created.ID).Int("images", len(created.Images)).Msg("Memory created")
	s.events.Publish(userID, Event{Type: EventMemoryCreated, ID: created.ID, Data: created})
	return created, nil
}

// Update overwrites the fields of a memory. When req.Images is non-nil the
// stored attachments are reconciled against it in the same transaction.
func (s *MemoryService) Update(ctx context.Context, userID, memoryID string, req MemoryRequest) (*models.Memory, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}

	req.normalize()
	req.UploadedImages = nil
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	var date time.Time
	if req.Date != "" {
		d, err := parseDate(req.Date)
		if err != nil {
			return nil, err
		}
		date = d
	}
	now := s.now()
	var added []media.Attachment
	for _, a := range req.Images {
		if a.IsNew() {
			added = append(added, a)
		}
	}
	// new attachments are checked before the memory is looked up
	insert, err := s.newImages(added, memoryID, userID, now)
	if err != nil {
		return nil, err
	}

	existing, err := s.loadAuthorized(ctx, userID, memoryID, authz.ActionMutate)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Title = req.Title
	updated.Description = req.Description
	updated.StampType = req.StampType
	updated.UpdatedAt = now
	if !date.IsZero() {
		updated.Date = date
	}
	if *req.Latitude != existing.Latitude || *req.Longitude != existing.Longitude {
		updated.Latitude = *req.Latitude
		updated.Longitude = *req.Longitude
		applyPlace(&updated, s.enricher.Enrich(ctx, updated.Latitude, updated.Longitude))
	}

	var (
		deleteIDs []string
		removed   []models.MemoryImage
	)
	if req.Images != nil {
		plan := media.Reconcile(existing.Images, req.Images)
		deleteIDs = plan.Delete
		removed = pickImages(existing.Images, plan.Delete...)
	}

	if err := s.memoryRepo.Update(ctx, &updated, deleteIDs, insert); err != nil {
		return nil, err
	}
	s.removeObjects(ctx, existing.UserID, removed)

	fresh, err := s.memoryRepo.GetByID(ctx, memoryID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("memory_id", memoryID).
		Int("images_added", len(insert)).
		Int("images_removed", len(deleteIDs)).
		Msg("Memory updated")
	s.events.Publish(userID, Event{Type: EventMemoryUpdated, ID: fresh.ID, Data: fresh})
	return fresh, nil
}

// Delete removes a memory and its attachments
func (s *MemoryService) Delete(ctx context.Context, userID, memoryID string) error {
	existing, err := s.loadAuthorized(ctx, userID, memoryID, authz.ActionDelete)
	if err != nil {
		return err
	}

	if err := s.memoryRepo.Delete(ctx, memoryID); err != nil {
		return err
	}
	s.removeObjects(ctx, existing.UserID, existing.Images)

	log.Info().Str("user_id", userID).Str("memory_id", memoryID).Msg("Memory deleted")
	s.events.Publish(userID, Event{Type: EventMemoryDeleted, ID: memoryID})
	return nil
}

func (s *MemoryService) loadAuthorized(ctx context.Context, userID, memoryID string, action authz.Action) (*models.Memory, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	memory, err := s.memoryRepo.GetByID(ctx, memoryID)
	owner := ""
	switch {
	case err == nil:
		owner = memory.UserID
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}
	if err := authz.Authorize(userID, owner, action); err != nil {
		return nil, err
	}
	return memory, nil
}

// removeObjects deletes the stored binaries of removed images once their
// rows are gone. Only objects in the owner's upload folders are touched.
// Failures leave an orphaned object behind and are logged.
func (s *MemoryService) removeObjects(ctx context.Context, ownerID string, images []models.MemoryImage) {
	if s.objects == nil || len(images) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	for _, img := range images {
		key, ok := s.objects.KeyOf(img.URL)
		if !ok || !media.OwnedBy(key, ownerID) {
			log.Warn().Str("url", img.URL).Str("owner_id", ownerID).Msg("Keeping object outside the owner's uploads")
			continue
		}
		keys := []string{key}
		if thumb, ok := media.ThumbnailKey(key); ok {
			keys = append(keys, thumb)
		}
		for _, k := range keys {
			if err := s.objects.Delete(ctx, k); err != nil {
				log.Warn().Err(err).Str("key", k).Msg("Failed to delete stored object")
			}
		}
	}
}

func applyPlace(m *models.Memory, details *models.PlaceDetails) {
	m.PlaceDetails = details
	if details == nil {
		m.Address, m.PlaceName = "", ""
		return
	}
	m.Address, m.PlaceName = details.FormattedAddress, details.Name
}

// newImages builds image rows for new attachments. Every attachment must be
// a file userID uploaded. Creation times are spaced by a microsecond so the
// submitted order survives the created_at sort.
func (s *MemoryService) newImages(attachments []media.Attachment, memoryID, userID string, now time.Time) ([]models.MemoryImage, error) {
	images := make([]models.MemoryImage, 0, len(attachments))
	for i, a := range attachments {
		key, ok := "", false
		if s.objects != nil {
			key, ok = s.objects.KeyOf(a.URL)
		}
		if !ok || !media.OwnedBy(key, userID) || media.KindOf(key) == "" {
			return nil, models.NewValidationError("url", "attachments must be files you uploaded")
		}
		kind := media.KindOf(key)
		if a.Type != "" && a.Type != kind {
			return nil, models.NewValidationError("type", "type does not match the uploaded file")
		}

		var thumbnail *string
		if a.ThumbnailURL != "" {
			thumbKey, ok := media.ThumbnailKey(key)
			if !ok || a.ThumbnailURL != s.objects.URLFor(thumbKey) {
				return nil, models.NewValidationError("thumbnailUrl", "thumbnail does not belong to the attachment")
			}
			thumbnail = &a.ThumbnailURL
		}

		images = append(images, models.MemoryImage{
			ID:           uuid.New().String(),
			MemoryID:     memoryID,
			URL:          a.URL,
			Filename:     a.Filename,
			Type:         kind,
			ThumbnailURL: thumbnail,
			CreatedBy:    userID,
			CreatedAt:    now.Add(time.Duration(i) * time.Microsecond),
		})
	}
	return images, nil
}

// pickImages returns the images with the given ids
func pickImages(images []models.MemoryImage, ids ...string) []models.MemoryImage {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []models.MemoryImage
	for _, img := range images {
		if _, ok := want[img.ID]; ok {
			out = append(out, img)
		}
	}
	return out
}
