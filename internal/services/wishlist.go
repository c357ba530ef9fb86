package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"memory-map-backend/internal/authz"
	"memory-map-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WishlistService handles wishlist-related business logic
type WishlistService struct {
	wishlistRepo WishlistStore
	enricher     Enricher
	events       Notifier
	now          func() time.Time
}

// NewWishlistService creates a new wishlist service. enricher and events may be nil.
func NewWishlistService(wishlistRepo WishlistStore, enricher Enricher, events Notifier) *WishlistService {
	if enricher == nil {
		enricher = noopEnricher{}
	}
	if events == nil {
		events = noopNotifier{}
	}
	return &WishlistService{
		wishlistRepo: wishlistRepo,
		enricher:     enricher,
		events:       events,
		now:          time.Now,
	}
}

// CreateWishlistRequest represents a request to add a place to the wishlist
type CreateWishlistRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description *string  `json:"description"`
	Latitude    *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" validate:"required,min=-180,max=180"`
	Priority    *int     `json:"priority"`
}

// UpdateWishlistRequest changes the rank or visited flag of a place.
// Omitted fields keep their stored value.
type UpdateWishlistRequest struct {
	Priority  *int  `json:"priority"`
	IsVisited *bool `json:"isVisited"`
}

// List returns the wishlist of a user, highest priority first
func (s *WishlistService) List(ctx context.Context, userID string) ([]*models.WishlistPlace, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	return s.wishlistRepo.ListByUser(ctx, userID)
}

// Create validates and stores a new wishlist place
func (s *WishlistService) Create(ctx context.Context, userID string, req CreateWishlistRequest) (*models.WishlistPlace, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = trimmedOrNil(req.Description)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	priority := models.DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}
	if err := checkPriority(priority); err != nil {
		return nil, err
	}

	now := s.now()
	place := &models.WishlistPlace{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if details := s.enricher.Enrich(ctx, place.Latitude, place.Longitude); details != nil {
		place.PlaceDetails = details
		place.Address = details.FormattedAddress
		place.PlaceName = details.Name
	}

	if err := s.wishlistRepo.Create(ctx, place); err != nil {
		return nil, err
	}

	created, err := s.wishlistRepo.GetByID(ctx, place.ID)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID).Str("place_id", created.ID).Int("priority", priority).Msg("Wishlist place created")
	s.events.Publish(userID, Event{Type: EventWishlistCreated, ID: created.ID, Data: created})
	return created, nil
}

// Update changes the priority or visited flag of a wishlist place
func (s *WishlistService) Update(ctx context.Context, userID, placeID string, req UpdateWishlistRequest) (*models.WishlistPlace, error) {
	place, err := s.loadAuthorized(ctx, userID, placeID, authz.ActionMutate)
	if err != nil {
		return nil, err
	}

	if req.Priority != nil {
		if err := checkPriority(*req.Priority); err != nil {
			return nil, err
		}
		place.Priority = *req.Priority
	}
	if req.IsVisited != nil {
		place.IsVisited = *req.IsVisited
	}
	place.UpdatedAt = s.now()

	if err := s.wishlistRepo.Update(ctx, place); err != nil {
		return nil, err
	}

	fresh, err := s.wishlistRepo.GetByID(ctx, placeID)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID).Str("place_id", placeID).Msg("Wishlist place updated")
	s.events.Publish(userID, Event{Type: EventWishlistUpdated, ID: placeID, Data: fresh})
	return fresh, nil
}

// Delete removes a wishlist place
func (s *WishlistService) Delete(ctx context.Context, userID, placeID string) error {
	if _, err := s.loadAuthorized(ctx, userID, placeID, authz.ActionDelete); err != nil {
		return err
	}

	if err := s.wishlistRepo.Delete(ctx, placeID); err != nil {
		return err
	}

	log.Info().Str("user_id", userID).Str("place_id", placeID).Msg("Wishlist place deleted")
	s.events.Publish(userID, Event{Type: EventWishlistDeleted, ID: placeID})
	return nil
}

func (s *WishlistService) loadAuthorized(ctx context.Context, userID, placeID string, action authz.Action) (*models.WishlistPlace, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	place, err := s.wishlistRepo.GetByID(ctx, placeID)
	owner := ""
	switch {
	case err == nil:
		owner = place.UserID
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}
	if err := authz.Authorize(userID, owner, action); err != nil {
		return nil, err
	}
	return place, nil
}
