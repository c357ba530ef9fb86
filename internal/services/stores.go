package services

import (
	"context"

	"memory-map-backend/internal/models"
)

// UserStore persists users
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore persists memories and their images
type MemoryStore interface {
	Create(ctx context.Context, memory *models.Memory) error
	GetByID(ctx context.Context, id string) (*models.Memory, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Memory, error)
	Update(ctx context.Context, memory *models.Memory, deleteImageIDs []string, newImages []models.MemoryImage) error
	Delete(ctx context.Context, id string) error
}

// WishlistStore persists wishlist places
type WishlistStore interface {
	Create(ctx context.Context, place *models.WishlistPlace) error
	GetByID(ctx context.Context, id string) (*models.WishlistPlace, error)
	ListByUser(ctx context.Context, userID string) ([]*models.WishlistPlace, error)
	Update(ctx context.Context, place *models.WishlistPlace) error
	Delete(ctx context.Context, id string) error
}

// ObjectStore keeps uploaded binaries under keys and serves them at public URLs
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	URLFor(key string) string
	// KeyOf returns the key behind a public URL; ok is false for URLs the store does not serve
	KeyOf(rawURL string) (key string, ok bool)
}

// Enricher resolves coordinates into place details. A nil result means no
// enrichment is available.
type Enricher interface {
	Enrich(ctx context.Context, lat, lng float64) *models.PlaceDetails
}

// Notifier delivers events to a user's live connections
type Notifier interface {
	Publish(userID string, event Event)
}

type noopNotifier struct{}

func (noopNotifier) Publish(string, Event) {}

type noopEnricher struct{}

func (noopEnricher) Enrich(context.Context, float64, float64) *models.PlaceDetails { return nil }
