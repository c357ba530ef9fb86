// Package servicetest provides in-memory implementations of the stores and
// collaborators used by the services, for tests.
package servicetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"memory-map-backend/internal/models"
	"memory-map-backend/internal/services"
)

// Users is an in-memory services.UserStore
type Users struct {
	mu   sync.Mutex
	rows map[string]models.User
}

// NewUsers creates an empty user store
func NewUsers() *Users {
	return &Users{rows: map[string]models.User{}}
}

func (u *Users) Create(_ context.Context, user *models.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.rows {
		if existing.Email == user.Email {
			return models.NewValidationError("email", "email already registered")
		}
	}
	u.rows[user.ID] = *user
	return nil
}

func (u *Users) GetByID(_ context.Context, id string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.rows[id]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", models.ErrNotFound)
	}
	return &user, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.rows {
		if user.Email == email {
			user := user
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", models.ErrNotFound)
}

func (u *Users) Delete(_ context.Context, id string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.rows[id]; !ok {
		return fmt.Errorf("user not found: %w", models.ErrNotFound)
	}
	delete(u.rows, id)
	return nil
}

// Len returns the number of stored users
func (u *Users) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rows)
}

// Memories is an in-memory services.MemoryStore with the ordering of the
// SQL store. FailUpdate makes the next Update fail without applying anything.
type Memories struct {
	mu         sync.Mutex
	rows       map[string]models.Memory
	FailUpdate error
}

// NewMemories creates an empty memory store
func NewMemories() *Memories {
	return &Memories{rows: map[string]models.Memory{}}
}

func (m *Memories) Create(_ context.Context, memory *models.Memory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *memory
	stored.Images = append([]models.MemoryImage(nil), memory.Images...)
	m.rows[memory.ID] = dbPrecision(stored)
	return nil
}

func (m *Memories) GetByID(_ context.Context, id string) (*models.Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	memory, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("memory not found: %w", models.ErrNotFound)
	}
	return cloneMemory(memory), nil
}

func (m *Memories) ListByUser(_ context.Context, userID string) ([]*models.Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Memory{}
	for _, memory := range m.rows {
		if memory.UserID == userID {
			out = append(out, cloneMemory(memory))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (m *Memories) Update(_ context.Context, memory *models.Memory, deleteImageIDs []string, newImages []models.MemoryImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpdate != nil {
		err := m.FailUpdate
		m.FailUpdate = nil
		return err
	}
	current, ok := m.rows[memory.ID]
	if !ok {
		return fmt.Errorf("memory not found: %w", models.ErrNotFound)
	}

	drop := map[string]bool{}
	for _, id := range deleteImageIDs {
		drop[id] = true
	}
	var images []models.MemoryImage
	for _, img := range current.Images {
		if !drop[img.ID] {
			images = append(images, img)
		}
	}
	images = append(images, newImages...)

	stored := *memory
	stored.Images = images
	m.rows[memory.ID] = dbPrecision(stored)
	return nil
}

func (m *Memories) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return fmt.Errorf("memory not found: %w", models.ErrNotFound)
	}
	delete(m.rows, id)
	return nil
}

// Len returns the number of stored memories
func (m *Memories) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// ImageCount returns how many images reference a memory id
func (m *Memories) ImageCount(memoryID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[memoryID].Images)
}

// dbPrecision rounds timestamps to the microseconds Postgres keeps
func dbPrecision(memory models.Memory) models.Memory {
	memory.Date = memory.Date.Truncate(time.Microsecond)
	memory.CreatedAt = memory.CreatedAt.Truncate(time.Microsecond)
	memory.UpdatedAt = memory.UpdatedAt.Truncate(time.Microsecond)
	for i := range memory.Images {
		memory.Images[i].CreatedAt = memory.Images[i].CreatedAt.Truncate(time.Microsecond)
	}
	return memory
}

func cloneMemory(memory models.Memory) *models.Memory {
	images := append([]models.MemoryImage{}, memory.Images...)
	sort.SliceStable(images, func(i, j int) bool {
		if !images[i].CreatedAt.Equal(images[j].CreatedAt) {
			return images[i].CreatedAt.Before(images[j].CreatedAt)
		}
		return images[i].ID < images[j].ID
	})
	memory.Images = images
	return &memory
}

// Wishlist is an in-memory services.WishlistStore
type Wishlist struct {
	mu   sync.Mutex
	rows map[string]models.WishlistPlace
}

// NewWishlist creates an empty wishlist store
func NewWishlist() *Wishlist {
	return &Wishlist{rows: map[string]models.WishlistPlace{}}
}

func (w *Wishlist) Create(_ context.Context, place *models.WishlistPlace) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	stored := *place
	stored.CreatedAt = stored.CreatedAt.Truncate(time.Microsecond)
	stored.UpdatedAt = stored.UpdatedAt.Truncate(time.Microsecond)
	w.rows[place.ID] = stored
	return nil
}

func (w *Wishlist) GetByID(_ context.Context, id string) (*models.WishlistPlace, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	place, ok := w.rows[id]
	if !ok {
		return nil, fmt.Errorf("wishlist place not found: %w", models.ErrNotFound)
	}
	return &place, nil
}

func (w *Wishlist) ListByUser(_ context.Context, userID string) ([]*models.WishlistPlace, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := []*models.WishlistPlace{}
	for _, place := range w.rows {
		if place.UserID == userID {
			place := place
			out = append(out, &place)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (w *Wishlist) Update(_ context.Context, place *models.WishlistPlace) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	current, ok := w.rows[place.ID]
	if !ok {
		return fmt.Errorf("wishlist place not found: %w", models.ErrNotFound)
	}
	current.Priority = place.Priority
	current.IsVisited = place.IsVisited
	current.UpdatedAt = place.UpdatedAt.Truncate(time.Microsecond)
	w.rows[place.ID] = current
	return nil
}

func (w *Wishlist) Delete(_ context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.rows[id]; !ok {
		return fmt.Errorf("wishlist place not found: %w", models.ErrNotFound)
	}
	delete(w.rows, id)
	return nil
}

// Len returns the number of stored places
func (w *Wishlist) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows)
}

// Objects is an in-memory services.ObjectStore serving urls under BaseURL
type Objects struct {
	mu      sync.Mutex
	BaseURL string
	Stored  map[string][]byte
	Deleted []string
	FailPut error
}

// NewObjects creates an empty object store
func NewObjects() *Objects {
	return &Objects{BaseURL: "https://media.test", Stored: map[string][]byte{}}
}

func (o *Objects) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.FailPut != nil {
		return "", o.FailPut
	}
	o.Stored[key] = append([]byte(nil), data...)
	return o.URLFor(key), nil
}

// Delete removes a key. Deleted records only keys that existed.
func (o *Objects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.Stored[key]; ok {
		delete(o.Stored, key)
		o.Deleted = append(o.Deleted, key)
	}
	return nil
}

func (o *Objects) URLFor(key string) string {
	return o.BaseURL + "/" + key
}

func (o *Objects) KeyOf(rawURL string) (string, bool) {
	key, ok := strings.CutPrefix(rawURL, o.BaseURL+"/")
	return key, ok && key != ""
}

// Has reports whether a key is stored
func (o *Objects) Has(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.Stored[key]
	return ok
}

// Keys returns the stored keys in sorted order
func (o *Objects) Keys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, 0, len(o.Stored))
	for k := range o.Stored {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Enricher returns Details for every lookup and counts calls
type Enricher struct {
	mu      sync.Mutex
	Details *models.PlaceDetails
	Calls   int
}

func (e *Enricher) Enrich(context.Context, float64, float64) *models.PlaceDetails {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	if e.Details == nil {
		return nil
	}
	d := *e.Details
	return &d
}

// Events records published events
type Events struct {
	mu     sync.Mutex
	events map[string][]services.Event
}

// NewEvents creates an empty recorder
func NewEvents() *Events {
	return &Events{events: map[string][]services.Event{}}
}

func (e *Events) Publish(userID string, event services.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events[userID] = append(e.events[userID], event)
}

// Types returns the event types published to a user, in order
func (e *Events) Types(userID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var types []string
	for _, ev := range e.events[userID] {
		types = append(types, ev.Type)
	}
	return types
}

// ErrInjected is a generic failure for tests of error paths
var ErrInjected = errors.New("injected failure")
