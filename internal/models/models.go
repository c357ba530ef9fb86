package models

import "time"

// Media types accepted for a MemoryImage
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// DefaultStampType is used when a memory is saved without a stamp
const DefaultStampType = "default"

// DefaultPriority is the wishlist priority used when none is given
const DefaultPriority = 3

// Wishlist priority bounds (inclusive)
const (
	MinPriority = 1
	MaxPriority = 5
)

// User represents a user in the system
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"-"`
	Image        *string   `json:"image,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserSummary is the public view of a user returned by the account endpoints
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Summary returns the public view of the user
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Memory is a dated, geo-located note owned by one user
type Memory struct {
	ID           string        `json:"id"`
	UserID       string        `json:"userId"`
	Title        string        `json:"title"`
	Description  *string       `json:"description"`
	Latitude     float64       `json:"latitude"`
	Longitude    float64       `json:"longitude"`
	Date         time.Time     `json:"date"`
	StampType    string        `json:"stampType"`
	Address      string        `json:"address"`
	PlaceName    string        `json:"placeName"`
	PlaceDetails *PlaceDetails `json:"placeDetails,omitempty"`
	CreatedBy    string        `json:"createdBy"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Images       []MemoryImage `json:"memoryImages"`
}

// MemoryImage is a photo or video attached to a memory
type MemoryImage struct {
	ID       string `json:"id"`
	MemoryID string `json:"memoryId"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Type     string `json:"type"`
	// ThumbnailURL is the preview generated at upload, images only
	ThumbnailURL *string   `json:"thumbnailUrl,omitempty"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WishlistPlace is a place a user wants to visit
type WishlistPlace struct {
	ID           string        `json:"id"`
	UserID       string        `json:"userId"`
	Title        string        `json:"title"`
	Description  *string       `json:"description"`
	Latitude     float64       `json:"latitude"`
	Longitude    float64       `json:"longitude"`
	Priority     int           `json:"priority"`
	IsVisited    bool          `json:"isVisited"`
	Address      string        `json:"address"`
	PlaceName    string        `json:"placeName"`
	PlaceDetails *PlaceDetails `json:"placeDetails,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// PlaceDetails is the reduced subset of a reverse-geocoding result that we persist.
// Photo references and phone numbers are never stored.
type PlaceDetails struct {
	FormattedAddress string   `json:"formattedAddress"`
	Name             string   `json:"name"`
	Geometry         Geometry `json:"geometry"`
	PlaceID          string   `json:"placeId"`
	Types            []string `json:"types"`
}

// LatLng is a coordinate pair
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Viewport is the recommended bounding box for displaying a place
type Viewport struct {
	Northeast LatLng `json:"northeast"`
	Southwest LatLng `json:"southwest"`
}

// Geometry holds the location of a place and its viewport
type Geometry struct {
	Location LatLng   `json:"location"`
	Viewport Viewport `json:"viewport"`
}
