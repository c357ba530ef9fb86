package handlers

import (
	"net/http"

	"memory-map-backend/internal/middleware"
	"memory-map-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// WishlistHandler handles wishlist-related HTTP requests
type WishlistHandler struct {
	wishlistService *services.WishlistService
}

// NewWishlistHandler creates a new wishlist handler
func NewWishlistHandler(wishlistService *services.WishlistService) *WishlistHandler {
	return &WishlistHandler{
		wishlistService: wishlistService,
	}
}

func placeFields(userID, placeID string) func(*zerolog.Event) *zerolog.Event {
	return func(e *zerolog.Event) *zerolog.Event {
		return e.Str("user_id", userID).Str("place_id", placeID)
	}
}

// ListWishlist handles GET /api/wishlist
func (h *WishlistHandler) ListWishlist(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	places, err := h.wishlistService.List(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, userField(userID), "Failed to list wishlist")
		return
	}

	respondJSON(w, http.StatusOK, places)
}

// CreatePlace handles POST /api/wishlist
func (h *WishlistHandler) CreatePlace(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req services.CreateWishlistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	place, err := h.wishlistService.Create(r.Context(), userID, req)
	if err != nil {
		respondServiceError(w, err, userField(userID), "Failed to create wishlist place")
		return
	}

	respondJSON(w, http.StatusOK, place)
}

// UpdatePlace handles PATCH /api/wishlist/{id}
func (h *WishlistHandler) UpdatePlace(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	placeID := chi.URLParam(r, "id")

	var req services.UpdateWishlistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	place, err := h.wishlistService.Update(r.Context(), userID, placeID, req)
	if err != nil {
		respondServiceError(w, err, placeFields(userID, placeID), "Failed to update wishlist place")
		return
	}

	respondJSON(w, http.StatusOK, place)
}

// DeletePlace handles DELETE /api/wishlist/{id}
func (h *WishlistHandler) DeletePlace(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	placeID := chi.URLParam(r, "id")

	if err := h.wishlistService.Delete(r.Context(), userID, placeID); err != nil {
		respondServiceError(w, err, placeFields(userID, placeID), "Failed to delete wishlist place")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
