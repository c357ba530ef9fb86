package handlers

import (
	"net/http"
	"time"

	"memory-map-backend/internal/middleware"
	"memory-map-backend/internal/models"
	"memory-map-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService   *services.UserService
	sessionTTL    time.Duration
	secureCookies bool
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, sessionTTL time.Duration, secureCookies bool) *UserHandler {
	return &UserHandler{
		userService:   userService,
		sessionTTL:    sessionTTL,
		secureCookies: secureCookies,
	}
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	Token string             `json:"token"`
	User  models.UserSummary `json:"user"`
}

// Register handles POST /api/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.Register(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, nil, "Failed to register user")
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User registered")
	respondJSON(w, http.StatusOK, user.Summary())
}

// SyncUser handles POST /api/user
func (h *UserHandler) SyncUser(w http.ResponseWriter, r *http.Request) {
	var req services.SyncUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.SyncUser(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, nil, "Failed to sync user")
		return
	}

	respondJSON(w, http.StatusOK, user.Summary())
}

// Login handles POST /api/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, user, err := h.userService.Login(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, nil, "Failed to log in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	log.Info().Str("user_id", user.ID).Msg("User logged in")
	respondJSON(w, http.StatusOK, LoginResponse{Token: token, User: user.Summary()})
}
