package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"memory-map-backend/internal/models"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxJSONBody = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// SuccessResponse is returned by deletions
type SuccessResponse struct {
	Success bool `json:"success"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondServiceError maps a service error to its status code. Unexpected
// errors are logged with the given event fields and hidden from the client.
func respondServiceError(w http.ResponseWriter, err error, logEvent func(*zerolog.Event) *zerolog.Event, msg string) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Message, Field: ve.Field})
	case errors.Is(err, models.ErrUnauthenticated):
		respondError(w, models.ErrUnauthenticated.Error(), http.StatusUnauthorized)
	case errors.Is(err, models.ErrValidation):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrNotFound):
		respondError(w, "not found", http.StatusNotFound)
	case errors.Is(err, models.ErrForbidden):
		respondError(w, "forbidden", http.StatusForbidden)
	default:
		event := log.Error().Err(err)
		if logEvent != nil {
			event = logEvent(event)
		}
		event.Msg(msg)
		respondError(w, "internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON reads a JSON request body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, "request body is required", http.StatusBadRequest)
			return false
		}
		respondError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func userField(userID string) func(*zerolog.Event) *zerolog.Event {
	return func(e *zerolog.Event) *zerolog.Event {
		return e.Str("user_id", userID)
	}
}
