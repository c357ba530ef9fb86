package handlers

import (
	"net/http"

	"memory-map-backend/internal/middleware"
	"memory-map-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// MemoryHandler handles memory-related HTTP requests
type MemoryHandler struct {
	memoryService *services.MemoryService
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(memoryService *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{
		memoryService: memoryService,
	}
}

func memoryFields(userID, memoryID string) func(*zerolog.Event) *zerolog.Event {
	return func(e *zerolog.Event) *zerolog.Event {
		return e.Str("user_id", userID).Str("memory_id", memoryID)
	}
}

// ListMemories handles GET /api/memories
func (h *MemoryHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	memories, err := h.memoryService.List(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, userField(userID), "Failed to list memories")
		return
	}

	respondJSON(w, http.StatusOK, memories)
}

// GetMemory handles GET /api/memories/{id}
func (h *MemoryHandler) GetMemory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	memoryID := chi.URLParam(r, "id")

	memory, err := h.memoryService.Get(r.Context(), userID, memoryID)
	if err != nil {
		respondServiceError(w, err, memoryFields(userID, memoryID), "Failed to get memory")
		return
	}

	respondJSON(w, http.StatusOK, memory)
}

// CreateMemory handles POST /api/memories
func (h *MemoryHandler) CreateMemory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req services.MemoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	memory, err := h.memoryService.Create(r.Context(), userID, req)
	if err != nil {
		respondServiceError(w, err, userField(userID), "Failed to create memory")
		return
	}

	respondJSON(w, http.StatusOK, memory)
}

// UpdateMemory handles PUT /api/memories/{id}
func (h *MemoryHandler) UpdateMemory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	memoryID := chi.URLParam(r, "id")

	var req services.MemoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	memory, err := h.memoryService.Update(r.Context(), userID, memoryID, req)
	if err != nil {
		respondServiceError(w, err, memoryFields(userID, memoryID), "Failed to update memory")
		return
	}

	respondJSON(w, http.StatusOK, memory)
}

// DeleteMemory handles DELETE /api/memories/{id}
func (h *MemoryHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	memoryID := chi.URLParam(r, "id")

	if err := h.memoryService.Delete(r.Context(), userID, memoryID); err != nil {
		respondServiceError(w, err, memoryFields(userID, memoryID), "Failed to delete memory")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
