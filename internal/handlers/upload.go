package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"memory-map-backend/internal/middleware"
	"memory-map-backend/internal/services"
)

const (
	multipartOverhead = 1 << 20
	multipartMemory   = 1 << 20
)

// UploadHandler handles media uploads
type UploadHandler struct {
	uploadService *services.UploadService
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploadService *services.UploadService) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
	}
}

// Upload handles POST /api/upload with a multipart "file" field
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	maxBytes := h.uploadService.MaxBytes()

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, fmt.Sprintf("file must be %d MB or smaller", maxBytes/(1024*1024)), http.StatusBadRequest)
			return
		}
		respondError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	resp, err := h.uploadService.Upload(r.Context(), userID, services.UploadFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		respondServiceError(w, err, userField(userID), "Failed to upload file")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
