package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"hackhub/backend/internal/pkg/httputils"
	"hackhub/backend/internal/service"
)

const maxUploadSize = 10 << 20 // 10MB

// UploadHandler is the pre-upload step: clients push a file, get back the
// URL they attach to a message as media.
type UploadHandler struct {
	media *service.MediaService
}

func NewUploadHandler(media *service.MediaService) *UploadHandler {
	return &UploadHandler{media: media}
}

func (h *UploadHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/uploads", RequireAuth(h.upload)).Methods("POST", "OPTIONS")
}

// @Summary Upload a file
// @Tags uploads
// @Accept mpfd
// @Produce json
// @Param file formData file true "File"
// @Success 201 {object} model.FileMetadata
// @Failure 400 {object} httputils.ErrorResponse
// @Router /uploads [post]
func (h *UploadHandler) upload(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		httputils.ResponseError(w, http.StatusServiceUnavailable, "uploads are not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "file too large or malformed form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	meta, err := h.media.Upload(r.Context(), file, header.Filename, contentType, requestUserID(r))
	if err != nil {
		httputils.ResponseError(w, http.StatusInternalServerError, "upload failed")
		return
	}
	httputils.ResponseJSON(w, http.StatusCreated, meta)
}
