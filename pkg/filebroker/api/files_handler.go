// Package api exposes the file lifecycle operations over HTTP. It is a thin
// boundary: requests are validated, handed to the filebroker.Service and the
// error taxonomy is mapped onto status codes.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/file-broker/pkg/filebroker"
)

// FilesHandler handles HTTP requests for file records.
type FilesHandler struct {
	service filebroker.Service
}

// NewFilesHandler creates a new files handler.
func NewFilesHandler(service filebroker.Service) *FilesHandler {
	return &FilesHandler{service: service}
}

// Routes returns the routes for files.
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateFile)
	r.Get("/{id}", h.GetFileData)
	r.Post("/{id}/download-url", h.GenerateDownloadURL)
	r.Post("/{id}/upload", h.UploadFile)

	return r
}

// CreateFileRequest is the request body for creating a file record.
type CreateFileRequest struct {
	FileName  string                      `json:"file_name"`
	Metadata  map[string]filebroker.Value `json:"metadata"`
	ExpiresAt time.Time                   `json:"expires_at"`
}

// NewFileResponse is the response body for a created file record.
type NewFileResponse struct {
	ID        string `json:"id"`
	UploadURL string `json:"upload_url"`
}

// DownloadURLRequest is the request body for minting a download URL.
type DownloadURLRequest struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// DownloadURLResponse is the response body carrying a download URL.
type DownloadURLResponse struct {
	URL string `json:"url"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateFile mints a new file record and returns its id with a presigned
// upload URL.
func (h *FilesHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	var req CreateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Invalid create file request", "error", err)
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.CreateFile(r.Context(), filebroker.CreateFileRequest{
		FileName:  req.FileName,
		Metadata:  req.Metadata,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		h.renderServiceError(w, r, "create file", err)
		return
	}

	slog.Info("File created", "file_id", result.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, NewFileResponse{ID: result.ID, UploadURL: result.UploadURL})
}

// GetFileData returns the file record for an uploaded file.
func (h *FilesHandler) GetFileData(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	record, err := h.service.GetFileData(r.Context(), fileID)
	if err != nil {
		h.renderServiceError(w, r, "get file data", err)
		return
	}

	render.JSON(w, r, record)
}

// GenerateDownloadURL mints a presigned download URL for an uploaded file.
func (h *FilesHandler) GenerateDownloadURL(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	var req DownloadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Invalid download url request", "file_id", fileID, "error", err)
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	url, err := h.service.GenerateDownloadURL(r.Context(), fileID, req.ExpiresAt)
	if err != nil {
		h.renderServiceError(w, r, "generate download url", err)
		return
	}

	render.JSON(w, r, DownloadURLResponse{URL: url})
}

// UploadFile accepts a multipart upload on behalf of clients that cannot use
// the presigned URL. The file travels in the "file" form field.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	file, _, err := r.FormFile("file")
	if err != nil {
		slog.Error("Invalid upload request", "file_id", fileID, "error", err)
		writeError(w, r, http.StatusBadRequest, "file required and not empty")
		return
	}
	defer file.Close()

	if err := h.service.UploadFile(r.Context(), fileID, file); err != nil {
		h.renderServiceError(w, r, "upload file", err)
		return
	}

	slog.Info("File uploaded", "file_id", fileID)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, struct{}{})
}

// renderServiceError maps the service error taxonomy onto HTTP status codes.
// Corruption and unavailability are logged with their full key/bucket context
// carried by the wrapped error chain.
func (h *FilesHandler) renderServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, filebroker.ErrInvalidArgument):
		slog.Info("Rejected request", "op", op, "error", err)
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, filebroker.ErrFileNotFound):
		slog.Info("File not found", "op", op, "error", err)
		writeError(w, r, http.StatusNotFound, "file not found")
	case errors.Is(err, filebroker.ErrStorageUnavailable), errors.Is(err, filebroker.ErrUploadInterrupted):
		slog.Error("Storage unavailable", "op", op, "error", err)
		writeError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		slog.Error("Internal error", "op", op, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}
