package inventory

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

type scanRequest struct {
	UserID string `validate:"required,max=128"`
}

type listRequest struct {
	Status string `validate:"omitempty,oneof=active consumed wasted"`
}

type daysRequest struct {
	Days int `validate:"min=0,max=365"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active consumed wasted"`
}

const invalidStatusMessage = "Invalid status. Use: active, consumed, or wasted"

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeServiceError maps service errors onto status codes
func writeServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, ErrEmptyUpload):
		writeError(w, http.StatusBadRequest, "Uploaded file is empty.")
	case errors.Is(err, ErrInvalidImage):
		writeError(w, http.StatusBadRequest, "Invalid image file. Please upload a JPEG, PNG, HEIC or PDF.")
	case errors.Is(err, ErrNoItemsDetected):
		writeError(w, http.StatusBadRequest, "No items detected in image. Try a clearer photo with better lighting.")
	case errors.Is(err, ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, invalidStatusMessage)
	case errors.Is(err, ErrItemNotFound):
		writeError(w, http.StatusNotFound, "Item not found")
	case errors.Is(err, ErrImageNotFound):
		writeError(w, http.StatusNotFound, "Image not found")
	default:
		slog.Error(message, "error", err)
		writeError(w, http.StatusInternalServerError, message)
	}
}

// daysParam reads the optional days query parameter
func (s *Server) daysParam(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return DefaultExpiringDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return days, s.validate.Struct(daysRequest{Days: days}) == nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "FridgeTrack API is running!",
		"version": s.version,
		"status":  "healthy",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Health(r.Context()))
}

// handleScan handles a fridge photo upload
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "File is too large. Maximum size is 50MB. Please compress or resize your image.")
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	req := scanRequest{UserID: strings.TrimSpace(r.FormValue("user_id"))}
	if req.UserID == "" {
		req.UserID = DefaultUserID
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user_id")
		return
	}

	f, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		f, header, err = r.FormFile("file")
	}
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No image was provided. Please choose a photo to upload.")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	result, err := s.service.ProcessScan(r.Context(), req.UserID, header.Filename, data, uploadContentType(header.Header.Get("Content-Type"), header.Filename))
	if err != nil {
		slog.Warn("Scan failed", "filename", header.Filename, "user_id", req.UserID, "error", err)
		writeServiceError(w, err, "Failed to process scan")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// uploadContentType prefers the declared type and falls back to the file extension
func uploadContentType(declared, filename string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case "":
		return "application/octet-stream"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	req := listRequest{Status: r.URL.Query().Get("status")}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, invalidStatusMessage)
		return
	}

	list, err := s.service.ListItems(r.Context(), chi.URLParam(r, "user_id"), req.Status)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch inventory")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleExpiringItems(w http.ResponseWriter, r *http.Request) {
	days, ok := s.daysParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be an integer between 0 and 365")
		return
	}

	report, err := s.service.ExpiringItems(r.Context(), chi.URLParam(r, "user_id"), days)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch expiring items")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	days, ok := s.daysParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be an integer between 0 and 365")
		return
	}

	report, err := s.service.RecipesForUser(r.Context(), chi.URLParam(r, "user_id"), days)
	if err != nil {
		writeServiceError(w, err, "Failed to generate recipes")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleShoppingList(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ShoppingList(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeServiceError(w, err, "Failed to generate shopping list")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeServiceError(w, err, "Failed to fetch stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleItemImage(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetItemImage(r.Context(), chi.URLParam(r, "item_id"))
	if err != nil {
		writeServiceError(w, err, "Failed to fetch image")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleUpdateStatus accepts the new status as a form field or a JSON body
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		req.Status = r.FormValue("status")
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, invalidStatusMessage)
		return
	}

	itemID := chi.URLParam(r, "item_id")
	status, err := s.service.UpdateItemStatus(r.Context(), itemID, req.Status)
	if err != nil {
		writeServiceError(w, err, "Failed to update item")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Item status updated to " + string(status),
		"item_id": itemID,
	})
}
