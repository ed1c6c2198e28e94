package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"audit-trail/pkg/audit"
	"audit-trail/pkg/db"
	"audit-trail/pkg/feed"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 5 << 20

var errContentRequired = errors.New("content is required")

// Handlers contains all HTTP and WebSocket handlers
type Handlers struct {
	service *audit.Service
	hub     *feed.Hub
	logger  *slog.Logger
}

// NewHandlers creates a new handlers instance. hub may be nil when the
// live feed is not served.
func NewHandlers(service *audit.Service, hub *feed.Hub, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

// Response is the JSON envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SaveVersion stores the posted content as a new version
func (h *Handlers) SaveVersion(w http.ResponseWriter, r *http.Request) {
	var req map[string]json.RawMessage
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid JSON"})
		return
	}

	content, err := contentText(req["content"])
	if err != nil {
		message := "Content must be a string"
		if errors.Is(err, errContentRequired) {
			message = "Content is required"
		}
		writeJSON(w, http.StatusBadRequest, Response{Message: message})
		return
	}

	version, err := h.service.SaveVersion(r.Context(), content)
	if err != nil {
		h.logger.Error("error saving version", "error", err)
		writeJSON(w, http.StatusInternalServerError, Response{
			Message: "Error saving version",
			Error:   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Version saved successfully",
		Data:    version.WithoutContent(),
	})
}

// ListVersions returns every version without its content, newest first
func (h *Handlers) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.service.ListVersions(r.Context())
	if err != nil {
		h.logger.Error("error fetching versions", "error", err)
		writeJSON(w, http.StatusInternalServerError, Response{
			Message: "Error fetching versions",
			Error:   err.Error(),
		})
		return
	}

	summaries := make([]*db.Version, 0, len(versions))
	for _, v := range versions {
		summaries = append(summaries, v.WithoutContent())
	}
	count := len(summaries)

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Versions retrieved successfully",
		Data:    summaries,
		Count:   &count,
	})
}

// DeleteVersion deletes a version by id
func (h *Handlers) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.service.DeleteVersion(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Version deleted successfully",
			Data:    map[string]string{"id": id},
		})
	case errors.Is(err, audit.ErrVersionIDRequired):
		writeJSON(w, http.StatusBadRequest, Response{Message: "Version ID is required"})
	case errors.Is(err, db.ErrVersionNotFound):
		writeJSON(w, http.StatusNotFound, Response{Message: "Version not found"})
	default:
		h.logger.Error("error deleting version", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, Response{
			Message: "Error deleting version",
			Error:   err.Error(),
		})
	}
}

// Diff previews the word changes between two texts without saving
func (h *Handlers) Diff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldText string `json:"oldText"`
		NewText string `json:"newText"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid JSON"})
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Diff computed successfully",
		Data:    h.service.Diff(req.OldText, req.NewText),
	})
}

// HandleFeed upgrades the connection and subscribes it to version events
func (h *Handlers) HandleFeed(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeJSON(w, http.StatusNotFound, Response{Message: "Live feed is disabled"})
		return
	}
	h.hub.ServeWS(w, r)
}

// Health reports that the server is up
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "ok"})
}

// NotFound answers unknown routes with the JSON envelope
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, Response{Message: "Route not found"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// contentText turns the raw "content" value into text. Numbers and
// booleans are accepted and kept in their literal form.
func contentText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", errContentRequired
	}

	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case c == 't' || c == 'f' || c == '-' || (c >= '0' && c <= '9'):
		return strings.TrimSpace(string(raw)), nil
	default:
		return "", errors.New("content must be a string")
	}
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
