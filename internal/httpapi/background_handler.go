package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/example/roomboard/internal/backgrounds"
)

// BackgroundHandler serves the /api/backgrounds endpoints.
type BackgroundHandler struct {
	store     *backgrounds.Store
	responder responder
}

// NewBackgroundHandler wires the background endpoints to an image store.
func NewBackgroundHandler(store *backgrounds.Store, logger *slog.Logger) *BackgroundHandler {
	return &BackgroundHandler{store: store, responder: newResponder(logger)}
}

// Current returns the background assignment state.
func (h *BackgroundHandler) Current(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.Current()
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, state)
}

type uploadRequest struct {
	Type      string `json:"type"`
	ImageData string `json:"imageData"`
}

// Upload stores a background image supplied as a data URL.
func (h *BackgroundHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	filename, err := h.store.Upload(strings.TrimSpace(req.Type), req.ImageData)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, map[string]any{
		"success":  true,
		"filename": filename,
	})
}

// Serve streams a stored background image.
func (h *BackgroundHandler) Serve(w http.ResponseWriter, r *http.Request) {
	path, err := h.store.Resolve(mux.Vars(r)["filename"])
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	http.ServeFile(w, r, path)
}

// Remove clears a background assignment and deletes its image.
func (h *BackgroundHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Remove(mux.Vars(r)["type"]); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"success": true})
}

func (h *BackgroundHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, backgrounds.ErrNotFound):
		h.responder.writeError(r.Context(), w, http.StatusNotFound, err)
	case errors.Is(err, backgrounds.ErrUnknownType), errors.Is(err, backgrounds.ErrBadImage):
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
	case errors.Is(err, backgrounds.ErrTooLarge):
		h.responder.writeError(r.Context(), w, http.StatusRequestEntityTooLarge, err)
	default:
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
	}
}
