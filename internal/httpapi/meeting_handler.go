package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/example/roomboard/internal/meeting"
	"github.com/example/roomboard/internal/store"
)

// listVersionHeader carries the monotonic list version used for conditional
// batch replacement.
const (
	listVersionHeader = "X-List-Version"
	ifMatchHeader     = "If-Match-Version"
)

type meetingStore interface {
	List(ctx context.Context) ([]meeting.Meeting, int64, error)
	Get(ctx context.Context, id string) (meeting.Meeting, error)
	Create(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error)
	Update(ctx context.Context, id string, patch store.Patch) (meeting.Meeting, error)
	Delete(ctx context.Context, id string) (meeting.Meeting, error)
	ReplaceAll(ctx context.Context, list []meeting.Meeting, ifVersion int64) (int, error)
}

// MeetingHandler serves the /api/meetings endpoints.
type MeetingHandler struct {
	store     meetingStore
	responder responder
}

// NewMeetingHandler wires the meeting endpoints to a store.
func NewMeetingHandler(store meetingStore, logger *slog.Logger) *MeetingHandler {
	return &MeetingHandler{store: store, responder: newResponder(logger)}
}

// List returns the full meeting list and stamps the list version header.
func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	list, version, err := h.store.List(r.Context())
	if err != nil {
		h.responder.handleStoreError(r.Context(), w, err)
		return
	}
	if list == nil {
		list = []meeting.Meeting{}
	}
	w.Header().Set(listVersionHeader, strconv.FormatInt(version, 10))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, list)
}

// Get returns a single meeting by id.
func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMeetingID)
		return
	}

	stored, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.responder.handleStoreError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, stored)
}

// Create stores a new meeting.
func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft meeting.Meeting
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	stored, err := h.store.Create(r.Context(), draft)
	if err != nil {
		h.responder.handleStoreError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, stored)
}

// Update merges a partial meeting into the stored record.
func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMeetingID)
		return
	}

	var req meetingPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	stored, err := h.store.Update(r.Context(), id, req.toPatch())
	if err != nil {
		h.responder.handleStoreError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, updateResponse{Success: true, Meeting: stored})
}

// Delete removes a meeting and returns the removed record.
func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMeetingID)
		return
	}

	removed, err := h.store.Delete(r.Context(), id)
	if err != nil {
		h.responder.handleStoreError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, removed)
}

// BatchReplace swaps the entire meeting list. The replace is conditional when
// the caller supplies the list version it last read.
func (h *MeetingHandler) BatchReplace(w http.ResponseWriter, r *http.Request) {
	var list []meeting.Meeting
	if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBodyNotArray)
		return
	}

	var ifVersion int64
	if value := strings.TrimSpace(r.Header.Get(ifMatchHeader)); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		ifVersion = parsed
	}

	count, err := h.store.ReplaceAll(r.Context(), list, ifVersion)
	if err != nil {
		h.responder.handleStoreError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, batchResponse{Success: true, Count: count})
}

type updateResponse struct {
	Success bool            `json:"success"`
	Meeting meeting.Meeting `json:"meeting"`
}

type batchResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// meetingPatchRequest mirrors the wire meeting with every field optional. The
// ended flags are folded back into the state tag.
type meetingPatchRequest struct {
	Room             *string `json:"room"`
	Date             *string `json:"date"`
	StartTime        *string `json:"startTime"`
	EndTime          *string `json:"endTime"`
	Purpose          *string `json:"purpose"`
	Department       *string `json:"department"`
	Title            *string `json:"title"`
	Content          *string `json:"content"`
	IsEnded          *bool   `json:"isEnded"`
	ForceEndedByUser *bool   `json:"forceEndedByUser"`
	OriginalEndTime  *string `json:"originalEndTime"`
}

func (r meetingPatchRequest) toPatch() store.Patch {
	patch := store.Patch{
		Room:            r.Room,
		Date:            r.Date,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		Purpose:         r.Purpose,
		Department:      r.Department,
		Title:           r.Title,
		Content:         r.Content,
		OriginalEndTime: r.OriginalEndTime,
	}

	switch {
	case r.ForceEndedByUser != nil && *r.ForceEndedByUser:
		state := meeting.StateEndedEarly
		patch.State = &state
	case r.IsEnded != nil && *r.IsEnded:
		state := meeting.StateEndedNaturally
		patch.State = &state
	case r.IsEnded != nil:
		state := meeting.StateScheduled
		patch.State = &state
	}
	return patch
}
