package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/roomboard/internal/meeting"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Options{BaseURL: server.URL, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return c, server
}

func TestClient_ListMeetings(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/meetings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("_t") == "" {
			t.Error("expected a cache buster on GET requests")
		}
		if r.Header.Get("Cache-Control") != "no-cache" {
			t.Error("expected no-cache request header")
		}
		w.Header().Set("X-List-Version", "7")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]meeting.Meeting{{ID: "m1", Room: "Room A"}})
	}))

	list, version, err := c.ListMeetings(context.Background())
	if err != nil {
		t.Fatalf("ListMeetings returned error: %v", err)
	}
	if len(list) != 1 || list[0].ID != "m1" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if version != 7 {
		t.Fatalf("expected version 7, got %d", version)
	}
}

func TestClient_CreateMeeting(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var draft meeting.Meeting
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			t.Errorf("failed to decode draft: %v", err)
		}
		draft.ID = "assigned"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(draft)
	}))

	stored, err := c.CreateMeeting(context.Background(), meeting.Meeting{Room: "Room A"})
	if err != nil {
		t.Fatalf("CreateMeeting returned error: %v", err)
	}
	if stored.ID != "assigned" || stored.Room != "Room A" {
		t.Fatalf("unexpected stored meeting: %+v", stored)
	}
}

func TestClient_UpdateMeeting(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/meetings/m1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"meeting": meeting.Meeting{ID: "m1", Title: "Renamed"},
		})
	}))

	updated, err := c.UpdateMeeting(context.Background(), meeting.Meeting{ID: "m1", Title: "Renamed"})
	if err != nil {
		t.Fatalf("UpdateMeeting returned error: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Fatalf("unexpected updated meeting: %+v", updated)
	}
}

func TestClient_ReplaceAll(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/meetings/batch" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("If-Match-Version"); got != "4" {
			t.Errorf("expected If-Match-Version 4, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "count": 2})
	}))

	count, err := c.ReplaceAll(context.Background(), []meeting.Meeting{{ID: "a"}, {ID: "b"}}, 4)
	if err != nil {
		t.Fatalf("ReplaceAll returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"meeting not found"}`))
	}))

	_, err := c.GetMeeting(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one attempt for a 4xx, got %d", got)
	}
}

func TestClient_ConflictTranslation(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"conflicts with existing booking"}`))
	}))

	_, err := c.ReplaceAll(context.Background(), nil, 3)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([]meeting.Meeting{})
	}))

	list, _, err := c.ListMeetings(context.Background())
	if err != nil {
		t.Fatalf("expected the retry to succeed, got %v", err)
	}
	if list == nil {
		list = []meeting.Meeting{}
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected two attempts, got %d", got)
	}
}

func TestClient_GivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, _, err := c.ListMeetings(context.Background())
	if err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected the final status error, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected three attempts, got %d", got)
	}
}

func TestClient_DeadlineBoundsTheCall(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	c.timeout = 50 * time.Millisecond

	start := time.Now()
	_, _, err := c.ListMeetings(context.Background())
	if err == nil {
		t.Fatal("expected a deadline error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected the deadline to cut the call short, took %s", elapsed)
	}
}

func TestClient_SetBaseURL(t *testing.T) {
	c, err := New(Options{BaseURL: "http://primary:3000/", Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if c.BaseURL() != "http://primary:3000" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.BaseURL())
	}
	c.SetBaseURL("http://fallback:3000/")
	if c.BaseURL() != "http://fallback:3000" {
		t.Fatalf("expected fallback adopted, got %q", c.BaseURL())
	}
	c.SetBaseURL("   ")
	if c.BaseURL() != "http://fallback:3000" {
		t.Fatal("a blank base must leave the current one in place")
	}

	if _, err := New(Options{}); err == nil {
		t.Fatal("expected an error for a missing base URL")
	}
}
