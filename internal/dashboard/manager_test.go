package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/roomboard/internal/client"
	"github.com/example/roomboard/internal/meeting"
	"github.com/example/roomboard/internal/testfixtures"
)

type stubAPI struct {
	mu          sync.Mutex
	listCalls   int
	createCalls int
	updateCalls int
	deleteCalls int

	listFn   func(ctx context.Context) ([]meeting.Meeting, int64, error)
	createFn func(ctx context.Context, draft meeting.Meeting) (meeting.Meeting, error)
	updateFn func(ctx context.Context, updated meeting.Meeting) (meeting.Meeting, error)
	deleteFn func(ctx context.Context, id string) (meeting.Meeting, error)
}

func (s *stubAPI) ListMeetings(ctx context.Context) ([]meeting.Meeting, int64, error) {
	s.mu.Lock()
	s.listCalls++
	s.mu.Unlock()
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, 1, nil
}

func (s *stubAPI) CreateMeeting(ctx context.Context, draft meeting.Meeting) (meeting.Meeting, error) {
	s.mu.Lock()
	s.createCalls++
	s.mu.Unlock()
	if s.createFn != nil {
		return s.createFn(ctx, draft)
	}
	if draft.ID == "" {
		draft.ID = "server-assigned"
	}
	return draft, nil
}

func (s *stubAPI) UpdateMeeting(ctx context.Context, updated meeting.Meeting) (meeting.Meeting, error) {
	s.mu.Lock()
	s.updateCalls++
	s.mu.Unlock()
	if s.updateFn != nil {
		return s.updateFn(ctx, updated)
	}
	return updated, nil
}

func (s *stubAPI) DeleteMeeting(ctx context.Context, id string) (meeting.Meeting, error) {
	s.mu.Lock()
	s.deleteCalls++
	s.mu.Unlock()
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return meeting.Meeting{ID: id}, nil
}

func (s *stubAPI) ReplaceAll(ctx context.Context, list []meeting.Meeting, ifVersion int64) (int, error) {
	return len(list), nil
}

func (s *stubAPI) calls() (list, create, update, del int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls, s.createCalls, s.updateCalls, s.deleteCalls
}

func newTestManager(t *testing.T, api *stubAPI) (*Manager, *testfixtures.Clock) {
	t.Helper()
	clock := testfixtures.NewClock(time.Time{})
	m, err := NewManager(ManagerOptions{
		API:          api,
		DefaultRooms: []string{"Room A", "Room B"},
		ConfirmDelay: -1, // no background refetch in tests
		Now:          clock.NowFunc(),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	return m, clock
}

func draftAt(room, start, end string) meeting.Meeting {
	return meeting.Meeting{
		Room:      room,
		Date:      meeting.FormatDate(testfixtures.ReferenceTime()),
		StartTime: start,
		EndTime:   end,
	}
}

func TestManager_Sync(t *testing.T) {
	stored := []meeting.Meeting{testfixtures.NewMeeting()}
	api := &stubAPI{listFn: func(context.Context) ([]meeting.Meeting, int64, error) {
		return meeting.CloneList(stored), 5, nil
	}}
	m, _ := newTestManager(t, api)

	var updates []MeetingDataUpdated
	m.Bus().Subscribe(EventMeetingDataUpdated, func(payload any) {
		updates = append(updates, payload.(MeetingDataUpdated))
	})

	if err := m.Sync(context.Background()); err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if got := m.List(); len(got) != 1 || got[0].ID != stored[0].ID {
		t.Fatalf("unexpected mirror after sync: %+v", got)
	}
	if len(updates) != 1 || updates[0].Source != "sync" {
		t.Fatalf("expected one sync notification, got %+v", updates)
	}
	if m.Degraded() {
		t.Fatal("expected healthy state after a successful sync")
	}
}

func TestManager_SyncFailureMarksDegraded(t *testing.T) {
	api := &stubAPI{listFn: func(context.Context) ([]meeting.Meeting, int64, error) {
		return nil, 0, errors.New("connection refused")
	}}
	m, _ := newTestManager(t, api)

	var connectionErrors int
	m.Bus().Subscribe(EventAPIConnectionError, func(any) { connectionErrors++ })

	if err := m.Sync(context.Background()); err == nil {
		t.Fatal("expected the sync error surfaced")
	}
	if !m.Degraded() {
		t.Fatal("expected degraded state after a failed sync")
	}
	if connectionErrors != 1 {
		t.Fatalf("expected one connection-error event, got %d", connectionErrors)
	}
}

func TestManager_Create(t *testing.T) {

	t.Run("persists and reconciles the optimistic record", func(t *testing.T) {
		api := &stubAPI{}
		m, _ := newTestManager(t, api)

		var updates []MeetingDataUpdated
		m.Bus().Subscribe(EventMeetingDataUpdated, func(payload any) {
			updates = append(updates, payload.(MeetingDataUpdated))
		})

		stored, err := m.Create(context.Background(), draftAt("Room A", "09:00", "10:00"))
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if stored.ID != "server-assigned" {
			t.Fatalf("expected the server record back, got %+v", stored)
		}
		if got := m.List(); len(got) != 1 || got[0].ID != "server-assigned" {
			t.Fatalf("expected mirror reconciled with the server record, got %+v", got)
		}
		if len(updates) != 1 || !updates[0].IsNewMeeting || updates[0].Action != "create" {
			t.Fatalf("unexpected notifications: %+v", updates)
		}
	})

	t.Run("rejects invalid drafts without a server call", func(t *testing.T) {
		api := &stubAPI{}
		m, _ := newTestManager(t, api)

		_, err := m.Create(context.Background(), meeting.Meeting{Room: "Room A"})
		var vErr *meeting.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, create, _, _ := api.calls(); create != 0 {
			t.Fatal("no create request may be issued for an invalid draft")
		}
		if len(m.List()) != 0 {
			t.Fatal("an invalid draft must not enter the mirror")
		}
	})

	t.Run("rejects conflicting drafts without a server call", func(t *testing.T) {
		api := &stubAPI{}
		m, _ := newTestManager(t, api)

		if _, err := m.Create(context.Background(), draftAt("Room A", "09:00", "10:00")); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}

		_, err := m.Create(context.Background(), draftAt("room a", "09:30", "10:30"))
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if _, create, _, _ := api.calls(); create != 1 {
			t.Fatal("no create request may be issued for a conflicting draft")
		}
		if len(m.List()) != 1 {
			t.Fatal("a conflicting draft must not enter the mirror")
		}
	})

	t.Run("boundary-touching drafts book fine", func(t *testing.T) {
		api := &stubAPI{}
		m, _ := newTestManager(t, api)

		if _, err := m.Create(context.Background(), draftAt("Room A", "09:00", "10:00")); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if _, err := m.Create(context.Background(), draftAt("Room A", "10:00", "11:00")); err != nil {
			t.Fatalf("expected adjacent booking accepted, got %v", err)
		}
	})

	t.Run("keeps the optimistic record when persistence fails", func(t *testing.T) {
		api := &stubAPI{createFn: func(context.Context, meeting.Meeting) (meeting.Meeting, error) {
			return meeting.Meeting{}, errors.New("connection refused")
		}}
		m, _ := newTestManager(t, api)

		var connectionErrors int
		m.Bus().Subscribe(EventAPIConnectionError, func(any) { connectionErrors++ })

		draft, err := m.Create(context.Background(), draftAt("Room A", "09:00", "10:00"))
		if err == nil {
			t.Fatal("expected the persistence error surfaced")
		}
		if draft.Room != "Room A" {
			t.Fatalf("expected the local draft returned, got %+v", draft)
		}
		if got := m.List(); len(got) != 1 {
			t.Fatalf("expected the optimistic record kept, got %+v", got)
		}
		if !m.Degraded() {
			t.Fatal("expected degraded state after a failed create")
		}
		if connectionErrors != 1 {
			t.Fatalf("expected one connection-error event, got %d", connectionErrors)
		}
	})
}

func TestManager_SyncSuppressedDuringMutation(t *testing.T) {
	api := &stubAPI{}
	var m *Manager
	api.createFn = func(ctx context.Context, draft meeting.Meeting) (meeting.Meeting, error) {
		// A periodic sync firing mid-mutation must not refetch.
		if err := m.Sync(ctx); err != nil {
			t.Errorf("suppressed sync returned error: %v", err)
		}
		return draft, nil
	}
	m, _ = newTestManager(t, api)

	if _, err := m.Create(context.Background(), draftAt("Room A", "09:00", "10:00")); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if list, _, _, _ := api.calls(); list != 0 {
		t.Fatalf("expected the in-flight sync suppressed, got %d list calls", list)
	}
}

func TestManager_Update(t *testing.T) {
	api := &stubAPI{}
	m, _ := newTestManager(t, api)

	created, err := m.Create(context.Background(), draftAt("Room A", "09:00", "10:00"))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	t.Run("replaces the stored record", func(t *testing.T) {
		updated := created
		updated.Title = "Renamed"
		stored, err := m.Update(context.Background(), updated)
		if err != nil {
			t.Fatalf("Update returned error: %v", err)
		}
		if stored.Title != "Renamed" {
			t.Fatalf("unexpected stored record: %+v", stored)
		}
		if got := m.List(); got[0].Title != "Renamed" {
			t.Fatal("expected the mirror updated")
		}
	})

	t.Run("unknown ids fail locally", func(t *testing.T) {
		ghost := draftAt("Room B", "11:00", "12:00")
		ghost.ID = "ghost"
		if _, err := m.Update(context.Background(), ghost); !errors.Is(err, client.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("a server 404 prunes the mirror", func(t *testing.T) {
		api.updateFn = func(context.Context, meeting.Meeting) (meeting.Meeting, error) {
			return meeting.Meeting{}, fmt.Errorf("%w: gone", client.ErrNotFound)
		}
		defer func() { api.updateFn = nil }()

		updated := created
		updated.Title = "Too late"
		if _, err := m.Update(context.Background(), updated); !errors.Is(err, client.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if len(m.List()) != 0 {
			t.Fatal("expected the vanished meeting pruned from the mirror")
		}
	})
}

func TestManager_Remove(t *testing.T) {

	t.Run("removes and reports the record", func(t *testing.T) {
		api := &stubAPI{}
		m, _ := newTestManager(t, api)
		created, _ := m.Create(context.Background(), draftAt("Room A", "09:00", "10:00"))

		removed, err := m.Remove(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("Remove returned error: %v", err)
		}
		if removed.ID != created.ID {
			t.Fatalf("unexpected removed record: %+v", removed)
		}
		if len(m.List()) != 0 {
			t.Fatal("expected the mirror emptied")
		}
	})

	t.Run("a server 404 still prunes", func(t *testing.T) {
		api := &stubAPI{deleteFn: func(context.Context, string) (meeting.Meeting, error) {
			return meeting.Meeting{}, fmt.Errorf("%w: gone", client.ErrNotFound)
		}}
		m, _ := newTestManager(t, api)
		created, _ := m.Create(context.Background(), draftAt("Room A", "09:00", "10:00"))

		if _, err := m.Remove(context.Background(), created.ID); !errors.Is(err, client.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if len(m.List()) != 0 {
			t.Fatal("expected the vanished meeting pruned")
		}
		if m.Degraded() {
			t.Fatal("a 404 is not a connectivity failure")
		}
	})
}

func TestManager_RemoveMany(t *testing.T) {
	api := &stubAPI{deleteFn: func(ctx context.Context, id string) (meeting.Meeting, error) {
		if id == "bad" {
			return meeting.Meeting{}, errors.New("connection refused")
		}
		return meeting.Meeting{ID: id}, nil
	}}
	m, _ := newTestManager(t, api)

	result := m.RemoveMany(context.Background(), []string{"b", "bad", "a"})
	if len(result.Deleted) != 2 || result.Deleted[0].ID != "a" || result.Deleted[1].ID != "b" {
		t.Fatalf("unexpected deleted set: %+v", result.Deleted)
	}
	if len(result.Failed) != 1 || result.Failed["bad"] == nil {
		t.Fatalf("unexpected failed set: %+v", result.Failed)
	}
}

func TestManager_EndNow(t *testing.T) {
	api := &stubAPI{}
	m, clock := newTestManager(t, api)

	created, err := m.Create(context.Background(), draftAt("Room A", "09:00", "10:00"))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	var endedEvents []MeetingEndedEarly
	m.Bus().Subscribe(EventMeetingEndedEarly, func(payload any) {
		endedEvents = append(endedEvents, payload.(MeetingEndedEarly))
	})

	clock.Set(time.Date(2025, time.January, 15, 9, 30, 0, 0, meeting.Zone()))
	ended, err := m.EndNow(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("EndNow returned error: %v", err)
	}
	if ended.State != meeting.StateEndedEarly || ended.EndTime != "09:30" {
		t.Fatalf("unexpected ended record: %+v", ended)
	}
	if ended.OriginalEndTime != "10:00" {
		t.Fatalf("expected original end time preserved, got %q", ended.OriginalEndTime)
	}
	if len(endedEvents) != 1 || endedEvents[0].NewEndTime != "09:30" {
		t.Fatalf("unexpected ended events: %+v", endedEvents)
	}

	// Ending again is a no-op that issues no further update.
	if _, err := m.EndNow(context.Background(), created.ID); err != nil {
		t.Fatalf("repeat EndNow returned error: %v", err)
	}
	if _, _, updates, _ := api.calls(); updates != 1 {
		t.Fatalf("expected one update request, got %d", updates)
	}
}

func TestManager_EndByRoom(t *testing.T) {
	api := &stubAPI{}
	m, clock := newTestManager(t, api)

	if _, err := m.Create(context.Background(), draftAt("Room A", "09:00", "10:00")); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	clock.Set(time.Date(2025, time.January, 15, 9, 30, 0, 0, meeting.Zone()))
	ended, err := m.EndByRoom(context.Background(), "room a")
	if err != nil {
		t.Fatalf("EndByRoom returned error: %v", err)
	}
	if !ended.EndedByUser() {
		t.Fatalf("expected the active meeting terminated, got %+v", ended)
	}

	if _, err := m.EndByRoom(context.Background(), "Room B"); err == nil {
		t.Fatal("expected an error when the room is idle")
	}
}

func TestManager_RoomQueries(t *testing.T) {
	api := &stubAPI{}
	m, clock := newTestManager(t, api)

	if _, err := m.Create(context.Background(), draftAt("Room A", "09:00", "10:00")); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := m.Create(context.Background(), draftAt("Room A", "14:00", "15:00")); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := m.Create(context.Background(), draftAt("Room A", "11:00", "12:00")); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	clock.Set(time.Date(2025, time.January, 15, 9, 30, 0, 0, meeting.Zone()))

	current, ok := m.CurrentFor("Room A")
	if !ok || current.StartTime != "09:00" {
		t.Fatalf("expected the 09:00 meeting current, got %+v (%v)", current, ok)
	}
	next, ok := m.UpcomingFor("Room A")
	if !ok || next.StartTime != "11:00" {
		t.Fatalf("expected the 11:00 meeting next, got %+v (%v)", next, ok)
	}
	if _, ok := m.CurrentFor("Room B"); ok {
		t.Fatal("expected Room B idle")
	}

	rooms := m.Rooms()
	if len(rooms) != 1 || rooms[0] != "Room A" {
		t.Fatalf("unexpected rooms: %v", rooms)
	}
	if today := m.Today(); len(today) != 3 {
		t.Fatalf("expected three meetings today, got %d", len(today))
	}
	if byRoom := m.ByRoom("a"); len(byRoom) != 3 {
		t.Fatalf("expected tolerant lookup to find all three, got %d", len(byRoom))
	}
}

func TestManager_CreateConfirmSurvivesInterleavedDelete(t *testing.T) {
	seeded := testfixtures.NewMeeting(testfixtures.WithTimes("07:00", "08:00"))
	api := &stubAPI{listFn: func(context.Context) ([]meeting.Meeting, int64, error) {
		return []meeting.Meeting{seeded}, 1, nil
	}}

	var m *Manager
	api.createFn = func(_ context.Context, draft meeting.Meeting) (meeting.Meeting, error) {
		// Another block is removed while the create is in flight, shifting
		// the optimistic record's position in the mirror.
		if _, err := m.Remove(context.Background(), seeded.ID); err != nil {
			t.Errorf("Remove returned error: %v", err)
		}
		draft.ID = "server-assigned"
		return draft, nil
	}

	m, _ = newTestManager(t, api)
	if err := m.Sync(context.Background()); err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}

	stored, err := m.Create(context.Background(), draftAt("Room A", "09:00", "10:00"))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if stored.ID != "server-assigned" {
		t.Fatalf("expected the persisted meeting back, got %+v", stored)
	}

	list := m.List()
	if len(list) != 1 || list[0].ID != "server-assigned" {
		t.Fatalf("expected the confirmed record in the mirror, got %+v", list)
	}
}

func TestManager_ConnectionTransitions(t *testing.T) {
	api := &stubAPI{}
	m, _ := newTestManager(t, api)

	var lost []error
	var restored []string
	m.Bus().Subscribe(EventConnectionLost, func(p any) { lost = append(lost, p.(error)) })
	m.Bus().Subscribe(EventConnectionRestored, func(p any) { restored = append(restored, p.(string)) })

	probeErr := errors.New("connection refused")
	m.ConnectionLost(probeErr)
	if len(lost) != 1 || !errors.Is(lost[0], probeErr) {
		t.Fatalf("expected one lost notification carrying the probe error, got %v", lost)
	}
	if !m.Degraded() {
		t.Fatal("expected degraded state while the connection is lost")
	}

	m.ConnectionRestored("http://localhost:3000")
	if len(restored) != 1 || restored[0] != "http://localhost:3000" {
		t.Fatalf("expected one restored notification carrying the base, got %v", restored)
	}
	if m.Degraded() {
		t.Fatal("expected degraded state cleared after restore")
	}
	if listCalls, _, _, _ := api.calls(); listCalls != 1 {
		t.Fatalf("expected a reconciling fetch after restore, got %d", listCalls)
	}

	t.Run("prober options report transitions on the bus", func(t *testing.T) {
		c, err := client.New(client.Options{BaseURL: "http://localhost:3000"})
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		opts := m.ProberOptions(c, client.FallbackBases(c.BaseURL(), ""))
		if opts.Client != c {
			t.Fatal("expected the prober bound to the API client")
		}
		opts.OnLost(probeErr)
		opts.OnRestored("http://localhost:3000")
		if len(lost) != 2 || len(restored) != 2 {
			t.Fatalf("expected the wired callbacks to emit, got %d lost and %d restored", len(lost), len(restored))
		}
	})
}
