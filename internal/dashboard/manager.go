package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/roomboard/internal/client"
	"github.com/example/roomboard/internal/meeting"
)

// DefaultSyncInterval is the periodic reconciliation cadence.
const DefaultSyncInterval = 5 * time.Minute

// defaultConfirmDelay is the lag before the confirmatory refetch that follows
// a successful create.
const defaultConfirmDelay = time.Second

// API captures the server operations the Data Manager needs.
type API interface {
	ListMeetings(ctx context.Context) ([]meeting.Meeting, int64, error)
	CreateMeeting(ctx context.Context, draft meeting.Meeting) (meeting.Meeting, error)
	UpdateMeeting(ctx context.Context, updated meeting.Meeting) (meeting.Meeting, error)
	DeleteMeeting(ctx context.Context, id string) (meeting.Meeting, error)
	ReplaceAll(ctx context.Context, list []meeting.Meeting, ifVersion int64) (int, error)
}

// ConflictError reports the stored meeting an attempted booking overlaps.
type ConflictError struct {
	With meeting.Meeting
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicts with %q in %s (%s-%s)", e.With.Title, e.With.Room, e.With.StartTime, e.With.EndTime)
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	API API
	Bus *Bus
	// DefaultRooms backs room discovery while the list is empty.
	DefaultRooms []string
	// ConfirmDelay overrides the post-create confirmatory refetch lag; zero
	// keeps one second, negative disables it.
	ConfirmDelay time.Duration
	// Now supplies the clock; nil means time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Manager holds the authoritative client-side mirror of the meeting list,
// arbitrates mutations, and emits change notifications on the bus.
type Manager struct {
	api          API
	bus          *Bus
	defaultRooms []string
	confirmDelay time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu       sync.Mutex
	mirror   []meeting.Meeting
	version  int64
	pending  int // in-flight mutations; periodic sync is suppressed while non-zero
	degraded bool
}

// NewManager wires a Data Manager.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("dashboard: an API client is required")
	}
	if opts.Bus == nil {
		opts.Bus = NewBus()
	}
	if opts.ConfirmDelay == 0 {
		opts.ConfirmDelay = defaultConfirmDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		api:          opts.API,
		bus:          opts.Bus,
		defaultRooms: append([]string(nil), opts.DefaultRooms...),
		confirmDelay: opts.ConfirmDelay,
		now:          opts.Now,
		logger:       logger,
	}, nil
}

// Bus returns the event bus views subscribe to.
func (m *Manager) Bus() *Bus { return m.bus }

// Degraded reports whether the last server interaction failed.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// List returns a copy of the current mirror.
func (m *Manager) List() []meeting.Meeting {
	m.mu.Lock()
	defer m.mu.Unlock()
	return meeting.CloneList(m.mirror)
}

// Today returns the mirrored meetings scheduled for the current civil date.
func (m *Manager) Today() []meeting.Meeting {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.todayLocked()
}

func (m *Manager) todayLocked() []meeting.Meeting {
	today := meeting.CivilDate(m.now())
	var out []meeting.Meeting
	for _, entry := range m.mirror {
		if entry.Date == today {
			out = append(out, entry)
		}
	}
	return out
}

// ByRoom returns the mirrored meetings whose room matches under the tolerant
// edge rule.
func (m *Manager) ByRoom(room string) []meeting.Meeting {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []meeting.Meeting
	for _, entry := range m.mirror {
		if meeting.RoomMatches(entry.Room, room) {
			out = append(out, entry)
		}
	}
	return out
}

// CurrentFor returns the meeting currently running in the room, if any.
func (m *Manager) CurrentFor(room string) (meeting.Meeting, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, entry := range m.mirror {
		if meeting.RoomMatches(entry.Room, room) && entry.ActiveAt(now) {
			return entry, true
		}
	}
	return meeting.Meeting{}, false
}

// UpcomingFor returns the next meeting starting later today in the room, if
// any.
func (m *Manager) UpcomingFor(room string) (meeting.Meeting, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()

	var next meeting.Meeting
	found := false
	for _, entry := range m.mirror {
		if !meeting.RoomMatches(entry.Room, room) || !entry.UpcomingAt(now) {
			continue
		}
		if !found || entry.StartMinutes() < next.StartMinutes() {
			next = entry
			found = true
		}
	}
	return next, found
}

// Rooms returns the distinct room names in the mirror, falling back to the
// configured defaults while the list is empty.
func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return meeting.DistinctRooms(m.mirror, m.defaultRooms)
}

// Sync reconciles the mirror with the server. While a local mutation is in
// flight the fetch is skipped so the optimistic record is not erased.
func (m *Manager) Sync(ctx context.Context) error {
	m.mu.Lock()
	if m.pending > 0 {
		m.mu.Unlock()
		m.logger.Debug("sync skipped, mutation in flight")
		return nil
	}
	m.mu.Unlock()

	list, version, err := m.api.ListMeetings(ctx)
	if err != nil {
		m.markDegraded(err)
		return err
	}

	m.mu.Lock()
	if m.pending > 0 {
		// A mutation started while the fetch was in flight; drop the result.
		m.mu.Unlock()
		return nil
	}
	m.mirror = list
	m.version = version
	m.degraded = false
	m.mu.Unlock()

	m.emitData("sync", "refresh", false)
	return nil
}

// RunPeriodicSync reconciles on the given cadence until the context is
// cancelled. A non-positive interval means the default five minutes.
func (m *Manager) RunPeriodicSync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Sync(ctx); err != nil {
				m.logger.Warn("periodic sync failed", "error", err)
			}
		}
	}
}

// Create validates the draft, rejects conflicts against the mirror, appends
// optimistically, and persists through the API. The mirror keeps the record
// even when persistence fails; the service is marked degraded instead and the
// next sync reconciles.
func (m *Manager) Create(ctx context.Context, draft meeting.Meeting) (meeting.Meeting, error) {
	if err := meeting.Validate(draft); err != nil {
		return meeting.Meeting{}, err
	}
	if draft.State == "" {
		draft.State = meeting.StateScheduled
	}

	m.mu.Lock()
	if with, ok := meeting.FindConflict(m.mirror, draft); ok {
		m.mu.Unlock()
		return meeting.Meeting{}, &ConflictError{With: with}
	}
	draft.CreatedAt = m.now()
	draft.UpdatedAt = draft.CreatedAt
	m.mirror = append(m.mirror, draft)
	m.pending++
	m.mu.Unlock()

	stored, err := m.api.CreateMeeting(ctx, draft)

	m.mu.Lock()
	m.pending--
	if err == nil {
		m.confirmLocked(draft, stored)
		m.degraded = false
	} else {
		m.degraded = true
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("failed to persist meeting", "error", err)
		m.bus.Emit(EventAPIConnectionError, err)
		m.emitData("create", "create", true)
		return draft, err
	}

	m.emitData("create", "create", true)
	m.scheduleConfirmSync()
	return stored, nil
}

// Update validates and persists a full replacement of one meeting.
func (m *Manager) Update(ctx context.Context, updated meeting.Meeting) (meeting.Meeting, error) {
	if err := meeting.Validate(updated); err != nil {
		return meeting.Meeting{}, err
	}

	m.mu.Lock()
	index := m.indexLocked(updated.ID)
	if index < 0 {
		m.mu.Unlock()
		return meeting.Meeting{}, client.ErrNotFound
	}
	rest := append(meeting.CloneList(m.mirror[:index]), m.mirror[index+1:]...)
	if with, ok := meeting.FindConflict(rest, updated); ok {
		m.mu.Unlock()
		return meeting.Meeting{}, &ConflictError{With: with}
	}
	m.pending++
	m.mu.Unlock()

	stored, err := m.api.UpdateMeeting(ctx, updated)

	m.mu.Lock()
	m.pending--
	switch {
	case err == nil:
		if i := m.indexLocked(updated.ID); i >= 0 {
			m.mirror[i] = stored
		}
		m.degraded = false
	case errors.Is(err, client.ErrNotFound):
		m.pruneLocked(updated.ID)
	default:
		m.degraded = true
	}
	m.mu.Unlock()

	if err != nil {
		m.emitData("update", "update", false)
		return meeting.Meeting{}, err
	}
	m.emitData("update", "update", false)
	return stored, nil
}

// Remove deletes one meeting. A server-side 404 prunes the mirror and is
// reported as client.ErrNotFound.
func (m *Manager) Remove(ctx context.Context, id string) (meeting.Meeting, error) {
	m.mu.Lock()
	m.pending++
	m.mu.Unlock()

	removed, err := m.api.DeleteMeeting(ctx, id)

	m.mu.Lock()
	m.pending--
	if err == nil || errors.Is(err, client.ErrNotFound) {
		m.pruneLocked(id)
		m.degraded = false
	} else {
		m.degraded = true
	}
	m.mu.Unlock()

	m.emitData("delete", "delete", false)
	if err != nil {
		return meeting.Meeting{}, err
	}
	return removed, nil
}

// BatchResult aggregates the outcome of a multi-delete.
type BatchResult struct {
	Deleted []meeting.Meeting
	Failed  map[string]error
}

// RemoveMany deletes a set of meetings, aggregating per-id outcomes so the
// flow can show a single notification.
func (m *Manager) RemoveMany(ctx context.Context, ids []string) BatchResult {
	result := BatchResult{Failed: make(map[string]error)}
	for _, id := range ids {
		removed, err := m.Remove(ctx, id)
		if err != nil {
			result.Failed[id] = err
			continue
		}
		result.Deleted = append(result.Deleted, removed)
	}
	sort.Slice(result.Deleted, func(i, j int) bool { return result.Deleted[i].ID < result.Deleted[j].ID })
	return result
}

// EndNow terminates a meeting at the current wall-clock time, preserving the
// original end time.
func (m *Manager) EndNow(ctx context.Context, id string) (meeting.Meeting, error) {
	m.mu.Lock()
	index := m.indexLocked(id)
	if index < 0 {
		m.mu.Unlock()
		return meeting.Meeting{}, client.ErrNotFound
	}
	before := m.mirror[index]
	if before.Ended() {
		m.mu.Unlock()
		return before, nil
	}
	ended := before.EndEarly(m.now())
	m.pending++
	m.mu.Unlock()

	stored, err := m.api.UpdateMeeting(ctx, ended)

	m.mu.Lock()
	m.pending--
	switch {
	case err == nil:
		if i := m.indexLocked(id); i >= 0 {
			m.mirror[i] = stored
		}
		m.degraded = false
	case errors.Is(err, client.ErrNotFound):
		m.pruneLocked(id)
	default:
		m.degraded = true
	}
	m.mu.Unlock()

	if err != nil {
		return meeting.Meeting{}, err
	}

	m.bus.Emit(EventMeetingEndedEarly, MeetingEndedEarly{
		Meeting:         stored,
		OriginalEndTime: stored.OriginalEndTime,
		NewEndTime:      stored.EndTime,
	})
	m.emitData("endEarly", "update", false)
	return stored, nil
}

// EndByRoom terminates the meeting currently running in the room.
func (m *Manager) EndByRoom(ctx context.Context, room string) (meeting.Meeting, error) {
	current, ok := m.CurrentFor(room)
	if !ok {
		return meeting.Meeting{}, fmt.Errorf("no active meeting in %s", room)
	}
	return m.EndNow(ctx, current.ID)
}

// confirmLocked swaps the optimistic draft for the record the server stored.
// The draft is located by identity, not position: interleaved mutations may
// have moved it, and a vanished draft is left for the next sync to settle.
func (m *Manager) confirmLocked(draft, stored meeting.Meeting) {
	for i := range m.mirror {
		entry := m.mirror[i]
		if entry.ID == draft.ID && entry.Room == draft.Room &&
			entry.Date == draft.Date && entry.StartTime == draft.StartTime &&
			entry.CreatedAt.Equal(draft.CreatedAt) {
			m.mirror[i] = stored
			return
		}
	}
}

func (m *Manager) indexLocked(id string) int {
	for i, entry := range m.mirror {
		if entry.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) pruneLocked(id string) {
	if i := m.indexLocked(id); i >= 0 {
		m.mirror = append(m.mirror[:i:i], m.mirror[i+1:]...)
	}
}

// ConnectionLost marks the server unreachable and announces it on the bus.
// Wire it as the prober's OnLost callback.
func (m *Manager) ConnectionLost(err error) {
	m.mu.Lock()
	m.degraded = true
	m.mu.Unlock()
	m.logger.Warn("server connection lost", "error", err)
	m.bus.Emit(EventConnectionLost, err)
}

// ConnectionRestored announces a recovered connection and reconciles the
// mirror with the server that answered. Wire it as the prober's OnRestored
// callback.
func (m *Manager) ConnectionRestored(base string) {
	m.mu.Lock()
	m.degraded = false
	m.mu.Unlock()
	m.bus.Emit(EventConnectionRestored, base)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.Sync(ctx); err != nil {
		m.logger.Warn("post-restore sync failed", "error", err)
	}
}

// ProberOptions builds the prober wiring for this manager: connection
// transitions land on the bus and a restore triggers a reconciling fetch.
func (m *Manager) ProberOptions(c *client.Client, fallbacks []string) client.ProberOptions {
	return client.ProberOptions{
		Client:     c,
		Fallbacks:  fallbacks,
		OnLost:     m.ConnectionLost,
		OnRestored: m.ConnectionRestored,
		Logger:     m.logger,
	}
}

func (m *Manager) markDegraded(err error) {
	m.mu.Lock()
	m.degraded = true
	m.mu.Unlock()
	m.bus.Emit(EventAPIConnectionError, err)
}

func (m *Manager) emitData(source, action string, isNew bool) {
	m.mu.Lock()
	meetings := meeting.CloneList(m.mirror)
	today := m.todayLocked()
	m.mu.Unlock()

	m.bus.Emit(EventMeetingDataUpdated, MeetingDataUpdated{
		Meetings:      meetings,
		TodayMeetings: today,
		Source:        source,
		Action:        action,
		IsNewMeeting:  isNew,
	})
	m.bus.Emit(EventRoomStatusUpdate, RoomStatusUpdate{TodayMeetings: today})
}

// scheduleConfirmSync aligns the mirror with the server shortly after a
// create lands.
func (m *Manager) scheduleConfirmSync() {
	if m.confirmDelay < 0 {
		return
	}
	time.AfterFunc(m.confirmDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.Sync(ctx); err != nil {
			m.logger.Warn("confirmatory sync failed", "error", err)
		}
	})
}
