package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/example/roomboard/internal/meeting"
)

// RoomStatus is the state shown on a room card.
type RoomStatus string

const (
	// StatusEmpty means the room has no running or later meeting today.
	StatusEmpty RoomStatus = "empty"
	// StatusActive means a meeting is running in the room right now.
	StatusActive RoomStatus = "active"
	// StatusUpcoming means the next meeting starts later today.
	StatusUpcoming RoomStatus = "upcoming"
)

// Card is the render state of one room.
type Card struct {
	Room    string
	Status  RoomStatus
	Meeting *meeting.Meeting
}

// BuildCards computes a card per room. A room is active when any meeting
// matching it satisfies the time predicate; otherwise the earliest meeting
// starting later today makes it upcoming; otherwise it is empty. Room
// matching follows the tolerant edge rule so naming variants still land on
// their card.
func BuildCards(meetings []meeting.Meeting, rooms []string, now time.Time) []Card {
	cards := make([]Card, 0, len(rooms))
	for _, room := range rooms {
		cards = append(cards, buildCard(meetings, room, now))
	}
	return cards
}

func buildCard(meetings []meeting.Meeting, room string, now time.Time) Card {
	for i, m := range meetings {
		if meeting.RoomMatches(m.Room, room) && m.ActiveAt(now) {
			return Card{Room: room, Status: StatusActive, Meeting: &meetings[i]}
		}
	}

	var next *meeting.Meeting
	for i, m := range meetings {
		if !meeting.RoomMatches(m.Room, room) || !m.UpcomingAt(now) {
			continue
		}
		if next == nil || m.StartMinutes() < next.StartMinutes() {
			next = &meetings[i]
		}
	}
	if next != nil {
		return Card{Room: room, Status: StatusUpcoming, Meeting: next}
	}
	return Card{Room: room, Status: StatusEmpty}
}

// RoomViewOptions configures a RoomView.
type RoomViewOptions struct {
	Manager *Manager
	// OnRender receives every recomputed card set.
	OnRender func([]Card)
	// RefreshInterval overrides the periodic recompute (default 15 s).
	RefreshInterval time.Duration
	// Debounce coalesces event-driven refresh bursts (default 100 ms).
	Debounce time.Duration
	// Now supplies the clock; nil means time.Now.
	Now func() time.Time
}

// RoomView keeps the per-room status cards current from the Data Manager's
// mirror. Cards are recomputed wholesale on every refresh, so rooms
// appearing in new meetings get a card automatically and a damaged render
// target is simply rebuilt.
type RoomView struct {
	manager  *Manager
	onRender func([]Card)
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cards []Card

	unsubscribe []func()
}

// NewRoomView constructs the view and subscribes it to the manager's bus.
func NewRoomView(opts RoomViewOptions) *RoomView {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 15 * time.Second
	}
	if opts.Debounce == 0 {
		opts.Debounce = 100 * time.Millisecond
	}

	v := &RoomView{
		manager:  opts.Manager,
		onRender: opts.OnRender,
		interval: opts.RefreshInterval,
		now:      opts.Now,
	}

	refresh := Debounced(opts.Debounce, func(any) { v.Refresh() })
	bus := opts.Manager.Bus()
	v.unsubscribe = append(v.unsubscribe,
		bus.Subscribe(EventMeetingDataUpdated, refresh),
		bus.Subscribe(EventRoomStatusUpdate, refresh),
		bus.Subscribe(EventRefreshRoomStatus, refresh),
	)

	v.Refresh()
	return v
}

// Close detaches the view from the bus.
func (v *RoomView) Close() {
	for _, fn := range v.unsubscribe {
		fn()
	}
}

// Cards returns the last computed card set.
func (v *RoomView) Cards() []Card {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Card(nil), v.cards...)
}

// Refresh recomputes the cards from the mirror.
func (v *RoomView) Refresh() {
	cards := BuildCards(v.manager.Today(), v.manager.Rooms(), v.now())

	v.mu.Lock()
	v.cards = cards
	v.mu.Unlock()

	if v.onRender != nil {
		v.onRender(cards)
	}
}

// Run refreshes on the periodic cadence until the context is cancelled.
func (v *RoomView) Run(ctx context.Context) {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.Refresh()
		}
	}
}
