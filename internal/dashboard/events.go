// Package dashboard holds the client-side core of the meeting dashboard: the
// Data Manager mirroring the server list, the event bus views subscribe to,
// and the schedule-grid and room-card view models.
package dashboard

import (
	"sync"
	"time"

	"github.com/example/roomboard/internal/meeting"
)

// Event names carried by the bus.
const (
	EventMeetingDataUpdated = "meetingDataUpdated"
	EventRoomStatusUpdate   = "roomStatusUpdate"
	EventMeetingEndedEarly  = "meetingEndedEarly"
	EventAPIConnectionError = "apiConnectionError"
	EventConnectionLost     = "connectionLost"
	EventConnectionRestored = "connectionRestored"
	EventRefreshRoomStatus  = "refreshRoomStatus"
)

// MeetingDataUpdated announces a change to the mirrored meeting list.
type MeetingDataUpdated struct {
	Meetings      []meeting.Meeting
	TodayMeetings []meeting.Meeting
	Source        string
	Action        string
	IsNewMeeting  bool
}

// RoomStatusUpdate asks room cards to recompute from today's meetings.
type RoomStatusUpdate struct {
	TodayMeetings []meeting.Meeting
}

// MeetingEndedEarly announces a user-terminated meeting.
type MeetingEndedEarly struct {
	Meeting         meeting.Meeting
	OriginalEndTime string
	NewEndTime      string
}

// Bus is a synchronous in-process event bus. Emit dispatches to subscribers
// on the calling goroutine; subscribers that rerender wrap themselves with
// Debounced to coalesce bursts.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]func(payload any)
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]func(any))}
}

// Subscribe registers a handler for an event name and returns its
// unsubscribe function.
func (b *Bus) Subscribe(event string, fn func(payload any)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[event] == nil {
		b.subs[event] = make(map[int]func(any))
	}
	id := b.next
	b.next++
	b.subs[event][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[event], id)
	}
}

// Emit dispatches an event synchronously to every subscriber.
func (b *Bus) Emit(event string, payload any) {
	b.mu.RLock()
	handlers := make([]func(any), 0, len(b.subs[event]))
	for _, fn := range b.subs[event] {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(payload)
	}
}

// Debounced wraps a handler so that a burst of deliveries collapses into at
// most one invocation per interval, carrying the most recent payload. The
// first delivery of a burst is delayed by the interval rather than dropped.
func Debounced(interval time.Duration, fn func(payload any)) func(any) {
	if interval <= 0 {
		return fn
	}

	var mu sync.Mutex
	var pending bool
	var last any

	return func(payload any) {
		mu.Lock()
		last = payload
		if pending {
			mu.Unlock()
			return
		}
		pending = true
		mu.Unlock()

		time.AfterFunc(interval, func() {
			mu.Lock()
			payload := last
			pending = false
			mu.Unlock()
			fn(payload)
		})
	}
}
