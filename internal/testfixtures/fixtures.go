// Package testfixtures supplies deterministic meeting records and a
// controllable clock for tests.
package testfixtures

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/roomboard/internal/meeting"
)

var meetingCounter uint64

// referenceTime is Wednesday 15/01/2025 09:00 in the office timezone.
var referenceTime = time.Date(2025, time.January, 15, 9, 0, 0, 0, meeting.Zone())

// ReferenceTime returns the canonical baseline instant used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Clock is a hand-driven time source. Tests hand NowFunc to any component
// that takes an injected clock and step it with Set or Advance; nothing moves
// on its own.
type Clock struct {
	mu sync.Mutex
	at time.Time
}

// NewClock returns a clock pinned to start. The zero value pins it to the
// reference Wednesday morning in the office zone.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = referenceTime
	}
	return &Clock{at: start}
}

// Now returns the instant the clock is pinned to.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

// NowFunc adapts the clock to the func() time.Time injection point used
// across the module. A nil clock falls back to the wall clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set pins the clock to a new instant.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.at = t
	c.mu.Unlock()
}

// Advance steps the clock forward and returns the new instant, so a caller
// can use the result directly as a write timestamp.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.at = c.at.Add(d)
	stepped := c.at
	c.mu.Unlock()
	return stepped
}

// MeetingOption configures the generated meeting fixture.
type MeetingOption func(*meeting.Meeting)

// WithRoom overrides the fixture's room.
func WithRoom(room string) MeetingOption {
	return func(m *meeting.Meeting) { m.Room = room }
}

// WithDate overrides the fixture's civil date.
func WithDate(date string) MeetingOption {
	return func(m *meeting.Meeting) { m.Date = date }
}

// WithTimes overrides the fixture's start and end wall-clock times.
func WithTimes(start, end string) MeetingOption {
	return func(m *meeting.Meeting) {
		m.StartTime = start
		m.EndTime = end
	}
}

// WithState overrides the fixture's lifecycle state.
func WithState(state meeting.State) MeetingOption {
	return func(m *meeting.Meeting) { m.State = state }
}

// NewMeeting returns a deterministic meeting fixture with optional
// overrides. Successive fixtures occupy successive non-overlapping slots on
// the reference date.
func NewMeeting(opts ...MeetingOption) meeting.Meeting {
	idx := atomic.AddUint64(&meetingCounter, 1)
	start := int(9+idx) * 60 % (24 * 60)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)

	fixture := meeting.Meeting{
		ID:         fmt.Sprintf("meeting-%03d", idx),
		Room:       "Room A",
		Date:       meeting.FormatDate(referenceTime),
		StartTime:  meeting.FormatClock(start),
		EndTime:    meeting.FormatClock(start + 60),
		Purpose:    "họp",
		Department: fmt.Sprintf("Dept %03d", idx),
		Title:      fmt.Sprintf("Meeting %03d", idx),
		Content:    fmt.Sprintf("Agenda %03d", idx),
		State:      meeting.StateScheduled,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}
