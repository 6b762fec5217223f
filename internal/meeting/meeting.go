// Package meeting holds the domain model for room bookings: the meeting
// record with its lifecycle state, civil date and wall-clock arithmetic in the
// fixed office timezone, draft validation, and conflict detection.
package meeting

import (
	"encoding/json"
	"fmt"
	"time"
)

// State tags the lifecycle of a meeting. The legacy wire flags isEnded and
// forceEndedByUser are derived from the tag on encode and reconstructed on
// decode.
type State string

const (
	// StateScheduled marks a meeting that has not been terminated; whether it
	// is currently running follows from the clock, not the tag.
	StateScheduled State = "scheduled"
	// StateEndedNaturally marks a meeting that was concluded at its end time.
	StateEndedNaturally State = "ended"
	// StateEndedEarly marks a meeting a user terminated before its end time;
	// the pre-termination end time is preserved in OriginalEndTime.
	StateEndedEarly State = "ended_early"
)

// Meeting is a single scheduled use of a room.
type Meeting struct {
	ID              string
	Room            string
	Date            string // DD/MM/YYYY in the civil timezone
	StartTime       string // HH:MM
	EndTime         string // HH:MM, after StartTime on the same date
	Purpose         string
	Department      string
	Title           string
	Content         string
	State           State
	OriginalEndTime string // set only when State == StateEndedEarly
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Ended reports whether the meeting has been concluded, naturally or by a
// user.
func (m Meeting) Ended() bool {
	return m.State == StateEndedNaturally || m.State == StateEndedEarly
}

// EndedByUser reports whether a user terminated the meeting early.
func (m Meeting) EndedByUser() bool {
	return m.State == StateEndedEarly
}

// StartMinutes returns the start wall-clock in minutes since midnight, or -1
// when unparseable.
func (m Meeting) StartMinutes() int {
	minutes, err := ParseClock(m.StartTime)
	if err != nil {
		return -1
	}
	return minutes
}

// EndMinutes returns the end wall-clock in minutes since midnight, or -1 when
// unparseable.
func (m Meeting) EndMinutes() int {
	minutes, err := ParseClock(m.EndTime)
	if err != nil {
		return -1
	}
	return minutes
}

// DurationMinutes returns the scheduled length in minutes, or 0 when the
// times are unparseable.
func (m Meeting) DurationMinutes() int {
	start, end := m.StartMinutes(), m.EndMinutes()
	if start < 0 || end < 0 || end < start {
		return 0
	}
	return end - start
}

// ActiveAt reports whether the meeting is running at the supplied instant:
// its civil date matches, the wall-clock minute lies inside [start, end], and
// it has not been terminated.
func (m Meeting) ActiveAt(now time.Time) bool {
	if m.Ended() || m.Date != CivilDate(now) {
		return false
	}
	minute := MinutesOfDay(now)
	start, end := m.StartMinutes(), m.EndMinutes()
	if start < 0 || end < 0 {
		return false
	}
	return start <= minute && minute <= end
}

// UpcomingAt reports whether the meeting starts later today relative to the
// supplied instant.
func (m Meeting) UpcomingAt(now time.Time) bool {
	if m.Ended() || m.Date != CivilDate(now) {
		return false
	}
	start := m.StartMinutes()
	return start >= 0 && MinutesOfDay(now) < start
}

// EndEarly rewrites the meeting as terminated at the supplied instant,
// keeping the original end time. Ending an already ended meeting is a no-op.
func (m Meeting) EndEarly(now time.Time) Meeting {
	if m.Ended() {
		return m
	}
	m.OriginalEndTime = m.EndTime
	m.EndTime = ClockOf(now)
	m.State = StateEndedEarly
	m.UpdatedAt = now
	return m
}

func formatDuration(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}

// wireMeeting is the JSON document shape shared by the HTTP API and the
// on-disk meeting list. dayOfWeek and duration are derived on encode and
// ignored on decode.
type wireMeeting struct {
	ID               string `json:"id"`
	Room             string `json:"room"`
	Date             string `json:"date"`
	DayOfWeek        string `json:"dayOfWeek,omitempty"`
	StartTime        string `json:"startTime"`
	EndTime          string `json:"endTime"`
	Duration         string `json:"duration,omitempty"`
	Purpose          string `json:"purpose,omitempty"`
	Department       string `json:"department,omitempty"`
	Title            string `json:"title,omitempty"`
	Content          string `json:"content,omitempty"`
	IsEnded          bool   `json:"isEnded"`
	ForceEndedByUser bool   `json:"forceEndedByUser"`
	OriginalEndTime  string `json:"originalEndTime,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
}

// MarshalJSON encodes the meeting in the legacy wire shape, deriving the
// dayOfWeek and duration labels and the ended flags from the state tag.
func (m Meeting) MarshalJSON() ([]byte, error) {
	wire := wireMeeting{
		ID:               m.ID,
		Room:             m.Room,
		Date:             m.Date,
		DayOfWeek:        DayOfWeek(m.Date),
		StartTime:        m.StartTime,
		EndTime:          m.EndTime,
		Duration:         formatDuration(m.DurationMinutes()),
		Purpose:          m.Purpose,
		Department:       m.Department,
		Title:            m.Title,
		Content:          m.Content,
		IsEnded:          m.Ended(),
		ForceEndedByUser: m.EndedByUser(),
		OriginalEndTime:  m.OriginalEndTime,
	}
	if !m.CreatedAt.IsZero() {
		wire.CreatedAt = m.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !m.UpdatedAt.IsZero() {
		wire.UpdatedAt = m.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the legacy wire shape, reconstructing the state tag
// from the isEnded/forceEndedByUser flags.
func (m *Meeting) UnmarshalJSON(data []byte) error {
	var wire wireMeeting
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	state := StateScheduled
	switch {
	case wire.IsEnded && wire.ForceEndedByUser:
		state = StateEndedEarly
	case wire.IsEnded:
		state = StateEndedNaturally
	}
	*m = Meeting{
		ID:              wire.ID,
		Room:            wire.Room,
		Date:            wire.Date,
		StartTime:       wire.StartTime,
		EndTime:         wire.EndTime,
		Purpose:         wire.Purpose,
		Department:      wire.Department,
		Title:           wire.Title,
		Content:         wire.Content,
		State:           state,
		OriginalEndTime: wire.OriginalEndTime,
		CreatedAt:       parseTimestamp(wire.CreatedAt),
		UpdatedAt:       parseTimestamp(wire.UpdatedAt),
	}
	return nil
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

// CloneList returns a copy of the supplied meeting list.
func CloneList(meetings []Meeting) []Meeting {
	if meetings == nil {
		return nil
	}
	out := make([]Meeting, len(meetings))
	copy(out, meetings)
	return out
}
