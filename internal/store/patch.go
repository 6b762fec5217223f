package store

import "github.com/example/roomboard/internal/meeting"

// Patch carries the fields of a partial meeting update. Nil fields leave the
// stored value untouched.
type Patch struct {
	Room            *string
	Date            *string
	StartTime       *string
	EndTime         *string
	Purpose         *string
	Department      *string
	Title           *string
	Content         *string
	State           *meeting.State
	OriginalEndTime *string
}

func (p Patch) applyTo(m meeting.Meeting) meeting.Meeting {
	if p.Room != nil {
		m.Room = *p.Room
	}
	if p.Date != nil {
		m.Date = *p.Date
	}
	if p.StartTime != nil {
		m.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		m.EndTime = *p.EndTime
	}
	if p.Purpose != nil {
		m.Purpose = *p.Purpose
	}
	if p.Department != nil {
		m.Department = *p.Department
	}
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.State != nil {
		m.State = *p.State
	}
	if p.OriginalEndTime != nil {
		m.OriginalEndTime = *p.OriginalEndTime
	}
	return m
}
