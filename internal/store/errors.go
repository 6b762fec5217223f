package store

import (
	"errors"
	"fmt"

	"github.com/example/roomboard/internal/meeting"
)

var (
	// ErrNotFound is returned when the requested meeting does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrVersionMismatch is returned when a conditional batch replace carries
	// a stale list version.
	ErrVersionMismatch = errors.New("store: list version mismatch")
)

// ConflictError is returned by create and update when the server-side overlap
// check is enabled and the candidate collides with a stored meeting.
type ConflictError struct {
	With meeting.Meeting
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: conflicts with %q (%s %s-%s)", e.With.Title, e.With.Date, e.With.StartTime, e.With.EndTime)
}
