package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/roomboard/internal/auth"
	"github.com/example/roomboard/internal/meeting"
)

// ErrGateClosed is returned when a booking is attempted without a valid gate
// session.
var ErrGateClosed = errors.New("dashboard: booking gate not unlocked")

// BookingFlow runs the create workflow: the gate challenge, draft
// validation, the conflict check, and the create through the Data Manager.
type BookingFlow struct {
	gate    *auth.Gate
	manager *Manager

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewBookingFlow wires the booking workflow.
func NewBookingFlow(gate *auth.Gate, manager *Manager) *BookingFlow {
	return &BookingFlow{gate: gate, manager: manager}
}

// Unlock verifies the shared secret and opens a booking session.
func (f *BookingFlow) Unlock(secret string) error {
	token, expiresAt, err := f.gate.StartBookingSession(secret)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.token = token
	f.expiresAt = expiresAt
	f.mu.Unlock()
	return nil
}

// Unlocked reports whether a booking session is currently valid.
func (f *BookingFlow) Unlocked() bool {
	f.mu.Lock()
	token := f.token
	f.mu.Unlock()
	return token != "" && f.gate.CheckBookingSession(token) == nil
}

// ExpiresAt returns the end of the current booking session, zero when none.
func (f *BookingFlow) ExpiresAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expiresAt
}

// Submit creates the drafted meeting. The form layer reports validation and
// conflict errors verbatim: a *meeting.ValidationError names the malformed
// fields, a *ConflictError names the colliding meeting. No server call is
// issued for either.
func (f *BookingFlow) Submit(ctx context.Context, draft meeting.Meeting) (meeting.Meeting, error) {
	if !f.Unlocked() {
		f.mu.Lock()
		f.token = ""
		f.expiresAt = time.Time{}
		f.mu.Unlock()
		return meeting.Meeting{}, ErrGateClosed
	}
	return f.manager.Create(ctx, draft)
}
