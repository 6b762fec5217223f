package dashboard

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/example/roomboard/internal/auth"
	"github.com/example/roomboard/internal/meeting"
)

var (
	// ErrNotInDeleteMode is returned when selection operations run outside
	// delete mode.
	ErrNotInDeleteMode = errors.New("dashboard: not in delete mode")
	// ErrNothingSelected is returned when a confirm finds no selection.
	ErrNothingSelected = errors.New("dashboard: no meetings selected")
)

// DeleteFlow runs the multi-delete workflow: a fresh gate challenge on every
// entry, visual selection toggling, and an aggregated batch delete.
type DeleteFlow struct {
	gate    *auth.Gate
	manager *Manager

	mu       sync.Mutex
	active   bool
	selected map[string]meeting.Meeting
}

// NewDeleteFlow wires the delete workflow.
func NewDeleteFlow(gate *auth.Gate, manager *Manager) *DeleteFlow {
	return &DeleteFlow{gate: gate, manager: manager}
}

// Enter verifies the shared secret and switches delete mode on. The
// challenge is one-shot: a standing booking session never satisfies it.
func (f *DeleteFlow) Enter(secret string) error {
	if err := f.gate.AuthorizeDelete(secret); err != nil {
		return err
	}
	f.mu.Lock()
	f.active = true
	f.selected = make(map[string]meeting.Meeting)
	f.mu.Unlock()
	return nil
}

// Active reports whether delete mode is on.
func (f *DeleteFlow) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Toggle flips the selection state of one meeting block and reports whether
// it is now selected.
func (f *DeleteFlow) Toggle(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		return false, ErrNotInDeleteMode
	}

	if _, ok := f.selected[id]; ok {
		delete(f.selected, id)
		return false, nil
	}
	for _, m := range f.manager.List() {
		if m.ID == id {
			f.selected[id] = m
			return true, nil
		}
	}
	// The block vanished from the mirror; nothing to select.
	return false, nil
}

// Selected returns the current selection for the confirmation listing.
func (f *DeleteFlow) Selected() []meeting.Meeting {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]meeting.Meeting, 0, len(f.selected))
	for _, m := range f.selected {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Cancel exits delete mode and clears the selection.
func (f *DeleteFlow) Cancel() {
	f.mu.Lock()
	f.active = false
	f.selected = nil
	f.mu.Unlock()
}

// Confirm deletes the selection, aggregates the per-meeting outcomes into a
// single result, exits delete mode, and reloads the mirror from the server.
func (f *DeleteFlow) Confirm(ctx context.Context) (BatchResult, error) {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return BatchResult{}, ErrNotInDeleteMode
	}
	ids := make([]string, 0, len(f.selected))
	for id := range f.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	f.active = false
	f.selected = nil
	f.mu.Unlock()

	if len(ids) == 0 {
		return BatchResult{}, ErrNothingSelected
	}

	result := f.manager.RemoveMany(ctx, ids)
	// The view reloads from the server once the batch settles.
	_ = f.manager.Sync(ctx)
	return result, nil
}
