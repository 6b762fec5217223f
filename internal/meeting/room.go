package meeting

import (
	"sort"
	"strings"
)

// RoomID is the canonical identifier for a room. User-authored room strings
// are folded into a RoomID at the edges; internal comparisons use the
// canonical form only.
type RoomID string

// CanonicalRoom folds a user-authored room name into its canonical
// identifier.
func CanonicalRoom(name string) RoomID {
	return RoomID(strings.ToLower(strings.TrimSpace(name)))
}

// SameRoom reports whether two user-authored room names denote the same room
// under canonical comparison.
func SameRoom(a, b string) bool {
	return CanonicalRoom(a) == CanonicalRoom(b)
}

// RoomMatches applies the tolerant edge rule for user-authored names:
// case-insensitive with substring fallback in either direction, so "Room A"
// matches "room a" and "A" matches "Room A".
func RoomMatches(a, b string) bool {
	ca, cb := string(CanonicalRoom(a)), string(CanonicalRoom(b))
	if ca == "" || cb == "" {
		return ca == cb
	}
	return ca == cb || strings.Contains(ca, cb) || strings.Contains(cb, ca)
}

// DistinctRooms returns the distinct room names appearing in the list, in
// stable sorted order. When the list names no rooms the fallback set is
// returned instead.
func DistinctRooms(meetings []Meeting, fallback []string) []string {
	seen := make(map[RoomID]string, len(meetings))
	for _, m := range meetings {
		id := CanonicalRoom(m.Room)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = strings.TrimSpace(m.Room)
		}
	}
	if len(seen) == 0 {
		return append([]string(nil), fallback...)
	}
	rooms := make([]string, 0, len(seen))
	for _, name := range seen {
		rooms = append(rooms, name)
	}
	sort.Strings(rooms)
	return rooms
}
