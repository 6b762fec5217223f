package meeting

// Conflict details an overlapping booking relation that callers can present
// to users.
type Conflict struct {
	With Meeting
}

// DetectConflicts identifies conflicts for the candidate meeting against
// existing ones. Two meetings conflict iff they share room and date, neither
// has been terminated, and their [start, end) minute intervals overlap.
// Boundary-touching intervals are disjoint.
func DetectConflicts(existing []Meeting, candidate Meeting) []Conflict {
	if candidate.Ended() {
		return nil
	}
	candStart, candEnd := candidate.StartMinutes(), candidate.EndMinutes()
	if candStart < 0 || candEnd < 0 {
		return nil
	}

	var conflicts []Conflict
	for _, other := range existing {
		if other.ID == candidate.ID || other.Ended() {
			continue
		}
		if other.Date != candidate.Date || !SameRoom(other.Room, candidate.Room) {
			continue
		}
		start, end := other.StartMinutes(), other.EndMinutes()
		if start < 0 || end < 0 {
			continue
		}
		if candStart < end && start < candEnd {
			conflicts = append(conflicts, Conflict{With: other})
		}
	}
	return conflicts
}

// FindConflict returns the first conflicting meeting for the candidate, if
// any.
func FindConflict(existing []Meeting, candidate Meeting) (Meeting, bool) {
	conflicts := DetectConflicts(existing, candidate)
	if len(conflicts) == 0 {
		return Meeting{}, false
	}
	return conflicts[0].With, true
}
