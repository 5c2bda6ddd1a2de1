// Package selection tracks the seats a player has picked but not yet booked.
package selection

import (
	"github.com/wfunc/gamecenter/seat"
)

// Set is an ordered set of seat ids. It is not safe for concurrent use; the booking flow
// that owns it serializes access.
type Set struct {
	ids   []string
	index map[string]struct{}
}

func New() *Set {
	return &Set{index: make(map[string]struct{})}
}

// Contains implements seat.Selection.
func (s *Set) Contains(seatID string) bool {
	_, ok := s.index[seatID]
	return ok
}

func (s *Set) Len() int {
	return len(s.ids)
}

// IDs returns the selected ids in insertion order.
func (s *Set) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Add appends seatID when s is selectable, not already present and the set is below maxSeats.
// Any other case leaves the set unchanged and returns false.
func (s *Set) Add(seatID string, st seat.Seat, maxSeats int) bool {
	if seatID == "" || st.ID != seatID {
		return false
	}
	if s.Contains(seatID) {
		return false
	}
	if !seat.IsSelectable(st, s) {
		return false
	}
	if len(s.ids) >= maxSeats {
		return false
	}
	s.ids = append(s.ids, seatID)
	s.index[seatID] = struct{}{}
	return true
}

// Remove drops seatID and reports whether it was present.
func (s *Set) Remove(seatID string) bool {
	if !s.Contains(seatID) {
		return false
	}
	delete(s.index, seatID)
	for i, id := range s.ids {
		if id == seatID {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
	return true
}

func (s *Set) Clear() {
	s.ids = nil
	s.index = make(map[string]struct{})
}

// Reconcile removes every id whose seat is gone from inv or is no longer available,
// returning the removed ids in selection order.
func (s *Set) Reconcile(inv *seat.Inventory) []string {
	var removed []string
	kept := s.ids[:0]
	for _, id := range s.ids {
		st, ok := inv.Get(id)
		if ok && st.Status == seat.StatusAvailable {
			kept = append(kept, id)
			continue
		}
		delete(s.index, id)
		removed = append(removed, id)
	}
	s.ids = kept
	return removed
}
