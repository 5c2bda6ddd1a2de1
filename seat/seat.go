// Package seat holds the authoritative seat snapshot of a gaming center and overlays the
// player's local selection on it for display and validation.
package seat

import (
	"github.com/shopspring/decimal"
)

// Status is the authoritative seat status reported by the seat-status feed.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusBooked      Status = "booked"
	StatusInUse       Status = "in-use"
	StatusMaintenance Status = "maintenance"
)

// Valid reports whether s is one of the feed statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusBooked, StatusInUse, StatusMaintenance:
		return true
	}
	return false
}

// DisplayStatus is what the grid renders: the feed status, or selected.
type DisplayStatus string

const (
	DisplayAvailable   DisplayStatus = DisplayStatus(StatusAvailable)
	DisplayBooked      DisplayStatus = DisplayStatus(StatusBooked)
	DisplayInUse       DisplayStatus = DisplayStatus(StatusInUse)
	DisplayMaintenance DisplayStatus = DisplayStatus(StatusMaintenance)
	DisplaySelected    DisplayStatus = "selected"
)

// Seat 是一个可预订的游戏机位
type Seat struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	Status     Status          `json:"status"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	IsPremium  bool            `json:"is_premium"`
	Specs      string          `json:"specs,omitempty"`
}

// Selection is the read side of a selection set.
type Selection interface {
	Contains(seatID string) bool
}

// DeriveDisplayStatus returns selected when the seat is in sel, otherwise its own status.
// sel may be nil.
func DeriveDisplayStatus(s Seat, sel Selection) DisplayStatus {
	if sel != nil && sel.Contains(s.ID) {
		return DisplaySelected
	}
	return DisplayStatus(s.Status)
}

// IsSelectable reports whether a click on s may reach the selection set: the seat is
// available, or it is already selected and the click deselects it.
func IsSelectable(s Seat, sel Selection) bool {
	if s.Status == StatusAvailable {
		return true
	}
	return sel != nil && sel.Contains(s.ID)
}
