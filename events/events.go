// Package events publishes booking domain events to the message broker.
package events

import (
	"context"
	"time"

	"github.com/wfunc/gamecenter/models"
)

// BookingConfirmedQueue is the queue confirmed bookings are published to.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmed carries enough for downstream consumers to notify the player without
// reading the history store.
type BookingConfirmed struct {
	BookingID      string   `json:"booking_id"`
	PlayerID       string   `json:"player_id"`
	CenterID       string   `json:"center_id"`
	SeatIDs        []string `json:"seats"`
	Date           string   `json:"date"`
	StartTime      string   `json:"start_time"`
	DurationHours  int      `json:"duration_hours"`
	Tier           string   `json:"tier"`
	TotalMinor     int64    `json:"total_minor"`
	CurrencyDigits int32    `json:"currency_digits"`
	ConfirmedAt    string   `json:"confirmed_at"`
}

func NewBookingConfirmed(r *models.BookingRecord) BookingConfirmed {
	return BookingConfirmed{
		BookingID:      r.BookingID,
		PlayerID:       r.PlayerID,
		CenterID:       r.CenterID,
		SeatIDs:        r.SeatIDs,
		Date:           r.Date,
		StartTime:      r.StartTime,
		DurationHours:  r.DurationHours,
		Tier:           r.Tier,
		TotalMinor:     r.TotalMinor,
		CurrencyDigits: r.CurrencyDigits,
		ConfirmedAt:    r.ConfirmedAt.UTC().Format(time.RFC3339),
	}
}

// Publisher sends events. Callers log failures and carry on.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, event BookingConfirmed) error
	Close() error
}
