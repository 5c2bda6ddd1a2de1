// models/models.go
package models

import (
	"time"
)

// Booking statuses as stored in history.
const (
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// BookingRecord 已确认的预订记录, amounts in the currency's minor unit
type BookingRecord struct {
	BookingID       string    `json:"booking_id"`
	RequestID       string    `json:"request_id"`
	PlayerID        string    `json:"player_id"`
	CenterID        string    `json:"center_id"`
	SeatIDs         []string  `json:"seat_ids"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	DurationHours   int       `json:"duration_hours"`
	Tier            string    `json:"tier"`
	SubtotalMinor   int64     `json:"subtotal_minor"`
	ServiceFeeMinor int64     `json:"service_fee_minor"`
	TaxMinor        int64     `json:"tax_minor"`
	TotalMinor      int64     `json:"total_minor"`
	CurrencyDigits  int32     `json:"currency_digits"`
	Status          string    `json:"status"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
}

// HistoryFilter narrows a history listing. Zero values match everything.
type HistoryFilter struct {
	Status   string    `form:"status" json:"status,omitempty" binding:"omitempty,oneof=confirmed cancelled completed"`
	CenterID string    `form:"center_id" json:"center_id,omitempty"`
	From     time.Time `form:"from" time_format:"2006-01-02" json:"from,omitempty"`
	To       time.Time `form:"to" time_format:"2006-01-02" json:"to,omitempty"`
	Limit    int       `form:"limit" json:"limit,omitempty" binding:"omitempty,min=1,max=500"`
}

// BookingSummary 预订统计信息
type BookingSummary struct {
	TotalBookings   int            `json:"total_bookings"`
	ByStatus        map[string]int `json:"by_status"`
	TotalSpentMinor int64          `json:"total_spent_minor"`
	TotalHours      int            `json:"total_hours"`
}

// Summarize counts records by status and adds up spending and hours. Cancelled bookings
// are counted but not spent.
func Summarize(records []BookingRecord) BookingSummary {
	sum := BookingSummary{ByStatus: make(map[string]int)}
	for _, r := range records {
		sum.TotalBookings++
		sum.ByStatus[r.Status]++
		if r.Status == BookingCancelled {
			continue
		}
		sum.TotalSpentMinor += r.TotalMinor
		sum.TotalHours += r.DurationHours * len(r.SeatIDs)
	}
	return sum
}
