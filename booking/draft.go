package booking

import (
	"fmt"
	"time"

	"github.com/wfunc/gamecenter/pricing"
)

const (
	DateLayout      = "2006-01-02"
	StartTimeLayout = "15:04"
)

// Draft holds the booking inputs other than seats.
type Draft struct {
	Date          time.Time    `json:"date"`
	StartTime     string       `json:"start_time"`
	DurationHours int          `json:"duration_hours"`
	Tier          pricing.Tier `json:"tier"`
}

// StartsAt combines Date and StartTime in Date's location.
func (d Draft) StartsAt() (time.Time, error) {
	if d.Date.IsZero() || d.StartTime == "" {
		return time.Time{}, fmt.Errorf("%w: date and start time required", ErrInvalidBooking)
	}
	clock, err := time.Parse(StartTimeLayout, d.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidStartTime, d.StartTime)
	}
	y, m, day := d.Date.Date()
	return time.Date(y, m, day, clock.Hour(), clock.Minute(), 0, 0, d.Date.Location()), nil
}

// EndTime is the wall clock time the session ends, e.g. "16:00" for 14:00 plus two hours.
// It wraps past midnight.
func (d Draft) EndTime() string {
	clock, err := time.Parse(StartTimeLayout, d.StartTime)
	if err != nil {
		return ""
	}
	return clock.Add(time.Duration(d.DurationHours) * time.Hour).Format(StartTimeLayout)
}

// CancellationPolicy decides whether a confirmed booking can still be cancelled for free.
type CancellationPolicy struct {
	FreeWindow time.Duration
}

// FreeCancellation reports whether now is at least FreeWindow before startsAt.
func (p CancellationPolicy) FreeCancellation(startsAt, now time.Time) bool {
	return startsAt.Sub(now) >= p.FreeWindow
}
