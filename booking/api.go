package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wfunc/gamecenter/pricing"
)

var (
	ErrSubmissionInProgress = errors.New("booking submission in progress")
	ErrInvalidBooking       = errors.New("booking is not ready to submit")
	ErrInvalidStartTime     = errors.New("invalid start time")
	ErrStaleResponse        = errors.New("booking response arrived after the flow moved on")
	ErrAlreadyConfirmed     = errors.New("booking already confirmed")
)

// Request is what the booking API receives.
type Request struct {
	RequestID     string        `json:"request_id"`
	PlayerID      string        `json:"player_id"`
	CenterID      string        `json:"center_id"`
	SeatIDs       []string      `json:"seat_ids"`
	Date          string        `json:"date"`
	StartTime     string        `json:"start_time"`
	DurationHours int           `json:"duration_hours"`
	Tier          pricing.Tier  `json:"rate_tier"`
	Quote         pricing.Quote `json:"quote"`
}

// Confirmation is a booking the API accepted.
type Confirmation struct {
	BookingID   string    `json:"booking_id"`
	Status      string    `json:"status"`
	ConfirmedAt time.Time `json:"confirmed_at"`
	Request     Request   `json:"request"`
}

// API submits a booking once. Implementations do not retry.
type API interface {
	Submit(ctx context.Context, req Request) (Confirmation, error)
}

type RejectionCode string

const (
	CodeSeatUnavailable   RejectionCode = "seat_unavailable"
	CodeInsufficientFunds RejectionCode = "insufficient_funds"
	CodeRejected          RejectionCode = "rejected"
)

// RejectionError is a terminal answer from the booking API or a local gate such as the wallet.
type RejectionError struct {
	Code   RejectionCode
	Reason string
}

func (e *RejectionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("booking rejected: %s", e.Code)
	}
	return fmt.Sprintf("booking rejected: %s: %s", e.Code, e.Reason)
}

// AsRejection unwraps a *RejectionError from err.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// StaleSelectionError lists the selected seats a newer snapshot no longer shows as available.
// They have already been removed from the selection.
type StaleSelectionError struct {
	SeatIDs []string
}

func (e *StaleSelectionError) Error() string {
	return fmt.Sprintf("seats no longer available: %s", strings.Join(e.SeatIDs, ", "))
}
