// Package bookingapi talks to the booking service over net/rpc.
package bookingapi

import (
	"time"

	"github.com/wfunc/gamecenter/booking"
)

// ServiceName is the rpc receiver name of the booking service.
const ServiceName = "BookingService"

// SubmitArgs must follow the net/rpc signature: exported fields, gob encodable.
type SubmitArgs struct {
	Request booking.Request
}

// SubmitReply carries either a confirmation or a rejection code.
type SubmitReply struct {
	BookingID    string
	Status       string
	ConfirmedAt  time.Time
	RejectCode   string
	RejectReason string
}

// Handler is implemented by a booking service exposed through Server.
type Handler interface {
	Submit(args *SubmitArgs, reply *SubmitReply) error
}

func (r *SubmitReply) result(req booking.Request) (booking.Confirmation, error) {
	if r.RejectCode != "" {
		return booking.Confirmation{}, &booking.RejectionError{
			Code:   booking.RejectionCode(r.RejectCode),
			Reason: r.RejectReason,
		}
	}
	status := r.Status
	if status == "" {
		status = booking.OutcomeConfirmed
	}
	return booking.Confirmation{
		BookingID:   r.BookingID,
		Status:      status,
		ConfirmedAt: r.ConfirmedAt,
		Request:     req,
	}, nil
}
