// Package feed fetches authoritative seat snapshots from the seat-status service and keeps the
// center manager fresh.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/gamecenter/network"
	"github.com/wfunc/gamecenter/seat"
)

var (
	ErrInvalidSnapshot   = errors.New("invalid seat snapshot")
	ErrUnexpectedMessage = errors.New("unexpected feed message")
)

// Source returns one center's current seats.
type Source interface {
	FetchSeats(ctx context.Context, centerID string) (*seat.Inventory, error)
}

// Error is a failure reported by the feed itself.
type Error struct {
	CenterID string
	Code     string
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("seat feed error for %s: %s: %s", e.CenterID, e.Code, e.Message)
}

// SnapshotPayload is the body of network.MsgTypeSeatSnapshot.
type SnapshotPayload struct {
	CenterID string      `json:"center_id"`
	Seats    []seat.Seat `json:"seats"`
}

// Validate rejects snapshots for another center and seats without an id or a known status.
func (p SnapshotPayload) Validate(centerID string) error {
	if p.CenterID != centerID {
		return fmt.Errorf("%w: asked for %s, got %s", ErrInvalidSnapshot, centerID, p.CenterID)
	}
	for _, s := range p.Seats {
		if s.ID == "" {
			return fmt.Errorf("%w: seat without id", ErrInvalidSnapshot)
		}
		if !s.Status.Valid() {
			return fmt.Errorf("%w: seat %s has status %q", ErrInvalidSnapshot, s.ID, s.Status)
		}
	}
	return nil
}

// WSSource asks the feed over a websocket, one short-lived connection per fetch.
type WSSource struct {
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer
}

func NewWSSource(rawURL string, timeout time.Duration) (*WSSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("feed url must be ws:// or wss://, got %q", rawURL)
	}
	return &WSSource{
		url:     rawURL,
		timeout: timeout,
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
	}, nil
}

func (s *WSSource) FetchSeats(ctx context.Context, centerID string) (*seat.Inventory, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ws, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial seat feed: %w", err)
	}
	conn := network.NewWSConnection(ws)
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}
	// close the socket if ctx is cancelled mid-read
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.SendJSON(network.MsgTypeSeatRequest, network.SeatRequest{CenterID: centerID}); err != nil {
		return nil, fmt.Errorf("send seat request: %w", err)
	}

	for {
		p, err := conn.ReadPacket()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read seat feed: %w", err)
		}

		switch p.MsgID {
		case network.MsgTypeHeartbeat:
			continue
		case network.MsgTypeSeatError:
			var body network.ErrorPayload
			if err := p.Unmarshal(&body); err != nil {
				return nil, err
			}
			return nil, &Error{CenterID: centerID, Code: body.Code, Message: body.Message}
		case network.MsgTypeSeatSnapshot:
			var body SnapshotPayload
			if err := p.Unmarshal(&body); err != nil {
				return nil, err
			}
			if err := body.Validate(centerID); err != nil {
				return nil, err
			}
			return seat.NewInventory(centerID, body.Seats), nil
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnexpectedMessage, p.MsgID)
		}
	}
}
