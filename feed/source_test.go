package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/gamecenter/network"
	"github.com/wfunc/gamecenter/seat"
)

// newFeedServer answers every seat request with whatever reply returns.
func newFeedServer(t *testing.T, reply func(req network.SeatRequest) (uint16, interface{})) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := network.NewWSConnection(ws)
		defer conn.Close()

		p, err := conn.ReadPacket()
		if err != nil || p.MsgID != network.MsgTypeSeatRequest {
			return
		}
		var req network.SeatRequest
		if err := json.Unmarshal(p.Data, &req); err != nil {
			return
		}
		// a heartbeat first, the client must skip it
		_ = conn.Send(network.MsgTypeHeartbeat, nil)
		msgID, body := reply(req)
		if body == nil {
			// hold the connection open
			time.Sleep(500 * time.Millisecond)
			return
		}
		_ = conn.SendJSON(msgID, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSSource_FetchSeats(t *testing.T) {
	srv := newFeedServer(t, func(req network.SeatRequest) (uint16, interface{}) {
		return network.MsgTypeSeatSnapshot, SnapshotPayload{
			CenterID: req.CenterID,
			Seats: []seat.Seat{
				{ID: "01", Number: "01", Status: seat.StatusAvailable},
				{ID: "02", Number: "02", Status: seat.StatusInUse, IsPremium: true},
			},
		}
	})

	src, err := NewWSSource(wsURL(srv), time.Second)
	if err != nil {
		t.Fatalf("NewWSSource failed: %v", err)
	}
	inv, err := src.FetchSeats(context.Background(), "center-1")
	if err != nil {
		t.Fatalf("FetchSeats failed: %v", err)
	}
	if inv.CenterID() != "center-1" || inv.Len() != 2 {
		t.Fatalf("Expected 2 seats for center-1, got %d for %s", inv.Len(), inv.CenterID())
	}
	s, ok := inv.Get("02")
	if !ok || s.Status != seat.StatusInUse || !s.IsPremium {
		t.Errorf("Unexpected seat 02: %+v", s)
	}
}

func TestWSSource_FeedError(t *testing.T) {
	srv := newFeedServer(t, func(req network.SeatRequest) (uint16, interface{}) {
		return network.MsgTypeSeatError, network.ErrorPayload{Code: "unknown_center", Message: "no such center"}
	})

	src, _ := NewWSSource(wsURL(srv), time.Second)
	_, err := src.FetchSeats(context.Background(), "nowhere")
	var feedErr *Error
	if !errors.As(err, &feedErr) || feedErr.Code != "unknown_center" {
		t.Fatalf("Expected feed error unknown_center, got %v", err)
	}
}

func TestWSSource_InvalidSnapshot(t *testing.T) {
	srv := newFeedServer(t, func(req network.SeatRequest) (uint16, interface{}) {
		return network.MsgTypeSeatSnapshot, SnapshotPayload{
			CenterID: req.CenterID,
			Seats:    []seat.Seat{{ID: "01", Status: "reserved"}},
		}
	})

	src, _ := NewWSSource(wsURL(srv), time.Second)
	if _, err := src.FetchSeats(context.Background(), "center-1"); !errors.Is(err, ErrInvalidSnapshot) {
		t.Errorf("Expected ErrInvalidSnapshot, got %v", err)
	}
}

func TestWSSource_Timeout(t *testing.T) {
	srv := newFeedServer(t, func(req network.SeatRequest) (uint16, interface{}) {
		return 0, nil
	})

	src, _ := NewWSSource(wsURL(srv), 50*time.Millisecond)
	started := time.Now()
	if _, err := src.FetchSeats(context.Background(), "center-1"); err == nil {
		t.Fatal("Expected a timeout error")
	}
	if time.Since(started) > 400*time.Millisecond {
		t.Error("FetchSeats should give up at the request timeout")
	}
}

func TestNewWSSource_RejectsHTTP(t *testing.T) {
	if _, err := NewWSSource("http://localhost:9000", time.Second); err == nil {
		t.Error("Expected an error for a non-websocket url")
	}
}
