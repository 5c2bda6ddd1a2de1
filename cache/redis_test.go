package cache

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wfunc/gamecenter/seat"
)

func TestSnapshotEncoding(t *testing.T) {
	inv := seat.NewInventory("center-1", []seat.Seat{
		{ID: "01", Number: "01", Status: seat.StatusAvailable, HourlyRate: decimal.RequireFromString("24.00")},
		{ID: "02", Number: "02", Status: seat.StatusInUse, IsPremium: true},
	})

	data, err := encode(inv, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := decode("center-1", data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got.Len() != 2 {
		t.Fatalf("Expected 2 seats, got %d", got.Len())
	}
	s, _ := got.Get("02")
	if s.Status != seat.StatusInUse || !s.IsPremium {
		t.Errorf("Unexpected seat %+v", s)
	}
	s, _ = got.Get("01")
	if !s.HourlyRate.Equal(decimal.NewFromInt(24)) {
		t.Errorf("Expected rate 24, got %s", s.HourlyRate)
	}
}

func TestSnapshotDecode_WrongCenter(t *testing.T) {
	data, _ := encode(seat.NewInventory("center-1", nil), time.Now())

	if _, err := decode("center-2", data); err == nil {
		t.Error("Expected an error for a snapshot stored under another center")
	}
	if _, err := decode("center-1", []byte("{")); err == nil {
		t.Error("Expected an error for corrupt data")
	}
}

func TestKey(t *testing.T) {
	if got := key("c1"); got != "gamecenter:seats:c1" {
		t.Errorf("Expected gamecenter:seats:c1, got %s", got)
	}
}
