package seat

import (
	"testing"

	"github.com/shopspring/decimal"
)

type mockSelection map[string]bool

func (m mockSelection) Contains(id string) bool { return m[id] }

func sampleSeats() []Seat {
	rate := decimal.NewFromInt(24)
	return []Seat{
		{ID: "01", Status: StatusAvailable, HourlyRate: rate},
		{ID: "02", Status: StatusBooked, HourlyRate: rate},
		{ID: "03", Status: StatusInUse, HourlyRate: rate},
		{ID: "04", Status: StatusMaintenance, HourlyRate: rate},
		{ID: "05", Status: StatusAvailable, HourlyRate: rate, IsPremium: true},
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusAvailable, StatusBooked, StatusInUse, StatusMaintenance} {
		if !s.Valid() {
			t.Errorf("Expected %q to be valid", s)
		}
	}
	if Status("selected").Valid() || Status("").Valid() {
		t.Error("Expected unknown statuses to be invalid")
	}
}

func TestDeriveDisplayStatus(t *testing.T) {
	s := Seat{ID: "01", Status: StatusAvailable}
	if got := DeriveDisplayStatus(s, nil); got != DisplayAvailable {
		t.Errorf("Expected available, got %s", got)
	}
	if got := DeriveDisplayStatus(s, mockSelection{"01": true}); got != DisplaySelected {
		t.Errorf("Expected selected, got %s", got)
	}
	booked := Seat{ID: "02", Status: StatusBooked}
	if got := DeriveDisplayStatus(booked, mockSelection{"01": true}); got != DisplayBooked {
		t.Errorf("Expected booked, got %s", got)
	}
}

func TestIsSelectable(t *testing.T) {
	booked := Seat{ID: "02", Status: StatusBooked}
	if IsSelectable(booked, nil) {
		t.Error("Expected a booked seat not to be selectable")
	}
	// 已选中的座位可以再次点击取消
	if !IsSelectable(booked, mockSelection{"02": true}) {
		t.Error("Expected a selected seat to stay clickable")
	}
	if !IsSelectable(Seat{ID: "01", Status: StatusAvailable}, nil) {
		t.Error("Expected an available seat to be selectable")
	}
}

func TestInventory_OrderAndDuplicates(t *testing.T) {
	seats := append(sampleSeats(), Seat{ID: "01", Status: StatusBooked})
	inv := NewInventory("center-1", seats)

	if inv.Len() != 5 {
		t.Fatalf("Expected 5 seats, got %d", inv.Len())
	}
	if inv.Seats()[0].ID != "01" {
		t.Errorf("Expected first seat 01, got %s", inv.Seats()[0].ID)
	}
	s, ok := inv.Get("01")
	if !ok || s.Status != StatusBooked {
		t.Errorf("Expected the last reported status to win, got %+v", s)
	}
	if _, ok := inv.Get("99"); ok {
		t.Error("Expected unknown seat to be missing")
	}
}

func TestInventory_SeatsIsACopy(t *testing.T) {
	inv := NewInventory("center-1", sampleSeats())
	seats := inv.Seats()
	seats[0].Status = StatusBooked

	if s, _ := inv.Get("01"); s.Status != StatusAvailable {
		t.Error("Expected the snapshot to be unaffected by caller edits")
	}
}

func TestInventory_ViewAndSummary(t *testing.T) {
	inv := NewInventory("center-1", sampleSeats())
	sel := mockSelection{"05": true}

	views := inv.View(sel)
	if len(views) != 5 || views[4].Display != DisplaySelected {
		t.Errorf("Unexpected views %+v", views)
	}

	sum := inv.Summary(sel)
	want := Summary{Available: 1, Booked: 1, InUse: 1, Maintenance: 1, Selected: 1}
	if sum != want {
		t.Errorf("Expected %+v, got %+v", want, sum)
	}
}
