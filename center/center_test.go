package center

import (
	"errors"
	"sync"
	"testing"

	"github.com/wfunc/gamecenter/seat"
)

// MockWatcher records the snapshots it receives.
type MockWatcher struct {
	mu        sync.Mutex
	snapshots []*seat.Inventory
}

func (m *MockWatcher) ApplySnapshot(inv *seat.Inventory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, inv)
}

func (m *MockWatcher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

func newInventory(centerID string, statuses ...seat.Status) *seat.Inventory {
	seats := make([]seat.Seat, 0, len(statuses))
	for i, st := range statuses {
		id := string(rune('A' + i))
		seats = append(seats, seat.Seat{ID: id, Number: id, Status: st})
	}
	return seat.NewInventory(centerID, seats)
}

func TestCenterManager_GetOrCreate(t *testing.T) {
	manager := NewCenterManager()

	c := manager.GetOrCreate("center-1")
	if c == nil {
		t.Fatal("GetOrCreate should not return nil")
	}
	if again := manager.GetOrCreate("center-1"); again != c {
		t.Error("GetOrCreate should return the same center instance")
	}

	retrieved, exists := manager.GetCenter("center-1")
	if !exists || retrieved != c {
		t.Fatal("GetCenter should find the created center")
	}

	manager.RemoveCenter("center-1")
	if _, exists := manager.GetCenter("center-1"); exists {
		t.Error("Center was not removed")
	}
}

func TestCenterManager_UpdateNotifiesWatchers(t *testing.T) {
	manager := NewCenterManager()
	w1 := &MockWatcher{}
	w2 := &MockWatcher{}
	other := &MockWatcher{}

	manager.Watch("center-1", "flow-1", w1)
	manager.Watch("center-1", "flow-2", w2)
	manager.Watch("center-2", "flow-3", other)

	inv := newInventory("center-1", seat.StatusAvailable, seat.StatusBooked)
	if n := manager.Update(inv); n != 2 {
		t.Errorf("Expected 2 watchers notified, got %d", n)
	}
	if w1.count() != 1 || w2.count() != 1 {
		t.Error("Both center-1 watchers should receive the snapshot")
	}
	if other.count() != 0 {
		t.Error("A watcher of another center must not be notified")
	}

	got, err := manager.Inventory("center-1")
	if err != nil || got != inv {
		t.Errorf("Expected the stored snapshot, got %v, %v", got, err)
	}

	manager.Unwatch("center-1", "flow-1")
	manager.Update(newInventory("center-1", seat.StatusInUse))
	if w1.count() != 1 {
		t.Error("An unwatched flow must not be notified")
	}
	if w2.count() != 2 {
		t.Errorf("Expected second snapshot for flow-2, got %d", w2.count())
	}
}

func TestCenter_AddWatcherTwice(t *testing.T) {
	c := NewCenter("center-1")
	w := &MockWatcher{}

	if !c.AddWatcher("flow-1", w) {
		t.Fatal("Failed to add the first watcher")
	}
	if c.AddWatcher("flow-1", w) {
		t.Error("Should not add the same watcher id twice")
	}
	if c.WatcherCount() != 1 {
		t.Errorf("Expected 1 watcher, got %d", c.WatcherCount())
	}
}

func TestCenterManager_InventoryMissing(t *testing.T) {
	manager := NewCenterManager()
	if _, err := manager.Inventory("nowhere"); !errors.Is(err, ErrCenterNotFound) {
		t.Errorf("Expected ErrCenterNotFound, got %v", err)
	}

	// watched but never fed
	manager.Watch("center-1", "flow-1", &MockWatcher{})
	if _, err := manager.Inventory("center-1"); !errors.Is(err, ErrCenterNotFound) {
		t.Errorf("Expected ErrCenterNotFound before the first snapshot, got %v", err)
	}

	manager.Update(newInventory("center-2"))
	ids := manager.Centers()
	if len(ids) != 2 || ids[0] != "center-1" || ids[1] != "center-2" {
		t.Errorf("Expected sorted centers [center-1 center-2], got %v", ids)
	}
}
