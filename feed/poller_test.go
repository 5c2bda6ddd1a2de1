package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/gamecenter/center"
	"github.com/wfunc/gamecenter/seat"
	"github.com/wfunc/gamecenter/timer"
)

// MockSource serves canned snapshots and can block until released.
type MockSource struct {
	mu      sync.Mutex
	calls   map[string]int
	fail    map[string]error
	release chan struct{}
}

func newMockSource() *MockSource {
	return &MockSource{calls: map[string]int{}, fail: map[string]error{}}
}

func (m *MockSource) FetchSeats(ctx context.Context, centerID string) (*seat.Inventory, error) {
	m.mu.Lock()
	m.calls[centerID]++
	err := m.fail[centerID]
	release := m.release
	m.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return seat.NewInventory(centerID, []seat.Seat{{ID: "01", Status: seat.StatusAvailable}}), nil
}

func (m *MockSource) count(centerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[centerID]
}

// MockMetrics counts poller reports.
type MockMetrics struct {
	mu        sync.Mutex
	refreshes int
	errors    int
}

func (m *MockMetrics) ObserveFeedRefresh(string, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
}

func (m *MockMetrics) IncFeedErrors(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

type recordingWatcher struct {
	mu  sync.Mutex
	got []*seat.Inventory
}

func (w *recordingWatcher) ApplySnapshot(inv *seat.Inventory) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.got = append(w.got, inv)
}

func TestPoller_RefreshAll(t *testing.T) {
	src := newMockSource()
	src.fail["center-2"] = errors.New("feed down")
	manager := center.NewCenterManager()
	metrics := &MockMetrics{}
	w := &recordingWatcher{}
	manager.Watch("center-1", "flow-1", w)

	p := NewPoller(src, manager, []string{"center-1", "center-2"}, time.Minute, WithMetrics(metrics))
	err := p.RefreshAll(context.Background())
	if err == nil {
		t.Fatal("Expected the center-2 failure to be reported")
	}

	if _, err := manager.Inventory("center-1"); err != nil {
		t.Errorf("Expected center-1 to be stored, got %v", err)
	}
	if _, err := manager.Inventory("center-2"); !errors.Is(err, center.ErrCenterNotFound) {
		t.Errorf("Expected no snapshot for center-2, got %v", err)
	}
	if len(w.got) != 1 {
		t.Errorf("Expected the watcher to get one snapshot, got %d", len(w.got))
	}
	if metrics.refreshes != 1 || metrics.errors != 1 {
		t.Errorf("Expected 1 refresh and 1 error, got %d and %d", metrics.refreshes, metrics.errors)
	}
}

func TestPoller_SkipsOverlappingRefresh(t *testing.T) {
	src := newMockSource()
	src.release = make(chan struct{})
	p := NewPoller(src, center.NewCenterManager(), []string{"center-1"}, time.Minute)

	done := make(chan struct{})
	go func() {
		_, _ = p.Refresh(context.Background(), "center-1")
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for src.count("center-1") == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ran, err := p.Refresh(context.Background(), "center-1")
	if ran || err != nil {
		t.Errorf("Expected the overlapping refresh to be skipped, got %v, %v", ran, err)
	}
	close(src.release)
	<-done
	if src.count("center-1") != 1 {
		t.Errorf("Expected one fetch, got %d", src.count("center-1"))
	}
}

func TestPoller_StartAndStop(t *testing.T) {
	src := newMockSource()
	manager := center.NewCenterManager()
	tm := timer.NewTimerManagerWithResolution(5 * time.Millisecond)
	defer tm.Stop()

	p := NewPoller(src, manager, []string{"center-1"}, 10*time.Millisecond)
	p.Start(context.Background(), tm)

	deadline := time.Now().Add(2 * time.Second)
	for src.count("center-1") < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if src.count("center-1") < 2 {
		t.Fatalf("Expected repeated refreshes, got %d", src.count("center-1"))
	}

	p.Stop(tm)
	if tm.Len() != 0 {
		t.Errorf("Expected Stop to remove the timers, %d left", tm.Len())
	}
	time.Sleep(20 * time.Millisecond)
	settled := src.count("center-1")
	time.Sleep(40 * time.Millisecond)
	if src.count("center-1") != settled {
		t.Error("Expected no refreshes after Stop")
	}
}

// MockStore is an in-memory SnapshotStore.
type MockStore struct {
	mu    sync.Mutex
	saved map[string]*seat.Inventory
}

func newMockStore() *MockStore {
	return &MockStore{saved: map[string]*seat.Inventory{}}
}

func (m *MockStore) Save(ctx context.Context, inv *seat.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[inv.CenterID()] = inv
	return nil
}

func (m *MockStore) Load(ctx context.Context, centerID string) (*seat.Inventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.saved[centerID]
	if !ok {
		return nil, errors.New("not cached")
	}
	return inv, nil
}

func TestPoller_WritesThroughToStore(t *testing.T) {
	store := newMockStore()
	p := NewPoller(newMockSource(), center.NewCenterManager(), []string{"a"}, time.Hour, WithSnapshotStore(store))

	if _, err := p.Refresh(context.Background(), "a"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, ok := store.saved["a"]; !ok {
		t.Error("Expected snapshot of a to be stored")
	}
}

func TestPoller_WarmFromStore(t *testing.T) {
	store := newMockStore()
	store.saved["a"] = seat.NewInventory("a", []seat.Seat{{ID: "01", Status: seat.StatusBooked}})
	store.saved["b"] = seat.NewInventory("b", []seat.Seat{{ID: "01", Status: seat.StatusAvailable}})

	centers := center.NewCenterManager()
	centers.Update(seat.NewInventory("b", nil))
	p := NewPoller(newMockSource(), centers, []string{"a", "b", "c"}, time.Hour, WithSnapshotStore(store))

	if n := p.Warm(context.Background()); n != 1 {
		t.Errorf("Expected 1 warmed center, got %d", n)
	}
	inv, err := centers.Inventory("a")
	if err != nil || inv.Len() != 1 {
		t.Fatalf("Expected cached snapshot for a, got %v", err)
	}
	if inv, _ := centers.Inventory("b"); inv.Len() != 0 {
		t.Error("Expected live snapshot of b to be kept")
	}
}
