package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestTimerManager_OneShot(t *testing.T) {
	m := NewTimerManagerWithResolution(5 * time.Millisecond)
	defer m.Stop()

	var calls int32
	m.AddTimer(10*time.Millisecond, 0, func() { atomic.AddInt32(&calls, 1) })

	waitFor(t, func() bool { return atomic.LoadInt32(&calls) == 1 })
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected a single call, got %d", got)
	}
	if m.Len() != 0 {
		t.Errorf("Expected empty queue, got %d", m.Len())
	}
}

func TestTimerManager_RepeatAndRemove(t *testing.T) {
	m := NewTimerManagerWithResolution(5 * time.Millisecond)
	defer m.Stop()

	var calls int32
	id := m.AddTimer(0, 10*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	waitFor(t, func() bool { return atomic.LoadInt32(&calls) >= 3 })
	m.RemoveTimer(id)
	if m.Len() != 0 {
		t.Fatalf("Expected the repeating task to be removed, got %d queued", m.Len())
	}

	time.Sleep(20 * time.Millisecond)
	settled := atomic.LoadInt32(&calls)
	time.Sleep(40 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != settled {
		t.Errorf("Expected no calls after RemoveTimer, got %d more", got-settled)
	}
}

func TestTimerManager_Stop(t *testing.T) {
	m := NewTimerManagerWithResolution(5 * time.Millisecond)

	var calls int32
	m.AddTimer(50*time.Millisecond, 0, func() { atomic.AddInt32(&calls, 1) })
	m.Stop()
	m.Stop()

	time.Sleep(80 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("Expected no calls after Stop, got %d", got)
	}
}
