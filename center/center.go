// Package center keeps the latest seat snapshot of every gaming center and pushes new
// snapshots to the booking flows watching that center.
package center

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/gamecenter/seat"
)

var ErrCenterNotFound = errors.New("center not found")

// Watcher receives every new snapshot of the center it watches. *booking.Flow implements it.
type Watcher interface {
	ApplySnapshot(inv *seat.Inventory)
}

// Center 是一个游戏中心
type Center struct {
	ID        string
	inventory *seat.Inventory
	updatedAt time.Time
	watchers  map[string]Watcher // flowID -> watcher
	mutex     sync.RWMutex
}

func NewCenter(id string) *Center {
	return &Center{
		ID:       id,
		watchers: make(map[string]Watcher),
	}
}

// Inventory returns the latest snapshot, nil before the first update.
func (c *Center) Inventory() *seat.Inventory {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.inventory
}

func (c *Center) UpdatedAt() time.Time {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.updatedAt
}

// AddWatcher registers w under id. It returns false if id is already watching.
func (c *Center) AddWatcher(id string, w Watcher) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.watchers[id]; exists {
		return false
	}
	c.watchers[id] = w
	return true
}

func (c *Center) RemoveWatcher(id string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.watchers, id)
}

func (c *Center) WatcherCount() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.watchers)
}

// Update stores inv and pushes it to every watcher, returning how many were notified.
// Watchers are called outside the lock.
func (c *Center) Update(inv *seat.Inventory, at time.Time) int {
	c.mutex.Lock()
	c.inventory = inv
	c.updatedAt = at
	watchers := make([]Watcher, 0, len(c.watchers))
	for _, w := range c.watchers {
		watchers = append(watchers, w)
	}
	c.mutex.Unlock()

	for _, w := range watchers {
		w.ApplySnapshot(inv)
	}
	return len(watchers)
}

// --- 中心管理器 ---

// Manager 管理所有游戏中心
type Manager struct {
	centers map[string]*Center
	mutex   sync.RWMutex
	now     func() time.Time
}

func NewCenterManager() *Manager {
	return &Manager{
		centers: make(map[string]*Center),
		now:     time.Now,
	}
}

// GetOrCreate 获取中心, 不存在则创建
func (m *Manager) GetOrCreate(id string) *Center {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	c, exists := m.centers[id]
	if !exists {
		c = NewCenter(id)
		m.centers[id] = c
	}
	return c
}

func (m *Manager) GetCenter(id string) (*Center, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	c, exists := m.centers[id]
	return c, exists
}

// RemoveCenter drops a center and its watchers.
func (m *Manager) RemoveCenter(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.centers, id)
}

// Update installs a fresh snapshot for inv's center and fans it out.
func (m *Manager) Update(inv *seat.Inventory) int {
	return m.GetOrCreate(inv.CenterID()).Update(inv, m.now())
}

// Inventory returns the latest snapshot of centerID.
func (m *Manager) Inventory(centerID string) (*seat.Inventory, error) {
	c, exists := m.GetCenter(centerID)
	if !exists {
		return nil, ErrCenterNotFound
	}
	inv := c.Inventory()
	if inv == nil {
		return nil, ErrCenterNotFound
	}
	return inv, nil
}

// Watch subscribes w to centerID, creating the center if needed.
func (m *Manager) Watch(centerID, watcherID string, w Watcher) bool {
	return m.GetOrCreate(centerID).AddWatcher(watcherID, w)
}

func (m *Manager) Unwatch(centerID, watcherID string) {
	if c, exists := m.GetCenter(centerID); exists {
		c.RemoveWatcher(watcherID)
	}
}

// Centers returns the known center ids, sorted.
func (m *Manager) Centers() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ids := make([]string, 0, len(m.centers))
	for id := range m.centers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
