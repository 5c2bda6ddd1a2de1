// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// DefaultResolution is how often due tasks are checked.
const DefaultResolution = 100 * time.Millisecond

// TimerManager runs delayed and repeating callbacks, each on its own goroutine.
type TimerManager struct {
	queue    TimerQueue
	mutex    sync.Mutex
	nextId   int64
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewTimerManager() *TimerManager {
	return NewTimerManagerWithResolution(DefaultResolution)
}

func NewTimerManagerWithResolution(resolution time.Duration) *TimerManager {
	manager := &TimerManager{
		queue:  make(TimerQueue, 0),
		nextId: 1,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	heap.Init(&manager.queue)
	go manager.process(resolution)
	return manager
}

// AddTimer schedules callback after delay, then every interval when interval > 0.
func (m *TimerManager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &TimerTask{
		Id:       m.nextId,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextId++

	heap.Push(&m.queue, task)
	return task.Id
}

func (m *TimerManager) RemoveTimer(timerId int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.Id == timerId {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

// Len 返回待执行任务数
func (m *TimerManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop halts scheduling. Callbacks already started keep running.
func (m *TimerManager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

func (m *TimerManager) due(now time.Time) []*TimerTask {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var fired []*TimerTask
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			break
		}

		heap.Pop(&m.queue)
		fired = append(fired, task)

		if task.Interval > 0 {
			task.Execute = now.Add(task.Interval)
			heap.Push(&m.queue, task)
		}
	}
	return fired
}

func (m *TimerManager) process(resolution time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			for _, task := range m.due(now) {
				go task.Callback()
			}
		case <-m.stop:
			return
		}
	}
}
