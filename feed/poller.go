package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wfunc/gamecenter/center"
	"github.com/wfunc/gamecenter/logger"
	"github.com/wfunc/gamecenter/seat"
	"github.com/wfunc/gamecenter/timer"
)

// Metrics is the part of the monitor the poller reports to.
type Metrics interface {
	ObserveFeedRefresh(centerID string, d time.Duration)
	IncFeedErrors(centerID string)
}

// SnapshotStore keeps the last snapshot of each center outside the process so a restart can
// serve seats before the first refresh.
type SnapshotStore interface {
	Save(ctx context.Context, inv *seat.Inventory) error
	Load(ctx context.Context, centerID string) (*seat.Inventory, error)
}

type nopMetrics struct{}

func (nopMetrics) ObserveFeedRefresh(string, time.Duration) {}
func (nopMetrics) IncFeedErrors(string) {}

// Poller refreshes a fixed list of centers on an interval. Refreshes of one center never
// overlap; a tick that finds the previous refresh still running is skipped.
type Poller struct {
	source   Source
	centers  *center.Manager
	ids      []string
	interval time.Duration
	timeout  time.Duration
	metrics  Metrics
	store    SnapshotStore

	mutex    sync.Mutex
	inflight map[string]bool
	timers   []int64
	cancel   context.CancelFunc
}

type PollerOption func(*Poller)

func WithMetrics(m Metrics) PollerOption {
	return func(p *Poller) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithSnapshotStore writes every fresh snapshot through to store.
func WithSnapshotStore(store SnapshotStore) PollerOption {
	return func(p *Poller) { p.store = store }
}

// WithRequestTimeout bounds each fetch.
func WithRequestTimeout(d time.Duration) PollerOption {
	return func(p *Poller) { p.timeout = d }
}

func NewPoller(source Source, centers *center.Manager, ids []string, interval time.Duration, opts ...PollerOption) *Poller {
	p := &Poller{
		source:   source,
		centers:  centers,
		ids:      append([]string(nil), ids...),
		interval: interval,
		metrics:  nopMetrics{},
		inflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Refresh fetches centerID once and installs the snapshot. It reports false without fetching
// when a refresh of the same center is already running.
func (p *Poller) Refresh(ctx context.Context, centerID string) (bool, error) {
	p.mutex.Lock()
	if p.inflight[centerID] {
		p.mutex.Unlock()
		return false, nil
	}
	p.inflight[centerID] = true
	p.mutex.Unlock()

	defer func() {
		p.mutex.Lock()
		delete(p.inflight, centerID)
		p.mutex.Unlock()
	}()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	started := time.Now()
	inv, err := p.source.FetchSeats(ctx, centerID)
	if err != nil {
		p.metrics.IncFeedErrors(centerID)
		logger.Log.Errorw("seat feed refresh failed", "center", centerID, "error", err)
		return true, err
	}
	p.metrics.ObserveFeedRefresh(centerID, time.Since(started))

	if p.store != nil {
		if err := p.store.Save(ctx, inv); err != nil {
			logger.Log.Warnw("failed to cache seat snapshot", "center", centerID, "error", err)
		}
	}

	notified := p.centers.Update(inv)
	logger.Log.Debugw("seat feed refreshed", "center", centerID, "seats", inv.Len(), "flows", notified)
	return true, nil
}

// Warm installs stored snapshots for configured centers that have none yet and returns how
// many were loaded. Missing entries are skipped.
func (p *Poller) Warm(ctx context.Context) int {
	if p.store == nil {
		return 0
	}
	loaded := 0
	for _, id := range p.ids {
		if _, err := p.centers.Inventory(id); err == nil {
			continue
		}
		inv, err := p.store.Load(ctx, id)
		if err != nil || inv == nil {
			logger.Log.Debugw("no cached seat snapshot", "center", id, "error", err)
			continue
		}
		p.centers.Update(inv)
		loaded++
	}
	return loaded
}

// RefreshAll refreshes every configured center in turn and joins the errors.
func (p *Poller) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, id := range p.ids {
		if _, err := p.Refresh(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start schedules a repeating refresh per center on tm, the first one immediately.
func (p *Poller) Start(ctx context.Context, tm *timer.TimerManager) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for _, id := range p.ids {
		centerID := id
		p.timers = append(p.timers, tm.AddTimer(0, p.interval, func() {
			if pollCtx.Err() != nil {
				return
			}
			_, _ = p.Refresh(pollCtx, centerID)
		}))
	}
	logger.Log.Infow("seat feed poller started", "centers", p.ids, "interval", p.interval)
}

// Stop removes the scheduled refreshes from tm and cancels running ones.
func (p *Poller) Stop(tm *timer.TimerManager) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, id := range p.timers {
		tm.RemoveTimer(id)
	}
	p.timers = nil
	if p.cancel != nil {
		p.cancel()
	}
}
