// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wfunc/gamecenter/booking"
	"github.com/wfunc/gamecenter/logger"
	"github.com/wfunc/gamecenter/pricing"
)

type Metrics struct {
	QuotesComputed    prometheus.Counter
	SelectionRejected *prometheus.CounterVec
	Submissions       *prometheus.CounterVec
	StaleResponses    prometheus.Counter
	ActiveFlows       prometheus.Gauge
	FeedRefresh       *prometheus.HistogramVec
	FeedErrors        *prometheus.CounterVec
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QuotesComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_computed_total",
			Help:      "Total number of quotes computed",
		}),
		SelectionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_rejected_total",
			Help:      "Seat selections rejected, by reason",
		}, []string{"reason"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Booking submissions, by outcome",
		}, []string{"outcome"}),
		StaleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Booking responses dropped after the flow was cancelled",
		}),
		ActiveFlows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_flows",
			Help:      "Number of open booking flows",
		}),
		FeedRefresh: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_refresh_seconds",
			Help:      "Seat feed refresh latency",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"center"}),
		FeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_errors_total",
			Help:      "Failed seat feed refreshes",
		}, []string{"center"}),
	}

	reg.MustRegister(
		m.QuotesComputed,
		m.SelectionRejected,
		m.Submissions,
		m.StaleResponses,
		m.ActiveFlows,
		m.FeedRefresh,
		m.FeedErrors,
	)

	return m
}

// Monitor implements booking.Observer and feed.Metrics.
type Monitor struct {
	metrics   *Metrics
	gatherer  prometheus.Gatherer
	startTime time.Time
	quotes    int64
	mutex     sync.Mutex
}

// NewMonitor registers its series on a private registry.
func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	return NewMonitorWithRegistry(namespace, reg, reg)
}

func NewMonitorWithRegistry(namespace string, reg prometheus.Registerer, g prometheus.Gatherer) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		gatherer:  g,
		startTime: time.Now(),
	}
}

func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

func (m *Monitor) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// Handler serves the prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

var publishOnce sync.Once

// PublishExpvar exposes uptime and the quote count under /debug/vars. Only the first monitor
// in a process is published.
func (m *Monitor) PublishExpvar() {
	publishOnce.Do(func() {
		// 添加expvar指标
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(m.startTime).Seconds()
		}))
		expvar.Publish("quotes", expvar.Func(func() interface{} {
			return m.QuoteCount()
		}))
	})
}

func (m *Monitor) QuoteCount() int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.quotes
}

func (m *Monitor) QuoteComputed(q pricing.Quote) {
	m.metrics.QuotesComputed.Inc()
	m.mutex.Lock()
	m.quotes++
	m.mutex.Unlock()
}

func (m *Monitor) SelectionRejected(reason string) {
	m.metrics.SelectionRejected.WithLabelValues(reason).Inc()
}

func (m *Monitor) SubmissionFinished(outcome string) {
	m.metrics.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Monitor) StaleResponse() {
	m.metrics.StaleResponses.Inc()
}

func (m *Monitor) PhaseChanged(from, to booking.Phase) {
	logger.Log.Debugw("flow phase changed", "from", from, "to", to)
}

func (m *Monitor) IncActiveFlows() {
	m.metrics.ActiveFlows.Inc()
}

func (m *Monitor) DecActiveFlows() {
	m.metrics.ActiveFlows.Dec()
}

func (m *Monitor) ObserveFeedRefresh(centerID string, d time.Duration) {
	m.metrics.FeedRefresh.WithLabelValues(centerID).Observe(d.Seconds())
}

func (m *Monitor) IncFeedErrors(centerID string) {
	m.metrics.FeedErrors.WithLabelValues(centerID).Inc()
}
