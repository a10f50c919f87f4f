package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"kopikita-be/internal/utils"
)

// Counter names shared across packages.
const (
	OrdersCreated        = "orders_created"
	TransitionsAccepted  = "transitions_accepted"
	TransitionsRejected  = "transitions_rejected"
	EventsPublished      = "events_published"
	EventsPublishFailed  = "events_publish_failed"
	EventsDropped        = "events_dropped"
	WebhooksProcessed    = "payment_webhooks_processed"
	WebsocketConnections = "websocket_connections"
)

// Timer names.
const (
	TransitionDuration = "order_transition"
	WebhookDuration    = "payment_webhook"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// timing accumulates observed durations as a count and a nanosecond sum.
type timing struct {
	count Counter
	nanos Counter
}

type TimingStats struct {
	Count   uint64  `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
}

// Registry hands out named counters and timings. The zero value is not usable, use NewRegistry.
type Registry struct {
	mu       sync.Mutex
	counters map[string]*Counter
	timings  map[string]*timing
	started  time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*Counter),
		timings:  make(map[string]*timing),
		started:  time.Now(),
	}
}

// Counter returns the counter registered under name, creating it on first use.
// A nil registry returns a throwaway counter.
func (r *Registry) Counter(name string) *Counter {
	if r == nil {
		return &Counter{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.counters[name]
	if !ok {
		c = &Counter{}
		r.counters[name] = c
	}
	return c
}

func (r *Registry) Snapshot() map[string]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]uint64, len(r.counters))
	for name, c := range r.counters {
		out[name] = c.Load()
	}
	return out
}

// Observe records the time elapsed since t was started under name. Meant
// for defer: defer stats.Observe(name, metrics.StartTimer()).
func (r *Registry) Observe(name string, t *Timer) {
	if r == nil || t == nil {
		return
	}
	d := t.Duration()

	r.mu.Lock()
	tm, ok := r.timings[name]
	if !ok {
		tm = &timing{}
		r.timings[name] = tm
	}
	r.mu.Unlock()

	tm.count.Inc()
	tm.nanos.Add(uint64(d.Nanoseconds()))
}

func (r *Registry) Timings() map[string]TimingStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]TimingStats, len(r.timings))
	for name, tm := range r.timings {
		n := tm.count.Load()
		total := float64(tm.nanos.Load()) / float64(time.Millisecond)
		st := TimingStats{Count: n, TotalMs: total}
		if n > 0 {
			st.AvgMs = total / float64(n)
		}
		out[name] = st
	}
	return out
}

// Handler serves counters and timings as JSON.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]any{
			"uptime_seconds": int64(time.Since(r.started).Seconds()),
			"counters":       r.Snapshot(),
			"timers":         r.Timings(),
		})
	}
}
