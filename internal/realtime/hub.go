package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"kopikita-be/internal/logger"
	"kopikita-be/internal/metrics"

	"go.uber.org/zap"
)

// Envelope is what subscribers receive for every published event.
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

type Handler func(Envelope)

type subscription struct {
	id uint64
	fn Handler
}

// Hub routes events to the callbacks registered on a channel. Delivery is
// synchronous: when Publish returns every callback has run, in registration order.
// Callbacks must not block.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
	stats  *metrics.Registry
}

func NewHub(stats *metrics.Registry) *Hub {
	return &Hub{
		subs:  make(map[string][]subscription),
		stats: stats,
	}
}

// Publish implements order.Publisher.
func (h *Hub) Publish(ctx context.Context, channel, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}

	env := Envelope{
		Channel: channel,
		Event:   event,
		Payload: body,
		SentAt:  time.Now().UTC(),
	}

	h.mu.RLock()
	subs := h.subs[channel]
	handlers := make([]Handler, 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	h.mu.RUnlock()

	if len(handlers) == 0 {
		h.stats.Counter(metrics.EventsDropped).Inc()
		logger.FromCtx(ctx).Debug("no subscribers, event dropped",
			zap.String("channel", channel),
			zap.String("event", event),
		)
		return nil
	}

	for _, fn := range handlers {
		fn(env)
	}
	return nil
}

func (h *Hub) subscribe(channel string, fn Handler) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[channel] = append(h.subs[channel], subscription{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(channel, id) })
	}
}

func (h *Hub) unsubscribe(channel string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[channel]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		// copy so snapshots taken by in-flight publishes stay intact
		rest := make([]subscription, 0, len(subs)-1)
		rest = append(rest, subs[:i]...)
		rest = append(rest, subs[i+1:]...)
		if len(rest) == 0 {
			delete(h.subs, channel)
		} else {
			h.subs[channel] = rest
		}
		return
	}
}

// Subscribers reports how many callbacks are registered on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Client owns the subscriptions of one connection or component.
type Client struct {
	hub    *Hub
	mu     sync.Mutex
	unsubs []func()
	closed bool
}

func (h *Hub) NewClient() *Client {
	return &Client{hub: h}
}

// On registers fn on channel and returns a func removing just this registration.
// After Close, On registers nothing.
func (c *Client) On(channel string, fn Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return func() {}
	}
	unsub := c.hub.subscribe(channel, fn)
	c.unsubs = append(c.unsubs, unsub)
	return unsub
}

// Close releases every registration made through the client.
func (c *Client) Close() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.closed = true
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}
