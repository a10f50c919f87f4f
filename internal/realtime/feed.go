package realtime

import (
	"net/http"
	"sync"

	"kopikita-be/internal/utils"
)

const DefaultFeedCapacity = 5

// Feed keeps the most recent events, newest first. Repeated events for the
// same order are kept as separate entries.
type Feed struct {
	mu       sync.RWMutex
	capacity int
	items    []Envelope
}

func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &Feed{capacity: capacity}
}

// Push prepends e, evicting the oldest entry once the feed is full.
func (f *Feed) Push(e Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.items) + 1
	if n > f.capacity {
		n = f.capacity
	}
	next := make([]Envelope, n)
	next[0] = e
	copy(next[1:], f.items)
	f.items = next
}

func (f *Feed) Items() []Envelope {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Envelope, len(f.items))
	copy(out, f.items)
	return out
}

// Handler serves GET /api/notifications/recent.
func (f *Feed) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]any{
			"items": f.Items(),
		})
	}
}
