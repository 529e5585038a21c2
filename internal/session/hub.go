package session

import (
	"context"
	"sync"

	"github.com/teemow/inboxquery/internal/instrumentation"
)

// Event announces a new stored result.
type Event struct {
	Session  string `json:"session"`
	ResultID string `json:"result_id"`
	Rows     int    `json:"rows"`
}

// subscriberBuffer bounds the events queued for a slow subscriber.
const subscriberBuffer = 8

// Hub fans result events out to subscribers. Broadcasting never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu      sync.Mutex
	subs    map[chan Event]struct{}
	metrics *instrumentation.Metrics
}

// NewHub creates an empty hub.
func NewHub(metrics *instrumentation.Metrics) *Hub {
	return &Hub{subs: make(map[chan Event]struct{}), metrics: metrics}
}

// Subscribe registers a subscriber. Call the returned function to
// unsubscribe; it closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	h.metrics.IncrementSubscribers(context.Background())

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			h.mu.Unlock()
			h.metrics.DecrementSubscribers(context.Background())
		})
	}
}

// Broadcast delivers ev to every subscriber with buffer space and returns
// how many received it.
func (h *Hub) Broadcast(ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for ch := range h.subs {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
