// Package broadcast fans out dashboard events to live subscribers.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/chainops/agentdash/pkg/types"
)

// DefaultBufferSize is the per-subscription event queue depth.
const DefaultBufferSize = 16

// Subscription is one live viewer's event queue. Events arrive on C in
// publish order. C is closed when the subscription is dropped.
type Subscription struct {
	C  <-chan types.Event
	ch chan types.Event
}

// Hub maintains the set of live subscriptions and delivers events to all of
// them. Publish never blocks: a subscriber whose queue is full is dropped.
type Hub struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	bufSize int
	closed  bool
	logger  *slog.Logger
}

// NewHub creates a hub with the given per-subscription buffer size.
func NewHub(bufSize int, logger *slog.Logger) *Hub {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:    make(map[*Subscription]struct{}),
		bufSize: bufSize,
		logger:  logger,
	}
}

// Subscribe registers a new live subscription.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan types.Event, h.bufSize)
	sub := &Subscription{C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// for already-dropped subscriptions.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(sub)
}

// drop removes and closes a subscription. Called with the lock held.
func (h *Hub) drop(sub *Subscription) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

// Publish enqueues the event for every live subscription. Delivery is
// best-effort per connection: a subscriber with a full queue is dropped so
// a slow consumer can never delay the others or the caller.
func (h *Hub) Publish(event types.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.ch <- event:
		default:
			h.logger.Warn("dropping slow subscriber",
				slog.Int("buffer", h.bufSize),
				slog.Int("remaining", len(h.subs)-1),
			)
			h.drop(sub)
		}
	}
}

// Count returns the number of live subscriptions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		h.drop(sub)
	}
}
