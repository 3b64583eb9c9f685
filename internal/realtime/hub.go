// Package realtime fans participant change notifications out to live sessions.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/JonMunkholm/checkin/internal/core"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 256

// Hub delivers every published change to every subscriber.
//
// Publish never blocks. A subscriber whose buffer is full has fallen behind
// and can no longer reconcile correctly, so it is dropped and its channel
// closed; the session sees the closed channel and asks its device to reload.
type Hub struct {
	buffer int

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan core.Change
	closed bool
}

// NewHub creates a hub with the given per-subscriber buffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[uint64]chan core.Change),
	}
}

// Subscribe registers a new subscriber. The cancel func unsubscribes and
// closes the channel; calling it more than once is harmless.
func (h *Hub) Subscribe() (<-chan core.Change, func()) {
	ch := make(chan core.Change, h.buffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	return ch, func() { h.remove(id) }
}

// Publish sends c to every subscriber without blocking.
func (h *Hub) Publish(c core.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- c:
		default:
			slog.Warn("dropping slow change subscriber", "subscriber", id, "buffer", h.buffer)
			delete(h.subs, id)
			close(ch)
		}
	}
}

// Reset closes every current subscriber but keeps the hub open for new ones.
// Used when the upstream change feed was interrupted and changes may have
// been missed.
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Close closes every subscriber. Later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}
