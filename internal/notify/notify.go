package notify

import (
	"context"
	"sync"

	"kolekta.org/internal/collection"
)

// Hub fan-outs receipt lifecycle events to all active subscribers
// (SSE clients, export workers). Publishing never blocks the lifecycle
// engine; a slow subscriber loses events rather than stalling writes.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan collection.EventRecord
	next int
}

var _ collection.Sink = (*Hub)(nil)

// New initialises an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[int]chan collection.EventRecord)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (h *Hub) Subscribe(ctx context.Context) <-chan collection.EventRecord {
	ch := make(chan collection.EventRecord, 16)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (h *Hub) Publish(evt collection.EventRecord) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// SubscriberCount reports the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
