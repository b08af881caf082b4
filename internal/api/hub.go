package api

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/talgya/forage-sim/internal/engine"
)

// streamBuffer is the number of pending messages per subscriber. A slow
// subscriber loses messages rather than stalling the scheduler.
const streamBuffer = 256

// Hub fans step summaries out to live stream subscribers.
type Hub struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]chan []byte
	dropped uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan []byte)}
}

// Subscribe registers a subscriber and returns its id and message channel.
func (h *Hub) Subscribe() (uint64, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan []byte, streamBuffer)
	h.subs[h.nextID] = ch
	return h.nextID, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Clients returns the number of live subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many messages were discarded for full subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Publish encodes a summary once and offers it to every subscriber without
// blocking. It matches the scheduler's OnStep signature.
func (h *Hub) Publish(s engine.StepSummary) {
	b, err := json.Marshal(s)
	if err != nil {
		slog.Warn("encoding step summary", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- b:
		default:
			h.dropped++
		}
	}
}
