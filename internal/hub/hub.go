// Package hub fans accepted events out to connected dashboard subscribers.
// Delivery is best effort: no replay for late joiners, no acknowledgment,
// and a subscriber that cannot keep up is disconnected rather than allowed
// to stall the rest.
package hub

import (
	"log/slog"
	"strconv"
	"sync"
)

const defaultQueueSize = 32

// Subscriber is one live connection's view of the hub. Payloads arrive on C
// until the subscriber closes itself or falls behind and is dropped.
type Subscriber struct {
	id   string
	send chan []byte
	hub  *Hub
}

// C returns the channel the hub delivers payloads on. It is closed when the
// subscriber is removed from the hub.
func (s *Subscriber) C() <-chan []byte { return s.send }

// ID returns the subscriber's hub-assigned id.
func (s *Subscriber) ID() string { return s.id }

// Close removes the subscriber from the hub. Safe to call more than once.
func (s *Subscriber) Close() { s.hub.remove(s) }

// Hub is the process-scoped subscriber registry. It is created at startup
// and drained with Close at shutdown.
type Hub struct {
	log       *slog.Logger
	queueSize int

	mu     sync.Mutex
	nextID int64
	subs   map[*Subscriber]struct{}
	closed bool
}

// New returns a Hub whose subscribers buffer up to queueSize payloads.
func New(log *slog.Logger, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		log:       log,
		queueSize: queueSize,
		subs:      make(map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new subscriber. It returns nil after Close.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.nextID++
	s := &Subscriber{
		id:   subID(h.nextID),
		send: make(chan []byte, h.queueSize),
		hub:  h,
	}
	h.subs[s] = struct{}{}
	h.log.Info("subscriber connected", "subscriber", s.id, "total", len(h.subs))
	return s
}

// Broadcast delivers payload to every subscriber registered at the moment of
// the call. The payload is shared, not copied; callers must not mutate it.
// A subscriber whose queue is full is disconnected so it cannot block
// delivery to the others.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.send <- payload:
		default:
			h.log.Warn("subscriber too slow, dropping", "subscriber", s.id)
			h.removeLocked(s)
		}
	}
}

// Len reports the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops all subscribers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		h.removeLocked(s)
	}
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		h.removeLocked(s)
	}
}

// removeLocked deletes s and closes its channel. Presence in the map is the
// single-close guard; callers must hold h.mu and check membership first
// unless iterating the map itself.
func (h *Hub) removeLocked(s *Subscriber) {
	delete(h.subs, s)
	close(s.send)
}

// Small monotonic ids read better in logs than uuids here.
func subID(n int64) string {
	return "sub-" + strconv.FormatInt(n, 10)
}
