// Package fanout distributes canonical dedup.Events to every registered
// sink, in registration order; a sink whose delivery fails does not stop
// delivery to the others.
package fanout

import (
	"log/slog"
	"sync"

	"github.com/matzefriedrich/bitcoinDE-API/internal/bitcoindelog"
	"github.com/matzefriedrich/bitcoinDE-API/internal/dedup"
)

// Sink receives canonical events. Implementations must not block for
// long: Hub calls Send synchronously, one sink after another, and does
// not buffer or drop events for a slow sink.
type Sink interface {
	Name() string
	Send(evt *dedup.Event) error
}

// Hub fans out events to registered Sinks in registration order.
// Grounded on the register/unregister/broadcast pattern
// used for WebSocket client fan-out in the retrieved
// winson1234-Hedgetechs hub package.
type Hub struct {
	mu    sync.RWMutex
	order []string
	sinks map[string]Sink
	log   *slog.Logger
}

// New builds an empty Hub. logger may be nil.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		sinks: make(map[string]Sink),
		log:   bitcoindelog.Component(logger, "fanout.Hub"),
	}
}

// Register adds a sink. Registering a name that already exists replaces
// the existing sink in place, preserving its original position.
func (h *Hub) Register(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.sinks[s.Name()]; !exists {
		h.order = append(h.order, s.Name())
	}
	h.sinks[s.Name()] = s
}

// Unregister removes a sink by name.
func (h *Hub) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sinks, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Broadcast delivers evt to every registered sink in registration order.
// A sink whose Send returns an error has that single delivery dropped;
// the remaining sinks are unaffected.
func (h *Hub) Broadcast(evt *dedup.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, name := range h.order {
		s := h.sinks[name]
		if err := s.Send(evt); err != nil {
			h.log.Warn("sink delivery dropped", "sink", name, "err", err)
		}
	}
}
