// Package notifier is a small broadcast registry the store layer publishes
// change events through. Consumers observe a live view instead of polling;
// the registry is deliberately decoupled from any UI framework.
package notifier

import (
	"log/slog"
	"sync"
)

type Topic string

const (
	TopicPortfolio Topic = "portfolio"
	TopicWatchlist Topic = "watchlist"
)

type Event struct {
	UserID string
	Topic  Topic
}

type Notifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

func New() *Notifier {
	return &Notifier{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener stops observing.
func (n *Notifier) Subscribe(buffer int) (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	ch := make(chan Event, buffer)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking.
// A subscriber with a full buffer misses the event; the next one will
// re-trigger its re-read anyway.
func (n *Notifier) Publish(event Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for id, ch := range n.subs {
		select {
		case ch <- event:
		default:
			slog.Debug("notifier subscriber buffer full, event dropped", slog.Int("subscriber", id))
		}
	}
}
