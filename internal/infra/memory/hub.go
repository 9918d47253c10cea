package memory

import (
	"context"
	"sync"

	"trivia-duel-service/internal/domain"
)

// Hub fans game events out to in-process subscribers. It is the local end
// of every broadcast driver: redis and nats relays feed it too.
type Hub struct {
	mu     sync.RWMutex
	buffer int
	topics map[int64]map[chan domain.Event]struct{}
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 8
	}
	return &Hub{buffer: buffer, topics: make(map[int64]map[chan domain.Event]struct{})}
}

// Subscribe returns a channel of events for gameID. The caller must invoke
// the returned cancel function to release it.
func (h *Hub) Subscribe(gameID int64) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, h.buffer)

	h.mu.Lock()
	subs, ok := h.topics[gameID]
	if !ok {
		subs = make(map[chan domain.Event]struct{})
		h.topics[gameID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			subs := h.topics[gameID]
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.topics, gameID)
			}
		})
	}
	return ch, cancel
}

// Publish never blocks: a subscriber whose buffer is full loses its oldest
// pending event.
func (h *Hub) Publish(_ context.Context, event domain.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.topics[event.GameID] {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

// Subscribers reports how many local subscribers a game has.
func (h *Hub) Subscribers(gameID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[gameID])
}
