package agent

import (
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/tasktime/internal/timer"
)

// historySize bounds the events a Hub remembers for late subscribers.
const historySize = 64

// Hub fans controller events out to stream subscribers and keeps the most recent ones.
// Slow subscribers lose events rather than block the controller.
type Hub struct {
	log     *zap.Logger
	mu      sync.Mutex
	subs    map[chan timer.Event]struct{}
	history []timer.Event
}

// NewHub creates an empty Hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, subs: map[chan timer.Event]struct{}{}}
}

// Notify implements timer.Notifier.
func (h *Hub) Notify(e timer.Event) {
	h.log.Info("timer event",
		zap.String("kind", string(e.Kind)),
		zap.Int64("task_id", e.TaskID),
		zap.Int64("seconds", e.Seconds),
		zap.String("message", e.Message),
	)
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.history) == historySize {
		copy(h.history, h.history[1:])
		h.history = h.history[:historySize-1]
	}
	h.history = append(h.history, e)
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.log.Warn("event dropped for slow subscriber", zap.String("kind", string(e.Kind)))
		}
	}
}

// Subscribe returns a channel of future events and a func that ends the subscription.
func (h *Hub) Subscribe(buf int) (<-chan timer.Event, func()) {
	_, ch, cancel := h.SubscribeWithHistory(buf)
	return ch, cancel
}

// SubscribeWithHistory is Subscribe that also returns the remembered events, oldest
// first. No event is both in the history and on the channel.
func (h *Hub) SubscribeWithHistory(buf int) ([]timer.Event, <-chan timer.Event, func()) {
	ch := make(chan timer.Event, buf)
	h.mu.Lock()
	past := slices.Clone(h.history)
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return past, ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// History returns the remembered events, oldest first.
func (h *Hub) History() []timer.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.history)
}
