package app

import (
	"sync"
	"time"

	"math-dash-service/internal/domain"
)

// Outbound event types pushed to a player's subscribers.
const (
	EventRoundStarted = "roundStarted"
	EventQuestion     = "question"
	EventTick         = "tick"
	EventAnswerResult = "answerResult"
	EventPaused       = "paused"
	EventResumed      = "resumed"
	EventRoundEnded   = "roundEnded"
	EventNotify       = "notify"
	EventSound        = "sound"
)

const subscriberBuffer = 32

// Hub fans events out to every subscriber of a player.
type Hub struct {
	now  func() time.Time
	mu   sync.Mutex
	subs map[string]map[chan domain.Event]struct{}
}

func NewHub() *Hub {
	return NewHubWithClock(time.Now)
}

// NewHubWithClock allows deterministic event timestamps in tests.
func NewHubWithClock(now func() time.Time) *Hub {
	return &Hub{now: now, subs: make(map[string]map[chan domain.Event]struct{})}
}

// Subscribe returns a channel of the player's events. The caller must invoke
// the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(playerID string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[playerID]
	if !ok {
		set = make(map[chan domain.Event]struct{})
		h.subs[playerID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		set, ok := h.subs[playerID]
		if !ok {
			return
		}
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(h.subs, playerID)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the player. A full
// subscriber loses its oldest pending event instead of blocking the publisher.
func (h *Hub) Publish(playerID, eventType string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ev := domain.Event{Type: eventType, Payload: payload, At: h.now()}
	for ch := range h.subs[playerID] {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// Subscribers reports how many subscribers a player has.
func (h *Hub) Subscribers(playerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[playerID])
}
