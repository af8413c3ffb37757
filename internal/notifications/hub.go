package notifications

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	EventConnected     = "connected"
	EventBudgetUpdated = "budget_updated"
	EventCartUpdated   = "cart_updated"
)

// subscriberBuffer: сколько событий копится для медленного клиента, лишние отбрасываются.
const subscriberBuffer = 16

// Event: одно SSE-сообщение. ID растет монотонно в пределах процесса.
type Event struct {
	ID        uint64      `json:"id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

type BudgetUpdate struct {
	Total     float64 `json:"total"`
	Remaining float64 `json:"remaining"`
	Spent     float64 `json:"spent"`
	CartTotal float64 `json:"cart_total"`
}

type CartUpdate struct {
	Items     int     `json:"items"`
	CartTotal float64 `json:"cart_total"`
}

type subscription struct {
	ch   chan Event
	once sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub рассылает события бюджета и корзины SSE-подписчикам пользователя.
// Publish не блокируется: при переполненном буфере событие теряется.
type Hub struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]map[*subscription]struct{}
	closed bool
	seq    atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{users: make(map[uuid.UUID]map[*subscription]struct{})}
}

// Subscribe подписывает пользователя на события и возвращает канал и функцию отписки.
// Повторный вызов функции отписки безопасен. После Close канал приходит уже закрытым.
func (h *Hub) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.close()
		return sub.ch, func() {}
	}

	subs, ok := h.users[userID]
	if !ok {
		subs = make(map[*subscription]struct{})
		h.users[userID] = subs
	}
	subs[sub] = struct{}{}

	return sub.ch, func() { h.unsubscribe(userID, sub) }
}

func (h *Hub) unsubscribe(userID uuid.UUID, sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.users[userID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.users, userID)
		}
	}
	sub.close()
}

// Publish отправляет событие всем подписчикам пользователя.
func (h *Hub) Publish(userID uuid.UUID, event Event) {
	event.ID = h.seq.Add(1)
	event.Timestamp = time.Now().UTC()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.users[userID] {
		select {
		case sub.ch <- event:
		default:
			slog.Debug("sse subscriber is lagging, event dropped",
				slog.String("user_id", userID.String()),
				slog.String("type", event.Type),
			)
		}
	}
}

func (h *Hub) PublishBudget(userID uuid.UUID, update BudgetUpdate) {
	h.Publish(userID, Event{Type: EventBudgetUpdated, Data: update})
}

func (h *Hub) PublishCart(userID uuid.UUID, update CartUpdate) {
	h.Publish(userID, Event{Type: EventCartUpdated, Data: update})
}

// Subscribers возвращает число активных подписок пользователя.
func (h *Hub) Subscribers(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Close закрывает все подписки, чтобы открытые SSE-потоки завершились при остановке сервера.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for userID, subs := range h.users {
		for sub := range subs {
			sub.close()
		}
		delete(h.users, userID)
	}
}
