package notifications

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event to be delivered")
	}
	return Event{}
}

// TestHubPublishBudget проверяет доставку события бюджета подписчику.
func TestHubPublishBudget(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	ch, unsubscribe := hub.Subscribe(userID)
	defer unsubscribe()

	update := BudgetUpdate{Total: 100, Remaining: 70, Spent: 30, CartTotal: 15}
	hub.PublishBudget(userID, update)

	event := receive(t, ch)
	if event.Type != EventBudgetUpdated {
		t.Fatalf("expected %s, got %s", EventBudgetUpdated, event.Type)
	}
	if event.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
	if diff := cmp.Diff(update, event.Data); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

// TestHubIsolatesUsers проверяет, что события не уходят чужим подписчикам.
func TestHubIsolatesUsers(t *testing.T) {
	hub := NewHub()
	alice, bob := uuid.New(), uuid.New()

	aliceCh, unsubAlice := hub.Subscribe(alice)
	defer unsubAlice()
	bobCh, unsubBob := hub.Subscribe(bob)
	defer unsubBob()

	hub.PublishCart(alice, CartUpdate{Items: 2, CartTotal: 40})

	if event := receive(t, aliceCh); event.Type != EventCartUpdated {
		t.Fatalf("expected cart event, got %s", event.Type)
	}

	select {
	case event := <-bobCh:
		t.Fatalf("unexpected event for another user: %+v", event)
	default:
	}
}

// TestHubDropsWhenFull проверяет, что Publish не блокируется на медленном клиенте.
func TestHubDropsWhenFull(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	ch, unsubscribe := hub.Subscribe(userID)
	defer unsubscribe()

	for i := 0; i < subscriberBuffer*2; i++ {
		hub.PublishCart(userID, CartUpdate{Items: i})
	}

	if got := len(ch); got != subscriberBuffer {
		t.Fatalf("expected %d buffered events, got %d", subscriberBuffer, got)
	}
}

// TestHubUnsubscribe проверяет закрытие канала после отписки.
func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	ch, unsubscribe := hub.Subscribe(userID)
	unsubscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed")
	}
	if hub.Subscribers(userID) != 0 {
		t.Fatal("expected no subscribers after unsubscribe")
	}

	hub.PublishCart(userID, CartUpdate{})
}

// TestHubEventIDsIncrease проверяет монотонные идентификаторы событий.
func TestHubEventIDsIncrease(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	ch, unsubscribe := hub.Subscribe(userID)
	defer unsubscribe()

	hub.PublishCart(userID, CartUpdate{Items: 1})
	hub.PublishBudget(userID, BudgetUpdate{Total: 10})

	first, second := receive(t, ch), receive(t, ch)
	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("expected increasing ids, got %d then %d", first.ID, second.ID)
	}
}

// TestHubClose проверяет, что остановка закрывает все потоки.
func TestHubClose(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	ch, unsubscribe := hub.Subscribe(userID)
	hub.Close()
	hub.Close()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed")
	}
	unsubscribe()

	late, _ := hub.Subscribe(userID)
	if _, ok := <-late; ok {
		t.Fatal("expected closed channel after hub close")
	}
	if hub.Subscribers(userID) != 0 {
		t.Fatal("expected no subscribers after close")
	}
}
