package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/ai-shopmate/backend/internal/auth"
	"example.com/ai-shopmate/backend/internal/models"
	"example.com/ai-shopmate/backend/internal/notifications"
)

// heartbeatInterval держит соединение живым за прокси, которые рвут молчащие стримы.
const heartbeatInterval = 25 * time.Second

type NotificationHandler struct {
	Hub       *notifications.Hub
	Heartbeat time.Duration
}

// NewNotificationHandler создает SSE-обработчик уведомлений.
func NewNotificationHandler(hub *notifications.Hub) *NotificationHandler {
	return &NotificationHandler{Hub: hub, Heartbeat: heartbeatInterval}
}

// Stream открывает SSE-поток событий бюджета и корзины для пользователя.
func (h *NotificationHandler) Stream(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	res := c.Response()
	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return serverError(c)
	}

	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	events, unsubscribe := h.Hub.Subscribe(userID)
	defer unsubscribe()

	connected := notifications.Event{
		Type:      notifications.EventConnected,
		Timestamp: time.Now().UTC(),
		Data:      map[string]string{"user_id": userID.String()},
	}
	if err := writeSSE(c, connected); err != nil {
		return nil
	}
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat())
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := io.WriteString(res, ": ping\n\n"); err != nil {
				return nil
			}
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeSSE(c, event); err != nil {
				return nil
			}
		}
		flusher.Flush()
	}
}

func (h *NotificationHandler) heartbeat() time.Duration {
	if h.Heartbeat > 0 {
		return h.Heartbeat
	}
	return heartbeatInterval
}

// writeSSE пишет событие в формате text/event-stream. Нулевой ID не отправляется.
func writeSSE(c echo.Context, event notifications.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var b strings.Builder
	if event.ID > 0 {
		fmt.Fprintf(&b, "id: %d\n", event.ID)
	}
	fmt.Fprintf(&b, "event: %s\ndata: %s\n\n", event.Type, payload)

	_, err = io.WriteString(c.Response(), b.String())
	return err
}

func publishBudgetUpdate(hub *notifications.Hub, userID uuid.UUID, state models.BudgetState, cartTotal float64) {
	if hub == nil {
		return
	}

	hub.PublishBudget(userID, notifications.BudgetUpdate{
		Total:     state.Total,
		Remaining: state.Remaining,
		Spent:     state.Total - state.Remaining,
		CartTotal: cartTotal,
	})
}

func publishCartUpdate(hub *notifications.Hub, userID uuid.UUID, lines []models.CartLine) {
	if hub == nil {
		return
	}

	items, total := summarizeCart(lines)
	hub.PublishCart(userID, notifications.CartUpdate{Items: items, CartTotal: total})
}

// summarizeCart возвращает число единиц товара и стоимость корзины.
func summarizeCart(lines []models.CartLine) (int, float64) {
	items := 0
	total := 0.0
	for _, line := range lines {
		items += line.Item.Quantity
		total += line.Subtotal()
	}
	return items, total
}
