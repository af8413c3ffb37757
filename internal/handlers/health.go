package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const healthPingTimeout = 2 * time.Second

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// Pinger проверяет доступность хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	DB Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{DB: db}
}

// Health возвращает статус сервиса и базы данных.
func (h *HealthHandler) Health(c echo.Context) error {
	if h.DB == nil {
		return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
	defer cancel()

	if err := h.DB.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Database: "unavailable"})
	}

	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
}
