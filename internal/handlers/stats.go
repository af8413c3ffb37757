package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"example.com/ai-shopmate/backend/internal/auth"
	"example.com/ai-shopmate/backend/internal/repository"
)

type StatsHandler struct {
	Stats    *repository.StatsRepository
	Currency string
}

// NewStatsHandler создает обработчик статистики.
func NewStatsHandler(stats *repository.StatsRepository, currency string) *StatsHandler {
	return &StatsHandler{Stats: stats, Currency: currency}
}

type OverviewResponse struct {
	BudgetTotal     float64 `json:"budget_total"`
	BudgetRemaining float64 `json:"budget_remaining"`
	BudgetSpent     float64 `json:"budget_spent"`
	CartItems       int     `json:"cart_items"`
	CartTotal       float64 `json:"cart_total"`
	Purchases       int     `json:"purchases"`
	PurchasedTotal  float64 `json:"purchased_total"`
	Currency        string  `json:"currency"`
}

type CategorySpendingResponse struct {
	Currency   string                     `json:"currency"`
	Categories []CategorySpendingCategory `json:"categories"`
}

type CategorySpendingCategory struct {
	Category string  `json:"category"`
	Spent    float64 `json:"spent"`
	InCart   float64 `json:"in_cart"`
}

// Overview возвращает сводку по бюджету, корзине и покупкам.
func (h *StatsHandler) Overview(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	stats, err := h.Stats.Overview(c.Request().Context(), userID)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, OverviewResponse{
		BudgetTotal:     stats.BudgetTotal,
		BudgetRemaining: stats.BudgetRemaining,
		BudgetSpent:     stats.BudgetTotal - stats.BudgetRemaining,
		CartItems:       stats.CartItems,
		CartTotal:       stats.CartTotal,
		Purchases:       stats.Purchases,
		PurchasedTotal:  stats.PurchasedTotal,
		Currency:        h.Currency,
	})
}

// SpendingByCategory возвращает покупки и содержимое корзины по категориям.
func (h *StatsHandler) SpendingByCategory(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	rows, err := h.Stats.SpendingByCategory(c.Request().Context(), userID)
	if err != nil {
		return serverError(c)
	}

	categories := make([]CategorySpendingCategory, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, CategorySpendingCategory{
			Category: row.Category,
			Spent:    row.Spent,
			InCart:   row.InCart,
		})
	}

	return c.JSON(http.StatusOK, CategorySpendingResponse{
		Currency:   h.Currency,
		Categories: categories,
	})
}
