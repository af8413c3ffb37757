package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/ai-shopmate/backend/internal/ai"
	"example.com/ai-shopmate/backend/internal/auth"
	"example.com/ai-shopmate/backend/internal/budget"
	"example.com/ai-shopmate/backend/internal/models"
	"example.com/ai-shopmate/backend/internal/notifications"
	"example.com/ai-shopmate/backend/internal/repository"
)

type BudgetHandler struct {
	Budgets  *repository.BudgetRepository
	Carts    *repository.CartRepository
	Notifier *notifications.Hub
	Currency string
}

// NewBudgetHandler создает обработчик бюджета.
func NewBudgetHandler(budgets *repository.BudgetRepository, carts *repository.CartRepository, notifier *notifications.Hub, currency string) *BudgetHandler {
	return &BudgetHandler{
		Budgets:  budgets,
		Carts:    carts,
		Notifier: notifier,
		Currency: currency,
	}
}

type BudgetAmountRequest struct {
	Amount *float64 `json:"amount" validate:"required"`
}

type BudgetResponse struct {
	Total     float64 `json:"total"`
	Remaining float64 `json:"remaining"`
	Spent     float64 `json:"spent"`
	CartTotal float64 `json:"cart_total"`
	Available float64 `json:"available"`
	Currency  string  `json:"currency"`
	UpdatedAt string  `json:"updated_at"`
}

// Get возвращает бюджет пользователя и сумму, доступную для корзины.
func (h *BudgetHandler) Get(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	ctx := c.Request().Context()
	state, err := h.Budgets.Get(ctx, userID)
	if err != nil {
		return serverError(c)
	}

	cartTotal, err := h.Carts.Total(ctx, userID)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, toBudgetResponse(state, cartTotal, h.Currency))
}

// Set задает новый бюджет. Остаток становится равен сумме.
func (h *BudgetHandler) Set(c echo.Context) error {
	return h.mutate(c, true, func(l *budget.Ledger, amount float64) error {
		return l.SetBudget(amount)
	})
}

// Spend списывает сумму с остатка без оформления корзины.
func (h *BudgetHandler) Spend(c echo.Context) error {
	return h.mutate(c, true, func(l *budget.Ledger, amount float64) error {
		return l.Spend(amount)
	})
}

// Reset обнуляет бюджет.
func (h *BudgetHandler) Reset(c echo.Context) error {
	return h.mutate(c, false, func(l *budget.Ledger, _ float64) error {
		l.Reset()
		return nil
	})
}

func (h *BudgetHandler) mutate(c echo.Context, withAmount bool, apply func(*budget.Ledger, float64) error) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var amount float64
	if withAmount {
		var req BudgetAmountRequest
		if err := bindRequest(c, &req); err != nil {
			return badRequest(c, err.Error())
		}
		amount = *req.Amount
		if err := budget.CheckAmount(amount); err != nil {
			return budgetError(c, err)
		}
	}

	ctx := c.Request().Context()
	state, err := h.Budgets.Mutate(ctx, userID, func(l *budget.Ledger) error {
		return apply(l, amount)
	})
	if err != nil {
		return budgetError(c, err)
	}

	cartTotal := h.notifyBudget(ctx, userID, state)
	return c.JSON(http.StatusOK, toBudgetResponse(state, cartTotal, h.Currency))
}

func (h *BudgetHandler) notifyBudget(ctx context.Context, userID uuid.UUID, state models.BudgetState) float64 {
	cartTotal, err := h.Carts.Total(ctx, userID)
	if err != nil {
		cartTotal = 0
	}
	publishBudgetUpdate(h.Notifier, userID, state, cartTotal)
	return cartTotal
}

func toBudgetResponse(state models.BudgetState, cartTotal float64, currency string) BudgetResponse {
	snapshot := budgetSnapshot(state, cartTotal)

	response := BudgetResponse{
		Total:     snapshot.Total,
		Remaining: snapshot.Remaining,
		Spent:     snapshot.Spent,
		CartTotal: snapshot.CartTotal,
		Available: snapshot.Available(),
		Currency:  currency,
	}
	if !state.UpdatedAt.IsZero() {
		response.UpdatedAt = state.UpdatedAt.Format(timeLayout)
	}
	return response
}

func budgetSnapshot(state models.BudgetState, cartTotal float64) ai.BudgetSnapshot {
	return ai.BudgetSnapshot{
		Total:     state.Total,
		Remaining: state.Remaining,
		Spent:     state.Total - state.Remaining,
		CartTotal: cartTotal,
	}
}
