package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/ai-shopmate/backend/internal/auth"
	"example.com/ai-shopmate/backend/internal/models"
	"example.com/ai-shopmate/backend/internal/notifications"
	"example.com/ai-shopmate/backend/internal/repository"
)

type CartHandler struct {
	Carts    *repository.CartRepository
	Budgets  *repository.BudgetRepository
	Notifier *notifications.Hub
	Currency string
}

// NewCartHandler создает обработчик корзины.
func NewCartHandler(carts *repository.CartRepository, budgets *repository.BudgetRepository, notifier *notifications.Hub, currency string) *CartHandler {
	return &CartHandler{
		Carts:    carts,
		Budgets:  budgets,
		Notifier: notifier,
		Currency: currency,
	}
}

type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,notblank,max=64"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=99"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=99"`
}

type CartLineResponse struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
	Subtotal float64        `json:"subtotal"`
	AddedAt  string         `json:"added_at"`
}

type CartResponse struct {
	Items     []CartLineResponse `json:"items"`
	ItemCount int                `json:"item_count"`
	Total     float64            `json:"total"`
	Budget    BudgetResponse     `json:"budget"`
}

type CheckoutResponse struct {
	Purchased []CartLineResponse `json:"purchased"`
	Total     float64            `json:"total"`
	Budget    BudgetResponse     `json:"budget"`
}

// List возвращает корзину вместе с состоянием бюджета.
func (h *CartHandler) List(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	return h.respondCart(c, userID, http.StatusOK, false)
}

// AddItem кладет товар в корзину. Товар, не влезающий в бюджет, отклоняется.
func (h *CartHandler) AddItem(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req AddCartItemRequest
	if err := bindRequest(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	productID := strings.TrimSpace(req.ProductID)
	if _, err := h.Carts.Add(c.Request().Context(), userID, productID, quantity); err != nil {
		return budgetError(c, err)
	}

	return h.respondCart(c, userID, http.StatusCreated, true)
}

// UpdateItem меняет количество товара в корзине.
func (h *CartHandler) UpdateItem(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	productID := strings.TrimSpace(c.Param("productId"))
	if productID == "" {
		return badRequest(c, "invalid product id")
	}

	var req UpdateCartItemRequest
	if err := bindRequest(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := h.Carts.SetQuantity(c.Request().Context(), userID, productID, req.Quantity); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "cart item not found")
		}
		return budgetError(c, err)
	}

	return h.respondCart(c, userID, http.StatusOK, true)
}

// RemoveItem удаляет товар из корзины.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	productID := strings.TrimSpace(c.Param("productId"))
	if productID == "" {
		return badRequest(c, "invalid product id")
	}

	if err := h.Carts.Remove(c.Request().Context(), userID, productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "cart item not found")
		}
		return serverError(c)
	}

	return h.respondCart(c, userID, http.StatusOK, true)
}

// Clear очищает корзину.
func (h *CartHandler) Clear(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.Carts.Clear(c.Request().Context(), userID); err != nil {
		return serverError(c)
	}

	return h.respondCart(c, userID, http.StatusOK, true)
}

// Checkout оплачивает корзину из остатка бюджета.
func (h *CartHandler) Checkout(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	result, err := h.Carts.Checkout(c.Request().Context(), userID)
	if err != nil {
		return budgetError(c, err)
	}

	publishCartUpdate(h.Notifier, userID, nil)
	publishBudgetUpdate(h.Notifier, userID, result.Budget, 0)

	return c.JSON(http.StatusOK, CheckoutResponse{
		Purchased: toCartLineResponses(result.Lines),
		Total:     result.Total,
		Budget:    toBudgetResponse(result.Budget, 0, h.Currency),
	})
}

func (h *CartHandler) respondCart(c echo.Context, userID uuid.UUID, status int, notify bool) error {
	ctx := c.Request().Context()

	lines, err := h.Carts.List(ctx, userID)
	if err != nil {
		return serverError(c)
	}

	state, err := h.Budgets.Get(ctx, userID)
	if err != nil {
		return serverError(c)
	}

	items, total := summarizeCart(lines)
	if notify {
		publishCartUpdate(h.Notifier, userID, lines)
		publishBudgetUpdate(h.Notifier, userID, state, total)
	}

	return c.JSON(status, CartResponse{
		Items:     toCartLineResponses(lines),
		ItemCount: items,
		Total:     total,
		Budget:    toBudgetResponse(state, total, h.Currency),
	})
}

func toCartLineResponses(lines []models.CartLine) []CartLineResponse {
	response := make([]CartLineResponse, 0, len(lines))
	for _, line := range lines {
		response = append(response, CartLineResponse{
			Product:  line.Product,
			Quantity: line.Item.Quantity,
			Subtotal: line.Subtotal(),
			AddedAt:  line.Item.AddedAt.Format(timeLayout),
		})
	}
	return response
}
