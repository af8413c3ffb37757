package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"example.com/ai-shopmate/backend/internal/budget"
	"example.com/ai-shopmate/backend/internal/repository"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// bindRequest разбирает тело запроса и проверяет теги validate.
// Текст ошибки годится для ответа клиенту.
func bindRequest(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errors.New("invalid payload")
	}
	if err := c.Validate(req); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			return fmt.Errorf("validation failed: %s %s", fields[0].Field(), fields[0].Tag())
		}
		return errors.New("validation failed")
	}
	return nil
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
}

func conflict(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, ErrorResponse{Error: message})
}

func notFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{Error: message})
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})
}

func serverError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// budgetError отвечает на ошибки гейта бюджета и операций с корзиной.
func budgetError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, budget.ErrBudgetExceeded):
		return badRequest(c, "budget exceeded")
	case errors.Is(err, budget.ErrInvalidAmount), errors.Is(err, repository.ErrInvalid):
		return badRequest(c, "invalid amount")
	case errors.Is(err, repository.ErrEmptyCart):
		return badRequest(c, "cart is empty")
	case errors.Is(err, repository.ErrNotFound):
		return notFound(c, "product not found")
	default:
		return serverError(c)
	}
}
