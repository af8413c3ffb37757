package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"example.com/ai-shopmate/backend/internal/budget"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid input")
	ErrEmptyCart = errors.New("cart is empty")

	// ErrBudgetExceeded совпадает с ошибкой гейта бюджета, чтобы errors.Is работал в обе стороны.
	ErrBudgetExceeded = budget.ErrBudgetExceeded
)

const uniqueViolation = "23505"

// translateError сводит ошибки pgx к ошибкам репозитория.
func translateError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}
