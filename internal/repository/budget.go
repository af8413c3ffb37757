package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ai-shopmate/backend/internal/budget"
	"example.com/ai-shopmate/backend/internal/models"
)

type BudgetRepository struct {
	db *pgxpool.Pool
}

// NewBudgetRepository создает репозиторий бюджетов.
func NewBudgetRepository(db *pgxpool.Pool) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// Get возвращает бюджет пользователя. Отсутствующая строка создается с нулями.
func (r *BudgetRepository) Get(ctx context.Context, userID uuid.UUID) (models.BudgetState, error) {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO budgets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	); err != nil {
		return models.BudgetState{}, err
	}

	state := models.BudgetState{UserID: userID}
	err := r.db.QueryRow(ctx,
		`SELECT total::float8, remaining::float8, updated_at
		 FROM budgets
		 WHERE user_id = $1`,
		userID,
	).Scan(&state.Total, &state.Remaining, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return state, ErrNotFound
		}
		return state, err
	}

	return state, nil
}

// Mutate применяет fn к леджеру под блокировкой строки и сохраняет результат.
// Ошибка fn откатывает транзакцию и возвращается как есть.
func (r *BudgetRepository) Mutate(ctx context.Context, userID uuid.UUID, fn func(*budget.Ledger) error) (models.BudgetState, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.BudgetState{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ledger, err := lockLedger(ctx, tx, userID)
	if err != nil {
		return models.BudgetState{}, err
	}

	if err := fn(&ledger); err != nil {
		return models.BudgetState{}, err
	}

	state, err := saveLedger(ctx, tx, userID, ledger)
	if err != nil {
		return state, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.BudgetState{}, err
	}

	return state, nil
}

// lockLedger читает бюджет с блокировкой FOR UPDATE, создавая строку при необходимости.
func lockLedger(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (budget.Ledger, error) {
	if _, err := tx.Exec(ctx,
		`INSERT INTO budgets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	); err != nil {
		return budget.Ledger{}, err
	}

	var total, remaining float64
	err := tx.QueryRow(ctx,
		`SELECT total::float8, remaining::float8
		 FROM budgets
		 WHERE user_id = $1
		 FOR UPDATE`,
		userID,
	).Scan(&total, &remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return budget.Ledger{}, ErrNotFound
		}
		return budget.Ledger{}, err
	}

	return budget.Restore(total, remaining), nil
}

func saveLedger(ctx context.Context, tx pgx.Tx, userID uuid.UUID, ledger budget.Ledger) (models.BudgetState, error) {
	state := models.BudgetState{UserID: userID}
	err := tx.QueryRow(ctx,
		`UPDATE budgets
		 SET total = $2, remaining = $3, updated_at = NOW()
		 WHERE user_id = $1
		 RETURNING total::float8, remaining::float8, updated_at`,
		userID, ledger.Total(), ledger.Remaining(),
	).Scan(&state.Total, &state.Remaining, &state.UpdatedAt)
	if err != nil {
		return state, err
	}

	return state, nil
}
