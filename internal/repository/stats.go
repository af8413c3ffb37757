package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsRepository struct {
	db *pgxpool.Pool
}

type OverviewStats struct {
	BudgetTotal     float64
	BudgetRemaining float64
	CartItems       int
	CartTotal       float64
	Purchases       int
	PurchasedTotal  float64
}

type CategorySpend struct {
	Category string
	Spent    float64
	InCart   float64
}

// NewStatsRepository создает репозиторий статистики.
func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{db: db}
}

// Overview возвращает сводку по бюджету, корзине и покупкам пользователя.
func (r *StatsRepository) Overview(ctx context.Context, userID uuid.UUID) (OverviewStats, error) {
	var stats OverviewStats

	err := r.db.QueryRow(ctx,
		`SELECT COALESCE((SELECT total FROM budgets WHERE user_id = $1), 0)::float8,
		        COALESCE((SELECT remaining FROM budgets WHERE user_id = $1), 0)::float8`,
		userID,
	).Scan(&stats.BudgetTotal, &stats.BudgetRemaining)
	if err != nil {
		return stats, err
	}

	err = r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(c.quantity), 0),
		        COALESCE(SUM(p.price * c.quantity), 0)::float8
		 FROM cart_items c
		 JOIN products p ON p.id = c.product_id
		 WHERE c.user_id = $1`,
		userID,
	).Scan(&stats.CartItems, &stats.CartTotal)
	if err != nil {
		return stats, err
	}

	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(unit_price * quantity), 0)::float8
		 FROM purchases
		 WHERE user_id = $1`,
		userID,
	).Scan(&stats.Purchases, &stats.PurchasedTotal)
	if err != nil {
		return stats, err
	}

	return stats, nil
}

// SpendingByCategory возвращает оплаченные суммы и суммы в корзине по категориям.
func (r *StatsRepository) SpendingByCategory(ctx context.Context, userID uuid.UUID) ([]CategorySpend, error) {
	rows, err := r.db.Query(ctx,
		`WITH spent AS (
			SELECT category, SUM(unit_price * quantity) AS amount
			FROM purchases
			WHERE user_id = $1
			GROUP BY category
		), in_cart AS (
			SELECT p.category, SUM(p.price * c.quantity) AS amount
			FROM cart_items c
			JOIN products p ON p.id = c.product_id
			WHERE c.user_id = $1
			GROUP BY p.category
		)
		SELECT COALESCE(s.category, c.category) AS category,
		       COALESCE(s.amount, 0)::float8,
		       COALESCE(c.amount, 0)::float8
		FROM spent s
		FULL OUTER JOIN in_cart c ON c.category = s.category
		ORDER BY category`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	spending := make([]CategorySpend, 0)
	for rows.Next() {
		var row CategorySpend
		if err := rows.Scan(&row.Category, &row.Spent, &row.InCart); err != nil {
			return nil, err
		}
		spending = append(spending, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return spending, nil
}
