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

type CartRepository struct {
	db *pgxpool.Pool
}

type CheckoutResult struct {
	Lines  []models.CartLine
	Total  float64
	Budget models.BudgetState
}

// NewCartRepository создает репозиторий корзин.
func NewCartRepository(db *pgxpool.Pool) *CartRepository {
	return &CartRepository{db: db}
}

// List возвращает позиции корзины вместе с товарами.
func (r *CartRepository) List(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	return listCart(ctx, r.db, userID)
}

// Add добавляет товар в корзину, если покупка укладывается в бюджет.
// Повторное добавление увеличивает количество.
func (r *CartRepository) Add(ctx context.Context, userID uuid.UUID, productID string, quantity int) (models.CartItem, error) {
	var item models.CartItem
	if quantity <= 0 {
		return item, ErrInvalid
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return item, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ledger, err := lockLedger(ctx, tx, userID)
	if err != nil {
		return item, err
	}

	price, err := productPrice(ctx, tx, productID)
	if err != nil {
		return item, err
	}

	cartTotal, err := cartTotal(ctx, tx, userID, "")
	if err != nil {
		return item, err
	}

	if err := admitQuantity(ledger, cartTotal, price, quantity); err != nil {
		return item, err
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, product_id) DO UPDATE
		 SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		 RETURNING user_id, product_id, quantity, added_at, updated_at`,
		userID, productID, quantity,
	).Scan(&item.UserID, &item.ProductID, &item.Quantity, &item.AddedAt, &item.UpdatedAt)
	if err != nil {
		return item, err
	}

	if err := tx.Commit(ctx); err != nil {
		return item, err
	}

	return item, nil
}

// SetQuantity задает количество позиции. Увеличение проходит проверку бюджета.
func (r *CartRepository) SetQuantity(ctx context.Context, userID uuid.UUID, productID string, quantity int) (models.CartItem, error) {
	var item models.CartItem
	if quantity <= 0 {
		return item, ErrInvalid
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return item, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ledger, err := lockLedger(ctx, tx, userID)
	if err != nil {
		return item, err
	}

	var current int
	err = tx.QueryRow(ctx,
		`SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return item, ErrNotFound
		}
		return item, err
	}

	if quantity > current {
		price, err := productPrice(ctx, tx, productID)
		if err != nil {
			return item, err
		}

		others, err := cartTotal(ctx, tx, userID, productID)
		if err != nil {
			return item, err
		}

		if err := admitQuantity(ledger, others, price, quantity); err != nil {
			return item, err
		}
	}

	err = tx.QueryRow(ctx,
		`UPDATE cart_items
		 SET quantity = $3, updated_at = NOW()
		 WHERE user_id = $1 AND product_id = $2
		 RETURNING user_id, product_id, quantity, added_at, updated_at`,
		userID, productID, quantity,
	).Scan(&item.UserID, &item.ProductID, &item.Quantity, &item.AddedAt, &item.UpdatedAt)
	if err != nil {
		return item, err
	}

	if err := tx.Commit(ctx); err != nil {
		return item, err
	}

	return item, nil
}

// Remove удаляет позицию из корзины.
func (r *CartRepository) Remove(ctx context.Context, userID uuid.UUID, productID string) error {
	cmd, err := r.db.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Clear очищает корзину.
func (r *CartRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

// Total возвращает стоимость корзины.
func (r *CartRepository) Total(ctx context.Context, userID uuid.UUID) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(p.price * c.quantity), 0)::float8
		 FROM cart_items c
		 JOIN products p ON p.id = c.product_id
		 WHERE c.user_id = $1`,
		userID,
	).Scan(&total)
	return total, err
}

// Checkout списывает стоимость корзины с бюджета, фиксирует покупки и очищает корзину.
func (r *CartRepository) Checkout(ctx context.Context, userID uuid.UUID) (CheckoutResult, error) {
	var result CheckoutResult

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return result, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ledger, err := lockLedger(ctx, tx, userID)
	if err != nil {
		return result, err
	}

	lines, err := listCart(ctx, tx, userID)
	if err != nil {
		return result, err
	}

	total, err := checkoutTotal(ledger, lines)
	if err != nil {
		return result, err
	}

	if err := ledger.Spend(total); err != nil {
		return result, ErrInvalid
	}

	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(
			`INSERT INTO purchases (user_id, product_id, name, category, unit_price, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			userID, line.Product.ID, line.Product.Name, line.Product.Category, line.Product.Price, line.Item.Quantity,
		)
	}
	batch.Queue(`DELETE FROM cart_items WHERE user_id = $1`, userID)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return result, err
	}

	state, err := saveLedger(ctx, tx, userID, ledger)
	if err != nil {
		return result, err
	}

	if err := tx.Commit(ctx); err != nil {
		return result, err
	}

	result.Lines = lines
	result.Total = total
	result.Budget = state
	return result, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func listCart(ctx context.Context, q querier, userID uuid.UUID) ([]models.CartLine, error) {
	rows, err := q.Query(ctx,
		`SELECT c.user_id, c.product_id, c.quantity, c.added_at, c.updated_at,
		        p.id, p.name, p.price::float8, p.category, p.tags, p.rating::float8, p.image_url
		 FROM cart_items c
		 JOIN products p ON p.id = c.product_id
		 WHERE c.user_id = $1
		 ORDER BY c.added_at, c.product_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]models.CartLine, 0)
	for rows.Next() {
		var line models.CartLine
		var rating *float64
		if err := rows.Scan(
			&line.Item.UserID,
			&line.Item.ProductID,
			&line.Item.Quantity,
			&line.Item.AddedAt,
			&line.Item.UpdatedAt,
			&line.Product.ID,
			&line.Product.Name,
			&line.Product.Price,
			&line.Product.Category,
			&line.Product.Tags,
			&rating,
			&line.Product.ImageURL,
		); err != nil {
			return nil, err
		}
		line.Product.Rating = rating
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// cartTotal суммирует корзину, не учитывая позицию exclude.
func cartTotal(ctx context.Context, q querier, userID uuid.UUID, exclude string) (float64, error) {
	var total float64
	err := q.QueryRow(ctx,
		`SELECT COALESCE(SUM(p.price * c.quantity), 0)::float8
		 FROM cart_items c
		 JOIN products p ON p.id = c.product_id
		 WHERE c.user_id = $1 AND c.product_id <> $2`,
		userID, exclude,
	).Scan(&total)
	return total, err
}

func productPrice(ctx context.Context, q querier, productID string) (float64, error) {
	var price float64
	err := q.QueryRow(ctx, `SELECT price::float8 FROM products WHERE id = $1`, productID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return price, nil
}

func admit(ledger budget.Ledger, cartTotal, price float64) error {
	return gateError(budget.AdmitCart(ledger, cartTotal, price))
}

// admitQuantity проверяет позицию целиком: цена за единицу умножается на количество.
func admitQuantity(ledger budget.Ledger, cartTotal, price float64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalid
	}
	return admit(ledger, cartTotal, price*float64(quantity))
}

// checkoutTotal считает стоимость корзины и проверяет, что ее покрывает остаток.
func checkoutTotal(ledger budget.Ledger, lines []models.CartLine) (float64, error) {
	if len(lines) == 0 {
		return 0, ErrEmptyCart
	}

	total := 0.0
	for _, line := range lines {
		total += line.Subtotal()
	}

	if err := gateError(budget.AdmitCheckout(ledger, total)); err != nil {
		return 0, err
	}
	return total, nil
}

func gateError(err error) error {
	if errors.Is(err, budget.ErrInvalidAmount) {
		return ErrInvalid
	}
	return err
}
