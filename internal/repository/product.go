package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ai-shopmate/backend/internal/models"
)

type ProductRepository struct {
	db *pgxpool.Pool
}

type CategoryCount struct {
	Category string
	Count    int
}

const productColumns = `id, name, price::float8, category, tags, rating::float8, image_url`

// NewProductRepository создает репозиторий каталога.
func NewProductRepository(db *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: db}
}

// List возвращает весь каталог в исходном порядке загрузки.
func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	return r.query(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 ORDER BY position, id`,
	)
}

// ListByCategory возвращает товары одной категории.
func (r *ProductRepository) ListByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return r.query(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE category = $1
		 ORDER BY position, id`,
		strings.ToLower(strings.TrimSpace(category)),
	)
}

// Search ищет по названию или тегу. Пустая категория не фильтрует.
func (r *ProductRepository) Search(ctx context.Context, query, category string) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	category = strings.ToLower(strings.TrimSpace(category))

	return r.query(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR LOWER($1) = ANY(tags))
		   AND ($2 = '' OR category = $2)
		 ORDER BY position, id`,
		query, category,
	)
}

// GetByID возвращает товар по идентификатору.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (models.Product, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE id = $1`,
		id,
	)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product, ErrNotFound
		}
		return product, err
	}

	return product, nil
}

// GetByIDs возвращает найденные товары, отсутствующие id пропускаются.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	return r.query(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE id = ANY($1)
		 ORDER BY position, id`,
		ids,
	)
}

// Categories возвращает категории с количеством товаров.
func (r *ProductRepository) Categories(ctx context.Context) ([]CategoryCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT category, COUNT(*)
		 FROM products
		 GROUP BY category
		 ORDER BY MIN(position), category`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]CategoryCount, 0)
	for rows.Next() {
		var row CategoryCount
		if err := rows.Scan(&row.Category, &row.Count); err != nil {
			return nil, err
		}
		categories = append(categories, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return categories, nil
}

// Count возвращает число товаров в каталоге.
func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ReplaceAll заменяет каталог целиком. Товары, которых нет в новом каталоге,
// удаляются вместе с позициями корзин.
func (r *ProductRepository) ReplaceAll(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return ErrInvalid
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ids := make([]string, 0, len(products))
	batch := &pgx.Batch{}
	for i, p := range products {
		ids = append(ids, p.ID)
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(
			`INSERT INTO products (id, name, price, category, tags, rating, image_url, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE
			 SET name = EXCLUDED.name,
			     price = EXCLUDED.price,
			     category = EXCLUDED.category,
			     tags = EXCLUDED.tags,
			     rating = EXCLUDED.rating,
			     image_url = EXCLUDED.image_url,
			     position = EXCLUDED.position`,
			p.ID, p.Name, p.Price, p.Category, tags, p.Rating, p.ImageURL, i,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM products WHERE NOT (id = ANY($1))`, ids); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *ProductRepository) query(ctx context.Context, sql string, args ...interface{}) ([]models.Product, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func scanProduct(row pgx.Row) (models.Product, error) {
	var product models.Product
	var rating *float64
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Category,
		&product.Tags,
		&rating,
		&product.ImageURL,
	)
	product.Rating = rating
	return product, err
}
