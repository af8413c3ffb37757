package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ai-shopmate/backend/internal/models"
)

const userColumns = `id, email, password_hash, name, created_at, updated_at`

type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository создает репозиторий пользователей.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create регистрирует покупателя. Профиль и бюджет заводятся в той же транзакции,
// поэтому у любого пользователя они есть с первого запроса.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string, name *string) (models.User, error) {
	var user models.User

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`INSERT INTO users (email, password_hash, name)
			 VALUES (@email, @password_hash, @name)
			 RETURNING `+userColumns,
			pgx.NamedArgs{"email": email, "password_hash": passwordHash, "name": name},
		)
		if err != nil {
			return err
		}
		user, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.User])
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		batch.Queue(`INSERT INTO profiles (user_id) VALUES ($1)`, user.ID)
		batch.Queue(`INSERT INTO budgets (user_id) VALUES ($1)`, user.ID)
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return models.User{}, translateError(err)
	}

	return user, nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getOne(ctx, `email = $1`, email)
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg interface{}) (models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err != nil {
		return models.User{}, err
	}

	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.User])
	if err != nil {
		return models.User{}, translateError(err)
	}
	return user, nil
}
