package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ai-shopmate/backend/internal/models"
)

// revokedRetention: сколько отозванный токен хранится для аудита ротаций.
const revokedRetention = 24 * time.Hour

const (
	insertRefreshToken = `INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		 VALUES (@id, @user_id, @token_hash, @expires_at)`
	revokeRefreshToken = `UPDATE refresh_tokens
		 SET revoked_at = NOW(), replaced_by = @replaced_by
		 WHERE id = @id AND revoked_at IS NULL`
)

type RefreshTokenRepository struct {
	db *pgxpool.Pool
}

// NewRefreshTokenRepository создает репозиторий refresh-токенов.
func NewRefreshTokenRepository(db *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func tokenArgs(token models.RefreshToken) pgx.NamedArgs {
	return pgx.NamedArgs{
		"id":         token.ID,
		"user_id":    token.UserID,
		"token_hash": token.TokenHash,
		"expires_at": token.ExpiresAt,
	}
}

// Create сохраняет refresh-токен.
func (r *RefreshTokenRepository) Create(ctx context.Context, token models.RefreshToken) error {
	_, err := r.db.Exec(ctx, insertRefreshToken, tokenArgs(token))
	return err
}

// GetByID возвращает refresh-токен по идентификатору.
func (r *RefreshTokenRepository) GetByID(ctx context.Context, id uuid.UUID) (models.RefreshToken, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, token_hash, expires_at, created_at, revoked_at, replaced_by
		 FROM refresh_tokens
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return models.RefreshToken{}, err
	}

	token, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.RefreshToken])
	if err != nil {
		return models.RefreshToken{}, translateError(err)
	}
	return token, nil
}

// Revoke помечает refresh-токен отозванным (logout).
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID, replacedBy *uuid.UUID) error {
	return revoke(ctx, r.db, id, replacedBy)
}

// Rotate выпускает новый токен и отзывает старый одной транзакцией.
// Повторное использование уже отозванного токена дает ErrNotFound.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldID uuid.UUID, newToken models.RefreshToken) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertRefreshToken, tokenArgs(newToken)); err != nil {
			return err
		}
		return revoke(ctx, tx, oldID, &newToken.ID)
	})
}

// PurgeExpired удаляет истекшие токены и отозванные старше суток.
func (r *RefreshTokenRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx,
		`DELETE FROM refresh_tokens
		 WHERE expires_at < @now
		    OR (revoked_at IS NOT NULL AND revoked_at < @revoked_before)`,
		pgx.NamedArgs{"now": now, "revoked_before": now.Add(-revokedRetention)},
	)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func revoke(ctx context.Context, db execer, id uuid.UUID, replacedBy *uuid.UUID) error {
	cmd, err := db.Exec(ctx, revokeRefreshToken, pgx.NamedArgs{"id": id, "replaced_by": replacedBy})
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
