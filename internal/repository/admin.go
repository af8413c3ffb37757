package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepository struct {
	db *pgxpool.Pool
}

// AdminUser: пользователь в админке вместе с состоянием бюджета и корзины.
type AdminUser struct {
	ID              uuid.UUID `db:"id"`
	Email           string    `db:"email"`
	Name            *string   `db:"name"`
	Onboarded       bool      `db:"onboarded"`
	BudgetTotal     float64   `db:"budget_total"`
	BudgetRemaining float64   `db:"budget_remaining"`
	CartItems       int       `db:"cart_items"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type AIRequestFilter struct {
	UserID      *uuid.UUID
	Success     *bool
	RequestType *string
}

type AIRequestRecord struct {
	ID              uuid.UUID `db:"id"`
	UserID          uuid.UUID `db:"user_id"`
	RequestType     string    `db:"request_type"`
	Provider        string    `db:"provider"`
	Model           string    `db:"model"`
	Prompt          *string   `db:"prompt"`
	RequestPayload  []byte    `db:"request_payload"`
	ResponsePayload []byte    `db:"response_payload"`
	RawResponse     *string   `db:"raw_response"`
	Success         bool      `db:"success"`
	ErrorMessage    *string   `db:"error_message"`
	CreatedAt       time.Time `db:"created_at"`
}

type DailyCount struct {
	Day   time.Time `db:"day"`
	Count int       `db:"count"`
}

type UsageStats struct {
	Users           int
	Products        int
	CartItems       int
	Purchases       int
	PurchasedTotal  float64
	AIRequests      int
	AISuccess       int
	AIFail          int
	AIRequestsByDay []DailyCount
}

const (
	aiRequestColumns = `id, user_id, request_type, provider, model, success, error_message, created_at`

	aiPayloadColumns = `prompt, request_payload, response_payload, raw_response`

	aiPayloadOmitted = `NULL::text AS prompt, NULL::jsonb AS request_payload,
	NULL::jsonb AS response_payload, NULL::text AS raw_response`
)

// NewAdminRepository создает репозиторий для админских запросов.
func NewAdminRepository(db *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db: db}
}

// ListUsers возвращает пользователей с бюджетом и размером корзины.
func (r *AdminRepository) ListUsers(ctx context.Context, limit, offset int) ([]AdminUser, error) {
	rows, err := r.db.Query(ctx,
		`SELECT u.id, u.email, u.name,
		        COALESCE(p.onboarded, FALSE) AS onboarded,
		        COALESCE(b.total, 0)::float8 AS budget_total,
		        COALESCE(b.remaining, 0)::float8 AS budget_remaining,
		        COALESCE((SELECT SUM(c.quantity) FROM cart_items c WHERE c.user_id = u.id), 0)::int AS cart_items,
		        u.created_at, u.updated_at
		 FROM users u
		 LEFT JOIN profiles p ON p.user_id = u.id
		 LEFT JOIN budgets b ON b.user_id = u.id
		 ORDER BY u.created_at DESC
		 LIMIT @limit OFFSET @offset`,
		pgx.NamedArgs{"limit": limit, "offset": offset},
	)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowToStructByName[AdminUser])
}

// CountUsers возвращает общее количество пользователей.
func (r *AdminRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListAIRequests возвращает журнал AI-запросов. Без includePayloads тексты
// промптов и ответов не читаются.
func (r *AdminRepository) ListAIRequests(ctx context.Context, filter AIRequestFilter, limit, offset int, includePayloads bool) ([]AIRequestRecord, error) {
	where, args := buildAIRequestWhere(filter)
	args["limit"] = limit
	args["offset"] = offset

	payload := aiPayloadOmitted
	if includePayloads {
		payload = aiPayloadColumns
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+aiRequestColumns+`, `+payload+`
		 FROM ai_requests`+where+`
		 ORDER BY created_at DESC
		 LIMIT @limit OFFSET @offset`,
		args,
	)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowToStructByName[AIRequestRecord])
}

// CountAIRequests возвращает количество AI-запросов по фильтру.
func (r *AdminRepository) CountAIRequests(ctx context.Context, filter AIRequestFilter) (int, error) {
	where, args := buildAIRequestWhere(filter)

	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ai_requests`+where, args).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UsageStats возвращает сводку по магазину и AI-запросам за последние days дней.
func (r *AdminRepository) UsageStats(ctx context.Context, days int) (UsageStats, error) {
	stats := UsageStats{}
	if days <= 0 {
		return stats, ErrInvalid
	}

	err := r.db.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM users),
		        (SELECT COUNT(*) FROM products),
		        (SELECT COALESCE(SUM(quantity), 0) FROM cart_items),
		        (SELECT COUNT(*) FROM purchases),
		        (SELECT COALESCE(SUM(unit_price * quantity), 0) FROM purchases)::float8,
		        COUNT(a.id),
		        COUNT(a.id) FILTER (WHERE a.success),
		        COUNT(a.id) FILTER (WHERE NOT a.success)
		 FROM ai_requests a`,
	).Scan(
		&stats.Users,
		&stats.Products,
		&stats.CartItems,
		&stats.Purchases,
		&stats.PurchasedTotal,
		&stats.AIRequests,
		&stats.AISuccess,
		&stats.AIFail,
	)
	if err != nil {
		return stats, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT date_trunc('day', created_at)::date AS day, COUNT(*)::int AS count
		 FROM ai_requests
		 WHERE created_at >= @since
		 GROUP BY day
		 ORDER BY day DESC`,
		pgx.NamedArgs{"since": time.Now().UTC().AddDate(0, 0, -days+1)},
	)
	if err != nil {
		return stats, err
	}

	stats.AIRequestsByDay, err = pgx.CollectRows(rows, pgx.RowToStructByName[DailyCount])
	if err != nil {
		return stats, err
	}

	return stats, nil
}

// buildAIRequestWhere собирает условие WHERE с именованными параметрами.
func buildAIRequestWhere(filter AIRequestFilter) (string, pgx.NamedArgs) {
	args := pgx.NamedArgs{}
	var clauses []string

	if filter.UserID != nil {
		args["user_id"] = *filter.UserID
		clauses = append(clauses, "user_id = @user_id")
	}
	if filter.Success != nil {
		args["success"] = *filter.Success
		clauses = append(clauses, "success = @success")
	}
	if filter.RequestType != nil {
		args["request_type"] = *filter.RequestType
		clauses = append(clauses, "request_type = @request_type")
	}

	if len(clauses) == 0 {
		return "", args
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}
