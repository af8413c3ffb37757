package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Типы AI-запросов, которые пишутся в журнал.
const (
	AIRequestChat       = "chat"
	AIRequestOnboarding = "onboarding"
	AIRequestSuggest    = "suggest"
)

// AIRequestLog: одна запись журнала обращений к LLM, успешных и нет.
type AIRequestLog struct {
	UserID          uuid.UUID
	RequestType     string
	Provider        string
	Model           string
	Prompt          string
	RequestPayload  []byte
	ResponsePayload []byte
	RawResponse     string
	Success         bool
	ErrorMessage    *string
}

func (l AIRequestLog) args() pgx.NamedArgs {
	return pgx.NamedArgs{
		"user_id":          l.UserID,
		"request_type":     l.RequestType,
		"provider":         l.Provider,
		"model":            l.Model,
		"prompt":           l.Prompt,
		"request_payload":  string(l.RequestPayload),
		"response_payload": string(l.ResponsePayload),
		"raw_response":     l.RawResponse,
		"success":          l.Success,
		"error_message":    l.ErrorMessage,
	}
}

type AIRepository struct {
	db *pgxpool.Pool
}

// NewAIRepository создает репозиторий журнала AI-запросов.
func NewAIRepository(db *pgxpool.Pool) *AIRepository {
	return &AIRepository{db: db}
}

// LogRequest пишет запрос в журнал. Пустые JSON-полезные нагрузки сохраняются как NULL.
func (r *AIRepository) LogRequest(ctx context.Context, log AIRequestLog) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ai_requests
		 (user_id, request_type, provider, model, prompt, request_payload, response_payload, raw_response, success, error_message)
		 VALUES (@user_id, @request_type, @provider, @model, @prompt,
		         NULLIF(@request_payload, '')::jsonb, NULLIF(@response_payload, '')::jsonb,
		         @raw_response, @success, @error_message)`,
		log.args(),
	)
	return err
}
