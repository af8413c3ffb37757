package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ai-shopmate/backend/internal/models"
)

type ChatRepository struct {
	db *pgxpool.Pool
}

// NewChatRepository создает репозиторий истории чата.
func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

// Save сохраняет сообщение чата.
func (r *ChatRepository) Save(ctx context.Context, userID uuid.UUID, role models.ChatRole, content string) (models.ChatMessage, error) {
	msg := models.ChatMessage{UserID: userID}
	err := r.db.QueryRow(ctx,
		`INSERT INTO chat_messages (user_id, role, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, role, content, created_at`,
		userID, string(role), content,
	).Scan(&msg.ID, &msg.Role, &msg.Content, &msg.CreatedAt)
	return msg, err
}

// History возвращает последние limit сообщений в хронологическом порядке.
func (r *ChatRepository) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		return nil, ErrInvalid
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, role, content, created_at
		 FROM (
			SELECT id, user_id, role, content, created_at
			FROM chat_messages
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		 ) recent
		 ORDER BY created_at`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// Clear удаляет историю чата пользователя.
func (r *ChatRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chat_messages WHERE user_id = $1`, userID)
	return err
}
