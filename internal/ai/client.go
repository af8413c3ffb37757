package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	defaultMaxTokens   = 1024
	defaultTemperature = 0.4
)

// ErrMissingAPIKey: провайдер не настроен. Сервис в этом случае отвечает запасным текстом.
var ErrMissingAPIKey = errors.New("ai api key is missing")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client: провайдер LLM. Возвращает текст ответа и сырой ответ API для журнала.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, []byte, error)
}

// ClientOptions: общие настройки провайдеров.
type ClientOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

func (o ClientOptions) maxTokens() int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return defaultMaxTokens
}

func (o ClientOptions) temperature() float32 {
	if o.Temperature > 0 {
		return o.Temperature
	}
	return defaultTemperature
}

// APIError: провайдер ответил ошибкой.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s api error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.Status, e.Message)
}
