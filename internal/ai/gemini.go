package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient работает с Gemini через официальный SDK.
type GeminiClient struct {
	client *genai.Client
	opts   ClientOptions
}

// NewGeminiClient создает клиент Gemini. Пустой ключ не ошибка: Chat вернет ошибку,
// а сервис ответит запасным текстом.
func NewGeminiClient(ctx context.Context, opts ClientOptions) (*GeminiClient, error) {
	c := &GeminiClient{opts: opts}

	if strings.TrimSpace(opts.APIKey) == "" {
		return c, nil
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.BaseURL))
	}

	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.client = client

	return c, nil
}

// Close освобождает соединения SDK.
func (c *GeminiClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Chat отправляет историю в Gemini и возвращает текст ответа и сериализованный ответ SDK.
func (c *GeminiClient) Chat(ctx context.Context, messages []Message) (string, []byte, error) {
	if c.client == nil {
		return "", nil, ErrMissingAPIKey
	}

	system, history, last, err := splitGeminiMessages(messages)
	if err != nil {
		return "", nil, err
	}

	model := c.client.GenerativeModel(c.opts.Model)
	model.SetTemperature(c.opts.temperature())
	model.SetMaxOutputTokens(int32(c.opts.maxTokens()))
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: system}
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", nil, fmt.Errorf("gemini generate: %w", err)
	}

	raw, _ := json.Marshal(resp)

	text := extractGeminiText(resp)
	if text == "" {
		return "", raw, &APIError{Provider: "gemini", Message: "response has no text content"}
	}

	return text, raw, nil
}

// splitGeminiMessages раскладывает сообщения на system instruction, историю и последний запрос.
// Последнее сообщение должно быть от пользователя.
func splitGeminiMessages(messages []Message) ([]genai.Part, []*genai.Content, string, error) {
	system := make([]genai.Part, 0)
	history := make([]*genai.Content, 0)

	for _, message := range messages {
		text := strings.TrimSpace(message.Content)
		if text == "" {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(message.Role)) {
		case RoleSystem:
			system = append(system, genai.Text(text))
		case RoleAssistant, "model":
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(text)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(text)}})
		}
	}

	if len(history) == 0 || history[len(history)-1].Role != "user" {
		return nil, nil, "", errors.New("gemini request has no user content")
	}

	last := history[len(history)-1]
	history = history[:len(history)-1]

	return system, history, string(last.Parts[0].(genai.Text)), nil
}

func extractGeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				builder.WriteString(string(text))
			}
		}
		if builder.Len() > 0 {
			break
		}
	}

	return strings.TrimSpace(builder.String())
}
