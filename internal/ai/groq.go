package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	groqProvider = "groq"
	// Ответ чата укладывается в пару килобайт, больше читать незачем.
	maxGroqResponseBytes = 1 << 20
)

// GroqClient ходит в OpenAI-совместимый chat completions API Groq.
type GroqClient struct {
	opts       ClientOptions
	endpoint   string
	httpClient *http.Client
}

type groqChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type groqChatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGroqClient создает клиент Groq.
func NewGroqClient(opts ClientOptions) *GroqClient {
	return &GroqClient{
		opts:       opts,
		endpoint:   strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// Chat отправляет сообщения в Groq и возвращает текст ответа и тело ответа API.
func (c *GroqClient) Chat(ctx context.Context, messages []Message) (string, []byte, error) {
	if strings.TrimSpace(c.opts.APIKey) == "" {
		return "", nil, ErrMissingAPIKey
	}
	if len(messages) == 0 {
		return "", nil, errors.New("groq request has no messages")
	}

	payload, err := json.Marshal(groqChatRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		Temperature: c.opts.temperature(),
		MaxTokens:   c.opts.maxTokens(),
	})
	if err != nil {
		return "", nil, err
	}

	body, err := c.post(ctx, payload)
	if err != nil {
		return "", body, err
	}

	var parsed groqChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", body, fmt.Errorf("decode groq response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", body, &APIError{Provider: groqProvider, Message: "response has no choices"}
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", body, &APIError{Provider: groqProvider, Message: "empty completion, finish reason " + parsed.Choices[0].FinishReason}
	}

	return content, body, nil
}

func (c *GroqClient) post(ctx context.Context, payload []byte) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxGroqResponseBytes))
	if err != nil {
		return nil, err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		apiErr := &APIError{Provider: groqProvider, Status: response.StatusCode, Message: strings.TrimSpace(string(body))}
		var parsed groqChatResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
			apiErr.Message = parsed.Error.Message
		}
		return body, apiErr
	}

	return body, nil
}
