package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"example.com/ai-shopmate/backend/internal/budget"
	"example.com/ai-shopmate/backend/internal/models"
)

const (
	defaultHistoryLimit = 20
	defaultSuggestLimit = 5
	maxSuggestLimit     = 10
	fallbackReason      = "Picked the most affordable items from your preferred categories that fit your budget."
)

var ErrInvalidStep = errors.New("invalid onboarding step")

type Service struct {
	client       Client
	historyLimit int
}

// NewService создает сервис ассистента поверх LLM-клиента.
func NewService(client Client) *Service {
	return &Service{client: client, historyLimit: defaultHistoryLimit}
}

// Reply отвечает на сообщение пользователя в чате. При ошибке провайдера
// возвращается FallbackReply вместе с ошибкой, чтобы вызывающий мог ее залогировать.
func (s *Service) Reply(ctx context.Context, input ChatInput) (string, string, []byte, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return "", "", nil, errors.New("message is required")
	}

	system := buildChatContext(input)
	messages := []Message{{Role: RoleSystem, Content: system}}
	messages = append(messages, trimHistory(input.History, s.historyLimit)...)
	messages = append(messages, Message{Role: RoleUser, Content: message})

	reply, raw, err := s.client.Chat(ctx, messages)
	if err != nil {
		slog.Warn("ai chat failed, using fallback reply", slog.String("error", err.Error()))
		return FallbackReply, message, raw, err
	}

	return reply, message, raw, nil
}

// OnboardingMessage возвращает реплику ассистента для шага онбординга.
// Без ответа провайдера используется статичный вопрос шага.
func (s *Service) OnboardingMessage(ctx context.Context, step OnboardingStep, answer string) (string, string, []byte, error) {
	if !step.Valid() {
		return "", "", nil, ErrInvalidStep
	}

	prompt := buildOnboardingPrompt(step, answer)
	messages := []Message{
		{Role: RoleSystem, Content: assistantContext},
		{Role: RoleUser, Content: prompt},
	}

	reply, raw, err := s.client.Chat(ctx, messages)
	if err != nil {
		slog.Warn("ai onboarding failed, using static prompt", slog.Int("step", int(step)), slog.String("error", err.Error()))
		return OnboardingPrompt(step), prompt, raw, err
	}

	return reply, prompt, raw, nil
}

// Suggest просит модель подобрать товары под бюджет. Ответ проверяется по каталогу
// и гейту бюджета; при любой ошибке возвращается FallbackSuggestion.
func (s *Service) Suggest(ctx context.Context, input SuggestInput) (Suggestion, string, []byte, error) {
	limit := resolveSuggestLimit(input.Limit)

	prompt, err := buildSuggestPrompt(input, limit)
	if err != nil {
		return FallbackSuggestion(input), "", nil, err
	}

	messages := []Message{
		{Role: RoleSystem, Content: "You are a shopping assistant. Respond with JSON only, without extra text."},
		{Role: RoleUser, Content: prompt},
	}

	content, raw, err := s.client.Chat(ctx, messages)
	if err != nil {
		return FallbackSuggestion(input), prompt, raw, err
	}

	var response suggestionResponse
	if err := parseJSON(content, &response); err != nil {
		return FallbackSuggestion(input), prompt, raw, err
	}

	suggestion, err := validateSuggestion(response, input, limit)
	if err != nil {
		return FallbackSuggestion(input), prompt, raw, err
	}

	return suggestion, prompt, raw, nil
}

// FallbackSuggestion детерминированно подбирает товары: сначала предпочитаемые категории,
// внутри по возрастанию цены, каждый товар проходит гейт бюджета.
func FallbackSuggestion(input SuggestInput) Suggestion {
	limit := resolveSuggestLimit(input.Limit)

	rank := make(map[string]int, len(input.Preferences))
	for i, category := range input.Preferences {
		key := strings.ToLower(strings.TrimSpace(category))
		if _, ok := rank[key]; !ok {
			rank[key] = i
		}
	}
	categoryRank := func(category string) int {
		if r, ok := rank[strings.ToLower(category)]; ok {
			return r
		}
		return len(rank)
	}

	candidates := make([]models.Product, len(input.Catalog))
	copy(candidates, input.Catalog)
	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := categoryRank(candidates[i].Category), categoryRank(candidates[j].Category)
		if ri != rj {
			return ri < rj
		}
		return candidates[i].Price < candidates[j].Price
	})

	suggestion := Suggestion{Products: []models.Product{}, Reason: fallbackReason, Fallback: true}
	spent := input.Budget.Spent + input.Budget.CartTotal
	for _, product := range candidates {
		if len(suggestion.Products) == limit {
			break
		}
		if err := budget.Admit(spent, product.Price, input.Budget.Total); err != nil {
			continue
		}
		spent += product.Price
		suggestion.Total += product.Price
		suggestion.Products = append(suggestion.Products, product)
	}

	return suggestion
}

func validateSuggestion(response suggestionResponse, input SuggestInput, limit int) (Suggestion, error) {
	if len(response.ProductIDs) == 0 {
		return Suggestion{}, errors.New("suggestion has no products")
	}
	if len(response.ProductIDs) > limit {
		return Suggestion{}, fmt.Errorf("suggestion has %d products, limit is %d", len(response.ProductIDs), limit)
	}

	byID := make(map[string]models.Product, len(input.Catalog))
	for _, p := range input.Catalog {
		byID[p.ID] = p
	}

	suggestion := Suggestion{
		Products: make([]models.Product, 0, len(response.ProductIDs)),
		Reason:   strings.TrimSpace(response.Reason),
	}
	seen := make(map[string]struct{}, len(response.ProductIDs))
	spent := input.Budget.Spent + input.Budget.CartTotal

	for _, id := range response.ProductIDs {
		id = strings.TrimSpace(id)
		product, ok := byID[id]
		if !ok {
			return Suggestion{}, fmt.Errorf("unknown product id %q", id)
		}
		if _, dup := seen[id]; dup {
			return Suggestion{}, fmt.Errorf("duplicate product id %q", id)
		}
		seen[id] = struct{}{}

		if err := budget.Admit(spent, product.Price, input.Budget.Total); err != nil {
			return Suggestion{}, fmt.Errorf("product %q: %w", id, err)
		}
		spent += product.Price
		suggestion.Total += product.Price
		suggestion.Products = append(suggestion.Products, product)
	}

	if suggestion.Reason == "" {
		suggestion.Reason = "Suggested by the assistant within your budget."
	}

	return suggestion, nil
}

func resolveSuggestLimit(limit int) int {
	if limit <= 0 {
		return defaultSuggestLimit
	}
	if limit > maxSuggestLimit {
		return maxSuggestLimit
	}
	return limit
}

// trimHistory оставляет последние limit сообщений в формате провайдера.
func trimHistory(history []models.ChatMessage, limit int) []Message {
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	messages := make([]Message, 0, len(history))
	for _, msg := range history {
		role := RoleUser
		if msg.Role == models.ChatRoleAssistant {
			role = RoleAssistant
		}
		messages = append(messages, Message{Role: role, Content: msg.Content})
	}
	return messages
}

func parseJSON(input string, target interface{}) error {
	payload := extractJSON(input)
	if payload == "" {
		return errors.New("ai response does not contain json")
	}

	return json.Unmarshal([]byte(payload), target)
}

func extractJSON(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimPrefix(strings.TrimSpace(trimmed), "json")
		trimmed = strings.TrimSpace(trimmed)
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}

	return trimmed[start : end+1]
}
