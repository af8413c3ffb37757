package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"example.com/ai-shopmate/backend/internal/models"
)

type fakeClient struct {
	reply    string
	err      error
	messages []Message
}

func (f *fakeClient) Chat(ctx context.Context, messages []Message) (string, []byte, error) {
	f.messages = messages
	if f.err != nil {
		return "", nil, f.err
	}
	return f.reply, []byte(`{"ok":true}`), nil
}

func testCatalog() []models.Product {
	return []models.Product{
		{ID: "1", Name: "MacBook Pro", Price: 1299, Category: "electronics"},
		{ID: "13", Name: "Summer Dress", Price: 89, Category: "fashion"},
		{ID: "17", Name: "Sports Wear Set", Price: 79, Category: "fashion"},
		{ID: "22", Name: "Indoor Plant Set", Price: 49, Category: "home"},
		{ID: "25", Name: "Bedroom Lamp", Price: 79, Category: "home"},
	}
}

func productIDs(products []models.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

// TestReplyFallback проверяет запасной ответ при ошибке провайдера.
func TestReplyFallback(t *testing.T) {
	client := &fakeClient{err: errors.New("quota exceeded")}
	service := NewService(client)

	reply, _, _, err := service.Reply(context.Background(), ChatInput{Message: "any deals?"})
	if err == nil {
		t.Fatal("expected provider error to be returned")
	}
	if reply != FallbackReply {
		t.Fatalf("expected fallback reply, got %q", reply)
	}
}

// TestReplyBuildsContext проверяет, что контекст содержит бюджет, корзину и историю.
func TestReplyBuildsContext(t *testing.T) {
	client := &fakeClient{reply: "Try the summer dress!"}
	service := NewService(client)

	input := ChatInput{
		Message: "What should I buy?",
		History: []models.ChatMessage{
			{Role: models.ChatRoleUser, Content: "hi"},
			{Role: models.ChatRoleAssistant, Content: "hello!"},
		},
		Budget:      BudgetSnapshot{Total: 500, Remaining: 400, Spent: 100, CartTotal: 89},
		Preferences: []string{"fashion"},
		Cart:        []CartSnapshot{{ProductID: "13", Name: "Summer Dress", Category: "fashion", Price: 89, Quantity: 1}},
		Currency:    "USD",
	}

	reply, _, _, err := service.Reply(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Try the summer dress!" {
		t.Fatalf("unexpected reply %q", reply)
	}

	if len(client.messages) != 4 {
		t.Fatalf("expected system + 2 history + user, got %d messages", len(client.messages))
	}

	system := client.messages[0].Content
	for _, want := range []string{"500.00 USD total", "400.00 remaining", "311.00 still available", "fashion", "Summer Dress"} {
		if !strings.Contains(system, want) {
			t.Fatalf("system context missing %q:\n%s", want, system)
		}
	}

	if client.messages[2].Role != RoleAssistant {
		t.Fatalf("expected assistant role in history, got %s", client.messages[2].Role)
	}
	if last := client.messages[3]; last.Role != RoleUser || last.Content != "What should I buy?" {
		t.Fatalf("unexpected last message %+v", last)
	}
}

// TestReplyRequiresMessage проверяет отказ для пустого сообщения.
func TestReplyRequiresMessage(t *testing.T) {
	service := NewService(&fakeClient{reply: "x"})
	if _, _, _, err := service.Reply(context.Background(), ChatInput{Message: "   "}); err == nil {
		t.Fatal("expected error for empty message")
	}
}

// TestOnboardingMessage проверяет запасной вопрос шага и валидацию шага.
func TestOnboardingMessage(t *testing.T) {
	service := NewService(&fakeClient{err: errors.New("offline")})

	msg, _, _, err := service.OnboardingMessage(context.Background(), StepBudget, "")
	if err == nil {
		t.Fatal("expected provider error")
	}
	if msg != OnboardingPrompt(StepBudget) {
		t.Fatalf("expected static prompt, got %q", msg)
	}

	if _, _, _, err := service.OnboardingMessage(context.Background(), OnboardingStep(9), ""); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("expected ErrInvalidStep, got %v", err)
	}
}

// TestSuggestAcceptsValidResponse проверяет принятие корректного ответа модели.
func TestSuggestAcceptsValidResponse(t *testing.T) {
	client := &fakeClient{reply: "```json\n{\"product_ids\": [\"13\", \"22\"], \"reason\": \"Fits your style.\"}\n```"}
	service := NewService(client)

	got, _, _, err := service.Suggest(context.Background(), SuggestInput{
		Budget:  BudgetSnapshot{Total: 200, Remaining: 200},
		Catalog: testCatalog(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Fallback {
		t.Fatal("expected model suggestion, got fallback")
	}
	if diff := cmp.Diff([]string{"13", "22"}, productIDs(got.Products)); diff != "" {
		t.Fatalf("products mismatch (-want +got):\n%s", diff)
	}
	if got.Total != 138 {
		t.Fatalf("expected total 138, got %v", got.Total)
	}
}

// TestSuggestFallsBackOnInvalidResponse проверяет откат на детерминированный подбор.
func TestSuggestFallsBackOnInvalidResponse(t *testing.T) {
	responses := map[string]string{
		"unknown id":   `{"product_ids": ["404"], "reason": "x"}`,
		"duplicate id": `{"product_ids": ["22", "22"], "reason": "x"}`,
		"over budget":  `{"product_ids": ["1"], "reason": "x"}`,
		"not json":     `sure, buy a lamp`,
	}

	for name, reply := range responses {
		t.Run(name, func(t *testing.T) {
			service := NewService(&fakeClient{reply: reply})

			got, _, _, err := service.Suggest(context.Background(), SuggestInput{
				Budget:  BudgetSnapshot{Total: 200, Remaining: 200},
				Catalog: testCatalog(),
			})
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !got.Fallback {
				t.Fatal("expected fallback suggestion")
			}
		})
	}
}

// TestFallbackSuggestion проверяет порядок и соблюдение бюджета в запасном подборе.
func TestFallbackSuggestion(t *testing.T) {
	got := FallbackSuggestion(SuggestInput{
		Budget:      BudgetSnapshot{Total: 300, Remaining: 250, Spent: 50, CartTotal: 60},
		Preferences: []string{"Fashion"},
		Catalog:     testCatalog(),
	})

	// 190 available: both fashion items fit, the cheapest home item no longer does.
	if diff := cmp.Diff([]string{"17", "13"}, productIDs(got.Products)); diff != "" {
		t.Fatalf("products mismatch (-want +got):\n%s", diff)
	}
	if got.Total != 168 {
		t.Fatalf("expected total 168, got %v", got.Total)
	}
	if !got.Fallback {
		t.Fatal("expected fallback flag")
	}
}

// TestFallbackSuggestionZeroBudget проверяет пустой подбор при нулевом бюджете.
func TestFallbackSuggestionZeroBudget(t *testing.T) {
	got := FallbackSuggestion(SuggestInput{Catalog: testCatalog()})
	if len(got.Products) != 0 {
		t.Fatalf("expected no products, got %v", productIDs(got.Products))
	}
}

// TestExtractJSON проверяет извлечение JSON из ответа модели.
func TestExtractJSON(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: `{"a":1}`, want: `{"a":1}`},
		{input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{input: `Here you go: {"a":1} enjoy`, want: `{"a":1}`},
		{input: "no json here", want: ""},
	}
	for _, tc := range cases {
		if got := extractJSON(tc.input); got != tc.want {
			t.Fatalf("extractJSON(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

// TestTrimHistory проверяет обрезку истории до лимита.
func TestTrimHistory(t *testing.T) {
	history := make([]models.ChatMessage, 0, 30)
	for i := 0; i < 30; i++ {
		history = append(history, models.ChatMessage{Role: models.ChatRoleUser, Content: "m"})
	}

	if got := trimHistory(history, 20); len(got) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(got))
	}
}
