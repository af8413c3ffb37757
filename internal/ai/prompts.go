package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FallbackReply отдается пользователю, когда провайдер недоступен.
const FallbackReply = "I'm sorry, I'm having trouble processing your request right now. Please try again later."

const assistantContext = `You are the AI shopping assistant of AIShopmate. You are friendly, helpful and know products, budgets and shopping preferences well.

You help the user to:
- find products that fit the budget
- get personalized recommendations and complementary items
- compare products and get style and shopping advice
- learn about deals and offers

Keep answers short, friendly and about shopping. Always respect the user's budget and preferences.`

var onboardingPrompts = map[OnboardingStep]string{
	StepAge:      "Hello! I'm your AI shopping assistant. Let's get to know you better! What's your age?",
	StepGender:   "Great! Now, what's your gender? This helps me provide better recommendations.",
	StepContact:  "Perfect! Can you share your contact number for order updates?",
	StepBudget:   "Awesome! What's your shopping budget? I'll help you find the best deals within your range.",
	StepCategory: "Excellent! What category would you like to shop for today?",
}

// OnboardingPrompt возвращает статичный вопрос шага онбординга.
func OnboardingPrompt(step OnboardingStep) string {
	return onboardingPrompts[step]
}

func buildChatContext(input ChatInput) string {
	var b strings.Builder
	b.WriteString(assistantContext)
	b.WriteString("\n\nUser context:\n")

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	if input.Budget.Total > 0 {
		fmt.Fprintf(&b, "- Budget: %.2f %s total, %.2f remaining, %.2f spent, %.2f in cart, %.2f still available\n",
			input.Budget.Total, currency, input.Budget.Remaining, input.Budget.Spent, input.Budget.CartTotal, input.Budget.Available())
	} else {
		b.WriteString("- Budget: not set yet\n")
	}

	if len(input.Preferences) > 0 {
		fmt.Fprintf(&b, "- Preferred categories: %s\n", strings.Join(input.Preferences, ", "))
	}

	if len(input.Cart) == 0 {
		b.WriteString("- Cart: empty\n")
	} else {
		b.WriteString("- Cart:\n")
		for _, item := range input.Cart {
			fmt.Fprintf(&b, "  * %s (%s) x%d at %.2f %s\n", item.Name, item.Category, item.Quantity, item.Price, currency)
		}
	}

	return b.String()
}

func buildOnboardingPrompt(step OnboardingStep, answer string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return onboardingPrompts[step]
	}

	return fmt.Sprintf("User said: %q. Acknowledge this briefly and ask the next question: %s", answer, onboardingPrompts[step])
}

type suggestPromptPayload struct {
	Goal        string           `json:"goal,omitempty"`
	Currency    string           `json:"currency"`
	Available   float64          `json:"available_budget"`
	Preferences []string         `json:"preferred_categories,omitempty"`
	MaxItems    int              `json:"max_items"`
	Catalog     []catalogSummary `json:"catalog"`
}

type catalogSummary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
}

func buildSuggestPrompt(input SuggestInput, limit int) (string, error) {
	payload := suggestPromptPayload{
		Goal:        strings.TrimSpace(input.Goal),
		Currency:    input.Currency,
		Available:   input.Budget.Available(),
		Preferences: input.Preferences,
		MaxItems:    limit,
		Catalog:     make([]catalogSummary, 0, len(input.Catalog)),
	}
	for _, p := range input.Catalog {
		payload.Catalog = append(payload.Catalog, catalogSummary{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Category: p.Category,
			Tags:     p.Tags,
		})
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Pick products for the shopper from the catalog below.

Requirements:
- Output JSON only, no code fences, no extra text.
- Schema: {"product_ids": [string], "reason": string}
- Use only ids from the catalog.
- Do not repeat ids.
- The sum of prices must not exceed available_budget.
- Pick at most max_items products. Prefer the preferred categories.
- Keep reason to one or two sentences.

Input:
%s`, string(data)), nil
}
