package ai

import "example.com/ai-shopmate/backend/internal/models"

// BudgetSnapshot: состояние бюджета на момент запроса к ассистенту.
type BudgetSnapshot struct {
	Total     float64 `json:"total"`
	Remaining float64 `json:"remaining"`
	Spent     float64 `json:"spent"`
	CartTotal float64 `json:"cart_total"`
}

// Available возвращает сумму, которую еще можно положить в корзину.
func (b BudgetSnapshot) Available() float64 {
	available := b.Total - b.Spent - b.CartTotal
	if available < 0 {
		return 0
	}
	return available
}

type CartSnapshot struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type ChatInput struct {
	Message     string
	History     []models.ChatMessage
	Budget      BudgetSnapshot
	Preferences []string
	Cart        []CartSnapshot
	Currency    string
}

type OnboardingStep int

const (
	StepAge OnboardingStep = iota + 1
	StepGender
	StepContact
	StepBudget
	StepCategory
)

func (s OnboardingStep) Valid() bool {
	return s >= StepAge && s <= StepCategory
}

type SuggestInput struct {
	Goal        string
	Budget      BudgetSnapshot
	Preferences []string
	Catalog     []models.Product
	Currency    string
	Limit       int
}

// suggestionResponse: JSON, который модель должна вернуть на запрос подбора.
type suggestionResponse struct {
	ProductIDs []string `json:"product_ids"`
	Reason     string   `json:"reason"`
}

type Suggestion struct {
	Products []models.Product `json:"products"`
	Total    float64          `json:"total"`
	Reason   string           `json:"reason"`
	Fallback bool             `json:"fallback"`
}
