package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/ai-shopmate/backend/internal/ai"
	"example.com/ai-shopmate/backend/internal/auth"
	"example.com/ai-shopmate/backend/internal/models"
	"example.com/ai-shopmate/backend/internal/repository"
)

const (
	chatHistoryLimit   = 20
	defaultHistoryPage = 50
	maxHistoryPage     = 200
)

type AIHandler struct {
	Service  *ai.Service
	Chats    *repository.ChatRepository
	Profiles *repository.ProfileRepository
	Budgets  *repository.BudgetRepository
	Carts    *repository.CartRepository
	Products *repository.ProductRepository
	AIRepo   *repository.AIRepository
	Provider string
	Model    string
	Currency string
}

// AIHandlerDeps собирает зависимости обработчика ассистента.
type AIHandlerDeps struct {
	Service  *ai.Service
	Chats    *repository.ChatRepository
	Profiles *repository.ProfileRepository
	Budgets  *repository.BudgetRepository
	Carts    *repository.CartRepository
	Products *repository.ProductRepository
	AIRepo   *repository.AIRepository
	Provider string
	Model    string
	Currency string
}

// NewAIHandler создает обработчик AI-запросов.
func NewAIHandler(deps AIHandlerDeps) *AIHandler {
	h := AIHandler(deps)
	return &h
}

type ChatRequest struct {
	Message string `json:"message" validate:"required,notblank,max=2000"`
}

type ChatResponse struct {
	Reply    string             `json:"reply"`
	Fallback bool               `json:"fallback"`
	Message  models.ChatMessage `json:"message"`
}

type ChatHistoryResponse struct {
	Messages []models.ChatMessage `json:"messages"`
}

type OnboardingMessageRequest struct {
	Step   int    `json:"step" validate:"required,min=1,max=5"`
	Answer string `json:"answer" validate:"omitempty,max=200"`
}

type OnboardingMessageResponse struct {
	Step     int    `json:"step"`
	Message  string `json:"message"`
	Fallback bool   `json:"fallback"`
}

type SuggestRequest struct {
	Goal     string `json:"goal" validate:"omitempty,max=500"`
	Category string `json:"category" validate:"omitempty,max=64"`
	Limit    int    `json:"limit" validate:"omitempty,min=1,max=10"`
}

// Chat отвечает на сообщение пользователя с учетом бюджета, корзины и предпочтений.
// Недоступность провайдера не считается ошибкой запроса: отдается извинение.
func (h *AIHandler) Chat(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req ChatRequest
	if err := bindRequest(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return badRequest(c, "validation failed")
	}

	ctx := c.Request().Context()
	history, err := h.Chats.History(ctx, userID, chatHistoryLimit)
	if err != nil {
		return serverError(c)
	}

	snapshot, preferences, cart, err := h.shopperContext(ctx, userID)
	if err != nil {
		return serverError(c)
	}

	reply, prompt, raw, replyErr := h.Service.Reply(ctx, ai.ChatInput{
		Message:     message,
		History:     history,
		Budget:      snapshot,
		Preferences: preferences,
		Cart:        cart,
		Currency:    h.Currency,
	})

	if _, err := h.Chats.Save(ctx, userID, models.ChatRoleUser, message); err != nil {
		return serverError(c)
	}
	saved, err := h.Chats.Save(ctx, userID, models.ChatRoleAssistant, reply)
	if err != nil {
		return serverError(c)
	}

	response := ChatResponse{Reply: reply, Fallback: replyErr != nil, Message: saved}
	requestPayload, _ := json.Marshal(req)
	responsePayload, _ := json.Marshal(response)
	h.logAIRequest(ctx, userID, repository.AIRequestChat, prompt, requestPayload, responsePayload, raw, replyErr)

	return c.JSON(http.StatusOK, response)
}

// History возвращает историю чата.
func (h *AIHandler) History(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	limit, err := parseBoundedInt(c.QueryParam("limit"), "limit", defaultHistoryPage, maxHistoryPage)
	if err != nil {
		return badRequest(c, err.Error())
	}

	messages, err := h.Chats.History(c.Request().Context(), userID, limit)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, ChatHistoryResponse{Messages: messages})
}

// ClearHistory удаляет историю чата.
func (h *AIHandler) ClearHistory(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.Chats.Clear(c.Request().Context(), userID); err != nil {
		return serverError(c)
	}

	return c.NoContent(http.StatusNoContent)
}

// Onboarding возвращает реплику ассистента для шага онбординга.
func (h *AIHandler) Onboarding(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req OnboardingMessageRequest
	if err := bindRequest(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	step := ai.OnboardingStep(req.Step)
	message, prompt, raw, err := h.Service.OnboardingMessage(ctx, step, req.Answer)
	if errors.Is(err, ai.ErrInvalidStep) {
		return badRequest(c, "invalid step")
	}

	response := OnboardingMessageResponse{Step: req.Step, Message: message, Fallback: err != nil}
	requestPayload, _ := json.Marshal(req)
	responsePayload, _ := json.Marshal(response)
	h.logAIRequest(ctx, userID, repository.AIRequestOnboarding, prompt, requestPayload, responsePayload, raw, err)

	return c.JSON(http.StatusOK, response)
}

// Suggest подбирает набор товаров, который укладывается в остаток бюджета.
func (h *AIHandler) Suggest(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req SuggestRequest
	if err := bindRequest(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	snapshot, preferences, _, err := h.shopperContext(ctx, userID)
	if err != nil {
		return serverError(c)
	}
	if category := strings.TrimSpace(req.Category); category != "" {
		preferences = normalizePreferences(append([]string{category}, preferences...))
	}

	catalog, err := h.Products.List(ctx)
	if err != nil {
		return serverError(c)
	}

	suggestion, prompt, raw, suggestErr := h.Service.Suggest(ctx, ai.SuggestInput{
		Goal:        req.Goal,
		Budget:      snapshot,
		Preferences: preferences,
		Catalog:     catalog,
		Currency:    h.Currency,
		Limit:       req.Limit,
	})
	if suggestErr != nil {
		slog.Warn("ai suggestion rejected, using fallback",
			slog.String("user_id", userID.String()),
			slog.String("error", suggestErr.Error()),
		)
	}

	requestPayload, _ := json.Marshal(req)
	responsePayload, _ := json.Marshal(suggestion)
	h.logAIRequest(ctx, userID, repository.AIRequestSuggest, prompt, requestPayload, responsePayload, raw, suggestErr)

	return c.JSON(http.StatusOK, suggestion)
}

// shopperContext собирает бюджет, предпочтения и корзину для запроса к ассистенту.
func (h *AIHandler) shopperContext(ctx context.Context, userID uuid.UUID) (ai.BudgetSnapshot, []string, []ai.CartSnapshot, error) {
	state, err := h.Budgets.Get(ctx, userID)
	if err != nil {
		return ai.BudgetSnapshot{}, nil, nil, err
	}

	profile, err := h.Profiles.Get(ctx, userID)
	if err != nil {
		return ai.BudgetSnapshot{}, nil, nil, err
	}

	lines, err := h.Carts.List(ctx, userID)
	if err != nil {
		return ai.BudgetSnapshot{}, nil, nil, err
	}

	_, cartTotal := summarizeCart(lines)
	return budgetSnapshot(state, cartTotal), profile.Preferences, toCartSnapshots(lines), nil
}

func (h *AIHandler) logAIRequest(ctx context.Context, userID uuid.UUID, requestType string, prompt string, requestPayload, responsePayload []byte, raw []byte, err error) {
	log := repository.AIRequestLog{
		UserID:          userID,
		RequestType:     requestType,
		Provider:        h.Provider,
		Model:           h.Model,
		Prompt:          prompt,
		RequestPayload:  requestPayload,
		ResponsePayload: responsePayload,
		RawResponse:     string(raw),
		Success:         err == nil,
	}
	if err != nil {
		errMsg := err.Error()
		log.ErrorMessage = &errMsg
	}

	if logErr := h.AIRepo.LogRequest(ctx, log); logErr != nil {
		slog.Error("failed to log ai request",
			slog.String("request_type", requestType),
			slog.String("error", logErr.Error()),
		)
	}
}

func toCartSnapshots(lines []models.CartLine) []ai.CartSnapshot {
	snapshots := make([]ai.CartSnapshot, 0, len(lines))
	for _, line := range lines {
		snapshots = append(snapshots, ai.CartSnapshot{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Category:  line.Product.Category,
			Price:     line.Product.Price,
			Quantity:  line.Item.Quantity,
		})
	}
	return snapshots
}
