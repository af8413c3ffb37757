package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"example.com/ai-shopmate/backend/internal/auth"
	"example.com/ai-shopmate/backend/internal/budget"
	"example.com/ai-shopmate/backend/internal/models"
	"example.com/ai-shopmate/backend/internal/notifications"
	"example.com/ai-shopmate/backend/internal/repository"
)

type ProfileHandler struct {
	Profiles *repository.ProfileRepository
	Carts    *repository.CartRepository
	Notifier *notifications.Hub
	Currency string
}

// NewProfileHandler создает обработчик анкеты покупателя.
func NewProfileHandler(profiles *repository.ProfileRepository, carts *repository.CartRepository, notifier *notifications.Hub, currency string) *ProfileHandler {
	return &ProfileHandler{
		Profiles: profiles,
		Carts:    carts,
		Notifier: notifier,
		Currency: currency,
	}
}

type UpdateProfileRequest struct {
	Age           *int     `json:"age" validate:"omitempty,min=1,max=120"`
	Gender        *string  `json:"gender" validate:"omitempty,max=32"`
	ContactNumber *string  `json:"contact_number" validate:"omitempty,max=32"`
	Preferences   []string `json:"preferences" validate:"omitempty,max=20,dive,max=64"`
}

type OnboardingRequest struct {
	Age           int     `json:"age" validate:"required,min=1,max=120"`
	Gender        string  `json:"gender" validate:"required,notblank,max=32"`
	ContactNumber string  `json:"contact_number" validate:"omitempty,max=32"`
	Budget        float64 `json:"budget" validate:"gt=0"`
	Category      string  `json:"category" validate:"required,notblank,max=64"`
}

type OnboardingResponse struct {
	Profile models.Profile `json:"profile"`
	Budget  BudgetResponse `json:"budget"`
}

// Get возвращает анкету текущего пользователя.
func (h *ProfileHandler) Get(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	profile, err := h.Profiles.Get(c.Request().Context(), userID)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, profile)
}

// Update частично обновляет анкету.
func (h *ProfileHandler) Update(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req UpdateProfileRequest
	if err := bindRequest(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	update := repository.ProfileUpdate{
		Age:           req.Age,
		Gender:        normalizeName(req.Gender),
		ContactNumber: normalizeName(req.ContactNumber),
	}
	if req.Preferences != nil {
		update.Preferences = normalizePreferences(req.Preferences)
	}

	profile, err := h.Profiles.Upsert(c.Request().Context(), userID, update)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, profile)
}

// Onboarding сохраняет ответы онбординга и задает стартовый бюджет.
func (h *ProfileHandler) Onboarding(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req OnboardingRequest
	if err := bindRequest(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := budget.CheckAmount(req.Budget); err != nil {
		return budgetError(c, err)
	}

	ctx := c.Request().Context()
	profile, state, err := h.Profiles.Onboard(ctx, userID, onboardingUpdate(req), req.Budget)
	if err != nil {
		return budgetError(c, err)
	}

	cartTotal, err := h.Carts.Total(ctx, userID)
	if err != nil {
		return serverError(c)
	}
	publishBudgetUpdate(h.Notifier, userID, state, cartTotal)

	return c.JSON(http.StatusOK, OnboardingResponse{
		Profile: profile,
		Budget:  toBudgetResponse(state, cartTotal, h.Currency),
	})
}

func onboardingUpdate(req OnboardingRequest) repository.ProfileUpdate {
	age := req.Age
	return repository.ProfileUpdate{
		Age:           &age,
		Gender:        normalizeName(&req.Gender),
		ContactNumber: normalizeName(&req.ContactNumber),
		Preferences:   normalizePreferences([]string{req.Category}),
	}
}

// normalizePreferences приводит категории к нижнему регистру и убирает повторы.
func normalizePreferences(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
