package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/ai-shopmate/backend/internal/auth"
	"example.com/ai-shopmate/backend/internal/catalog"
	"example.com/ai-shopmate/backend/internal/repository"
)

type AdminHandler struct {
	Repo           *repository.AdminRepository
	Products       *repository.ProductRepository
	MaxUploadBytes int64
}

// NewAdminHandler создает обработчик админских эндпоинтов.
func NewAdminHandler(repo *repository.AdminRepository, products *repository.ProductRepository, maxUploadBytes int64) *AdminHandler {
	return &AdminHandler{Repo: repo, Products: products, MaxUploadBytes: maxUploadBytes}
}

type AdminUserResponse struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	Name            *string   `json:"name,omitempty"`
	Onboarded       bool      `json:"onboarded"`
	BudgetTotal     float64   `json:"budget_total"`
	BudgetRemaining float64   `json:"budget_remaining"`
	CartItems       int       `json:"cart_items"`
	CreatedAt       string    `json:"created_at"`
	UpdatedAt       string    `json:"updated_at"`
}

type AdminUsersResponse struct {
	Total int                 `json:"total"`
	Users []AdminUserResponse `json:"users"`
}

type AdminAIRequestResponse struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	RequestType     string          `json:"request_type"`
	Provider        string          `json:"provider"`
	Model           string          `json:"model"`
	Success         bool            `json:"success"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	CreatedAt       string          `json:"created_at"`
	Prompt          *string         `json:"prompt,omitempty"`
	RequestPayload  json.RawMessage `json:"request_payload,omitempty"`
	ResponsePayload json.RawMessage `json:"response_payload,omitempty"`
	RawResponse     *string         `json:"raw_response,omitempty"`
}

type AdminAIRequestsResponse struct {
	Total    int                      `json:"total"`
	Requests []AdminAIRequestResponse `json:"requests"`
}

type AdminCatalogResponse struct {
	Format   string `json:"format"`
	Products int    `json:"products"`
}

type AdminUsageDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type AdminUsageResponse struct {
	Users           int             `json:"users"`
	Products        int             `json:"products"`
	CartItems       int             `json:"cart_items"`
	Purchases       int             `json:"purchases"`
	PurchasedTotal  float64         `json:"purchased_total"`
	AIRequests      int             `json:"ai_requests"`
	AISuccess       int             `json:"ai_success"`
	AIFail          int             `json:"ai_fail"`
	AIRequestsByDay []AdminUsageDay `json:"ai_requests_by_day"`
}

const (
	defaultAdminPage = 50
	maxAdminPage     = 200
	defaultUsageDays = 7
	maxUsageDays     = 30
)

// ListUsers возвращает список пользователей для админки.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit, offset, err := parsePagination(c, defaultAdminPage, maxAdminPage)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	users, err := h.Repo.ListUsers(ctx, limit, offset)
	if err != nil {
		return serverError(c)
	}

	total, err := h.Repo.CountUsers(ctx)
	if err != nil {
		return serverError(c)
	}

	response := make([]AdminUserResponse, 0, len(users))
	for _, user := range users {
		response = append(response, AdminUserResponse{
			ID:              user.ID,
			Email:           user.Email,
			Name:            user.Name,
			Onboarded:       user.Onboarded,
			BudgetTotal:     user.BudgetTotal,
			BudgetRemaining: user.BudgetRemaining,
			CartItems:       user.CartItems,
			CreatedAt:       user.CreatedAt.Format(timeLayout),
			UpdatedAt:       user.UpdatedAt.Format(timeLayout),
		})
	}

	return c.JSON(http.StatusOK, AdminUsersResponse{
		Total: total,
		Users: response,
	})
}

// ListAIRequests возвращает логи AI-запросов с фильтрами.
func (h *AdminHandler) ListAIRequests(c echo.Context) error {
	limit, offset, err := parsePagination(c, defaultAdminPage, maxAdminPage)
	if err != nil {
		return badRequest(c, err.Error())
	}

	filter, includePayloads, err := parseAIRequestQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	requests, err := h.Repo.ListAIRequests(ctx, filter, limit, offset, includePayloads)
	if err != nil {
		return serverError(c)
	}

	total, err := h.Repo.CountAIRequests(ctx, filter)
	if err != nil {
		return serverError(c)
	}

	response := make([]AdminAIRequestResponse, 0, len(requests))
	for _, req := range requests {
		response = append(response, toAIRequestResponse(req, includePayloads))
	}

	return c.JSON(http.StatusOK, AdminAIRequestsResponse{
		Total:    total,
		Requests: response,
	})
}

// Usage возвращает агрегированную статистику использования.
func (h *AdminHandler) Usage(c echo.Context) error {
	days, err := parseBoundedInt(c.QueryParam("days"), "days", defaultUsageDays, maxUsageDays)
	if err != nil {
		return badRequest(c, err.Error())
	}

	stats, err := h.Repo.UsageStats(c.Request().Context(), days)
	if err != nil {
		if errors.Is(err, repository.ErrInvalid) {
			return badRequest(c, "invalid days")
		}
		return serverError(c)
	}

	daysResponse := make([]AdminUsageDay, 0, len(stats.AIRequestsByDay))
	for _, day := range stats.AIRequestsByDay {
		daysResponse = append(daysResponse, AdminUsageDay{
			Date:  day.Day.Format("2006-01-02"),
			Count: day.Count,
		})
	}

	return c.JSON(http.StatusOK, AdminUsageResponse{
		Users:           stats.Users,
		Products:        stats.Products,
		CartItems:       stats.CartItems,
		Purchases:       stats.Purchases,
		PurchasedTotal:  stats.PurchasedTotal,
		AIRequests:      stats.AIRequests,
		AISuccess:       stats.AISuccess,
		AIFail:          stats.AIFail,
		AIRequestsByDay: daysResponse,
	})
}

// UploadCatalog заменяет каталог товаров файлом JSON, YAML или XLSX.
func (h *AdminHandler) UploadCatalog(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	if h.MaxUploadBytes > 0 && file.Size > h.MaxUploadBytes {
		return badRequest(c, "file is too large")
	}

	format, err := catalog.FormatFromName(file.Filename)
	if err != nil {
		return badRequest(c, "unsupported catalog format")
	}

	src, err := file.Open()
	if err != nil {
		return serverError(c)
	}
	defer src.Close()

	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = file.Size
	}
	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return serverError(c)
	}
	if int64(len(data)) > limit {
		return badRequest(c, "file is too large")
	}

	products, err := catalog.Parse(data, format)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidCatalog) {
			return badRequest(c, err.Error())
		}
		return serverError(c)
	}

	if err := h.Products.ReplaceAll(c.Request().Context(), products); err != nil {
		return serverError(c)
	}

	slog.Info("catalog replaced",
		slog.String("format", string(format)),
		slog.Int("products", len(products)),
	)

	return c.JSON(http.StatusOK, AdminCatalogResponse{Format: string(format), Products: len(products)})
}

// AdminMiddleware пускает в админку только пользователей из ADMIN_EMAILS.
// Пустой список закрывает админку целиком.
func AdminMiddleware(users *repository.UserRepository, emails []string) echo.MiddlewareFunc {
	allowed := newEmailSet(emails)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := auth.UserIDFromContext(c)
			if !ok {
				return unauthorized(c)
			}
			if allowed.empty() {
				return forbidden(c)
			}

			user, err := users.GetByID(c.Request().Context(), userID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return forbidden(c)
			case err != nil:
				return serverError(c)
			case !allowed.has(user.Email):
				return forbidden(c)
			}

			return next(c)
		}
	}
}

type emailSet map[string]struct{}

func newEmailSet(emails []string) emailSet {
	set := make(emailSet, len(emails))
	for _, email := range emails {
		if key := normalizeEmail(email); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

func (s emailSet) has(email string) bool {
	_, ok := s[normalizeEmail(email)]
	return ok
}

func (s emailSet) empty() bool {
	return len(s) == 0
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toAIRequestResponse(req repository.AIRequestRecord, includePayloads bool) AdminAIRequestResponse {
	item := AdminAIRequestResponse{
		ID:           req.ID,
		UserID:       req.UserID,
		RequestType:  req.RequestType,
		Provider:     req.Provider,
		Model:        req.Model,
		Success:      req.Success,
		ErrorMessage: req.ErrorMessage,
		CreatedAt:    req.CreatedAt.Format(timeLayout),
	}
	if !includePayloads {
		return item
	}

	item.Prompt = req.Prompt
	item.RawResponse = req.RawResponse
	if len(req.RequestPayload) > 0 {
		item.RequestPayload = json.RawMessage(req.RequestPayload)
	}
	if len(req.ResponsePayload) > 0 {
		item.ResponsePayload = json.RawMessage(req.ResponsePayload)
	}
	return item
}

// parseAIRequestQuery разбирает фильтры журнала AI-запросов.
func parseAIRequestQuery(c echo.Context) (repository.AIRequestFilter, bool, error) {
	filter := repository.AIRequestFilter{}

	if raw := strings.TrimSpace(c.QueryParam("user_id")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return filter, false, errors.New("invalid user_id")
		}
		filter.UserID = &parsed
	}

	success, err := parseOptionalBool(c.QueryParam("success"))
	if err != nil {
		return filter, false, errors.New("invalid success")
	}
	filter.Success = success

	if raw := strings.ToLower(strings.TrimSpace(c.QueryParam("request_type"))); raw != "" {
		switch raw {
		case repository.AIRequestChat, repository.AIRequestOnboarding, repository.AIRequestSuggest:
			filter.RequestType = &raw
		default:
			return filter, false, errors.New("invalid request_type")
		}
	}

	include, err := parseOptionalBool(c.QueryParam("include_payloads"))
	if err != nil {
		return filter, false, errors.New("invalid include_payloads")
	}

	return filter, include != nil && *include, nil
}
