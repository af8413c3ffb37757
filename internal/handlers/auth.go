package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/ai-shopmate/backend/internal/auth"
	"example.com/ai-shopmate/backend/internal/models"
	"example.com/ai-shopmate/backend/internal/repository"
)

type AuthHandler struct {
	Users        *repository.UserRepository
	Tokens       *repository.RefreshTokenRepository
	Profiles     *repository.ProfileRepository
	TokenManager *auth.TokenManager
}

// NewAuthHandler создает обработчик авторизации.
func NewAuthHandler(users *repository.UserRepository, tokens *repository.RefreshTokenRepository, profiles *repository.ProfileRepository, manager *auth.TokenManager) *AuthHandler {
	return &AuthHandler{
		Users:        users,
		Tokens:       tokens,
		Profiles:     profiles,
		TokenManager: manager,
	}
}

type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Name     *string `json:"name" validate:"omitempty,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthUser: пользователь в ответах авторизации. Onboarded подсказывает клиенту,
// нужно ли показать онбординг перед магазином.
type AuthUser struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name,omitempty"`
	Onboarded bool      `json:"onboarded"`
}

type AuthResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	User         AuthUser `json:"user"`
}

type UserResponse struct {
	User AuthUser `json:"user"`
}

// Register регистрирует пользователя и выдает токены.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindRequest(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	name := normalizeName(req.Name)

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return serverError(c)
	}

	user, err := h.Users.Create(c.Request().Context(), email, passwordHash, name)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return conflict(c, "user already exists")
		}
		return serverError(c)
	}

	response, err := h.issueTokens(c.Request().Context(), user)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusCreated, response)
}

// Login выполняет вход и выдает токены.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindRequest(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	user, err := h.Users.GetByEmail(c.Request().Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c)
		}
		return serverError(c)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return unauthorized(c)
	}

	response, err := h.issueTokens(c.Request().Context(), user)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, response)
}

// Refresh ротирует refresh-токен: старый отзывается, выдается новая пара.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := bindRequest(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	stored, err := h.activeRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, errStaleRefresh) {
			return unauthorized(c)
		}
		return serverError(c)
	}

	user, err := h.Users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c)
		}
		return serverError(c)
	}

	pair, err := h.TokenManager.NewTokenPair(user.ID)
	if err != nil {
		return serverError(c)
	}

	if err := h.Tokens.Rotate(ctx, stored.ID, refreshRecord(user.ID, pair)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c)
		}
		return serverError(c)
	}

	response, err := h.authResponse(ctx, user, pair)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, response)
}

// Logout отзывает refresh-токен. Повторный logout тоже отвечает 204.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req LogoutRequest
	if err := bindRequest(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	subject, err := h.TokenManager.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		return unauthorized(c)
	}

	err = h.Tokens.Revoke(c.Request().Context(), subject.TokenID, nil)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return serverError(c)
	}

	return c.NoContent(http.StatusNoContent)
}

// Me возвращает данные текущего пользователя.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.Users.GetByID(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "user not found")
		}
		return serverError(c)
	}

	authUser, err := h.authUser(c.Request().Context(), user)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, UserResponse{User: authUser})
}

var errStaleRefresh = errors.New("refresh token is not active")

// activeRefreshToken возвращает запись токена, если он подписан нами,
// не отозван, не истек и совпадает с сохраненным хэшем.
func (h *AuthHandler) activeRefreshToken(ctx context.Context, raw string) (models.RefreshToken, error) {
	subject, err := h.TokenManager.ParseRefreshToken(raw)
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("%w: %w", errStaleRefresh, err)
	}

	stored, err := h.Tokens.GetByID(ctx, subject.TokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.RefreshToken{}, errStaleRefresh
		}
		return models.RefreshToken{}, err
	}

	switch {
	case stored.RevokedAt != nil,
		time.Now().After(stored.ExpiresAt),
		stored.UserID != subject.UserID,
		!auth.CompareTokenHash(stored.TokenHash, raw):
		return models.RefreshToken{}, errStaleRefresh
	}

	return stored, nil
}

func (h *AuthHandler) issueTokens(ctx context.Context, user models.User) (AuthResponse, error) {
	pair, err := h.TokenManager.NewTokenPair(user.ID)
	if err != nil {
		return AuthResponse{}, err
	}

	if err := h.Tokens.Create(ctx, refreshRecord(user.ID, pair)); err != nil {
		return AuthResponse{}, err
	}

	return h.authResponse(ctx, user, pair)
}

func (h *AuthHandler) authResponse(ctx context.Context, user models.User, pair auth.TokenPair) (AuthResponse, error) {
	authUser, err := h.authUser(ctx, user)
	if err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{
		AccessToken:  pair.Access.Token,
		RefreshToken: pair.Refresh.Token,
		User:         authUser,
	}, nil
}

func refreshRecord(userID uuid.UUID, pair auth.TokenPair) models.RefreshToken {
	return models.RefreshToken{
		ID:        pair.RefreshID,
		UserID:    userID,
		TokenHash: auth.HashToken(pair.Refresh.Token),
		ExpiresAt: pair.Refresh.ExpiresAt,
	}
}

func (h *AuthHandler) authUser(ctx context.Context, user models.User) (AuthUser, error) {
	result := toAuthUser(user)
	if h.Profiles == nil {
		return result, nil
	}

	profile, err := h.Profiles.Get(ctx, user.ID)
	if err != nil {
		return result, err
	}
	result.Onboarded = profile.Onboarded
	return result, nil
}

func toAuthUser(user models.User) AuthUser {
	return AuthUser{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	}
}

func normalizeName(name *string) *string {
	if name == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}
