package auth

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const ContextUserIDKey = "user_id"

// AccessTokenQuery: query-параметр с access-токеном. Браузерный EventSource
// не умеет заголовки, поэтому поток уведомлений передает токен так.
const AccessTokenQuery = "access_token"

const tokenLookup = "header:" + echo.HeaderAuthorization + ":Bearer ,query:" + AccessTokenQuery

// JWTMiddleware проверяет access-токен и сохраняет user_id в контексте.
func JWTMiddleware(manager *TokenManager) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: tokenLookup,
		Validator: func(token string, c echo.Context) (bool, error) {
			subject, err := manager.ParseAccessToken(token)
			if err != nil {
				return false, err
			}
			c.Set(ContextUserIDKey, subject.UserID)
			return true, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing access token").SetInternal(err)
		},
	})
}

// UserIDFromContext извлекает идентификатор пользователя из контекста.
func UserIDFromContext(c echo.Context) (uuid.UUID, bool) {
	userID, ok := c.Get(ContextUserIDKey).(uuid.UUID)
	return userID, ok
}
