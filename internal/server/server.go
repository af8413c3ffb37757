package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"example.com/ai-shopmate/backend/internal/ai"
	"example.com/ai-shopmate/backend/internal/auth"
	"example.com/ai-shopmate/backend/internal/config"
	"example.com/ai-shopmate/backend/internal/handlers"
	"example.com/ai-shopmate/backend/internal/notifications"
	"example.com/ai-shopmate/backend/internal/repository"
)

// Deps: внешние ресурсы, которые main поднимает до сборки сервера.
type Deps struct {
	Config config.Config
	Logger *slog.Logger
	DB     *pgxpool.Pool
	AI     ai.Client
	Hub    *notifications.Hub
}

// New собирает HTTP-сервер Echo с роутами и зависимостями.
func New(deps Deps) *echo.Echo {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := deps.Hub
	if hub == nil {
		hub = notifications.NewHub()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	repos := newRepositories(deps.DB)

	aiHandler := handlers.NewAIHandler(handlers.AIHandlerDeps{
		Service:  ai.NewService(deps.AI),
		Chats:    repos.chats,
		Profiles: repos.profiles,
		Budgets:  repos.budgets,
		Carts:    repos.carts,
		Products: repos.products,
		AIRepo:   repos.ai,
		Provider: cfg.AI.Provider,
		Model:    cfg.AI.Model,
		Currency: cfg.Currency,
	})

	h := routeHandlers{
		health:        handlers.NewHealthHandler(deps.DB),
		auth:          handlers.NewAuthHandler(repos.users, repos.tokens, repos.profiles, tokenManager),
		profile:       handlers.NewProfileHandler(repos.profiles, repos.carts, hub, cfg.Currency),
		budget:        handlers.NewBudgetHandler(repos.budgets, repos.carts, hub, cfg.Currency),
		products:      handlers.NewProductHandler(repos.products),
		cart:          handlers.NewCartHandler(repos.carts, repos.budgets, hub, cfg.Currency),
		stats:         handlers.NewStatsHandler(repos.stats, cfg.Currency),
		notifications: handlers.NewNotificationHandler(hub),
		admin:         handlers.NewAdminHandler(repos.admin, repos.products, cfg.Catalog.MaxUploadBytes),
		ai:            aiHandler,
	}

	registerRoutes(e, h, routeMiddleware{
		auth:          auth.JWTMiddleware(tokenManager),
		admin:         handlers.AdminMiddleware(repos.users, cfg.Admin.Emails),
		authRateLimit: rateLimiter(cfg.Auth.RateLimitPerMinute, cfg.Auth.RateLimitBurst),
		aiRateLimit:   rateLimiter(cfg.AI.RateLimitPerMinute, cfg.AI.RateLimitBurst),
	})

	return e
}

type repositories struct {
	users    *repository.UserRepository
	tokens   *repository.RefreshTokenRepository
	profiles *repository.ProfileRepository
	budgets  *repository.BudgetRepository
	products *repository.ProductRepository
	carts    *repository.CartRepository
	chats    *repository.ChatRepository
	stats    *repository.StatsRepository
	ai       *repository.AIRepository
	admin    *repository.AdminRepository
}

func newRepositories(db *pgxpool.Pool) repositories {
	return repositories{
		users:    repository.NewUserRepository(db),
		tokens:   repository.NewRefreshTokenRepository(db),
		profiles: repository.NewProfileRepository(db),
		budgets:  repository.NewBudgetRepository(db),
		products: repository.NewProductRepository(db),
		carts:    repository.NewCartRepository(db),
		chats:    repository.NewChatRepository(db),
		stats:    repository.NewStatsRepository(db),
		ai:       repository.NewAIRepository(db),
		admin:    repository.NewAdminRepository(db),
	}
}

// NewAIClient создает клиента выбранного LLM-провайдера.
// Возвращаемая функция освобождает ресурсы клиента.
func NewAIClient(ctx context.Context, cfg config.AIConfig) (ai.Client, func() error, error) {
	opts := ai.ClientOptions{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		Timeout:   cfg.Timeout,
		MaxTokens: cfg.MaxOutputTokens,
	}

	switch strings.ToLower(cfg.Provider) {
	case config.ProviderGemini:
		client, err := ai.NewGeminiClient(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	default:
		client := ai.NewGroqClient(opts)
		return client, func() error { return nil }, nil
	}
}

// NewHTTPServer создает net/http сервер с заданными таймаутами.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("request_id", v.RequestID),
				slog.String("method", v.Method),
				slog.String("uri", redactURI(v.URI)),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.Duration("latency", v.Latency),
			}
			if userID, ok := auth.UserIDFromContext(c); ok {
				attrs = append(attrs, slog.String("user_id", userID.String()))
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			logger.LogAttrs(c.Request().Context(), statusLevel(v.Status), "request completed", attrs...)
			return nil
		},
	})
}

const redacted = "REDACTED"

// redactURI скрывает access-токен из query, чтобы он не попадал в журнал.
func redactURI(uri string) string {
	path, rawQuery, ok := strings.Cut(uri, "?")
	if !ok {
		return uri
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return path
	}
	if !query.Has(auth.AccessTokenQuery) {
		return uri
	}
	query.Set(auth.AccessTokenQuery, redacted)
	return path + "?" + query.Encode()
}

func statusLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusTooManyRequests:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// rateLimiter ограничивает частоту запросов. Авторизованные запросы считаются
// по пользователю, остальные по IP.
func rateLimiter(perMinute, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60.0),
		Burst:     burst,
		ExpiresIn: time.Minute,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store:               store,
		IdentifierExtractor: rateLimitKey,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, handlers.ErrorResponse{Error: "too many requests"})
		},
	})
}

func rateLimitKey(c echo.Context) (string, error) {
	if userID, ok := auth.UserIDFromContext(c); ok {
		return "user:" + userID.String(), nil
	}
	return "ip:" + c.RealIP(), nil
}
