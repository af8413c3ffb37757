package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	AI       AIConfig
	Admin    AdminConfig
	Catalog  CatalogConfig
	Currency string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

type AuthConfig struct {
	JWTSecret          string
	JWTIssuer          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
}

// AIConfig описывает LLM-провайдера. Для Gemini BaseURL переопределяет endpoint SDK.
type AIConfig struct {
	Provider           string
	APIKey             string
	BaseURL            string
	Model              string
	Timeout            time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	MaxOutputTokens    int
}

type AdminConfig struct {
	Emails []string
}

type CatalogConfig struct {
	Path           string
	SeedOnStart    bool
	MaxUploadBytes int64
}

// Load загружает конфигурацию приложения из окружения и .env.
func Load() (Config, error) {
	if err := loadEnv(); err != nil {
		return Config{}, err
	}

	env := &envReader{}
	cfg := Config{
		Env:      env.str("APP_ENV", "local"),
		Server:   loadServer(env),
		Database: loadDatabase(env),
		Auth:     loadAuth(env),
		AI:       loadAI(env),
		Admin:    AdminConfig{Emails: parseCSVEnv("ADMIN_EMAILS")},
		Catalog:  loadCatalog(env),
		Currency: strings.ToUpper(strings.TrimSpace(env.str("CURRENCY", "USD"))),
	}
	if env.err != nil {
		return cfg, env.err
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func loadServer(env *envReader) ServerConfig {
	return ServerConfig{
		Host:         env.str("SERVER_HOST", "0.0.0.0"),
		Port:         env.integer("SERVER_PORT", 8080),
		ReadTimeout:  env.duration("SERVER_READ_TIMEOUT", 5*time.Second),
		WriteTimeout: env.duration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		IdleTimeout:  env.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
	}
}

func loadDatabase(env *envReader) DatabaseConfig {
	return DatabaseConfig{
		Host:            env.str("DB_HOST", "localhost"),
		Port:            env.integer("DB_PORT", 5432),
		User:            env.str("DB_USER", "shopmate"),
		Password:        env.str("DB_PASSWORD", "shopmate"),
		Name:            env.str("DB_NAME", "shopmate"),
		SSLMode:         env.str("DB_SSLMODE", "disable"),
		MaxOpenConns:    env.integer("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    env.integer("DB_MAX_IDLE_CONNS", 5),
		ConnMaxIdleTime: env.duration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		ConnMaxLifetime: env.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		ConnectAttempts: env.integer("DB_CONNECT_ATTEMPTS", 5),
		ConnectBackoff:  env.duration("DB_CONNECT_BACKOFF", time.Second),
	}
}

func loadAuth(env *envReader) AuthConfig {
	return AuthConfig{
		JWTSecret:          env.str("JWT_SECRET", ""),
		JWTIssuer:          env.str("JWT_ISSUER", "ai-shopmate"),
		AccessTokenTTL:     env.duration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL:    env.duration("JWT_REFRESH_TTL", 7*24*time.Hour),
		RateLimitPerMinute: env.integer("AUTH_RATE_LIMIT_PER_MINUTE", 60),
		RateLimitBurst:     env.integer("AUTH_RATE_LIMIT_BURST", 10),
	}
}

// loadAI выбирает модель по умолчанию под провайдера. Для Gemini ключ
// можно задать и как GEMINI_API_KEY.
func loadAI(env *envReader) AIConfig {
	provider := strings.ToLower(strings.TrimSpace(env.str("AI_PROVIDER", ProviderGemini)))

	defaultModel := "llama-3.1-8b-instant"
	defaultBaseURL := "https://api.groq.com/openai/v1"
	apiKey := env.str("AI_API_KEY", "")
	if provider == ProviderGemini {
		defaultModel, defaultBaseURL = "gemini-1.5-flash", ""
		if apiKey == "" {
			apiKey = env.str("GEMINI_API_KEY", "")
		}
	}

	return AIConfig{
		Provider:           provider,
		APIKey:             apiKey,
		BaseURL:            env.str("AI_BASE_URL", defaultBaseURL),
		Model:              env.str("AI_MODEL", defaultModel),
		Timeout:            env.duration("AI_TIMEOUT", 20*time.Second),
		RateLimitPerMinute: env.integer("AI_RATE_LIMIT_PER_MINUTE", 30),
		RateLimitBurst:     env.integer("AI_RATE_LIMIT_BURST", 10),
		MaxOutputTokens:    env.integer("AI_MAX_OUTPUT_TOKENS", 1024),
	}
}

func loadCatalog(env *envReader) CatalogConfig {
	return CatalogConfig{
		Path:           env.str("CATALOG_PATH", "data/products.json"),
		SeedOnStart:    env.boolean("CATALOG_SEED_ON_START", true),
		MaxUploadBytes: int64(env.integer("CATALOG_MAX_UPLOAD_BYTES", 5<<20)),
	}
}

// DSN возвращает строку подключения к базе данных.
func (c DatabaseConfig) DSN() string {
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}

	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	dsn.RawQuery = query.Encode()
	return dsn.String()
}

// validate возвращает все нарушения конфигурации разом.
func (c Config) validate() error {
	var errs []error
	require := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	require(c.Database.Host != "", "DB_HOST is required")
	require(c.Database.User != "", "DB_USER is required")
	require(c.Database.Name != "", "DB_NAME is required")
	require(c.Database.MaxIdleConns <= c.Database.MaxOpenConns, "DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
	require(c.Auth.JWTSecret != "", "JWT_SECRET is required")
	require(c.AI.Provider == ProviderGemini || c.AI.Provider == ProviderGroq, "AI_PROVIDER must be gemini or groq")
	require(c.AI.Model != "", "AI_MODEL is required")
	require(!c.Catalog.SeedOnStart || c.Catalog.Path != "", "CATALOG_PATH is required when CATALOG_SEED_ON_START is set")
	require(len(c.Currency) == 3, "CURRENCY must be a 3-letter code")

	return errors.Join(errs...)
}

// envReader читает типизированные переменные и запоминает первую ошибку разбора.
type envReader struct {
	err error
}

func (r *envReader) str(key, fallback string) string {
	return getEnv(key, fallback)
}

func (r *envReader) integer(key string, fallback int) int {
	value, err := parseIntEnv(key, fallback)
	r.keep(err)
	return value
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	value, err := parseDurationEnv(key, fallback)
	r.keep(err)
	return value
}

func (r *envReader) boolean(key string, fallback bool) bool {
	value, err := parseBoolEnv(key, fallback)
	r.keep(err)
	return value
}

func (r *envReader) keep(err error) {
	if err != nil && r.err == nil {
		r.err = err
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

// parseIntEnv разбирает положительное целое.
func parseIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseBoolEnv(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}

	return parsed, nil
}

// parseCSVEnv разбирает список email через запятую в нижнем регистре.
func parseCSVEnv(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func loadEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}
