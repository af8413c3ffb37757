package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ai-shopmate/backend/internal/catalog"
	"example.com/ai-shopmate/backend/internal/config"
	"example.com/ai-shopmate/backend/internal/database"
	"example.com/ai-shopmate/backend/internal/notifications"
	"example.com/ai-shopmate/backend/internal/repository"
	"example.com/ai-shopmate/backend/internal/server"
)

const (
	tokenPurgeInterval = time.Hour
	shutdownTimeout    = 10 * time.Second
)

func main() {
	ensureEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Env)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	if cfg.Catalog.SeedOnStart {
		if err := seedCatalog(ctx, db, cfg.Catalog.Path); err != nil {
			return fmt.Errorf("seed catalog from %s: %w", cfg.Catalog.Path, err)
		}
	}

	aiClient, closeAI, err := server.NewAIClient(ctx, cfg.AI)
	if err != nil {
		return fmt.Errorf("create %s client: %w", cfg.AI.Provider, err)
	}
	defer func() {
		if err := closeAI(); err != nil {
			logger.Warn("failed to close ai client", slog.String("error", err.Error()))
		}
	}()

	go purgeExpiredTokens(ctx, repository.NewRefreshTokenRepository(db), tokenPurgeInterval)

	hub := notifications.NewHub()
	e := server.New(server.Deps{Config: cfg, Logger: logger, DB: db, AI: aiClient, Hub: hub})
	httpServer := server.NewHTTPServer(cfg.Server, e)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", slog.String("addr", httpServer.Addr), slog.String("ai_provider", cfg.AI.Provider))
		serveErr <- e.StartServer(httpServer)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	// SSE-потоки держат соединения открытыми, без этого Shutdown ждет до таймаута.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func logLevel(env string) slog.Level {
	switch strings.ToLower(env) {
	case "local", "development":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// seedCatalog загружает каталог из файла, если таблица товаров пуста.
func seedCatalog(ctx context.Context, db *pgxpool.Pool, path string) error {
	products := repository.NewProductRepository(db)

	count, err := products.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		slog.Info("catalog already seeded", slog.Int("products", count))
		return nil
	}

	items, err := catalog.Load(path)
	if err != nil {
		return err
	}

	if err := products.ReplaceAll(ctx, items); err != nil {
		return err
	}

	slog.Info("catalog seeded", slog.String("path", path), slog.Int("products", len(items)))
	return nil
}

func purgeExpiredTokens(ctx context.Context, tokens *repository.RefreshTokenRepository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := tokens.PurgeExpired(ctx, now)
			if err != nil {
				slog.Warn("failed to purge refresh tokens", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				slog.Info("refresh tokens purged", slog.Int64("removed", removed))
			}
		}
	}
}

func ensureEnvFile() {
	if os.Getenv("ENV_FILE") != "" {
		return
	}

	if _, err := os.Stat(".env"); err == nil {
		_ = os.Setenv("ENV_FILE", ".env")
		return
	}

	if _, err := os.Stat("../.env"); err == nil {
		_ = os.Setenv("ENV_FILE", "../.env")
	}
}
