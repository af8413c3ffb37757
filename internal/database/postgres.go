package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ai-shopmate/backend/internal/config"
)

const pingTimeout = 5 * time.Second

// Open открывает пул подключений к PostgreSQL. Пока база поднимается
// (docker compose), подключение повторяется с удвоением паузы.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := newPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	attempts := max(cfg.ConnectAttempts, 1)
	backoff := cfg.ConnectBackoff

	for attempt := 1; ; attempt++ {
		pool, err := connect(ctx, poolConfig)
		if err == nil {
			return pool, nil
		}
		if attempt == attempts {
			return nil, fmt.Errorf("connect to database after %d attempts: %w", attempts, err)
		}

		slog.Warn("database connection attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("attempts", attempts),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func newPoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	// Ближайший аналог idle-соединений в pgxpool.
	poolConfig.MinConns = int32(min(cfg.MaxIdleConns, cfg.MaxOpenConns))
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	return poolConfig, nil
}

func connect(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
