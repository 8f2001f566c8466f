package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"HomePulse/internal/config"
)

// NewPostgres opens and pings a pgx connection pool.
func NewPostgres(ctx context.Context, cfg *config.DatabaseConfig, log *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.GetDSN())
	if err != nil {
		log.Error("failed to open connection to postgres", "error", err)
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		log.Error("failed to ping database", "error", err)
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	log.Info("connected to postgres database")
	return pool, nil
}
