// cmd/historian is an asynchronous historian service that pops finished games
// from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/imposter/internal/cache"
	"github.com/jason-s-yu/imposter/internal/config"
	"github.com/jason-s-yu/imposter/internal/database"
	"github.com/jason-s-yu/imposter/internal/historian"
	"github.com/jason-s-yu/imposter/internal/models"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadHistorian()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := cfg.NewLogger()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rdb.Close()

	logger.WithField("queue", cfg.HistoryQueue).Info("historian consuming game results")
	svc := historian.New(
		historian.RedisSource{RDB: rdb, Queue: cfg.HistoryQueue},
		sinkFor(pool),
		cfg.BatchSize,
		cfg.Flush,
		logger,
	)
	return svc.Run(ctx)
}

func sinkFor(pool *pgxpool.Pool) historian.Sink {
	return func(ctx context.Context, batch []models.GameResult) error {
		return database.RecordGameResults(ctx, pool, batch)
	}
}
