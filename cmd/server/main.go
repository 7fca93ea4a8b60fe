// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/imposter/internal/auth"
	"github.com/jason-s-yu/imposter/internal/cache"
	"github.com/jason-s-yu/imposter/internal/config"
	"github.com/jason-s-yu/imposter/internal/database"
	"github.com/jason-s-yu/imposter/internal/game"
	"github.com/jason-s-yu/imposter/internal/handlers"
	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/jason-s-yu/imposter/internal/session"
	"github.com/jason-s-yu/imposter/internal/storage/boltstore"
	"github.com/jason-s-yu/imposter/internal/telegram"
	"github.com/jason-s-yu/imposter/internal/topic"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
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
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := cfg.NewLogger()

	var rdb *redis.Client
	redisClient := func() (*redis.Client, error) {
		if rdb != nil {
			return rdb, nil
		}
		c, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rdb = c
		return rdb, nil
	}

	var pool *pgxpool.Pool
	pgPool := func() (*pgxpool.Pool, error) {
		if pool != nil {
			return pool, nil
		}
		p, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(ctx, p); err != nil {
			p.Close()
			return nil, err
		}
		pool = p
		return pool, nil
	}

	// --- Session store ---
	store, err := openStore(cfg, logger, redisClient, pgPool)
	if err != nil {
		return fmt.Errorf("opening %s session store: %w", cfg.StoreDriver, err)
	}
	defer store.Close()

	registry := session.NewRegistry(store, logger)
	if _, err := registry.Hydrate(ctx); err != nil {
		return fmt.Errorf("hydrating sessions: %w", err)
	}

	// --- Collaborators ---
	secret, err := auth.NewSecret(cfg.AdminSecret, auth.DefaultParams)
	if err != nil {
		return fmt.Errorf("hashing admin secret: %w", err)
	}
	tokens, err := auth.NewIssuer(cfg.TokenTTL)
	if err != nil {
		return err
	}

	provider := topic.NewOllama(topic.Config{
		Enabled: cfg.OllamaEnabled,
		URL:     cfg.OllamaURL,
		Model:   cfg.OllamaModel,
		Timeout: cfg.TopicTimeout,
	}, logger)
	engine := game.NewRoleEngine(provider, logger)
	engine.Timeout = cfg.TopicTimeout

	var recorder game.ResultRecorder = game.NopRecorder{}
	if cfg.HistoryQueue != "" {
		c, err := redisClient()
		if err != nil {
			return fmt.Errorf("connecting to redis for history: %w", err)
		}
		recorder = cache.NewResultPublisher(c, cfg.HistoryQueue)
		logger.WithField("queue", cfg.HistoryQueue).Info("publishing game results")
	}
	if rdb != nil && cfg.StoreDriver != config.DriverRedis {
		// The redis store closes the client itself.
		defer rdb.Close()
	}

	var (
		transport game.Transport = game.NopTransport{}
		bot       *tgbotapi.BotAPI
		client    *telegram.Client
	)
	if cfg.BotToken != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			return fmt.Errorf("connecting to telegram: %w", err)
		}
		client = telegram.NewClient(bot)
		transport = client
		logger.WithField("bot", bot.Self.UserName).Info("telegram bot authorized")
	} else {
		logger.Warn("BOT_TOKEN not set, running control plane only")
	}

	ctrl := game.NewController(game.Options{
		Registry:  registry,
		Engine:    engine,
		Transport: transport,
		Recorder:  recorder,
		Secret:    secret,
		Log:       logger,
	})
	ctrl.ResumeVoting(ctx)

	// --- HTTP Server ---
	api := handlers.NewAPIServer(ctrl, secret, tokens, logger)
	if cfg.DatabaseURL != "" {
		p, err := pgPool()
		if err != nil {
			return fmt.Errorf("connecting to postgres for history: %w", err)
		}
		api.History = func(ctx context.Context, roomID int64, limit int) ([]models.GameResult, error) {
			return database.RecentResults(ctx, p, roomID, limit)
		}
	}
	if pool != nil && cfg.StoreDriver != config.DriverPostgres {
		// The postgres store closes the pool itself.
		defer pool.Close()
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if bot != nil {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := bot.GetUpdatesChan(u)
		dispatcher := telegram.NewDispatcher(client, ctrl, logger)

		g.Go(func() error {
			logger.Info("polling telegram updates")
			return dispatcher.Run(gctx, updates)
		})
		g.Go(func() error {
			<-gctx.Done()
			bot.StopReceivingUpdates()
			return nil
		})
	}

	return g.Wait()
}

// openStore builds the session store selected by STORE_DRIVER. Failing here is fatal.
func openStore(cfg *config.Config, logger logrus.FieldLogger, redisClient func() (*redis.Client, error), pgPool func() (*pgxpool.Pool, error)) (session.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverBolt:
		return boltstore.Open(cfg.StorePath)
	case config.DriverRedis:
		rdb, err := redisClient()
		if err != nil {
			return nil, err
		}
		return cache.NewRedisStore(rdb, cfg.RedisKeyPrefix), nil
	case config.DriverPostgres:
		pool, err := pgPool()
		if err != nil {
			return nil, err
		}
		return database.NewPostgresStore(pool), nil
	case config.DriverMemory:
		logger.Warn("STORE_DRIVER=memory: sessions are lost on restart")
		return session.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
