package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/limpabem/promotion-service/internal/cache"
	"github.com/limpabem/promotion-service/internal/config"
	"github.com/limpabem/promotion-service/internal/event"
	handlerhttp "github.com/limpabem/promotion-service/internal/handler/http"
	"github.com/limpabem/promotion-service/internal/repository/postgres"
	"github.com/limpabem/promotion-service/internal/service"
	"github.com/limpabem/promotion-service/pkg/database"
	"github.com/limpabem/promotion-service/pkg/health"
	pkgkafka "github.com/limpabem/promotion-service/pkg/kafka"
)

// App wires the promotion service's dependencies and owns their lifecycle.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool     *pgxpool.Pool
	redis    *redis.Client
	producer *pkgkafka.Producer
	server   *http.Server
}

// NewApp builds the full dependency graph: connections, repositories,
// services, handlers, and the HTTP server.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)

	promotionRepo := postgres.NewPromotionRepository(pool)
	catalogRepo := postgres.NewCatalogRepository(pool)
	cachedRepo := cache.New(promotionRepo, redisClient, cfg.CacheTTL, logger)

	eventProducer := event.NewProducer(producer, logger)
	promotionService := service.NewPromotionService(cachedRepo, catalogRepo, eventProducer, logger)

	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", producer.Ping)

	router := handlerhttp.NewRouter(handlerhttp.RouterConfig{
		PromotionHandler: handlerhttp.NewPromotionHandler(promotionService, logger),
		Health:           healthHandler,
		Logger:           logger,
		CORSOrigins:      cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
		server:   server,
	}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server listening",
			slog.String("addr", a.server.Addr),
			slog.String("environment", a.cfg.Environment),
		)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

// Shutdown stops the HTTP server and closes connections in dependency
// order: server first so in-flight requests still have their backends.
func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownTimeout)
	defer cancel()

	var firstErr error

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		firstErr = fmt.Errorf("shutdown http server: %w", err)
	}

	if err := a.producer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close kafka producer: %w", err)
	}

	if err := a.redis.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close redis client: %w", err)
	}

	a.pool.Close()

	a.logger.Info("shutdown complete")
	return firstErr
}
