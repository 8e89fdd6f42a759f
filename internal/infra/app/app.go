package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/infra/config"
	"github.com/arklim/social-platform-sessions/internal/infra/database"
	kafkainfra "github.com/arklim/social-platform-sessions/internal/infra/kafka"
	"github.com/arklim/social-platform-sessions/internal/infra/logger"
	redisinfra "github.com/arklim/social-platform-sessions/internal/infra/redis"
	"github.com/arklim/social-platform-sessions/internal/infra/telemetry"
	"github.com/arklim/social-platform-sessions/internal/repository/memory"
	postgresrepo "github.com/arklim/social-platform-sessions/internal/repository/postgres"
	redisrepo "github.com/arklim/social-platform-sessions/internal/repository/redis"
	"github.com/arklim/social-platform-sessions/internal/transport/http/middleware"
	"github.com/arklim/social-platform-sessions/internal/transport/http/routes"
	"github.com/arklim/social-platform-sessions/internal/usecase"
)

// Application owns the wired service graph and its lifecycle.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

// New builds the application from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	app := &Application{cfg: cfg, logger: log}

	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			log.Warn("tracing disabled", zap.Error(err))
		} else {
			app.tracer = tracer
		}
	}

	var (
		runner   port.TxRunner
		sessions port.SessionStore
		tokens   port.TokenBindingIndex
		dbCheck  routes.DatabaseChecker
	)

	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		store := postgresrepo.NewStoreWithPool(pool)
		app.pool = pool
		runner = store
		sessions = store.Sessions()
		tokens = store.Tokens()
		dbCheck = pool
	case "memory", "":
		store := memory.NewStore()
		runner = store
		sessions = store.Sessions()
		tokens = store.Tokens()
		log.Info("using in-memory storage backend")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	var (
		denylist    port.RevocationDenylist
		rateLimiter *middleware.RateLimiter
		cacheCheck  routes.CacheChecker
	)

	if cfg.Redis.Enabled {
		redisClient, err := redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			app.closePartial()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		app.redis = redisClient
		cacheCheck = redisClient

		denylist = redisrepo.NewDenylistStore(redisClient.Client(),
			cfg.Redis.TokenDenylistPrefix, cfg.Redis.SessionDenylistPrefix)

		window := cfg.RateLimit.WindowDuration
		if window <= 0 {
			window = time.Minute
		}
		rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: cfg.Redis.RateLimitPrefix,
			TTL:       window * 2,
		})
		rateLimiter = middleware.NewRateLimiter(rateLimitStore, log)
	}

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			app.producer = producer
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	sessionService := usecase.NewSessionService(runner, sessions, log)
	tokenService := usecase.NewTokenBindingService(runner, sessions, tokens, log).
		WithTokenTTL(cfg.Tokens.AccessTokenTTL)
	revocation := usecase.NewRevocationCoordinator(runner, sessions, eventPublisher, log)
	if denylist != nil {
		revocation.WithDenylist(denylist)
	}
	introspection := usecase.NewIntrospectionService(runner, sessions, tokens, log)

	app.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Database:    dbCheck,
		Cache:       cacheCheck,
		Services: routes.ServiceSet{
			Sessions:      sessionService,
			Tokens:        tokenService,
			Revocation:    revocation,
			Introspection: introspection,
		},
	})

	return app, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.closePartial()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting sessions API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("backend", a.cfg.Storage.Backend),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		if a.tracer != nil {
			if err := a.tracer.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("tracer shutdown failed", zap.Error(err))
			}
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) closePartial() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close failed", zap.Error(err))
		}
		a.producer = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
