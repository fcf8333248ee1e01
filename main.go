package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"golang.org/x/sync/errgroup"

	"ms-checkin/internal/analytics"
	"ms-checkin/internal/auth"
	"ms-checkin/internal/checkin"
	"ms-checkin/internal/checkin/checkin_api"
	checkin_db "ms-checkin/internal/checkin/db"
	checkin_redis "ms-checkin/internal/checkin/redis"
	"ms-checkin/internal/config"
	"ms-checkin/internal/database/migrations"
	"ms-checkin/internal/kafka"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/sse"
	"ms-checkin/internal/utils"
)

func connectPostgres(cfg config.DatabaseConfig, logger *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

// connectRedis returns nil when Redis is disabled or unreachable; the
// service then runs single-instance with the in-memory cache.
func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) *redis.Client {
	if !cfg.Enabled {
		logger.Info("REDIS", "Redis disabled, using in-process decision cache")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("REDIS", fmt.Sprintf("Redis unreachable at %s, falling back to in-process cache: %v", cfg.Addr, err))
		client.Close()
		return nil
	}
	logger.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, client.Options().DB))
	return client
}

func runMigrations(bunDB *bun.DB, cfg config.DatabaseConfig, logger *logger.Logger) {
	if !cfg.AutoMigrate {
		logger.Info("DATABASE", "Auto migration disabled")
		return
	}
	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: cfg.MigrationsDir,
		AutoMigrate:   cfg.AutoMigrate,
	}, logger)
	defer runner.Close()

	if err := runner.MigrateUp(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Check-in Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB := connectPostgres(cfg.Database, logger)
	defer bunDB.Close()
	runMigrations(bunDB, cfg.Database, logger)

	redisClient := connectRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	store := checkin_db.New(bunDB)
	emitter := sse.NewScanEventEmitter()

	var cache checkin.DecisionCache = checkin.NewMemoryCache(cfg.Scan.CacheCapacity)
	var live checkin.Notifier = emitter
	var relay *checkin_redis.Relay
	if redisClient != nil {
		cache = checkin_redis.NewDecisionCache(redisClient)
		relay = checkin_redis.NewRelay(redisClient, emitter, logger)
		live = relay
	}
	notifiers := checkin.Notifiers{live}

	var producer *kafka.Producer
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		topics := []string{cfg.Kafka.Topics.ScanDecided, cfg.Kafka.Topics.StatsUpdated, cfg.Kafka.Topics.TicketsChanged}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		notifiers = append(notifiers, kafka.NewScanPublisher(producer, kafka.Topics{
			ScanDecided:    cfg.Kafka.Topics.ScanDecided,
			StatsUpdated:   cfg.Kafka.Topics.StatsUpdated,
			TicketsChanged: cfg.Kafka.Topics.TicketsChanged,
		}, logger))
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.TicketsChanged, cfg.Kafka.GroupID, logger)
		defer consumer.Close()
		logger.Info("KAFKA", "Kafka producer and consumer initialized successfully")
	} else {
		logger.Info("KAFKA", "Kafka disabled")
	}

	coordinator := checkin.NewScanCoordinator(cache, checkin.CoordinatorOptions{
		SuppressionWindow: cfg.Scan.SuppressionWindow,
		LockTimeout:       cfg.Scan.LockTimeout,
		LockIdleTTL:       cfg.Scan.LockIdleTTL,
	}, logger)

	recent := analytics.NewRecentBuffer(cfg.Stats.RecentBufferSize, cfg.Stats.RecentBufferWindow)
	engine := checkin.NewEngine(store, store, coordinator, logger)
	engine.Recent = recent

	statsService := analytics.NewService(store, store, recent)
	refresher := analytics.NewRefresher(statsService, notifiers, cfg.Stats.RefreshDebounce, logger)
	checkinService := checkin.NewService(engine, notifiers, refresher, logger)

	handler := checkin_api.NewHandler(checkinService, statsService, logger)
	sseHandler := checkin_api.NewSSEHandler(emitter, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(checkin_api.RequestLogger(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := bunDB.PingContext(r.Context()); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("database unavailable", err.Error()))
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	})

	var verifier func(http.Handler) http.Handler
	if cfg.Auth.OIDCIssuer != "" {
		v, err := auth.NewVerifier(ctx, cfg.Auth.OIDCIssuer)
		if err != nil {
			logger.Fatal("AUTH", fmt.Sprintf("Failed to initialise OIDC verifier: %v", err))
		}
		verifier = auth.Middleware(v)
		logger.Info("AUTH", fmt.Sprintf("JWT middleware enabled for issuer %s", cfg.Auth.OIDCIssuer))
	} else {
		logger.Warn("AUTH", "OIDC_ISSUER not set, check-in routes are unauthenticated")
	}

	r.Group(func(r chi.Router) {
		if verifier != nil {
			r.Use(verifier)
		}
		r.Route("/api/checkin", func(r chi.Router) {
			handler.RegisterRoutes(r)
			sseHandler.RegisterRoutes(r)
		})
		logger.Info("ROUTER", "Check-in routes registered under /api/checkin")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		// WriteTimeout stays unset so event streams are not cut off.
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP", fmt.Sprintf("🚀 Check-in Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error { return refresher.Run(gctx) })

	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	if consumer != nil {
		g.Go(func() error { return consumer.Run(gctx, checkinService.InvalidateCodes) })
	}

	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	if err := g.Wait(); err != nil {
		logger.Error("APP", fmt.Sprintf("Service stopped with error: %v", err))
		return
	}
	logger.Info("HTTP", "✅ Check-in Service shutdown complete")
}
