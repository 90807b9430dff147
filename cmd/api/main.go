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

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/thejerf/suture/v4"

	"github.com/orchids/sandtube/internal/config"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/handler"
	"github.com/orchids/sandtube/internal/queue"
	"github.com/orchids/sandtube/internal/repository"
	"github.com/orchids/sandtube/internal/repository/badgerstore"
	"github.com/orchids/sandtube/internal/repository/memory"
	"github.com/orchids/sandtube/internal/repository/postgres"
	"github.com/orchids/sandtube/internal/repository/redisstore"
	"github.com/orchids/sandtube/internal/service"
	"github.com/orchids/sandtube/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Environment, cfg.LogLevel)
	log.Info(context.Background(), "Starting SandTube engagement service", map[string]interface{}{
		"environment":   cfg.Server.Environment,
		"port":          cfg.Server.Port,
		"store_backend": cfg.Store.Backend,
		"catalog":       cfg.Store.CatalogBackend,
	})

	var dbPool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		dbPool, err = initDatabase(cfg)
		if err != nil {
			log.Fatal(context.Background(), "Failed to initialize database", err, nil)
		}
		defer dbPool.Close()
		log.Info(context.Background(), "Database connection established", nil)
	}

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = initRedis(cfg)
		if err != nil {
			log.Fatal(context.Background(), "Failed to initialize Redis", err, nil)
		}
		defer redisClient.Close()
		log.Info(context.Background(), "Redis connection established", nil)
	}

	store, err := initStore(cfg, dbPool, redisClient, log)
	if err != nil {
		log.Fatal(context.Background(), "Failed to initialize snapshot store", err, nil)
	}
	defer store.Close()

	catalog, err := initCatalog(cfg, dbPool)
	if err != nil {
		log.Fatal(context.Background(), "Failed to initialize catalog", err, nil)
	}

	var notifier service.Notifier
	var inspector *asynq.Inspector
	if cfg.Worker.QueueEnabled {
		redisOpt := redisConnOpt(cfg)
		queueClient := queue.NewQueueClient(redisOpt, log)
		defer queueClient.Close()
		notifier = queueClient

		inspector = asynq.NewInspector(redisOpt)
		defer inspector.Close()
	}

	ctx := context.Background()
	opts := service.EngineOptions{
		Store:     store,
		KeyPrefix: cfg.Store.KeyPrefix,
		Logger:    log,
	}

	social := service.NewSocialService(ctx, opts)
	comments := service.NewCommentService(ctx, opts, notifier)
	analyticsCfg := service.DefaultAnalyticsConfig()
	analyticsCfg.RetentionBuckets = cfg.Analytics.RetentionBuckets
	analyticsCfg.NominalVideoLength = cfg.Analytics.NominalVideoLength
	analyticsCfg.LegacyRetention = cfg.Analytics.LegacyRetention
	analyticsCfg.DecayInterval = cfg.Analytics.DecayInterval
	analyticsCfg.MaxViewerDrop = cfg.Analytics.MaxViewerDrop
	analytics := service.NewAnalyticsService(ctx, opts, analyticsCfg, notifier)
	moderation := service.NewModerationService(ctx, opts, service.ModerationConfig{
		BlockedWords: cfg.Moderation.BlockedWords,
	}, notifier)
	recommendations := service.NewRecommendationService(ctx, opts)
	search := service.NewSearchService(ctx, opts)
	monetization := service.NewMonetizationService(ctx, opts, domain.MonetizationSettings{
		PreRollEnabled:         cfg.Monetization.PreRollEnabled,
		MidRollEnabled:         cfg.Monetization.MidRollEnabled,
		PostRollEnabled:        cfg.Monetization.PostRollEnabled,
		MidRollIntervalSeconds: int(cfg.Monetization.MidRollInterval.Seconds()),
		SuperChatEnabled:       cfg.Monetization.SuperChatEnabled,
		MembershipsEnabled:     cfg.Monetization.MembershipsEnabled,
		MerchandiseEnabled:     cfg.Monetization.MerchandiseEnabled,
	}, notifier)
	delivery := service.NewDeliveryService(ctx, opts, service.DeliveryConfig{
		BufferTarget:     cfg.Delivery.BufferTarget,
		BandwidthRefresh: cfg.Delivery.BandwidthRefresh,
	})
	inbox := service.NewInboxService(store, cfg.Store.KeyPrefix)
	monitoring := service.NewMonitoringService(store, cfg.Store.Backend, cfg.Store.KeyPrefix, dbPool, redisClient, inspector)

	engagement := service.NewEngagementService(social, comments, analytics, moderation, recommendations, monetization, catalog, log)
	discovery := service.NewDiscoveryService(catalog, recommendations, search, social)

	supervisorCtx, stopSupervisor := context.WithCancel(context.Background())
	supervisor := suture.New("sandtube", suture.Spec{
		EventHook: func(e suture.Event) {
			log.Warn(context.Background(), "Supervisor event: "+e.String(), e.Map())
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
	supervisor.Add(analytics)
	supervisor.Add(service.NewBandwidthMonitor(delivery))
	supervisorDone := supervisor.ServeBackground(supervisorCtx)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(handler.Handlers{
		Social:        handler.NewSocialHandler(engagement, social, log),
		Comments:      handler.NewCommentHandler(engagement, comments, log),
		Analytics:     handler.NewAnalyticsHandler(engagement, analytics, log),
		Discovery:     handler.NewDiscoveryHandler(catalog, discovery, recommendations, search, log),
		Moderation:    handler.NewModerationHandler(moderation, log),
		Monetization:  handler.NewMonetizationHandler(engagement, monetization, analytics, log),
		Streaming:     handler.NewStreamingHandler(delivery, log),
		Notifications: handler.NewNotificationHandler(inbox, log),
		Admin:         handler.NewAdminHandler(moderation, monitoring, inspector, log),
	}, monitoring.CheckHealth, log)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info(context.Background(), "HTTP server starting", map[string]interface{}{
			"address": cfg.Server.Address(),
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(context.Background(), "Failed to start server", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(context.Background(), "Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(context.Background(), "Server forced to shutdown", err, nil)
	}

	stopSupervisor()
	if err := <-supervisorDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Error(context.Background(), "Background services stopped with error", err, nil)
	}

	log.Info(context.Background(), "Server exited gracefully", nil)
}

func initStore(cfg *config.Config, dbPool *pgxpool.Pool, redisClient *redis.Client, log *logger.Logger) (repository.SnapshotStore, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return memory.NewStore(), nil

	case config.StoreBadger:
		if err := os.MkdirAll(cfg.Store.BadgerPath, 0o755); err != nil {
			return nil, fmt.Errorf("unable to create badger directory: %w", err)
		}
		return badgerstore.Open(cfg.Store.BadgerPath)

	case config.StoreRedis:
		return redisstore.NewStore(redisClient, redisstore.BreakerConfig{
			Name:             "redis-snapshots",
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		}, log), nil

	case config.StorePostgres:
		store := postgres.NewPostgresSnapshotStore(dbPool)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func initCatalog(cfg *config.Config, dbPool *pgxpool.Pool) (repository.CatalogRepository, error) {
	if cfg.Store.CatalogBackend == config.CatalogPostgres {
		return postgres.NewPostgresCatalogRepository(dbPool), nil
	}
	if cfg.Store.CatalogSeedPath != "" {
		return memory.LoadCatalog(cfg.Store.CatalogSeedPath)
	}
	return memory.NewCatalog(), nil
}

func redisConnOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func initDatabase(cfg *config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Address(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to Redis: %w", err)
	}

	return client, nil
}
