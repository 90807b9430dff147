package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/orchids/sandtube/internal/config"
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
	log.Info(context.Background(), "Starting notification worker", map[string]interface{}{
		"environment":   cfg.Server.Environment,
		"concurrency":   cfg.Worker.MaxConcurrentJobs,
		"store_backend": cfg.Store.Backend,
	})

	if cfg.Store.Backend == config.StoreMemory {
		log.Warn(context.Background(), "Memory store selected, delivered notifications are not visible to the API process", nil)
	}

	store, cleanup, err := initStore(cfg, log)
	if err != nil {
		log.Fatal(context.Background(), "Failed to initialize snapshot store", err, nil)
	}
	defer cleanup()

	inbox := service.NewInboxService(store, cfg.Store.KeyPrefix)
	notificationHandler := queue.NewNotificationHandler(inbox, log)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Address(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.MaxConcurrentJobs,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.Error(ctx, "task execution failed", err, map[string]interface{}{
					"task_type": task.Type(),
					"retry":     retried,
					"max_retry": maxRetry,
					"payload":   string(task.Payload()),
				})
			}),
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delays := []time.Duration{
					10 * time.Second,
					1 * time.Minute,
					5 * time.Minute,
				}
				if n < len(delays) {
					return delays[n]
				}
				return delays[len(delays)-1]
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.Use(timeoutMiddleware(cfg.Worker.JobTimeout))
	mux.HandleFunc(queue.TypeNotificationDeliver, notificationHandler.ProcessTask)

	go func() {
		log.Info(context.Background(), "Worker server starting", map[string]interface{}{
			"concurrency": cfg.Worker.MaxConcurrentJobs,
		})
		if err := srv.Run(mux); err != nil {
			log.Fatal(context.Background(), "Worker server failed", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(context.Background(), "Shutting down worker server...", nil)

	srv.Shutdown()

	log.Info(context.Background(), "Worker server exited gracefully", nil)
}

func timeoutMiddleware(timeout time.Duration) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			if timeout <= 0 {
				return next.ProcessTask(ctx, task)
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next.ProcessTask(ctx, task)
		})
	}
}

// initStore opens the same snapshot backend the API uses so delivered
// notifications land where the API reads them.
func initStore(cfg *config.Config, log *logger.Logger) (repository.SnapshotStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		store := memory.NewStore()
		return store, func() { store.Close() }, nil

	case config.StoreBadger:
		if err := os.MkdirAll(cfg.Store.BadgerPath, 0o755); err != nil {
			return nil, nil, fmt.Errorf("unable to create badger directory: %w", err)
		}
		store, err := badgerstore.Open(cfg.Store.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case config.StoreRedis:
		client, err := initRedis(cfg)
		if err != nil {
			return nil, nil, err
		}
		store := redisstore.NewStore(client, redisstore.BreakerConfig{
			Name:             "redis-inbox",
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		}, log)
		return store, func() { store.Close() }, nil

	case config.StorePostgres:
		pool, err := initDatabase(cfg)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewPostgresSnapshotStore(pool)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
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
