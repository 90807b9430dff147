package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/repository"
	"github.com/redis/go-redis/v9"
)

var ErrQueueUnavailable = errors.New("task queue not configured")

// breakerState is implemented by stores guarded by a circuit breaker.
type breakerState interface {
	State() string
}

// MonitoringService probes the process's backing dependencies. Any of db,
// redis and inspector may be nil when the configured backends do not need
// them.
type MonitoringService struct {
	store     repository.SnapshotStore
	backend   string
	probeKey  string
	db        *pgxpool.Pool
	redis     *redis.Client
	inspector *asynq.Inspector
	startTime time.Time
}

func NewMonitoringService(
	store repository.SnapshotStore,
	backend, keyPrefix string,
	db *pgxpool.Pool,
	redisClient *redis.Client,
	inspector *asynq.Inspector,
) *MonitoringService {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &MonitoringService{
		store:     store,
		backend:   backend,
		probeKey:  keyPrefix + ":health",
		db:        db,
		redis:     redisClient,
		inspector: inspector,
		startTime: time.Now(),
	}
}

// CheckHealth reports reachability per dependency. A missing probe key
// counts as a healthy store.
func (s *MonitoringService) CheckHealth(ctx context.Context) map[string]bool {
	checks := map[string]bool{}

	if s.store != nil {
		_, err := s.store.Get(ctx, s.probeKey)
		checks["store"] = err == nil || errors.Is(err, domain.ErrSnapshotNotFound)
	}
	if s.db != nil {
		checks["database"] = s.db.Ping(ctx) == nil
	}
	if s.redis != nil {
		checks["redis"] = s.redis.Ping(ctx).Err() == nil
	}
	return checks
}

func (s *MonitoringService) GetRuntimeMetrics() domain.RuntimeMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	metrics := domain.RuntimeMetrics{
		Goroutines:   runtime.NumGoroutine(),
		HeapAlloc:    mem.HeapAlloc,
		HeapObjects:  mem.HeapObjects,
		SysBytes:     mem.Sys,
		NumGC:        mem.NumGC,
		Uptime:       time.Since(s.startTime),
		StoreBackend: s.backend,
		Timestamp:    time.Now(),
	}
	if b, ok := s.store.(breakerState); ok {
		metrics.StoreBreaker = b.State()
	}
	return metrics
}

func (s *MonitoringService) GetQueueMetrics(ctx context.Context) (*domain.QueueMetrics, error) {
	if s.inspector == nil {
		return nil, ErrQueueUnavailable
	}

	queues, err := s.inspector.Queues()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue list: %w", err)
	}

	metrics := &domain.QueueMetrics{Queues: queues, Timestamp: time.Now()}
	for _, queue := range queues {
		info, err := s.inspector.GetQueueInfo(queue)
		if err != nil {
			continue
		}
		metrics.PendingJobs += int64(info.Pending)
		metrics.ActiveJobs += int64(info.Active)
		metrics.ScheduledJobs += int64(info.Scheduled)
		metrics.RetryJobs += int64(info.Retry)
		metrics.ArchivedJobs += int64(info.Archived)
		metrics.ProcessedLast += int64(info.Processed)
		metrics.FailedLast += int64(info.Failed)
	}
	return metrics, nil
}

// GetDatabaseMetrics returns nil when no database pool is configured.
func (s *MonitoringService) GetDatabaseMetrics() *domain.DatabaseMetrics {
	if s.db == nil {
		return nil
	}
	stats := s.db.Stat()
	return &domain.DatabaseMetrics{
		ActiveConnections: int(stats.AcquiredConns()),
		IdleConnections:   int(stats.IdleConns()),
		MaxConnections:    int(stats.MaxConns()),
		AcquireCount:      stats.AcquireCount(),
		Timestamp:         time.Now(),
	}
}

// GetAllMetrics collects every available section. Queue errors are reported
// inline rather than failing the whole snapshot.
func (s *MonitoringService) GetAllMetrics(ctx context.Context) map[string]interface{} {
	all := map[string]interface{}{
		"runtime": s.GetRuntimeMetrics(),
		"health":  s.CheckHealth(ctx),
	}

	if queue, err := s.GetQueueMetrics(ctx); err == nil {
		all["queue"] = queue
	} else {
		all["queue_error"] = err.Error()
	}

	if db := s.GetDatabaseMetrics(); db != nil {
		all["database"] = db
	}
	return all
}
