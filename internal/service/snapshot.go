package service

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/metrics"
	"github.com/orchids/sandtube/internal/repository"
	"github.com/orchids/sandtube/pkg/logger"
)

const defaultKeyPrefix = "sandtube"

// EngineOptions carries the collaborators every engine shares. A nil Store
// keeps the engine purely in memory.
type EngineOptions struct {
	Store     repository.SnapshotStore
	KeyPrefix string
	Logger    *logger.Logger
	Now       func() time.Time
}

func (o EngineOptions) clock() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}

func (o EngineOptions) logger(engine string) *logger.Logger {
	if o.Logger == nil {
		return logger.NewNop()
	}
	return o.Logger.Component(engine)
}

// snapshotter persists one engine's full state under a single key. The
// in-memory state is authoritative: write failures are logged and counted,
// never returned.
type snapshotter struct {
	store  repository.SnapshotStore
	key    string
	engine string
	log    *logger.Logger
}

func newSnapshotter(opts EngineOptions, engine string) *snapshotter {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &snapshotter{
		store:  opts.Store,
		key:    prefix + ":" + engine,
		engine: engine,
		log:    opts.logger(engine),
	}
}

// load decodes the stored snapshot into v and reports whether anything was
// loaded. A malformed snapshot leaves v untouched.
func (s *snapshotter) load(ctx context.Context, v interface{}) bool {
	if s.store == nil {
		return false
	}

	data, err := s.store.Get(ctx, s.key)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		metrics.SnapshotLoads.WithLabelValues(s.engine, "empty").Inc()
		return false
	}
	if err != nil {
		metrics.SnapshotLoads.WithLabelValues(s.engine, "error").Inc()
		s.log.Error(ctx, "Failed to load snapshot, starting empty", err, map[string]interface{}{
			"key": s.key,
		})
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		metrics.SnapshotLoads.WithLabelValues(s.engine, "malformed").Inc()
		s.log.Warn(ctx, "Malformed snapshot, starting empty", map[string]interface{}{
			"key":   s.key,
			"error": err.Error(),
		})
		return false
	}

	metrics.SnapshotLoads.WithLabelValues(s.engine, "ok").Inc()
	return true
}

func (s *snapshotter) save(ctx context.Context, v interface{}) {
	if s.store == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		metrics.SnapshotWrites.WithLabelValues(s.engine, "error").Inc()
		s.log.Error(ctx, "Failed to encode snapshot", err, map[string]interface{}{"key": s.key})
		return
	}

	if err := s.store.Set(ctx, s.key, data); err != nil {
		metrics.SnapshotWrites.WithLabelValues(s.engine, "error").Inc()
		s.log.Error(ctx, "Failed to persist snapshot", err, map[string]interface{}{"key": s.key})
		return
	}

	metrics.SnapshotWrites.WithLabelValues(s.engine, "ok").Inc()
}
