// Package redisstore persists engine snapshots in Redis behind a circuit
// breaker so a flapping Redis fails writes fast instead of stalling engines.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/pkg/logger"
)

type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "redis-snapshots",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

type Store struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     *logger.Logger
}

func NewStore(client *redis.Client, cfg BreakerConfig, log *logger.Logger) *Store {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}

	s := &Store{client: client, log: log}
	s.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrSnapshotNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "snapshot store circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
	return s
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.breaker.Execute(func() ([]byte, error) {
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSnapshotNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get snapshot: %w", err)
		}
		return data, nil
	})
	return value, s.translate(err)
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.breaker.Execute(func() ([]byte, error) {
		if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
			return nil, fmt.Errorf("failed to set snapshot: %w", err)
		}
		return nil, nil
	})
	return s.translate(err)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.breaker.Execute(func() ([]byte, error) {
		return nil, s.client.Del(ctx, key).Err()
	})
	return s.translate(err)
}

// State exposes the breaker state for health reporting.
func (s *Store) State() string {
	return s.breaker.State().String()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}
