package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/metrics"
	"github.com/orchids/sandtube/internal/repository"
)

const (
	inboxEngine = "inbox"
	inboxLimit  = 100
)

// InboxService keeps the delivered notifications of each recipient under
// its own key, newest first. Unlike the engines it returns store errors so
// the worker can retry the delivery.
type InboxService struct {
	mu     sync.Mutex
	store  repository.SnapshotStore
	prefix string
}

func NewInboxService(store repository.SnapshotStore, keyPrefix string) *InboxService {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &InboxService{store: store, prefix: keyPrefix}
}

func (s *InboxService) key(recipient string) string {
	return s.prefix + ":" + inboxEngine + ":" + recipient
}

func (s *InboxService) Deliver(ctx context.Context, event domain.Event) error {
	if event.Recipient == "" {
		return nil
	}
	metrics.EngineOperations.WithLabelValues(inboxEngine, "deliver").Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.read(ctx, event.Recipient)
	if err != nil {
		return err
	}

	events = append([]domain.Event{event}, events...)
	if len(events) > inboxLimit {
		events = events[:inboxLimit]
	}

	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to encode inbox: %w", err)
	}
	if err := s.store.Set(ctx, s.key(event.Recipient), data); err != nil {
		metrics.SnapshotWrites.WithLabelValues(inboxEngine, "error").Inc()
		return fmt.Errorf("failed to save inbox: %w", err)
	}
	metrics.SnapshotWrites.WithLabelValues(inboxEngine, "ok").Inc()
	return nil
}

func (s *InboxService) List(ctx context.Context, recipient string) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx, recipient)
}

func (s *InboxService) Clear(ctx context.Context, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, s.key(recipient)); err != nil {
		return fmt.Errorf("failed to clear inbox: %w", err)
	}
	return nil
}

func (s *InboxService) read(ctx context.Context, recipient string) ([]domain.Event, error) {
	data, err := s.store.Get(ctx, s.key(recipient))
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return []domain.Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inbox: %w", err)
	}

	var events []domain.Event
	if err := json.Unmarshal(data, &events); err != nil {
		// A corrupt inbox is replaced rather than blocking every future delivery.
		return []domain.Event{}, nil
	}
	return events, nil
}
