package repository

import (
	"context"

	"github.com/orchids/sandtube/internal/domain"
)

// SnapshotStore is the key-value medium every engine persists its full
// snapshot into. Get returns domain.ErrSnapshotNotFound for a missing key.
type SnapshotStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// CatalogRepository is the read-only view of the external video catalog.
type CatalogRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ContentItem, error)
	List(ctx context.Context, limit, offset int) ([]domain.ContentItem, error)
	ListByChannel(ctx context.Context, channelID string, limit int) ([]domain.ContentItem, error)
}
