package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/orchids/sandtube/internal/domain"
)

// Catalog is an in-process catalog used by tests and by the memory backend
// when no postgres mirror of the video API is configured.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]domain.ContentItem
}

func NewCatalog(items ...domain.ContentItem) *Catalog {
	c := &Catalog{items: make(map[string]domain.ContentItem)}
	for _, item := range items {
		c.items[item.ID] = item
	}
	return c
}

func (c *Catalog) Put(item domain.ContentItem) {
	c.mu.Lock()
	c.items[item.ID] = item
	c.mu.Unlock()
}

func (c *Catalog) GetByID(ctx context.Context, id string) (*domain.ContentItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[id]
	if !ok {
		return nil, domain.ErrContentNotFound
	}
	return &item, nil
}

func (c *Catalog) List(ctx context.Context, limit, offset int) ([]domain.ContentItem, error) {
	all := c.sorted(func(domain.ContentItem) bool { return true })
	return page(all, limit, offset), nil
}

func (c *Catalog) ListByChannel(ctx context.Context, channelID string, limit int) ([]domain.ContentItem, error) {
	all := c.sorted(func(item domain.ContentItem) bool { return item.ChannelID == channelID })
	return page(all, limit, 0), nil
}

// sorted returns matching items newest first, ties broken by id.
func (c *Catalog) sorted(keep func(domain.ContentItem) bool) []domain.ContentItem {
	c.mu.RLock()
	out := make([]domain.ContentItem, 0, len(c.items))
	for _, item := range c.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out
}

func page(items []domain.ContentItem, limit, offset int) []domain.ContentItem {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []domain.ContentItem{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// LoadCatalog reads a JSON array of content items from path. It seeds the
// memory catalog in development.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog seed: %w", err)
	}

	var items []domain.ContentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode catalog seed: %w", err)
	}
	return NewCatalog(items...), nil
}
