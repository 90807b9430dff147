package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orchids/sandtube/internal/domain"
)

// PostgresCatalogRepository reads catalog metadata mirrored from the
// external video API. It never writes.
type PostgresCatalogRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCatalogRepository(pool *pgxpool.Pool) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{
		pool: pool,
	}
}

const catalogColumns = `
	id, title, description, channel_id, channel_title, category_id,
	tags, published_at, view_count, like_count, duration_seconds
`

func (r *PostgresCatalogRepository) GetByID(ctx context.Context, id string) (*domain.ContentItem, error) {
	query := `SELECT ` + catalogColumns + ` FROM videos WHERE id = $1`

	item, err := scanContentItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return item, nil
}

func (r *PostgresCatalogRepository) List(ctx context.Context, limit, offset int) ([]domain.ContentItem, error) {
	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT ` + catalogColumns + `
		FROM videos
		ORDER BY published_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	return collectContentItems(rows)
}

func (r *PostgresCatalogRepository) ListByChannel(ctx context.Context, channelID string, limit int) ([]domain.ContentItem, error) {
	query := `
		SELECT ` + catalogColumns + `
		FROM videos
		WHERE channel_id = $1
		ORDER BY published_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list channel videos: %w", err)
	}
	defer rows.Close()

	return collectContentItems(rows)
}

func scanContentItem(row pgx.Row) (*domain.ContentItem, error) {
	var item domain.ContentItem
	var channelTitle *string
	var duration *int

	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.ChannelID,
		&channelTitle,
		&item.CategoryID,
		&item.Tags,
		&item.PublishedAt,
		&item.ViewCount,
		&item.LikeCount,
		&duration,
	)
	if err != nil {
		return nil, err
	}

	if channelTitle != nil {
		item.ChannelTitle = *channelTitle
	}
	if duration != nil {
		item.DurationSeconds = *duration
	}

	return &item, nil
}

func collectContentItems(rows pgx.Rows) ([]domain.ContentItem, error) {
	var items []domain.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videos: %w", err)
	}

	return items, nil
}
