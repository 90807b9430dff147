package domain

import "time"

// ContentItem is the catalog metadata the discovery engines score against.
// It is supplied by the catalog service and never mutated here.
type ContentItem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ChannelID       string    `json:"channel_id"`
	ChannelTitle    string    `json:"channel_title,omitempty"`
	CategoryID      string    `json:"category_id"`
	Tags            []string  `json:"tags,omitempty"`
	PublishedAt     time.Time `json:"published_at"`
	ViewCount       int64     `json:"view_count"`
	LikeCount       int64     `json:"like_count"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
}

// HasTag reports whether the item carries tag (exact match).
func (c ContentItem) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
