package domain

import "time"

type EngagementKind string

const (
	EngagementLike    EngagementKind = "like"
	EngagementDislike EngagementKind = "dislike"
	EngagementComment EngagementKind = "comment"
	EngagementShare   EngagementKind = "share"
)

type TrafficSource string

const (
	SourceDirect   TrafficSource = "direct"
	SourceSearch   TrafficSource = "search"
	SourceSuggest  TrafficSource = "suggested"
	SourceExternal TrafficSource = "external"
	SourceChannel  TrafficSource = "channel"
)

type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// ViewEvent describes one playback that ended. Everything but ContentID is optional.
type ViewEvent struct {
	ContentID       string        `json:"content_id"`
	ChannelID       string        `json:"channel_id,omitempty"`
	UserID          string        `json:"user_id,omitempty"`
	WatchSeconds    float64       `json:"watch_seconds"`
	DurationSeconds float64       `json:"duration_seconds,omitempty"`
	Source          TrafficSource `json:"source,omitempty"`
	Country         string        `json:"country,omitempty"`
	Device          string        `json:"device,omitempty"`
}

type Demographics struct {
	Countries map[string]int64 `json:"countries"`
	Devices   map[string]int64 `json:"devices"`
}

type VideoAnalytics struct {
	ContentID           string                  `json:"content_id"`
	ChannelID           string                  `json:"channel_id,omitempty"`
	Views               int64                   `json:"views"`
	UniqueViews         int64                   `json:"unique_views"`
	WatchTimeSeconds    float64                 `json:"watch_time_seconds"`
	AverageViewDuration float64                 `json:"average_view_duration"`
	Likes               int64                   `json:"likes"`
	Dislikes            int64                   `json:"dislikes"`
	Comments            int64                   `json:"comments"`
	Shares              int64                   `json:"shares"`
	RetentionHistogram  []int64                 `json:"retention_histogram"`
	TrafficSources      map[TrafficSource]int64 `json:"traffic_sources"`
	Demographics        Demographics            `json:"demographics"`
	Viewers             map[string]bool         `json:"viewers,omitempty"`
	LastViewed          time.Time               `json:"last_viewed"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ChannelAnalytics struct {
	ChannelID             string             `json:"channel_id"`
	TotalViews            int64              `json:"total_views"`
	TotalWatchTimeSeconds float64            `json:"total_watch_time_seconds"`
	TotalVideos           int                `json:"total_videos"`
	Subscribers           int64              `json:"subscribers"`
	RevenueBySource       map[string]float64 `json:"revenue_by_source"`
	TopVideos             []string           `json:"top_videos"`
	EngagementRate        float64            `json:"engagement_rate"`
	ViewGrowth            []DataPoint        `json:"view_growth"`
}

type ActivityEvent struct {
	Type      string    `json:"type"`
	ContentID string    `json:"content_id"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RealtimeMetrics is ephemeral and never persisted.
type RealtimeMetrics struct {
	ContentID      string          `json:"content_id"`
	CurrentViewers int64           `json:"current_viewers"`
	Views24h       int64           `json:"views_24h"`
	Views7d        int64           `json:"views_7d"`
	Views30d       int64           `json:"views_30d"`
	RecentActivity []ActivityEvent `json:"recent_activity"`
}
