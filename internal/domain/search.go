package domain

import "time"

type UploadDateFilter string

const (
	UploadLastHour UploadDateFilter = "hour"
	UploadToday    UploadDateFilter = "today"
	UploadWeek     UploadDateFilter = "week"
	UploadMonth    UploadDateFilter = "month"
	UploadYear     UploadDateFilter = "year"
)

// Window is the maximum age an item may have to pass the filter.
func (f UploadDateFilter) Window() (time.Duration, bool) {
	switch f {
	case UploadLastHour:
		return time.Hour, true
	case UploadToday:
		return 24 * time.Hour, true
	case UploadWeek:
		return 7 * 24 * time.Hour, true
	case UploadMonth:
		return 30 * 24 * time.Hour, true
	case UploadYear:
		return 365 * 24 * time.Hour, true
	}
	return 0, false
}

type DurationFilter string

const (
	DurationShort  DurationFilter = "short"
	DurationMedium DurationFilter = "medium"
	DurationLong   DurationFilter = "long"
)

// Matches reports whether an item of the given length passes. Items with an
// unknown (zero) length always pass.
func (f DurationFilter) Matches(seconds int) bool {
	if seconds <= 0 {
		return true
	}
	switch f {
	case DurationShort:
		return seconds < 4*60
	case DurationMedium:
		return seconds >= 4*60 && seconds <= 20*60
	case DurationLong:
		return seconds > 20*60
	}
	return true
}

type SearchFilters struct {
	UploadDate UploadDateFilter `json:"upload_date,omitempty"`
	Duration   DurationFilter   `json:"duration,omitempty"`
	ChannelID  string           `json:"channel_id,omitempty"`
}

type SearchSort string

const (
	SortRelevance SearchSort = "relevance"
	SortDate      SearchSort = "date"
	SortViewCount SearchSort = "view_count"
	SortRating    SearchSort = "rating"
)
