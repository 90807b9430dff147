package domain

import "time"

type InteractionKind string

const (
	InteractionLike    InteractionKind = "like"
	InteractionDislike InteractionKind = "dislike"
	InteractionSave    InteractionKind = "save"
)

// Interaction records one user's reaction to one content item.
// For a given (UserID, ContentID) at most one of Like/Dislike exists.
type Interaction struct {
	UserID    string          `json:"user_id"`
	ContentID string          `json:"content_id"`
	Kind      InteractionKind `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
}

type ToggleAction string

const (
	ToggleAdded   ToggleAction = "added"
	ToggleRemoved ToggleAction = "removed"
)

// ToggleResult is returned by the like/dislike/save toggles. Cleared is set
// when the toggle removed the opposite reaction first.
type ToggleResult struct {
	Action  ToggleAction     `json:"action"`
	Cleared *InteractionKind `json:"cleared,omitempty"`
}

// Subscription links a user to a channel.
type Subscription struct {
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Share is a single share of a content item to an external platform.
type Share struct {
	UserID    string    `json:"user_id"`
	ContentID string    `json:"content_id"`
	Platform  string    `json:"platform"`
	Timestamp time.Time `json:"timestamp"`
}
