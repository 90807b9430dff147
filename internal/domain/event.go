package domain

import "time"

type EventType string

const (
	EventModerationAction EventType = "moderation.action_recorded"
	EventModerationReview EventType = "moderation.action_reviewed"
	EventViewMilestone    EventType = "analytics.view_milestone"
	EventSuperChat        EventType = "monetization.super_chat"
	EventMembership       EventType = "monetization.membership"
	EventCommentReply     EventType = "comment.reply"
	EventCommentHearted   EventType = "comment.hearted"
)

// Event is what engines hand to the notification sink.
type Event struct {
	Type       EventType         `json:"type"`
	EntityID   string            `json:"entity_id"`
	Recipient  string            `json:"recipient,omitempty"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
