package queue

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"github.com/orchids/sandtube/internal/domain"
)

const (
	TypeNotificationDeliver = "notification:deliver"
)

type NotificationPayload struct {
	Event domain.Event `json:"event"`
}

func NewNotificationTask(payload NotificationPayload) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification payload: %w", err)
	}
	return asynq.NewTask(TypeNotificationDeliver, payloadBytes), nil
}

func ParseNotificationPayload(task *asynq.Task) (*NotificationPayload, error) {
	var payload NotificationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification payload: %w", err)
	}
	return &payload, nil
}

// queueFor routes moderation outcomes ahead of everything else.
func queueFor(eventType domain.EventType) string {
	switch eventType {
	case domain.EventModerationAction, domain.EventModerationReview:
		return "critical"
	case domain.EventViewMilestone:
		return "low"
	}
	return "default"
}
