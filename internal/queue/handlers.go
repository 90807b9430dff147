package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/pkg/logger"
)

// Deliverer hands a notification to its recipient.
type Deliverer interface {
	Deliver(ctx context.Context, event domain.Event) error
}

type NotificationHandler struct {
	deliverer Deliverer
	logger    *logger.Logger
}

func NewNotificationHandler(deliverer Deliverer, logger *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		deliverer: deliverer,
		logger:    logger,
	}
}

func (h *NotificationHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNotificationPayload(task)
	if err != nil {
		h.logger.Error(ctx, "Failed to parse notification payload", err, nil)
		// A payload that cannot be decoded will never succeed.
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.deliverer.Deliver(ctx, payload.Event); err != nil {
		h.logger.Error(ctx, "Notification delivery failed", err, map[string]interface{}{
			"event_type": payload.Event.Type,
			"recipient":  payload.Event.Recipient,
		})
		return fmt.Errorf("deliver notification: %w", err)
	}

	h.logger.Info(ctx, "Notification delivered", map[string]interface{}{
		"event_type": payload.Event.Type,
		"recipient":  payload.Event.Recipient,
		"entity_id":  payload.Event.EntityID,
	})
	return nil
}
