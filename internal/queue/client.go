package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/metrics"
	"github.com/orchids/sandtube/pkg/logger"
)

// QueueClient is the notification sink the engines signal into. Each event
// becomes a notification:deliver task for the worker.
type QueueClient struct {
	client *asynq.Client
	logger *logger.Logger
}

func NewQueueClient(redisOpt asynq.RedisConnOpt, logger *logger.Logger) *QueueClient {
	return &QueueClient{
		client: asynq.NewClient(redisOpt),
		logger: logger,
	}
}

func (q *QueueClient) Close() error {
	return q.client.Close()
}

func (q *QueueClient) Notify(ctx context.Context, event domain.Event) error {
	if event.Recipient == "" {
		metrics.NotificationsEnqueued.WithLabelValues(string(event.Type), "skipped").Inc()
		return nil
	}

	task, err := NewNotificationTask(NotificationPayload{Event: event})
	if err != nil {
		metrics.NotificationsEnqueued.WithLabelValues(string(event.Type), "error").Inc()
		return fmt.Errorf("failed to create task: %w", err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
		asynq.Queue(queueFor(event.Type)),
	}

	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		metrics.NotificationsEnqueued.WithLabelValues(string(event.Type), "error").Inc()
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	metrics.NotificationsEnqueued.WithLabelValues(string(event.Type), "enqueued").Inc()
	q.logger.Debug(ctx, "Notification task enqueued", map[string]interface{}{
		"event_type": event.Type,
		"recipient":  event.Recipient,
		"task_id":    info.ID,
		"queue":      info.Queue,
	})
	return nil
}
