package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/service"
	"github.com/orchids/sandtube/pkg/logger"
	"github.com/orchids/sandtube/pkg/response"
	"github.com/orchids/sandtube/pkg/validator"
)

// AdminHandler serves moderator review and queue introspection. The
// inspector is nil when the process runs without redis.
type AdminHandler struct {
	moderation *service.ModerationService
	monitoring *service.MonitoringService
	inspector  *asynq.Inspector
	log        *logger.Logger
}

func NewAdminHandler(
	moderation *service.ModerationService,
	monitoring *service.MonitoringService,
	inspector *asynq.Inspector,
	log *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		moderation: moderation,
		monitoring: monitoring,
		inspector:  inspector,
		log:        log,
	}
}

func (h *AdminHandler) PendingActions(c *gin.Context) {
	actions := h.moderation.Pending()
	response.Success(c, http.StatusOK, gin.H{
		"actions": actions,
		"count":   len(actions),
	})
}

func (h *AdminHandler) ContentActions(c *gin.Context) {
	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"actions": h.moderation.ActionsFor(contentID)})
}

type reviewRequest struct {
	Decision   domain.ModerationStatus `json:"decision" binding:"required"`
	ReviewerID string                  `json:"reviewer_id" binding:"required"`
}

func (h *AdminHandler) ReviewAction(c *gin.Context) {
	ctx := c.Request.Context()

	actionID := c.Param("id")
	if _, err := validator.ValidateUUID(actionID); err != nil {
		response.ValidationError(c, "Invalid action ID format")
		return
	}
	var req reviewRequest
	if !bindJSON(c, &req) {
		return
	}

	action, err := h.moderation.Review(ctx, actionID, req.Decision, req.ReviewerID)
	switch {
	case errors.Is(err, domain.ErrInvalidDecision):
		response.ValidationError(c, "decision must be approved or rejected")
		return
	case errors.Is(err, domain.ErrActionNotFound):
		response.NotFound(c, "Moderation action not found")
		return
	case errors.Is(err, domain.ErrActionNotPending):
		response.Conflict(c, "Moderation action was already reviewed")
		return
	case err != nil:
		h.log.Error(ctx, "Failed to review moderation action", err, map[string]interface{}{
			"action_id": actionID,
		})
		response.InternalError(c, "Failed to review moderation action")
		return
	}

	response.Success(c, http.StatusOK, action)
}

func (h *AdminHandler) ListRules(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"rules": h.moderation.Rules()})
}

func (h *AdminHandler) AddRule(c *gin.Context) {
	var rule domain.ModerationRule
	if !bindJSON(c, &rule) {
		return
	}

	created, err := h.moderation.AddRule(c.Request.Context(), rule)
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	response.Success(c, http.StatusCreated, created)
}

func (h *AdminHandler) RemoveRule(c *gin.Context) {
	ruleID, ok := pathID(c, "id", "rule_id")
	if !ok {
		return
	}
	if !h.moderation.RemoveRule(c.Request.Context(), ruleID) {
		response.NotFound(c, "Rule not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) Strikes(c *gin.Context) {
	authorID, ok := pathID(c, "id", "author_id")
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"author_id": authorID,
		"strikes":   h.moderation.Strikes(authorID),
	})
}

func (h *AdminHandler) GetQueueStats(c *gin.Context) {
	ctx := c.Request.Context()

	if h.inspector == nil {
		response.ServiceUnavailable(c, "Task queue is not configured")
		return
	}

	queueName := c.DefaultQuery("queue", "default")
	stats, err := h.inspector.GetQueueInfo(queueName)
	if err != nil {
		h.log.Error(ctx, "Failed to get queue stats", err, map[string]interface{}{
			"queue": queueName,
		})
		response.InternalError(c, "Failed to retrieve queue statistics")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"queue":     stats.Queue,
		"active":    stats.Active,
		"pending":   stats.Pending,
		"scheduled": stats.Scheduled,
		"retry":     stats.Retry,
		"archived":  stats.Archived,
		"completed": stats.Completed,
		"processed": stats.Processed,
		"failed":    stats.Failed,
		"paused":    stats.Paused,
		"size":      stats.Size,
	})
}

func (h *AdminHandler) ListActiveWorkers(c *gin.Context) {
	ctx := c.Request.Context()

	if h.inspector == nil {
		response.ServiceUnavailable(c, "Task queue is not configured")
		return
	}

	workers, err := h.inspector.Servers()
	if err != nil {
		h.log.Error(ctx, "Failed to list workers", err, nil)
		response.InternalError(c, "Failed to retrieve worker information")
		return
	}

	workerInfo := make([]gin.H, 0, len(workers))
	for _, worker := range workers {
		workerInfo = append(workerInfo, gin.H{
			"host":         worker.Host,
			"pid":          worker.PID,
			"server_id":    worker.ID,
			"concurrency":  worker.Concurrency,
			"queues":       worker.Queues,
			"started":      worker.Started,
			"active_tasks": len(worker.ActiveWorkers),
		})
	}

	response.Success(c, http.StatusOK, gin.H{
		"workers": workerInfo,
		"count":   len(workerInfo),
	})
}

func (h *AdminHandler) SystemMetrics(c *gin.Context) {
	response.Success(c, http.StatusOK, h.monitoring.GetAllMetrics(c.Request.Context()))
}
