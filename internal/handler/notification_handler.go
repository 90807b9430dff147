package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/orchids/sandtube/internal/service"
	"github.com/orchids/sandtube/pkg/logger"
	"github.com/orchids/sandtube/pkg/response"
)

type NotificationHandler struct {
	inbox *service.InboxService
	log   *logger.Logger
}

func NewNotificationHandler(inbox *service.InboxService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		inbox: inbox,
		log:   log,
	}
}

func (h *NotificationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := pathID(c, "id", "user_id")
	if !ok {
		return
	}

	events, err := h.inbox.List(ctx, userID)
	if err != nil {
		h.log.Error(ctx, "Failed to load notifications", err, map[string]interface{}{
			"user_id": userID,
		})
		response.InternalError(c, "Failed to load notifications")
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"notifications": events,
		"count":         len(events),
	})
}

func (h *NotificationHandler) Clear(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := pathID(c, "id", "user_id")
	if !ok {
		return
	}

	if err := h.inbox.Clear(ctx, userID); err != nil {
		h.log.Error(ctx, "Failed to clear notifications", err, map[string]interface{}{
			"user_id": userID,
		})
		response.InternalError(c, "Failed to clear notifications")
		return
	}
	c.Status(http.StatusNoContent)
}
