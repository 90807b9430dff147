package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/service"
	"github.com/orchids/sandtube/pkg/logger"
	"github.com/orchids/sandtube/pkg/response"
)

type AnalyticsHandler struct {
	engagement *service.EngagementService
	analytics  *service.AnalyticsService
	log        *logger.Logger
}

func NewAnalyticsHandler(engagement *service.EngagementService, analytics *service.AnalyticsService, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		engagement: engagement,
		analytics:  analytics,
		log:        log,
	}
}

type viewRequest struct {
	UserID          string               `json:"user_id"`
	ChannelID       string               `json:"channel_id"`
	WatchSeconds    float64              `json:"watch_seconds" binding:"gte=0"`
	DurationSeconds float64              `json:"duration_seconds" binding:"gte=0"`
	Source          domain.TrafficSource `json:"source"`
	Country         string               `json:"country"`
	Device          string               `json:"device"`
}

// RecordView is called by the player when a playback ends.
func (h *AnalyticsHandler) RecordView(c *gin.Context) {
	ctx := c.Request.Context()

	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}
	var req viewRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.engagement.Watch(ctx, domain.ViewEvent{
		ContentID:       contentID,
		ChannelID:       req.ChannelID,
		UserID:          req.UserID,
		WatchSeconds:    req.WatchSeconds,
		DurationSeconds: req.DurationSeconds,
		Source:          req.Source,
		Country:         req.Country,
		Device:          req.Device,
	})
	if err != nil {
		h.log.Error(ctx, "Failed to record view", err, map[string]interface{}{
			"content_id": contentID,
		})
		response.InternalError(c, "Failed to record view")
		return
	}

	var views int64
	if va := h.analytics.Video(contentID); va != nil {
		views = va.Views
	}
	response.Success(c, http.StatusAccepted, gin.H{"views": views})
}

func (h *AnalyticsHandler) Video(c *gin.Context) {
	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}

	va := h.analytics.Video(contentID)
	if va == nil {
		response.NotFound(c, "No analytics for this content")
		return
	}
	va.Viewers = nil
	response.Success(c, http.StatusOK, gin.H{
		"analytics":       va,
		"engagement_rate": h.analytics.EngagementRate(contentID),
	})
}

func (h *AnalyticsHandler) Retention(c *gin.Context) {
	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"curve": h.analytics.RetentionCurve(contentID)})
}

func (h *AnalyticsHandler) Realtime(c *gin.Context) {
	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}

	rt := h.analytics.Realtime(contentID)
	if rt == nil {
		rt = &domain.RealtimeMetrics{ContentID: contentID, RecentActivity: []domain.ActivityEvent{}}
	}
	response.Success(c, http.StatusOK, rt)
}

func (h *AnalyticsHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()

	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}
	format := domain.ExportFormat(c.DefaultQuery("format", string(domain.ExportJSON)))

	out, err := h.analytics.ExportAnalytics(contentID, format)
	switch {
	case errors.Is(err, domain.ErrContentNotFound):
		response.NotFound(c, "No analytics for this content")
		return
	case errors.Is(err, domain.ErrInvalidExport):
		response.ValidationError(c, "format must be json or csv")
		return
	case err != nil:
		h.log.Error(ctx, "Failed to export analytics", err, map[string]interface{}{
			"content_id": contentID,
		})
		response.InternalError(c, "Failed to export analytics")
		return
	}

	contentType := "application/json"
	if format == domain.ExportCSV {
		contentType = "text/csv"
		c.Header("Content-Disposition", "attachment; filename=\""+contentID+"-analytics.csv\"")
	}
	c.Data(http.StatusOK, contentType, []byte(out))
}

func (h *AnalyticsHandler) Channel(c *gin.Context) {
	channelID, ok := pathID(c, "id", "channel_id")
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, h.analytics.ChannelAnalytics(channelID))
}
