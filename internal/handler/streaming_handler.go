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

// StreamingHandler drives adaptive quality for player sessions. The player
// reports connection class, buffer state and stalls; the server answers with
// the rung it should play.
type StreamingHandler struct {
	delivery *service.DeliveryService
	log      *logger.Logger
}

func NewStreamingHandler(delivery *service.DeliveryService, log *logger.Logger) *StreamingHandler {
	return &StreamingHandler{
		delivery: delivery,
		log:      log,
	}
}

func (h *StreamingHandler) Ladder(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"levels": h.delivery.Ladder()})
}

type connectionRequest struct {
	Connection    domain.ConnectionClass `json:"connection"`
	BandwidthKbps int                    `json:"bandwidth_kbps" binding:"gte=0"`
}

// ReportConnection records the session's connection and selects the best
// fitting rung. A measured bandwidth takes precedence over the class.
func (h *StreamingHandler) ReportConnection(c *gin.Context) {
	ctx := c.Request.Context()

	sessionID, ok := pathID(c, "id", "session_id")
	if !ok {
		return
	}
	var req connectionRequest
	if !bindJSON(c, &req) {
		return
	}

	bandwidth := h.delivery.ReportConnection(sessionID, req.Connection)
	if req.BandwidthKbps > 0 {
		h.delivery.SetBandwidth(sessionID, req.BandwidthKbps)
		bandwidth = req.BandwidthKbps
	}
	quality := h.delivery.SelectOptimalQuality(ctx, sessionID)

	response.Success(c, http.StatusOK, gin.H{
		"bandwidth_kbps": bandwidth,
		"quality":        quality,
	})
}

func (h *StreamingHandler) Quality(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "session_id")
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"quality":        h.delivery.CurrentQuality(sessionID),
		"bandwidth_kbps": h.delivery.Bandwidth(sessionID),
	})
}

type adaptRequest struct {
	BufferHealth float64 `json:"buffer_health" binding:"gte=0,lte=100"`
}

func (h *StreamingHandler) Adapt(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "session_id")
	if !ok {
		return
	}
	var req adaptRequest
	if !bindJSON(c, &req) {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"quality": h.delivery.AdaptBitrate(c.Request.Context(), sessionID, req.BufferHealth),
	})
}

func (h *StreamingHandler) Stall(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "session_id")
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"quality": h.delivery.HandleStall(c.Request.Context(), sessionID),
	})
}

type manualQualityRequest struct {
	Quality string `json:"quality" binding:"required"`
}

func (h *StreamingHandler) SetManualQuality(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "session_id")
	if !ok {
		return
	}
	var req manualQualityRequest
	if !bindJSON(c, &req) {
		return
	}

	quality, err := h.delivery.SetManualQuality(c.Request.Context(), sessionID, req.Quality)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownQuality) {
			response.ValidationError(c, "Unknown quality level")
			return
		}
		response.InternalError(c, "Failed to set quality")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quality": quality})
}

func (h *StreamingHandler) ClearManualQuality(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "session_id")
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"quality": h.delivery.ClearManualQuality(c.Request.Context(), sessionID),
	})
}

func (h *StreamingHandler) UpdateStats(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "session_id")
	if !ok {
		return
	}
	var stats domain.PlaybackStats
	if !bindJSON(c, &stats) {
		return
	}
	response.Success(c, http.StatusOK, h.delivery.UpdateStats(c.Request.Context(), sessionID, stats))
}

func (h *StreamingHandler) Stats(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "session_id")
	if !ok {
		return
	}
	stats, found := h.delivery.Stats(sessionID)
	if !found {
		response.NotFound(c, "No stats reported for this session")
		return
	}
	response.Success(c, http.StatusOK, stats)
}

func (h *StreamingHandler) EndSession(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "session_id")
	if !ok {
		return
	}
	h.delivery.EndSession(sessionID)
	c.Status(http.StatusNoContent)
}
