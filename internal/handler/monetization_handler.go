package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/service"
	"github.com/orchids/sandtube/pkg/logger"
	"github.com/orchids/sandtube/pkg/response"
	"github.com/orchids/sandtube/pkg/validator"
)

type MonetizationHandler struct {
	engagement   *service.EngagementService
	monetization *service.MonetizationService
	analytics    *service.AnalyticsService
	log          *logger.Logger
}

func NewMonetizationHandler(
	engagement *service.EngagementService,
	monetization *service.MonetizationService,
	analytics *service.AnalyticsService,
	log *logger.Logger,
) *MonetizationHandler {
	return &MonetizationHandler{
		engagement:   engagement,
		monetization: monetization,
		analytics:    analytics,
		log:          log,
	}
}

func (h *MonetizationHandler) Settings(c *gin.Context) {
	response.Success(c, http.StatusOK, h.monetization.Settings())
}

func (h *MonetizationHandler) UpdateSettings(c *gin.Context) {
	var settings domain.MonetizationSettings
	if !bindJSON(c, &settings) {
		return
	}

	if err := h.monetization.UpdateSettings(c.Request.Context(), settings); err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			response.ValidationError(c, err.Error())
			return
		}
		response.InternalError(c, "Failed to update settings")
		return
	}
	response.Success(c, http.StatusOK, h.monetization.Settings())
}

type placementsRequest struct {
	DurationSeconds int `json:"duration_seconds" binding:"required,gt=0"`
}

func (h *MonetizationHandler) GeneratePlacements(c *gin.Context) {
	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}
	var req placementsRequest
	if !bindJSON(c, &req) {
		return
	}

	placements := h.monetization.GeneratePlacements(c.Request.Context(), contentID, req.DurationSeconds)
	response.Success(c, http.StatusOK, gin.H{"placements": placements})
}

func (h *MonetizationHandler) Placements(c *gin.Context) {
	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"placements": h.monetization.Placements(contentID)})
}

func (h *MonetizationHandler) Impression(c *gin.Context) {
	placementID, ok := pathID(c, "id", "placement_id")
	if !ok {
		return
	}
	if !h.monetization.TrackImpression(c.Request.Context(), placementID) {
		response.NotFound(c, "Ad placement not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MonetizationHandler) Click(c *gin.Context) {
	placementID, ok := pathID(c, "id", "placement_id")
	if !ok {
		return
	}
	if !h.monetization.TrackClick(c.Request.Context(), placementID) {
		response.NotFound(c, "Ad placement not found")
		return
	}
	c.Status(http.StatusNoContent)
}

type superChatRequest struct {
	ContentID string  `json:"content_id"`
	UserID    string  `json:"user_id" binding:"required"`
	Amount    float64 `json:"amount"`
	Message   string  `json:"message"`
}

func (h *MonetizationHandler) SuperChat(c *gin.Context) {
	channelID, ok := pathID(c, "id", "channel_id")
	if !ok {
		return
	}
	var req superChatRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := validator.ValidateAmount(req.Amount); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	h.transaction(c, h.engagement.SuperChat(c.Request.Context(), service.SuperChatRequest{
		ChannelID: channelID,
		ContentID: req.ContentID,
		UserID:    req.UserID,
		Amount:    req.Amount,
		Message:   req.Message,
	}))
}

type membershipRequest struct {
	UserID string                `json:"user_id" binding:"required"`
	Tier   domain.MembershipTier `json:"tier" binding:"required"`
}

func (h *MonetizationHandler) Membership(c *gin.Context) {
	channelID, ok := pathID(c, "id", "channel_id")
	if !ok {
		return
	}
	var req membershipRequest
	if !bindJSON(c, &req) {
		return
	}

	h.transaction(c, h.engagement.Membership(c.Request.Context(), channelID, req.UserID, req.Tier))
}

type merchandiseRequest struct {
	ItemID    string  `json:"item_id" binding:"required"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
}

func (h *MonetizationHandler) Merchandise(c *gin.Context) {
	channelID, ok := pathID(c, "id", "channel_id")
	if !ok {
		return
	}
	var req merchandiseRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := validator.ValidateAmount(req.UnitPrice); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	h.transaction(c, h.engagement.Merchandise(c.Request.Context(), channelID, req.ItemID, req.UnitPrice, req.Quantity))
}

type sponsorshipRequest struct {
	Sponsor string  `json:"sponsor" binding:"required"`
	Amount  float64 `json:"amount"`
}

func (h *MonetizationHandler) Sponsorship(c *gin.Context) {
	channelID, ok := pathID(c, "id", "channel_id")
	if !ok {
		return
	}
	var req sponsorshipRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := validator.ValidateAmount(req.Amount); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	h.transaction(c, h.engagement.Sponsorship(c.Request.Context(), channelID, req.Sponsor, req.Amount))
}

func (h *MonetizationHandler) transaction(c *gin.Context, result domain.TransactionResult) {
	if !result.Success {
		response.Declined(c, result.Reason)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

func (h *MonetizationHandler) Revenue(c *gin.Context) {
	entityID, ok := pathID(c, "id", "entity_id")
	if !ok {
		return
	}
	stream := h.monetization.Revenue(entityID)
	response.Success(c, http.StatusOK, gin.H{
		"revenue": stream,
		"total":   stream.Total(),
	})
}

func (h *MonetizationHandler) Estimate(c *gin.Context) {
	views, err := strconv.ParseInt(c.Query("views"), 10, 64)
	if err != nil || views < 0 {
		response.ValidationError(c, "views must be a non-negative integer")
		return
	}
	rate := 0.0
	if raw := c.Query("rate"); raw != "" {
		rate, err = strconv.ParseFloat(raw, 64)
		if err != nil || rate < 0 || rate > 1 {
			response.ValidationError(c, "rate must be a fraction between 0 and 1")
			return
		}
	}
	response.Success(c, http.StatusOK, service.EstimateEarnings(views, rate))
}

// Eligibility checks a channel against the partner thresholds using the
// channel's tracked analytics.
func (h *MonetizationHandler) Eligibility(c *gin.Context) {
	channelID, ok := pathID(c, "id", "channel_id")
	if !ok {
		return
	}

	ch := h.analytics.ChannelAnalytics(channelID)
	stats := domain.ChannelStats{
		Subscribers:    ch.Subscribers,
		WatchTimeHours: ch.TotalWatchTimeSeconds / 3600,
		Videos:         ch.TotalVideos,
	}
	response.Success(c, http.StatusOK, gin.H{
		"stats":       stats,
		"eligibility": service.CheckEligibility(stats),
	})
}
