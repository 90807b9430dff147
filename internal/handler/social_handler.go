package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/service"
	"github.com/orchids/sandtube/pkg/logger"
	"github.com/orchids/sandtube/pkg/response"
)

type SocialHandler struct {
	engagement *service.EngagementService
	social     *service.SocialService
	log        *logger.Logger
}

func NewSocialHandler(engagement *service.EngagementService, social *service.SocialService, log *logger.Logger) *SocialHandler {
	return &SocialHandler{
		engagement: engagement,
		social:     social,
		log:        log,
	}
}

func (h *SocialHandler) Like(c *gin.Context) {
	h.react(c, h.engagement.LikeContent)
}

func (h *SocialHandler) Dislike(c *gin.Context) {
	h.react(c, h.engagement.DislikeContent)
}

func (h *SocialHandler) react(c *gin.Context, toggle func(ctx context.Context, contentID, userID string) domain.ToggleResult) {
	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}
	var req userRequest
	if !bindJSON(c, &req) {
		return
	}

	result := toggle(c.Request.Context(), contentID, req.UserID)

	response.Success(c, http.StatusOK, gin.H{
		"result":   result,
		"likes":    h.social.LikeCount(contentID),
		"dislikes": h.social.DislikeCount(contentID),
	})
}

func (h *SocialHandler) Save(c *gin.Context) {
	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}
	var req userRequest
	if !bindJSON(c, &req) {
		return
	}

	result := h.social.Save(c.Request.Context(), contentID, req.UserID)
	response.Success(c, http.StatusOK, gin.H{
		"result": result,
		"saved":  result.Action == domain.ToggleAdded,
	})
}

// Reactions reports the counters of an item and, with ?user_id=, that
// user's own reactions.
func (h *SocialHandler) Reactions(c *gin.Context) {
	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}

	data := gin.H{
		"content_id": contentID,
		"likes":      h.social.LikeCount(contentID),
		"dislikes":   h.social.DislikeCount(contentID),
		"shares":     h.social.ShareCount(contentID),
	}
	if userID := c.Query("user_id"); userID != "" {
		data["liked"] = h.social.HasLiked(contentID, userID)
		data["disliked"] = h.social.HasDisliked(contentID, userID)
		data["saved"] = h.social.HasSaved(contentID, userID)
	}
	response.Success(c, http.StatusOK, data)
}

type shareRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Platform string `json:"platform" binding:"required"`
}

func (h *SocialHandler) Share(c *gin.Context) {
	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}
	var req shareRequest
	if !bindJSON(c, &req) {
		return
	}

	count := h.engagement.Share(c.Request.Context(), contentID, req.UserID, req.Platform)
	response.Success(c, http.StatusOK, gin.H{"shares": count})
}

func (h *SocialHandler) Subscribe(c *gin.Context) {
	h.subscription(c, h.engagement.SubscribeChannel)
}

func (h *SocialHandler) Unsubscribe(c *gin.Context) {
	h.subscription(c, h.engagement.UnsubscribeChannel)
}

func (h *SocialHandler) subscription(c *gin.Context, apply func(ctx context.Context, userID, channelID string) bool) {
	channelID, ok := pathID(c, "id", "channel_id")
	if !ok {
		return
	}
	var req userRequest
	if !bindJSON(c, &req) {
		return
	}

	changed := apply(c.Request.Context(), req.UserID, channelID)
	response.Success(c, http.StatusOK, gin.H{
		"changed":     changed,
		"subscribed":  h.social.IsSubscribed(req.UserID, channelID),
		"subscribers": h.social.SubscriberCount(channelID),
	})
}

func (h *SocialHandler) Subscribers(c *gin.Context) {
	channelID, ok := pathID(c, "id", "channel_id")
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"channel_id":  channelID,
		"subscribers": h.social.SubscriberCount(channelID),
	})
}

func (h *SocialHandler) SavedItems(c *gin.Context) {
	userID, ok := pathID(c, "id", "user_id")
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": h.social.SavedItems(userID)})
}

func (h *SocialHandler) Subscriptions(c *gin.Context) {
	userID, ok := pathID(c, "id", "user_id")
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"channels": h.social.Subscriptions(userID)})
}
