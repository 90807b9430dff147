package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/service"
	"github.com/orchids/sandtube/pkg/logger"
	"github.com/orchids/sandtube/pkg/response"
)

type ModerationHandler struct {
	moderation *service.ModerationService
	log        *logger.Logger
}

func NewModerationHandler(moderation *service.ModerationService, log *logger.Logger) *ModerationHandler {
	return &ModerationHandler{
		moderation: moderation,
		log:        log,
	}
}

type moderateRequest struct {
	ContentID   string `json:"content_id" binding:"required"`
	ContentType string `json:"content_type"`
	AuthorID    string `json:"author_id"`
	Text        string `json:"text" binding:"required"`
}

// Moderate scores a piece of text and records an action when it is
// blocked, flagged or matches a rule.
func (h *ModerationHandler) Moderate(c *gin.Context) {
	var req moderateRequest
	if !bindJSON(c, &req) {
		return
	}

	result := h.moderation.Moderate(c.Request.Context(), service.ModerateRequest{
		ContentID:   req.ContentID,
		ContentType: req.ContentType,
		AuthorID:    req.AuthorID,
		Text:        req.Text,
	})
	response.Success(c, http.StatusOK, result)
}

type toxicityRequest struct {
	Text string `json:"text" binding:"required"`
}

// Toxicity scores text without recording anything.
func (h *ModerationHandler) Toxicity(c *gin.Context) {
	var req toxicityRequest
	if !bindJSON(c, &req) {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"score": h.moderation.Toxicity(req.Text),
		"spam":  h.moderation.IsSpam(req.Text),
	})
}

type reportRequest struct {
	ReporterID  string `json:"reporter_id" binding:"required"`
	ContentType string `json:"content_type"`
	Reason      string `json:"reason" binding:"required"`
}

func (h *ModerationHandler) Report(c *gin.Context) {
	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}
	var req reportRequest
	if !bindJSON(c, &req) {
		return
	}

	action := h.moderation.Report(c.Request.Context(), contentID, req.ContentType, req.ReporterID, req.Reason)
	response.Success(c, http.StatusCreated, action)
}

func (h *ModerationHandler) CheckCopyright(c *gin.Context) {
	var meta domain.ContentMetadata
	if !bindJSON(c, &meta) {
		return
	}
	response.Success(c, http.StatusOK, h.moderation.CheckCopyright(meta))
}
