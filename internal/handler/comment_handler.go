package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/orchids/sandtube/internal/domain"
	"github.com/orchids/sandtube/internal/service"
	"github.com/orchids/sandtube/pkg/logger"
	"github.com/orchids/sandtube/pkg/response"
	"github.com/orchids/sandtube/pkg/validator"
)

type CommentHandler struct {
	engagement *service.EngagementService
	comments   *service.CommentService
	log        *logger.Logger
}

func NewCommentHandler(engagement *service.EngagementService, comments *service.CommentService, log *logger.Logger) *CommentHandler {
	return &CommentHandler{
		engagement: engagement,
		comments:   comments,
		log:        log,
	}
}

type postCommentRequest struct {
	AuthorID     string `json:"author_id" binding:"required"`
	AuthorName   string `json:"author_name" binding:"required"`
	AuthorAvatar string `json:"author_avatar"`
	Text         string `json:"text"`
	ParentID     string `json:"parent_id"`
}

func (h *CommentHandler) Post(c *gin.Context) {
	ctx := c.Request.Context()

	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}
	var req postCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := validator.ValidateCommentText(req.Text); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	author := domain.Author{
		ID:     req.AuthorID,
		Name:   validator.SanitizeString(req.AuthorName),
		Avatar: req.AuthorAvatar,
	}
	comment, verdict, err := h.engagement.PostComment(ctx, contentID, author, req.Text, req.ParentID)
	if err != nil {
		if errors.Is(err, domain.ErrCommentNotFound) {
			response.NotFound(c, "Parent comment not found")
			return
		}
		h.log.Error(ctx, "Failed to post comment", err, map[string]interface{}{
			"content_id": contentID,
		})
		response.InternalError(c, "Failed to post comment")
		return
	}
	if comment == nil {
		response.Error(c, http.StatusUnprocessableEntity, "REJECTED_BY_MODERATION", verdict.Reason)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"comment":    comment,
		"moderation": verdict,
	})
}

func (h *CommentHandler) List(c *gin.Context) {
	contentID, ok := pathID(c, "id", "content_id")
	if !ok {
		return
	}

	sortBy := domain.CommentSort(c.DefaultQuery("sort", string(domain.CommentSortTop)))
	if sortBy != domain.CommentSortTop && sortBy != domain.CommentSortNewest {
		response.ValidationError(c, "sort must be top or newest")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"comments": h.comments.List(contentID, sortBy),
		"count":    h.comments.Count(contentID),
	})
}

func (h *CommentHandler) Get(c *gin.Context) {
	contentID, commentID, ok := commentPath(c)
	if !ok {
		return
	}

	comment := h.comments.Get(contentID, commentID)
	if comment == nil {
		response.NotFound(c, "Comment not found")
		return
	}
	response.Success(c, http.StatusOK, comment)
}

type editCommentRequest struct {
	AuthorID string `json:"author_id" binding:"required"`
	Text     string `json:"text"`
}

func (h *CommentHandler) Edit(c *gin.Context) {
	contentID, commentID, ok := commentPath(c)
	if !ok {
		return
	}
	var req editCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := validator.ValidateCommentText(req.Text); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	// Only the author may edit; anyone else sees the same not-found as a
	// missing comment.
	if !h.comments.Edit(c.Request.Context(), contentID, commentID, req.AuthorID, req.Text) {
		response.NotFound(c, "Comment not found")
		return
	}
	response.Success(c, http.StatusOK, h.comments.Get(contentID, commentID))
}

func (h *CommentHandler) Delete(c *gin.Context) {
	contentID, commentID, ok := commentPath(c)
	if !ok {
		return
	}

	removed, err := h.engagement.DeleteComment(c.Request.Context(), contentID, commentID)
	if err != nil {
		response.NotFound(c, "Comment not found")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": removed})
}

func (h *CommentHandler) Like(c *gin.Context) {
	contentID, commentID, ok := commentPath(c)
	if !ok {
		return
	}
	var req userRequest
	if !bindJSON(c, &req) {
		return
	}

	action, found := h.comments.Like(c.Request.Context(), contentID, commentID, req.UserID)
	if !found {
		response.NotFound(c, "Comment not found")
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"action":  action,
		"comment": h.comments.Get(contentID, commentID),
	})
}

func (h *CommentHandler) Pin(c *gin.Context) {
	contentID, commentID, ok := commentPath(c)
	if !ok {
		return
	}
	if !h.comments.Pin(c.Request.Context(), contentID, commentID) {
		response.NotFound(c, "Top-level comment not found")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"pinned": true})
}

func (h *CommentHandler) Unpin(c *gin.Context) {
	contentID, commentID, ok := commentPath(c)
	if !ok {
		return
	}
	if !h.comments.Unpin(c.Request.Context(), contentID, commentID) {
		response.NotFound(c, "Comment not found")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"pinned": false})
}

func (h *CommentHandler) Heart(c *gin.Context) {
	contentID, commentID, ok := commentPath(c)
	if !ok {
		return
	}
	if !h.comments.Heart(c.Request.Context(), contentID, commentID) {
		response.NotFound(c, "Comment not found")
		return
	}
	comment := h.comments.Get(contentID, commentID)
	response.Success(c, http.StatusOK, gin.H{"hearted": comment != nil && comment.HeartedByCreator})
}

func commentPath(c *gin.Context) (contentID, commentID string, ok bool) {
	if contentID, ok = pathID(c, "id", "content_id"); !ok {
		return "", "", false
	}
	if commentID, ok = pathID(c, "commentId", "comment_id"); !ok {
		return "", "", false
	}
	return contentID, commentID, true
}
